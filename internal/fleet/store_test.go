package fleet

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStoreUpsertOverwrites(t *testing.T) {
	store := NewStore(10)
	ts := time.Unix(1700000000, 0)

	v1 := store.Upsert(EmissionRecord{VehicleID: "TRK-101", Timestamp: ts, SpeedKmh: 10})
	v2 := store.Upsert(EmissionRecord{VehicleID: "TRK-101", Timestamp: ts.Add(time.Second), SpeedKmh: 20})
	if v2 <= v1 {
		t.Fatalf("expected version to grow, got %d then %d", v1, v2)
	}

	snap := store.Snapshot()
	if len(snap.Vehicles) != 1 {
		t.Fatalf("expected one vehicle, got %d", len(snap.Vehicles))
	}
	if snap.Vehicles[0].SpeedKmh != 20 {
		t.Fatalf("expected latest record, got %+v", snap.Vehicles[0])
	}
	if snap.Version != v2 {
		t.Fatalf("snapshot version %d, want %d", snap.Version, v2)
	}
}

func TestStoreAlertHistoryBoundedOldestEvicted(t *testing.T) {
	store := NewStore(3)
	for i := 0; i < 5; i++ {
		store.AppendAlert(Alert{AlertID: fmt.Sprintf("a-%d", i)})
	}

	snap := store.Snapshot()
	if len(snap.Alerts) != 3 {
		t.Fatalf("expected capacity 3, got %d", len(snap.Alerts))
	}
	want := []string{"a-4", "a-3", "a-2"}
	for i, id := range want {
		if snap.Alerts[i].AlertID != id {
			t.Fatalf("alert %d = %s, want %s", i, snap.Alerts[i].AlertID, id)
		}
	}
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	store := NewStore(5)
	store.Upsert(EmissionRecord{VehicleID: "TRK-101"})
	store.AppendAlert(Alert{AlertID: "a-1"})

	snap := store.Snapshot()
	snap.Vehicles[0].VehicleID = "mutated"
	snap.Alerts[0].AlertID = "mutated"

	again := store.Snapshot()
	if again.Vehicles[0].VehicleID != "TRK-101" || again.Alerts[0].AlertID != "a-1" {
		t.Fatalf("snapshot mutation leaked into store")
	}
}

func TestStoreSnapshotSortedByVehicle(t *testing.T) {
	store := NewStore(5)
	for _, id := range []string{"TRK-105", "TRK-101", "TRK-103"} {
		store.Upsert(EmissionRecord{VehicleID: id})
	}
	snap := store.Snapshot()
	if snap.Vehicles[0].VehicleID != "TRK-101" || snap.Vehicles[2].VehicleID != "TRK-105" {
		t.Fatalf("unexpected order: %+v", snap.Vehicles)
	}
	if _, ok := snap.Vehicle("TRK-103"); !ok {
		t.Fatalf("expected lookup to find TRK-103")
	}
}

func TestStoreConcurrentReadersSeeWholeRecords(t *testing.T) {
	store := NewStore(DefaultAlertCapacity)
	done := make(chan struct{})

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := store.Snapshot()
				for _, v := range snap.Vehicles {
					// writer always keeps speed and co2 equal
					if v.SpeedKmh != v.CO2Grams {
						t.Errorf("torn record observed: %+v", v)
						return
					}
				}
				if len(snap.Alerts) > DefaultAlertCapacity {
					t.Errorf("alert history over capacity: %d", len(snap.Alerts))
					return
				}
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		val := float64(i)
		store.Upsert(EmissionRecord{VehicleID: fmt.Sprintf("TRK-%d", i%7), SpeedKmh: val, CO2Grams: val})
		store.AppendAlert(Alert{AlertID: fmt.Sprintf("a-%d", i)})
	}
	close(done)
	wg.Wait()
}

func TestNewStoreDefaultCapacity(t *testing.T) {
	if NewStore(0).Capacity() != DefaultAlertCapacity {
		t.Fatalf("expected default capacity")
	}
}

func TestStoreAlertHistoryOrderedByTimestamp(t *testing.T) {
	store := NewStore(3)
	base := time.Unix(1700000000, 0)

	store.AppendAlert(Alert{AlertID: "replay-2", Timestamp: base.Add(2 * time.Minute)})
	store.AppendAlert(Alert{AlertID: "replay-3", Timestamp: base.Add(3 * time.Minute)})
	// a late external sample raises an alert older than the replay stream's
	store.AppendAlert(Alert{AlertID: "ingest-1", Timestamp: base.Add(time.Minute)})

	snap := store.Snapshot()
	want := []string{"replay-3", "replay-2", "ingest-1"}
	for i, id := range want {
		if snap.Alerts[i].AlertID != id {
			t.Fatalf("alert %d = %s, want %s (history %+v)", i, snap.Alerts[i].AlertID, id, snap.Alerts)
		}
	}

	// full history: an alert older than everything falls off immediately
	store.AppendAlert(Alert{AlertID: "ancient", Timestamp: base})
	snap = store.Snapshot()
	if len(snap.Alerts) != 3 || snap.Alerts[2].AlertID != "ingest-1" {
		t.Fatalf("expected oldest alert evicted, got %+v", snap.Alerts)
	}

	store.AppendAlert(Alert{AlertID: "replay-4", Timestamp: base.Add(4 * time.Minute)})
	snap = store.Snapshot()
	if snap.Alerts[0].AlertID != "replay-4" || snap.Alerts[2].AlertID != "replay-2" {
		t.Fatalf("unexpected history after newest insert: %+v", snap.Alerts)
	}
}

func TestStoreUpsertWithAlertSingleMutation(t *testing.T) {
	store := NewStore(5)
	ts := time.Unix(1700000000, 0)

	recSeq, alertSeq := store.UpsertWithAlert(EmissionRecord{VehicleID: "TRK-101", Timestamp: ts}, nil)
	if recSeq != 1 || alertSeq != 0 {
		t.Fatalf("got seqs %d/%d, want 1/0", recSeq, alertSeq)
	}

	rec := EmissionRecord{VehicleID: "TRK-104", Timestamp: ts, AlertType: AlertHighIdle}
	alert := &Alert{AlertID: "a-1", VehicleID: "TRK-104", Timestamp: ts, AlertType: AlertHighIdle}
	recSeq, alertSeq = store.UpsertWithAlert(rec, alert)
	if recSeq != 2 || alertSeq != 3 {
		t.Fatalf("got seqs %d/%d, want 2/3", recSeq, alertSeq)
	}

	snap := store.Snapshot()
	if snap.Version != alertSeq {
		t.Fatalf("snapshot version %d, want %d", snap.Version, alertSeq)
	}
	if len(snap.Alerts) != 1 || snap.Alerts[0].AlertID != "a-1" {
		t.Fatalf("expected alert in history, got %+v", snap.Alerts)
	}
}

func TestStoreSnapshotNeverSplitsRecordFromAlert(t *testing.T) {
	store := NewStore(DefaultAlertCapacity)
	done := make(chan struct{})

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := store.Snapshot()
				for _, v := range snap.Vehicles {
					if v.AlertType == "" {
						continue
					}
					found := false
					for _, a := range snap.Alerts {
						if a.AlertID == v.AlertMessage {
							found = true
							break
						}
					}
					if !found {
						t.Errorf("record %s carries alert %s missing from history", v.VehicleID, v.AlertMessage)
						return
					}
				}
			}
		}()
	}

	base := time.Unix(1700000000, 0)
	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("a-%d", i)
		ts := base.Add(time.Duration(i) * time.Second)
		rec := EmissionRecord{VehicleID: fmt.Sprintf("TRK-%d", i%3), Timestamp: ts, AlertType: AlertEmissionSpike, AlertMessage: id}
		store.UpsertWithAlert(rec, &Alert{AlertID: id, VehicleID: rec.VehicleID, Timestamp: ts})
	}
	close(done)
	wg.Wait()
}
