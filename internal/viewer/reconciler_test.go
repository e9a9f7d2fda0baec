package viewer

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"backend-pathgreen/internal/chat"
	"backend-pathgreen/internal/fleet"
	"backend-pathgreen/internal/stream"
)

var ts0 = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

func frame(t *testing.T, typ string, seq uint64, data any) []byte {
	t.Helper()
	msg, err := stream.Encode(typ, seq, data)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	return msg.Payload
}

func apply(t *testing.T, r *Reconciler, raw []byte) Event {
	t.Helper()
	ev, err := r.Apply(raw)
	if err != nil {
		t.Fatalf("apply error: %v", err)
	}
	return ev
}

func record(id string, offset time.Duration, speed float64) fleet.EmissionRecord {
	return fleet.EmissionRecord{VehicleID: id, Timestamp: ts0.Add(offset), SpeedKmh: speed}
}

func TestReconcilerInitialStateReplaces(t *testing.T) {
	r := NewReconciler(5)
	apply(t, r, frame(t, stream.TypeInitialState, 3, stream.InitialState{
		Vehicles: []fleet.EmissionRecord{record("TRK-101", 0, 10), record("TRK-102", 0, 20)},
		Alerts:   []fleet.Alert{{AlertID: "a-1"}},
	}))
	apply(t, r, frame(t, stream.TypeInitialState, 9, stream.InitialState{
		Vehicles: []fleet.EmissionRecord{record("TRK-103", 0, 30)},
	}))

	view := r.View()
	if len(view.Vehicles) != 1 || view.Vehicles[0].VehicleID != "TRK-103" {
		t.Fatalf("expected wholesale replace, got %+v", view.Vehicles)
	}
	if len(view.Alerts) != 0 || view.Seq != 9 || !view.Synced {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestReconcilerUpsertIgnoresOlder(t *testing.T) {
	r := NewReconciler(5)
	apply(t, r, frame(t, stream.TypeInitialState, 1, stream.InitialState{
		Vehicles: []fleet.EmissionRecord{record("TRK-101", 10*time.Second, 10)},
	}))

	ev := apply(t, r, frame(t, stream.TypeEmissionUpdate, 2, record("TRK-101", 5*time.Second, 99)))
	if ev.Record != nil {
		t.Fatalf("older record should be ignored")
	}
	ev = apply(t, r, frame(t, stream.TypeEmissionUpdate, 3, record("TRK-101", 11*time.Second, 42)))
	if ev.Record == nil {
		t.Fatalf("newer record should apply")
	}
	apply(t, r, frame(t, stream.TypeEmissionUpdate, 4, record("TRK-102", 0, 7)))

	view := r.View()
	if len(view.Vehicles) != 2 || view.Vehicles[0].SpeedKmh != 42 {
		t.Fatalf("unexpected vehicles %+v", view.Vehicles)
	}
}

func TestReconcilerIgnoresUpdatesBeforeBaseline(t *testing.T) {
	r := NewReconciler(5)
	if ev := apply(t, r, frame(t, stream.TypeEmissionUpdate, 1, record("TRK-101", 0, 1))); ev.Record != nil {
		t.Fatalf("updates before initial_state must be ignored")
	}
	apply(t, r, frame(t, stream.TypeInitialState, 5, stream.InitialState{}))
	if ev := apply(t, r, frame(t, stream.TypeEmissionUpdate, 5, record("TRK-101", 0, 1))); ev.Record != nil {
		t.Fatalf("updates covered by the baseline must be ignored")
	}
	if len(r.View().Vehicles) != 0 {
		t.Fatalf("expected empty view")
	}
}

func TestReconcilerAlertFeed(t *testing.T) {
	r := NewReconciler(3)
	apply(t, r, frame(t, stream.TypeInitialState, 0, stream.InitialState{}))

	for i := 1; i <= 5; i++ {
		apply(t, r, frame(t, stream.TypeAlert, uint64(i), fleet.Alert{AlertID: fmt.Sprintf("a-%d", i)}))
	}
	if ev := apply(t, r, frame(t, stream.TypeAlert, 6, fleet.Alert{AlertID: "a-5"})); ev.Alert != nil {
		t.Fatalf("duplicate alert id should be ignored")
	}

	alerts := r.View().Alerts
	if len(alerts) != 3 || alerts[0].AlertID != "a-5" || alerts[2].AlertID != "a-3" {
		t.Fatalf("unexpected alert feed %+v", alerts)
	}
}

func TestReconcilerConvergesAfterResync(t *testing.T) {
	server := fleet.NewStore(3)
	r := NewReconciler(3)
	apply(t, r, frame(t, stream.TypeInitialState, 0, stream.InitialState{}))

	for i := 0; i < 20; i++ {
		rec := record(fmt.Sprintf("TRK-%d", i%4), time.Duration(i)*time.Second, float64(i))
		seq := server.Upsert(rec)
		if i%3 == 0 {
			// lost in transit
			continue
		}
		apply(t, r, frame(t, stream.TypeEmissionUpdate, seq, rec))
	}
	for i := 0; i < 5; i++ {
		server.AppendAlert(fleet.Alert{AlertID: fmt.Sprintf("a-%d", i)})
	}

	snap := server.Snapshot()
	r.MarkStale()
	if r.View().Synced {
		t.Fatalf("view should be stale after disconnect")
	}
	apply(t, r, frame(t, stream.TypeInitialState, snap.Version, stream.InitialState{Vehicles: snap.Vehicles, Alerts: snap.Alerts}))

	view := r.View()
	if len(view.Vehicles) != len(snap.Vehicles) || len(view.Alerts) != len(snap.Alerts) {
		t.Fatalf("view did not converge")
	}
	for i := range snap.Vehicles {
		if view.Vehicles[i].SpeedKmh != snap.Vehicles[i].SpeedKmh {
			t.Fatalf("vehicle %s diverged", snap.Vehicles[i].VehicleID)
		}
	}
}

func TestReconcilerOtherFrames(t *testing.T) {
	r := NewReconciler(3)

	ev := apply(t, r, frame(t, stream.TypeChatResponse, 0, chat.Answer{MessageID: "m-1", Response: "hi"}))
	if ev.Chat == nil || ev.Chat.MessageID != "m-1" {
		t.Fatalf("expected chat answer event")
	}
	ev = apply(t, r, frame(t, stream.TypeError, 0, stream.ErrorMessage{Message: "invalid message"}))
	if ev.Error != "invalid message" {
		t.Fatalf("expected error text")
	}
	apply(t, r, frame(t, stream.TypePong, 0, nil))

	if _, err := r.Apply(frame(t, "mystery", 0, nil)); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage, got %v", err)
	}
	if _, err := r.Apply([]byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestReconcilerAlertOrderMatchesStore(t *testing.T) {
	store := fleet.NewStore(3)
	r := NewReconciler(3)
	apply(t, r, frame(t, stream.TypeInitialState, 0, stream.InitialState{}))

	alerts := []fleet.Alert{
		{AlertID: "a-2", Timestamp: ts0.Add(2 * time.Minute)},
		{AlertID: "a-3", Timestamp: ts0.Add(3 * time.Minute)},
		{AlertID: "a-1", Timestamp: ts0.Add(time.Minute)},
		{AlertID: "a-0", Timestamp: ts0},
	}
	for _, a := range alerts {
		seq := store.AppendAlert(a)
		apply(t, r, frame(t, stream.TypeAlert, seq, a))
	}

	want := store.Snapshot().Alerts
	got := r.View().Alerts
	if len(got) != len(want) {
		t.Fatalf("got %d alerts, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].AlertID != want[i].AlertID {
			t.Fatalf("alert %d = %s, want %s", i, got[i].AlertID, want[i].AlertID)
		}
	}
	if got[0].AlertID != "a-3" || got[2].AlertID != "a-1" {
		t.Fatalf("expected newest-first by timestamp, got %+v", got)
	}
}
