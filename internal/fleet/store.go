package fleet

import (
	"sort"
	"sync"
	"time"
)

const DefaultAlertCapacity = 50

// Store holds the authoritative fleet state. A single producer mutates it;
// any number of readers take snapshots. All access is serialized at the
// granularity of the whole map plus the whole alert history.
type Store struct {
	mu       sync.RWMutex
	vehicles map[string]EmissionRecord
	alerts   []Alert
	capacity int
	version  uint64
	now      func() time.Time
}

func NewStore(alertCapacity int) *Store {
	if alertCapacity <= 0 {
		alertCapacity = DefaultAlertCapacity
	}
	return &Store{
		vehicles: map[string]EmissionRecord{},
		alerts:   make([]Alert, 0, alertCapacity),
		capacity: alertCapacity,
		now:      time.Now,
	}
}

// Upsert replaces the entry for rec.VehicleID and returns the new state version.
func (s *Store) Upsert(rec EmissionRecord) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vehicles[rec.VehicleID] = rec
	s.version++
	return s.version
}

// AppendAlert inserts a into the history, evicting the oldest entries past capacity.
func (s *Store) AppendAlert(a Alert) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = InsertAlert(s.alerts, a, s.capacity)
	s.version++
	return s.version
}

// UpsertWithAlert stores rec and, when alert is non-nil, its alert under one
// lock, so no snapshot shows the record without the alert it raised. It
// returns the version after each mutation; alertSeq is 0 without an alert.
func (s *Store) UpsertWithAlert(rec EmissionRecord, alert *Alert) (recordSeq, alertSeq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vehicles[rec.VehicleID] = rec
	s.version++
	recordSeq = s.version

	if alert != nil {
		s.alerts = InsertAlert(s.alerts, *alert, s.capacity)
		s.version++
		alertSeq = s.version
	}
	return recordSeq, alertSeq
}

// InsertAlert returns history with a placed newest-first by Timestamp. Among
// equal timestamps the latest insertion comes first. The result never holds
// more than capacity alerts; the oldest fall off the end.
func InsertAlert(history []Alert, a Alert, capacity int) []Alert {
	if capacity <= 0 {
		capacity = DefaultAlertCapacity
	}
	pos := len(history)
	for i, existing := range history {
		if !existing.Timestamp.After(a.Timestamp) {
			pos = i
			break
		}
	}

	next := make([]Alert, 0, capacity)
	next = append(next, history[:pos]...)
	next = append(next, a)
	next = append(next, history[pos:]...)
	if len(next) > capacity {
		next = next[:capacity]
	}
	return next
}

func (s *Store) Get(vehicleID string) (EmissionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.vehicles[vehicleID]
	return rec, ok
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vehicles := make([]EmissionRecord, 0, len(s.vehicles))
	for _, rec := range s.vehicles {
		vehicles = append(vehicles, rec)
	}
	sort.Slice(vehicles, func(i, j int) bool {
		return vehicles[i].VehicleID < vehicles[j].VehicleID
	})

	alerts := make([]Alert, len(s.alerts))
	copy(alerts, s.alerts)

	return Snapshot{
		Version:  s.version,
		TakenAt:  s.now(),
		Vehicles: vehicles,
		Alerts:   alerts,
	}
}

func (s *Store) Capacity() int {
	return s.capacity
}
