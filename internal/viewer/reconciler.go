package viewer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"backend-pathgreen/internal/chat"
	"backend-pathgreen/internal/fleet"
	"backend-pathgreen/internal/stream"
)

var ErrUnknownMessage = errors.New("unknown message type")

// Event describes what one applied frame did to the view.
type Event struct {
	Type   string
	Seq    uint64
	Record *fleet.EmissionRecord
	Alert  *fleet.Alert
	Chat   *chat.Answer
	Error  string
}

// View is a copy of the reconciled client state.
type View struct {
	Vehicles []fleet.EmissionRecord
	Alerts   []fleet.Alert
	Seq      uint64
	Synced   bool
}

// Reconciler mirrors the server fleet state from received frames only.
type Reconciler struct {
	mu       sync.RWMutex
	vehicles map[string]fleet.EmissionRecord
	alerts   []fleet.Alert
	capacity int
	seq      uint64
	synced   bool
}

func NewReconciler(alertCapacity int) *Reconciler {
	if alertCapacity <= 0 {
		alertCapacity = fleet.DefaultAlertCapacity
	}
	return &Reconciler{
		vehicles: map[string]fleet.EmissionRecord{},
		capacity: alertCapacity,
	}
}

func (r *Reconciler) Apply(raw []byte) (Event, error) {
	var env stream.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("decode frame: %w", err)
	}
	ev := Event{Type: env.Type, Seq: env.Seq}

	switch env.Type {
	case stream.TypeInitialState:
		var state stream.InitialState
		if err := json.Unmarshal(env.Data, &state); err != nil {
			return ev, fmt.Errorf("decode initial_state: %w", err)
		}
		r.replace(env.Seq, state)

	case stream.TypeEmissionUpdate:
		var rec fleet.EmissionRecord
		if err := json.Unmarshal(env.Data, &rec); err != nil {
			return ev, fmt.Errorf("decode emission_update: %w", err)
		}
		if r.upsert(env.Seq, rec) {
			ev.Record = &rec
		}

	case stream.TypeAlert:
		var alert fleet.Alert
		if err := json.Unmarshal(env.Data, &alert); err != nil {
			return ev, fmt.Errorf("decode alert: %w", err)
		}
		if r.prependAlert(env.Seq, alert) {
			ev.Alert = &alert
		}

	case stream.TypeChatResponse:
		var ans chat.Answer
		if err := json.Unmarshal(env.Data, &ans); err != nil {
			return ev, fmt.Errorf("decode chat_response: %w", err)
		}
		ev.Chat = &ans

	case stream.TypeError:
		var msg stream.ErrorMessage
		_ = json.Unmarshal(env.Data, &msg)
		ev.Error = msg.Message

	case stream.TypePong:

	default:
		return ev, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	return ev, nil
}

// MarkStale flags the view as out of sync until the next initial_state.
func (r *Reconciler) MarkStale() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced = false
}

func (r *Reconciler) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vehicles := make([]fleet.EmissionRecord, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		vehicles = append(vehicles, v)
	}
	sort.Slice(vehicles, func(i, j int) bool {
		return vehicles[i].VehicleID < vehicles[j].VehicleID
	})
	alerts := make([]fleet.Alert, len(r.alerts))
	copy(alerts, r.alerts)

	return View{Vehicles: vehicles, Alerts: alerts, Seq: r.seq, Synced: r.synced}
}

func (r *Reconciler) replace(seq uint64, state stream.InitialState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vehicles = make(map[string]fleet.EmissionRecord, len(state.Vehicles))
	for _, v := range state.Vehicles {
		r.vehicles[v.VehicleID] = v
	}
	alerts := state.Alerts
	if len(alerts) > r.capacity {
		alerts = alerts[:r.capacity]
	}
	r.alerts = append(make([]fleet.Alert, 0, r.capacity), alerts...)
	r.seq = seq
	r.synced = true
}

func (r *Reconciler) upsert(seq uint64, rec fleet.EmissionRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.synced || (seq != 0 && seq <= r.seq) {
		return false
	}
	r.advance(seq)
	if existing, ok := r.vehicles[rec.VehicleID]; ok && rec.Timestamp.Before(existing.Timestamp) {
		return false
	}
	r.vehicles[rec.VehicleID] = rec
	return true
}

func (r *Reconciler) prependAlert(seq uint64, alert fleet.Alert) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.synced || (seq != 0 && seq <= r.seq) {
		return false
	}
	r.advance(seq)
	for _, existing := range r.alerts {
		if existing.AlertID == alert.AlertID {
			return false
		}
	}

	r.alerts = fleet.InsertAlert(r.alerts, alert, r.capacity)
	return true
}

func (r *Reconciler) advance(seq uint64) {
	if seq > r.seq {
		r.seq = seq
	}
}
