package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"backend-pathgreen/internal/chat"
	"backend-pathgreen/internal/fleet"
	"backend-pathgreen/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

var errWrite = errors.New("write failed")

type fakeWriter struct {
	name string

	mu       sync.Mutex
	records  [][]fleet.EmissionRecord
	alerts   [][]fleet.Alert
	failures int
}

func (f *fakeWriter) Name() string { return f.name }

func (f *fakeWriter) WriteRecords(_ context.Context, recs []fleet.EmissionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errWrite
	}
	f.records = append(f.records, append([]fleet.EmissionRecord(nil), recs...))
	return nil
}

func (f *fakeWriter) WriteAlerts(_ context.Context, alerts []fleet.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, append([]fleet.Alert(nil), alerts...))
	return nil
}

func (f *fakeWriter) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.records {
		n += len(b)
	}
	return n
}

func (f *fakeWriter) batches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeChatWriter struct {
	fakeWriter
	chats []chat.Entry
}

func (f *fakeChatWriter) WriteChats(_ context.Context, entries []chat.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, entries...)
	return nil
}

func (f *fakeChatWriter) chatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chats)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func runDispatcher(t *testing.T, d *Dispatcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestDispatcherBatchesBySize(t *testing.T) {
	w := &fakeWriter{name: "batch-size"}
	d := NewDispatcher(Config{QueueSize: 16, BatchSize: 3, FlushInterval: time.Hour}, w)
	runDispatcher(t, d)

	for i := 0; i < 6; i++ {
		d.SubmitRecord(fleet.EmissionRecord{VehicleID: fmt.Sprintf("TRK-%d", i)})
	}
	waitFor(t, "two batches", func() bool { return w.batches() == 2 })
	if w.recordCount() != 6 {
		t.Fatalf("expected 6 records, got %d", w.recordCount())
	}
}

func TestDispatcherFlushesOnInterval(t *testing.T) {
	w := &fakeWriter{name: "interval"}
	d := NewDispatcher(Config{QueueSize: 16, BatchSize: 100, FlushInterval: 20 * time.Millisecond}, w)
	runDispatcher(t, d)

	d.SubmitRecord(fleet.EmissionRecord{VehicleID: "TRK-101"})
	d.SubmitAlert(fleet.Alert{AlertID: "a-1"})
	waitFor(t, "interval flush", func() bool { return w.recordCount() == 1 })

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.alerts) != 1 {
		t.Fatalf("expected alerts flushed with the batch")
	}
}

func TestDispatcherFlushesOnShutdown(t *testing.T) {
	w := &fakeWriter{name: "shutdown"}
	d := NewDispatcher(Config{QueueSize: 16, BatchSize: 100, FlushInterval: time.Hour}, w)

	d.SubmitRecord(fleet.EmissionRecord{VehicleID: "TRK-101"})
	d.SubmitRecord(fleet.EmissionRecord{VehicleID: "TRK-102"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.recordCount() != 2 {
		t.Fatalf("expected buffered records flushed on shutdown, got %d", w.recordCount())
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	w := &fakeWriter{name: "full"}
	d := NewDispatcher(Config{QueueSize: 1, BatchSize: 1, FlushInterval: time.Hour}, w)
	drops := metrics.SinkDrops.WithLabelValues("full")
	before := testutil.ToFloat64(drops)

	d.SubmitRecord(fleet.EmissionRecord{VehicleID: "TRK-101"})
	d.SubmitRecord(fleet.EmissionRecord{VehicleID: "TRK-102"})
	d.SubmitAlert(fleet.Alert{AlertID: "a-1"})

	if got := testutil.ToFloat64(drops) - before; got != 2 {
		t.Fatalf("expected 2 drops, got %v", got)
	}
}

func TestDispatcherRetriesOnce(t *testing.T) {
	w := &fakeWriter{name: "retry", failures: 1}
	d := NewDispatcher(Config{QueueSize: 4, BatchSize: 1, FlushInterval: time.Hour, RetryDelay: time.Millisecond}, w)
	runDispatcher(t, d)

	d.SubmitRecord(fleet.EmissionRecord{VehicleID: "TRK-101"})
	waitFor(t, "retried write", func() bool { return w.recordCount() == 1 })
}

func TestDispatcherCountsPermanentFailure(t *testing.T) {
	w := &fakeWriter{name: "broken", failures: 2}
	d := NewDispatcher(Config{QueueSize: 4, BatchSize: 1, FlushInterval: time.Hour, RetryDelay: time.Millisecond}, w)
	errs := metrics.SinkErrors.WithLabelValues("broken")
	before := testutil.ToFloat64(errs)
	runDispatcher(t, d)

	d.SubmitRecord(fleet.EmissionRecord{VehicleID: "TRK-101"})
	waitFor(t, "error counted", func() bool { return testutil.ToFloat64(errs) == before+1 })
	if w.recordCount() != 0 {
		t.Fatalf("failed batch should not be recorded")
	}
}

func TestDispatcherRoutesChatsToChatWriters(t *testing.T) {
	plain := &fakeWriter{name: "plain"}
	history := &fakeChatWriter{fakeWriter: fakeWriter{name: "history"}}
	d := NewDispatcher(Config{QueueSize: 4, BatchSize: 1, FlushInterval: time.Hour}, plain, nil, history)
	if d.Len() != 2 {
		t.Fatalf("nil writers should be skipped")
	}
	runDispatcher(t, d)

	d.SubmitChat(chat.Entry{MessageID: "m-1", Query: "q", Response: "r"})
	waitFor(t, "chat written", func() bool { return history.chatCount() == 1 })
	if len(d.workers[0].ch) != 0 || plain.batches() != 0 {
		t.Fatalf("plain writer should never see chats")
	}
}
