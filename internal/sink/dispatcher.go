package sink

import (
	"context"
	"time"

	"backend-pathgreen/internal/chat"
	"backend-pathgreen/internal/fleet"
	"backend-pathgreen/internal/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Writer persists completed records and alerts in batches.
type Writer interface {
	Name() string
	WriteRecords(ctx context.Context, recs []fleet.EmissionRecord) error
	WriteAlerts(ctx context.Context, alerts []fleet.Alert) error
}

// ChatWriter is implemented by writers that also keep chat history.
type ChatWriter interface {
	WriteChats(ctx context.Context, entries []chat.Entry) error
}

type Config struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	RetryDelay    time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:     2048,
		BatchSize:     100,
		FlushInterval: 2 * time.Second,
		RetryDelay:    500 * time.Millisecond,
	}
}

type item struct {
	record *fleet.EmissionRecord
	alert  *fleet.Alert
	chat   *chat.Entry
}

type worker struct {
	w   Writer
	ch  chan item
	cfg Config
}

// Dispatcher fans items out to one bounded queue per writer. Submit calls
// never block; a full queue drops the item and counts it.
type Dispatcher struct {
	workers []*worker
}

func NewDispatcher(cfg Config, writers ...Writer) *Dispatcher {
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}

	d := &Dispatcher{}
	for _, w := range writers {
		if w == nil {
			continue
		}
		d.workers = append(d.workers, &worker{w: w, ch: make(chan item, cfg.QueueSize), cfg: cfg})
	}
	return d
}

func (d *Dispatcher) Len() int {
	return len(d.workers)
}

func (d *Dispatcher) SubmitRecord(rec fleet.EmissionRecord) {
	d.dispatch(item{record: &rec})
}

func (d *Dispatcher) SubmitAlert(alert fleet.Alert) {
	d.dispatch(item{alert: &alert})
}

func (d *Dispatcher) SubmitChat(entry chat.Entry) {
	d.dispatch(item{chat: &entry})
}

func (d *Dispatcher) dispatch(it item) {
	for _, wk := range d.workers {
		if it.chat != nil {
			if _, ok := wk.w.(ChatWriter); !ok {
				continue
			}
		}
		select {
		case wk.ch <- it:
		default:
			metrics.SinkDrops.WithLabelValues(wk.w.Name()).Inc()
		}
	}
}

// Run drives every writer until ctx is done, then flushes what is buffered.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, wk := range d.workers {
		wk := wk
		g.Go(func() error {
			wk.run(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (wk *worker) run(ctx context.Context) {
	batch := make([]item, 0, wk.cfg.BatchSize)
	ticker := time.NewTicker(wk.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case it := <-wk.ch:
			batch = append(batch, it)
			if len(batch) >= wk.cfg.BatchSize {
				wk.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				wk.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			batch = wk.drain(batch)
			if len(batch) > 0 {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				wk.flush(flushCtx, batch)
				cancel()
			}
			return
		}
	}
}

func (wk *worker) drain(batch []item) []item {
	for {
		select {
		case it := <-wk.ch:
			batch = append(batch, it)
		default:
			return batch
		}
	}
}

func (wk *worker) flush(ctx context.Context, batch []item) {
	var (
		recs   []fleet.EmissionRecord
		alerts []fleet.Alert
		chats  []chat.Entry
	)
	for _, it := range batch {
		switch {
		case it.record != nil:
			recs = append(recs, *it.record)
		case it.alert != nil:
			alerts = append(alerts, *it.alert)
		case it.chat != nil:
			chats = append(chats, *it.chat)
		}
	}

	name := wk.w.Name()
	if len(recs) > 0 {
		wk.write(ctx, "records", len(recs), func(ctx context.Context) error { return wk.w.WriteRecords(ctx, recs) })
	}
	if len(alerts) > 0 {
		wk.write(ctx, "alerts", len(alerts), func(ctx context.Context) error { return wk.w.WriteAlerts(ctx, alerts) })
	}
	if cw, ok := wk.w.(ChatWriter); ok && len(chats) > 0 {
		wk.write(ctx, "chats", len(chats), func(ctx context.Context) error { return cw.WriteChats(ctx, chats) })
	}
	log.Debug().Str("sink", name).Int("batch", len(batch)).Msg("sink flushed")
}

// write tries once more after RetryDelay before giving the batch up.
func (wk *worker) write(ctx context.Context, kind string, n int, fn func(context.Context) error) {
	name := wk.w.Name()
	err := fn(ctx)
	if err != nil {
		log.Warn().Err(err).Str("sink", name).Str("kind", kind).Int("batch", n).Msg("sink write failed, retrying")
		select {
		case <-time.After(wk.cfg.RetryDelay):
		case <-ctx.Done():
		}
		err = fn(ctx)
	}
	if err != nil {
		log.Error().Err(err).Str("sink", name).Str("kind", kind).Int("batch", n).Msg("sink write permanently failed")
		metrics.SinkErrors.WithLabelValues(name).Inc()
		return
	}
	metrics.SinkWrites.WithLabelValues(name, kind).Add(float64(n))
}
