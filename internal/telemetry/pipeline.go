package telemetry

import (
	"context"
	"errors"
	"time"

	"backend-pathgreen/internal/emission"
	"backend-pathgreen/internal/fleet"
	"backend-pathgreen/internal/metrics"

	"github.com/rs/zerolog/log"
)

const DefaultTickInterval = 500 * time.Millisecond

// Publisher fans state changes out to live viewers.
type Publisher interface {
	PublishRecord(seq uint64, rec fleet.EmissionRecord)
	PublishAlert(seq uint64, alert fleet.Alert)
}

// Recorder hands completed records and alerts to persistence. Both calls
// must return immediately.
type Recorder interface {
	SubmitRecord(rec fleet.EmissionRecord)
	SubmitAlert(alert fleet.Alert)
}

type TickResult struct {
	Applied   int
	Discarded int
	Alerts    int
}

// Pipeline is the single producer: the only goroutine that mutates the
// fleet store.
type Pipeline struct {
	store       *fleet.Store
	transformer *emission.Transformer
	publisher   Publisher
	recorder    Recorder
	sources     []Source
	interval    time.Duration
	now         func() time.Time
}

func NewPipeline(store *fleet.Store, transformer *emission.Transformer, publisher Publisher, recorder Recorder, interval time.Duration, sources ...Source) *Pipeline {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Pipeline{
		store:       store,
		transformer: transformer,
		publisher:   publisher,
		recorder:    recorder,
		sources:     sources,
		interval:    interval,
		now:         time.Now,
	}
}

func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", p.interval).Int("sources", len(p.sources)).Msg("producer started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("producer stopped")
			return nil
		case <-ticker.C:
			p.Tick(p.now())
		}
	}
}

// Tick polls every source once and applies the samples in order.
func (p *Pipeline) Tick(now time.Time) TickResult {
	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	var res TickResult
	for _, src := range p.sources {
		for _, sample := range src.Poll(now) {
			alert, err := p.Process(sample)
			if err != nil {
				res.Discarded++
				continue
			}
			res.Applied++
			if alert != nil {
				res.Alerts++
			}
		}
	}
	return res
}

// Process applies one sample. A rejected sample leaves the store untouched.
func (p *Pipeline) Process(sample fleet.Sample) (*fleet.Alert, error) {
	var prev *fleet.EmissionRecord
	if rec, ok := p.store.Get(sample.VehicleID); ok {
		prev = &rec
	}

	rec, alert, err := p.transformer.Apply(sample, prev)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, emission.ErrOutOfOrder) {
			reason = "out_of_order"
		}
		metrics.SamplesDiscarded.WithLabelValues(reason).Inc()
		log.Warn().Err(err).Str("vehicle_id", sample.VehicleID).Time("timestamp", sample.Timestamp).Msg("sample discarded")
		return nil, err
	}

	recordSeq, alertSeq := p.store.UpsertWithAlert(rec, alert)
	metrics.SamplesProcessed.Inc()
	if p.publisher != nil {
		p.publisher.PublishRecord(recordSeq, rec)
	}
	if p.recorder != nil {
		p.recorder.SubmitRecord(rec)
	}

	if alert == nil {
		return nil, nil
	}
	metrics.AlertsRaised.WithLabelValues(string(alert.AlertType), string(alert.Severity)).Inc()
	log.Info().
		Str("vehicle_id", alert.VehicleID).
		Str("alert_type", string(alert.AlertType)).
		Str("severity", string(alert.Severity)).
		Msg(alert.Message)
	if p.publisher != nil {
		p.publisher.PublishAlert(alertSeq, *alert)
	}
	if p.recorder != nil {
		p.recorder.SubmitAlert(*alert)
	}
	return alert, nil
}
