package telemetry

import (
	"time"

	"backend-pathgreen/internal/fleet"
	"backend-pathgreen/internal/metrics"
)

const DefaultQueueSize = 1024

// IngestQueue buffers externally submitted samples until the producer polls
// them. Push never blocks; samples that do not fit are dropped.
type IngestQueue struct {
	ch chan fleet.Sample
}

func NewIngestQueue(size int) *IngestQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &IngestQueue{ch: make(chan fleet.Sample, size)}
}

func (q *IngestQueue) Push(s fleet.Sample) bool {
	select {
	case q.ch <- s:
		return true
	default:
		metrics.SamplesDiscarded.WithLabelValues("queue_full").Inc()
		return false
	}
}

func (q *IngestQueue) Len() int {
	return len(q.ch)
}

// Poll drains whatever is queued right now.
func (q *IngestQueue) Poll(time.Time) []fleet.Sample {
	n := len(q.ch)
	if n == 0 {
		return nil
	}
	out := make([]fleet.Sample, 0, n)
	for i := 0; i < n; i++ {
		select {
		case s := <-q.ch:
			out = append(out, s)
		default:
			return out
		}
	}
	return out
}
