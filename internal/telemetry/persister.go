package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// StatWriter is the durable-storage contract the persister needs.
type StatWriter interface {
	SaveStatSample(ctx context.Context, greenhouseID string, s SensorSample) error
	SaveAlert(ctx context.Context, evt AlertEvent) error
}

// writeJob carries either a throttled stat sample or an alert to the
// background writer. Exactly one of the two pointers is set.
type writeJob struct {
	greenhouseID string
	sample       *SensorSample
	alert        *AlertEvent
}

// Persister writes at most one StatSample per greenhouse per interval and
// records every alert, through a bounded queue so a slow write never blocks
// message processing. When the queue is full the job is dropped and logged.
type Persister struct {
	store    StatWriter
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSave map[string]time.Time
	closing  bool

	q      chan writeJob
	closed chan struct{}
}

// NewPersister starts the background writer. If interval <= 0 it defaults to
// 60s; if queueSize <= 0 it defaults to 1000.
func NewPersister(store StatWriter, interval time.Duration, queueSize int) *Persister {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	p := &Persister{
		store:    store,
		interval: interval,
		now:      time.Now,
		lastSave: make(map[string]time.Time),
		q:        make(chan writeJob, queueSize),
		closed:   make(chan struct{}),
	}

	go func() {
		for job := range p.q {
			var err error
			switch {
			case job.sample != nil:
				err = p.store.SaveStatSample(context.Background(), job.greenhouseID, *job.sample)
			case job.alert != nil:
				err = p.store.SaveAlert(context.Background(), *job.alert)
			}
			if err != nil {
				log.Error().Err(err).Str("greenhouse_id", job.greenhouseID).Msg("persist failed")
			}
		}
		close(p.closed)
	}()

	return p
}

// HandleSample persists the sample if the greenhouse's interval has elapsed
// since the last attempted write, otherwise skips it. The throttle clock
// advances at enqueue time, so a failed write is not retried until the next
// interval elapses.
func (p *Persister) HandleSample(greenhouseID string, s SensorSample) {
	now := p.now()

	p.mu.Lock()
	last, ok := p.lastSave[greenhouseID]
	if ok && now.Sub(last) < p.interval {
		p.mu.Unlock()
		return
	}
	p.lastSave[greenhouseID] = now
	p.mu.Unlock()

	if err := p.enqueue(writeJob{greenhouseID: greenhouseID, sample: &s}); err != nil {
		log.Warn().Err(err).Str("greenhouse_id", greenhouseID).Msg("dropping stat sample")
	}
}

// HandleAlert enqueues an alert record.
func (p *Persister) HandleAlert(evt AlertEvent) {
	if err := p.enqueue(writeJob{greenhouseID: evt.GreenhouseID, alert: &evt}); err != nil {
		log.Warn().Err(err).Str("greenhouse_id", evt.GreenhouseID).Str("metric", evt.Metric).Msg("dropping alert")
	}
}

// enqueue holds the mutex over the non-blocking send so a message handler
// still draining during shutdown cannot race Close's channel close.
func (p *Persister) enqueue(job writeJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closing {
		return errors.New("persister closed")
	}
	select {
	case p.q <- job:
		return nil
	default:
		return errors.New("persist queue full")
	}
}

// Close stops the writer after draining queued jobs. Jobs handed in after
// Close are dropped and logged.
func (p *Persister) Close() {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		<-p.closed
		return
	}
	p.closing = true
	p.mu.Unlock()

	close(p.q)
	<-p.closed
}
