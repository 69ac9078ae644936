package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ThresholdSource returns the current persisted configuration for a
// greenhouse. Thresholds are read per message, not cached for the life of a
// subscription, so a manager's update takes effect on the next sample.
type ThresholdSource interface {
	GetThresholds(ctx context.Context, greenhouseID string) (Thresholds, error)
}

// Broadcaster delivers samples and alerts to a greenhouse's viewers.
// Delivery is best effort; a viewer joining late misses prior broadcasts.
type Broadcaster interface {
	BroadcastSample(greenhouseID string, s SensorSample)
	BroadcastAlert(evt AlertEvent)
}

// Pipeline dispatches one decoded message through evaluation, fan-out and
// throttled persistence, in that order.
type Pipeline struct {
	thresholds ThresholdSource
	overrides  *Overrides
	persister  *Persister
	hub        Broadcaster
	now        func() time.Time
}

func NewPipeline(src ThresholdSource, ov *Overrides, p *Persister, hub Broadcaster) *Pipeline {
	return &Pipeline{
		thresholds: src,
		overrides:  ov,
		persister:  p,
		hub:        hub,
		now:        time.Now,
	}
}

// Process handles one inbound payload for a greenhouse. Decode and storage
// failures are logged and the message dropped; there is no synchronous
// caller to surface them to on the message path.
func (p *Pipeline) Process(ctx context.Context, greenhouseID string, payload []byte) {
	sample, err := Decode(payload)
	if err != nil {
		log.Warn().Err(err).Str("greenhouse_id", greenhouseID).Msg("dropping message")
		return
	}

	th, err := p.thresholds.GetThresholds(ctx, greenhouseID)
	if err != nil {
		log.Error().Err(err).Str("greenhouse_id", greenhouseID).Msg("read thresholds")
		return
	}

	// Evaluation always runs on the real sample; the override only affects
	// what viewers see.
	events := Evaluate(greenhouseID, th, sample, p.now())

	out := sample
	if p.overrides.Enabled(greenhouseID) {
		out = SafeSample
	}
	p.hub.BroadcastSample(greenhouseID, out)

	for _, evt := range events {
		p.hub.BroadcastAlert(evt)
		p.persister.HandleAlert(evt)
	}

	p.persister.HandleSample(greenhouseID, sample)
}
