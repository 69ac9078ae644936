package telemetry

import "sync"

// SafeSample is the canonical reading broadcast in place of the real one
// while an actuator override is active. The real sample is still used for
// evaluation and persistence.
var SafeSample = SensorSample{Temperature: 25, Humidity: 60, SoilMoisture: 40, Ph: 7}

// Overrides tracks per-greenhouse actuator override flags. It is written by
// the control surface and read on every fan-out decision.
type Overrides struct {
	mu    sync.RWMutex
	flags map[string]bool
}

func NewOverrides() *Overrides {
	return &Overrides{flags: make(map[string]bool)}
}

func (o *Overrides) Set(greenhouseID string, enabled bool) {
	o.mu.Lock()
	if enabled {
		o.flags[greenhouseID] = true
	} else {
		delete(o.flags, greenhouseID)
	}
	o.mu.Unlock()
}

func (o *Overrides) Enabled(greenhouseID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.flags[greenhouseID]
}
