package telemetry

import (
	"fmt"
	"time"
)

// Evaluate compares a sample against the greenhouse's configured bounds and
// returns one AlertEvent per breached side. Metrics are checked in a fixed
// order: temperature, humidity, soilMoisture, ph; within a metric the max
// side is checked before the min side. Both sides are evaluated
// independently, so a misconfigured min > max can fire both.
func Evaluate(greenhouseID string, th Thresholds, s SensorSample, now time.Time) []AlertEvent {
	checks := []struct {
		metric string
		value  float64
		bound  Bound
	}{
		{MetricTemperature, s.Temperature, th.Temperature},
		{MetricHumidity, s.Humidity, th.Humidity},
		{MetricSoilMoisture, s.SoilMoisture, th.SoilMoisture},
		{MetricPh, s.Ph, th.Ph},
	}

	var events []AlertEvent
	for _, c := range checks {
		if c.bound.Max != nil && c.value > *c.bound.Max {
			events = append(events, AlertEvent{
				GreenhouseID: greenhouseID,
				Metric:       c.metric,
				Value:        c.value,
				Threshold:    *c.bound.Max,
				Message:      fmt.Sprintf("%s is above max threshold: %g > %g", c.metric, c.value, *c.bound.Max),
				Timestamp:    now,
			})
		}
		if c.bound.Min != nil && c.value < *c.bound.Min {
			events = append(events, AlertEvent{
				GreenhouseID: greenhouseID,
				Metric:       c.metric,
				Value:        c.value,
				Threshold:    *c.bound.Min,
				Message:      fmt.Sprintf("%s is below min threshold: %g < %g", c.metric, c.value, *c.bound.Min),
				Timestamp:    now,
			})
		}
	}
	return events
}
