package telemetry

import "time"

// Metric names in the fixed evaluation order.
const (
	MetricTemperature  = "temperature"
	MetricHumidity     = "humidity"
	MetricSoilMoisture = "soilMoisture"
	MetricPh           = "ph"
)

// SensorSample is one decoded reading of the four tracked metrics.
type SensorSample struct {
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	SoilMoisture float64 `json:"soilMoisture"`
	Ph           float64 `json:"ph"`
}

// Bound is an optional {min,max} pair for one metric.
// A nil side means "no check for that side".
type Bound struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// Thresholds is the per-greenhouse alert configuration.
type Thresholds struct {
	Temperature  Bound `json:"temperature"`
	Humidity     Bound `json:"humidity"`
	SoilMoisture Bound `json:"soilMoisture"`
	Ph           Bound `json:"ph"`
}

// AlertEvent is produced when a sample breaches a bound on one side.
type AlertEvent struct {
	GreenhouseID string    `json:"greenhouseId"`
	Metric       string    `json:"metric"`
	Value        float64   `json:"observedValue"`
	Threshold    float64   `json:"threshold"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}
