package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPayload marks an inbound payload that did not decode into all
// four numeric metrics. A decode failure drops the message; it never
// terminates the subscription.
var ErrMalformedPayload = errors.New("malformed payload")

// Decode parses one raw device payload into a SensorSample.
// The device emits single quotes where JSON expects double quotes, so the
// payload is normalized before structural parsing.
func Decode(payload []byte) (SensorSample, error) {
	normalized := bytes.ReplaceAll(payload, []byte(`'`), []byte(`"`))

	var raw struct {
		Temperature  *float64 `json:"temperature"`
		Humidity     *float64 `json:"humidity"`
		SoilMoisture *float64 `json:"soilMoisture"`
		Ph           *float64 `json:"ph"`
	}
	if err := json.Unmarshal(normalized, &raw); err != nil {
		return SensorSample{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw.Temperature == nil || raw.Humidity == nil || raw.SoilMoisture == nil || raw.Ph == nil {
		return SensorSample{}, fmt.Errorf("%w: missing metric field", ErrMalformedPayload)
	}

	return SensorSample{
		Temperature:  *raw.Temperature,
		Humidity:     *raw.Humidity,
		SoilMoisture: *raw.SoilMoisture,
		Ph:           *raw.Ph,
	}, nil
}
