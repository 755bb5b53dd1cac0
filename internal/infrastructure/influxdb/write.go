package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementThermostat is the measurement every thermostat sample is written to.
const MeasurementThermostat = "thermostat"

// ThermostatSample is one observation of a thermostat's control state.
type ThermostatSample struct {
	ThermostatID string
	HVACMode     string
	HVACAction   string
	PresetMode   string

	// CurrentTemperature is nil until the first valid sensor reading.
	CurrentTemperature *float64
	TargetTemperature  float64

	// ActuatorOn reports whether the heater or AC switch was observed on.
	ActuatorOn bool

	Time time.Time
}

// WriteThermostatSample queues a sample on the "thermostat" measurement.
// Mode, action, and preset are tags; temperatures and the actuator state
// are fields.
func (c *Client) WriteThermostatSample(s ThermostatSample) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"target_temperature": s.TargetTemperature,
		"actuator_on":        s.ActuatorOn,
	}
	if s.CurrentTemperature != nil {
		fields["current_temperature"] = *s.CurrentTemperature
	}

	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	c.WritePoint(MeasurementThermostat, map[string]string{
		"thermostat_id": s.ThermostatID,
		"hvac_mode":     s.HVACMode,
		"hvac_action":   s.HVACAction,
		"preset_mode":   s.PresetMode,
	}, fields, ts)
}

// WritePoint queues a custom point.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//   - timestamp: The time of the observation
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
