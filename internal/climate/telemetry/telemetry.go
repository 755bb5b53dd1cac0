// Package telemetry records thermostat snapshots as InfluxDB samples.
package telemetry

import (
	"context"

	"github.com/nerrad567/gray-logic-thermostat/internal/climate"
	"github.com/nerrad567/gray-logic-thermostat/internal/infrastructure/influxdb"
)

// SampleWriter queues thermostat samples. *influxdb.Client satisfies it.
type SampleWriter interface {
	WriteThermostatSample(s influxdb.ThermostatSample)
}

// Publisher implements climate.StatePublisher by writing one sample per
// snapshot. Writes are asynchronous, so Publish never fails.
type Publisher struct {
	writer SampleWriter
}

// NewPublisher creates a Publisher.
func NewPublisher(w SampleWriter) *Publisher {
	return &Publisher{writer: w}
}

// Publish implements climate.StatePublisher.
func (p *Publisher) Publish(_ context.Context, snap climate.Snapshot) error {
	if snap.TargetTemperature == nil {
		return nil
	}
	p.writer.WriteThermostatSample(SampleFromSnapshot(snap))
	return nil
}

// SampleFromSnapshot converts a snapshot. A nil target is written as zero.
func SampleFromSnapshot(snap climate.Snapshot) influxdb.ThermostatSample {
	s := influxdb.ThermostatSample{
		ThermostatID:       snap.ThermostatID,
		HVACMode:           string(snap.HVACMode),
		HVACAction:         string(snap.HVACAction),
		PresetMode:         snap.PresetMode,
		CurrentTemperature: snap.CurrentTemperature,
		ActuatorOn:         snap.Actuator == climate.ActuatorOn,
		Time:               snap.UpdatedAt,
	}
	if snap.TargetTemperature != nil {
		s.TargetTemperature = *snap.TargetTemperature
	}
	return s
}
