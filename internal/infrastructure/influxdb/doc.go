// Package influxdb records thermostat telemetry in InfluxDB v2.
//
// Every published thermostat snapshot becomes one point on the
// "thermostat" measurement, so heating duty cycles and setpoint changes
// can be graphed over time.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry is optional
//	}
//	defer client.Close()
//
//	client.WriteThermostatSample(influxdb.ThermostatSample{...})
package influxdb
