package influxdb

import "errors"

// Sentinel errors for InfluxDB operations. Asynchronous write failures are
// delivered through SetOnError instead.
var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrDisabled         = errors.New("influxdb: disabled in configuration")
)
