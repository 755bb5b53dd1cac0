package climate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "graylogic"
const metricsSubsystem = "thermostat"

// Metrics exposes controller activity to Prometheus. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	commands        *prometheus.CounterVec
	invalidReadings *prometheus.CounterVec
	debounceSkips   *prometheus.CounterVec
	actuatorErrors  *prometheus.CounterVec

	currentTemp *prometheus.GaugeVec
	targetTemp  *prometheus.GaugeVec
	actuatorOn  *prometheus.GaugeVec
	hvacMode    *prometheus.GaugeVec
}

// NewMetrics registers the thermostat metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "actuator_commands_total",
			Help:      "Actuator commands issued, by command and whether it was a keep-alive resend.",
		}, []string{"thermostat", "command", "keep_alive"}),
		invalidReadings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "invalid_readings_total",
			Help:      "Sensor readings rejected as unparsable, non-finite, or unavailable.",
		}, []string{"thermostat"}),
		debounceSkips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "debounce_skips_total",
			Help:      "Evaluations skipped because the minimum cycle duration had not elapsed.",
		}, []string{"thermostat"}),
		actuatorErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "actuator_errors_total",
			Help:      "Actuator commands that returned an error.",
		}, []string{"thermostat"}),
		currentTemp: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "current_temperature_celsius",
			Help:      "Last valid sensor reading.",
		}, []string{"thermostat"}),
		targetTemp: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "target_temperature_celsius",
			Help:      "Current target temperature.",
		}, []string{"thermostat"}),
		actuatorOn: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "actuator_on",
			Help:      "1 if the actuator was last observed on.",
		}, []string{"thermostat"}),
		hvacMode: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "hvac_mode",
			Help:      "1 for the current HVAC mode, 0 for the others.",
		}, []string{"thermostat", "mode"}),
	}
}

func (m *Metrics) command(id, cmd string, keepAlive bool) {
	if m == nil {
		return
	}
	ka := "false"
	if keepAlive {
		ka = "true"
	}
	m.commands.WithLabelValues(id, cmd, ka).Inc()
}

func (m *Metrics) invalidReading(id string) {
	if m == nil {
		return
	}
	m.invalidReadings.WithLabelValues(id).Inc()
}

func (m *Metrics) debounceSkip(id string) {
	if m == nil {
		return
	}
	m.debounceSkips.WithLabelValues(id).Inc()
}

func (m *Metrics) actuatorError(id string) {
	if m == nil {
		return
	}
	m.actuatorErrors.WithLabelValues(id).Inc()
}

func (m *Metrics) observe(s Snapshot) {
	if m == nil {
		return
	}
	id := s.ThermostatID
	if s.CurrentTemperature != nil {
		m.currentTemp.WithLabelValues(id).Set(*s.CurrentTemperature)
	}
	if s.TargetTemperature != nil {
		m.targetTemp.WithLabelValues(id).Set(*s.TargetTemperature)
	}
	on := 0.0
	if s.Actuator == ActuatorOn {
		on = 1
	}
	m.actuatorOn.WithLabelValues(id).Set(on)
	for _, mode := range []HVACMode{HVACModeHeat, HVACModeCool, HVACModeOff} {
		v := 0.0
		if mode == s.HVACMode {
			v = 1
		}
		m.hvacMode.WithLabelValues(id, string(mode)).Set(v)
	}
}
