package climate

import (
	"errors"
	"testing"
	"time"
)

func TestParseReading(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"21.5", 21.5, false},
		{" 19 ", 19, false},
		{"-4.25", -4.25, false},
		{"", 0, true},
		{"unavailable", 0, true},
		{"Unknown", 0, true},
		{"none", 0, true},
		{"twenty", 0, true},
		{"NaN", 0, true},
		{"inf", 0, true},
		{"-Inf", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseReading(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidReading) {
					t.Fatalf("ParseReading(%q) error = %v, want ErrInvalidReading", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReading(%q) error = %v", tt.raw, err)
			}
			if got.Value != tt.want {
				t.Errorf("ParseReading(%q) = %v, want %v", tt.raw, got.Value, tt.want)
			}
		})
	}
}

func TestParseHVACMode(t *testing.T) {
	tests := []struct {
		in      string
		want    HVACMode
		wantErr bool
	}{
		{"heat", HVACModeHeat, false},
		{"COOL", HVACModeCool, false},
		{" off ", HVACModeOff, false},
		{"auto", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseHVACMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHVACMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrUnrecognizedMode) {
			t.Errorf("ParseHVACMode(%q) error = %v, want ErrUnrecognizedMode", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseHVACMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseActuatorStatus(t *testing.T) {
	tests := map[string]ActuatorStatus{
		"on":          ActuatorOn,
		"ON":          ActuatorOn,
		"true":        ActuatorOn,
		"1":           ActuatorOn,
		"off":         ActuatorOff,
		"False":       ActuatorOff,
		"0":           ActuatorOff,
		"unavailable": ActuatorUnknown,
		"":            ActuatorUnknown,
	}
	for in, want := range tests {
		if got := ParseActuatorStatus(in); got != want {
			t.Errorf("ParseActuatorStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestActuatorState_HeldFor(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	s := ActuatorState{Status: ActuatorOn, Since: now.Add(-2 * time.Minute)}
	if got := s.HeldFor(now); got != 2*time.Minute {
		t.Errorf("HeldFor() = %v, want 2m", got)
	}

	unknown := ActuatorState{Status: ActuatorOn}
	if got := unknown.HeldFor(now); got < 24*time.Hour {
		t.Errorf("HeldFor() with zero Since = %v, want effectively unbounded", got)
	}
}

func TestPrecision(t *testing.T) {
	tests := []struct {
		in   string
		want Precision
		v    float64
		rnd  float64
	}{
		{"", PrecisionTenths, 20.26, 20.3},
		{"tenths", PrecisionTenths, 20.24, 20.2},
		{"halves", PrecisionHalves, 20.26, 20.5},
		{"halves", PrecisionHalves, 20.24, 20.0},
		{"whole", PrecisionWhole, 20.5, 21},
		{"whole", PrecisionWhole, 20.4, 20},
	}

	for _, tt := range tests {
		p, err := ParsePrecision(tt.in)
		if err != nil {
			t.Fatalf("ParsePrecision(%q) error = %v", tt.in, err)
		}
		if p != tt.want {
			t.Errorf("ParsePrecision(%q) = %v, want %v", tt.in, p, tt.want)
		}
		if got := p.Round(tt.v); got != tt.rnd {
			t.Errorf("%v.Round(%v) = %v, want %v", p, tt.v, got, tt.rnd)
		}
	}

	if _, err := ParsePrecision("thirds"); err == nil {
		t.Error("ParsePrecision(thirds) should fail")
	}
}

func TestSettings_HVACModes(t *testing.T) {
	s := heatSettings()
	if !s.SupportsMode(HVACModeHeat) || s.SupportsMode(HVACModeCool) {
		t.Errorf("heat thermostat modes = %v", s.HVACModes())
	}
	s.ACMode = true
	if !s.SupportsMode(HVACModeCool) || s.SupportsMode(HVACModeHeat) {
		t.Errorf("ac thermostat modes = %v", s.HVACModes())
	}

	s.InitialHVACMode = HVACModeHeat
	if err := s.Validate(); !errors.Is(err, ErrUnrecognizedMode) {
		t.Errorf("Validate() with heat initial on AC = %v, want ErrUnrecognizedMode", err)
	}
}

func TestSettings_ValidateTemperatureLimits(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr error
	}{
		{name: "defaults", mutate: func(*Settings) {}},
		{name: "target at max", mutate: func(s *Settings) { s.TargetTemp = ptr(DefaultMaxTemp) }},
		{name: "target above max", mutate: func(s *Settings) { s.TargetTemp = ptr(40) }, wantErr: ErrTemperatureOutOfRange},
		{name: "preset below min", mutate: func(s *Settings) {
			s.PresetTemps = map[string]float64{"away": 16, "eco": 0}
		}, wantErr: ErrTemperatureOutOfRange},
		{name: "presets in range", mutate: func(s *Settings) {
			s.PresetTemps = map[string]float64{"away": 7, "boost": 35}
		}},
		{name: "min above max", mutate: func(s *Settings) { s.MinTemp, s.MaxTemp = 30, 10 }, wantErr: errAny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := heatSettings()
			tt.mutate(&s)
			err := s.Validate()
			switch {
			case tt.wantErr == nil && err != nil:
				t.Errorf("Validate() error = %v, want nil", err)
			case tt.wantErr == errAny && err == nil:
				t.Error("Validate() error = nil, want an error")
			case tt.wantErr != nil && tt.wantErr != errAny && !errors.Is(err, tt.wantErr):
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

var errAny = errors.New("any error")
