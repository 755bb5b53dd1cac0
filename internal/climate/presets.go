package climate

import (
	"fmt"
	"maps"
)

// PresetNone is the sentinel preset meaning "use the manual target".
const PresetNone = "none"

// KnownPresets lists every preset name in canonical order.
var KnownPresets = []string{"away", "eco", "boost", "comfort", "home", "sleep", "activity"}

// IsKnownPreset reports whether name is one of KnownPresets.
func IsKnownPreset(name string) bool {
	for _, p := range KnownPresets {
		if p == name {
			return true
		}
	}
	return false
}

// PresetAttribute returns the attribute key a preset temperature is
// published and persisted under, e.g. "eco_temp".
func PresetAttribute(name string) string {
	return name + "_temp"
}

// PresetRegistry records the temperature of each preset. Configured values
// seed it; later writes replace them. It is not safe for concurrent use;
// the Controller guards it.
type PresetRegistry struct {
	temps map[string]float64
}

// NewPresetRegistry seeds the registry from configured temperatures.
// Unknown names are ignored.
func NewPresetRegistry(configured map[string]float64) *PresetRegistry {
	r := &PresetRegistry{temps: make(map[string]float64, len(KnownPresets))}
	for name, v := range configured {
		if IsKnownPreset(name) {
			r.temps[name] = v
		}
	}
	return r
}

// Available returns "none" followed by every preset with a temperature,
// in canonical order.
func (r *PresetRegistry) Available() []string {
	out := []string{PresetNone}
	for _, p := range KnownPresets {
		if _, ok := r.temps[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// IsAvailable reports whether name may be selected as the preset mode.
func (r *PresetRegistry) IsAvailable(name string) bool {
	if name == PresetNone {
		return true
	}
	_, ok := r.temps[name]
	return ok
}

// SupportsPresets reports whether any preset besides "none" is available.
func (r *PresetRegistry) SupportsPresets() bool {
	return len(r.temps) > 0
}

// Temperature returns the recorded temperature for name.
func (r *PresetRegistry) Temperature(name string) (float64, bool) {
	v, ok := r.temps[name]
	return v, ok
}

// Set records the temperature for a known preset.
func (r *PresetRegistry) Set(name string, v float64) error {
	if !IsKnownPreset(name) {
		return fmt.Errorf("%w: %q", ErrUnrecognizedPreset, name)
	}
	r.temps[name] = v
	return nil
}

// Temperatures returns a copy of every recorded preset temperature.
func (r *PresetRegistry) Temperatures() map[string]float64 {
	return maps.Clone(r.temps)
}
