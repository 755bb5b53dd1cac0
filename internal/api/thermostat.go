package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-thermostat/internal/climate"
)

// Request bodies for the thermostat service calls.
type (
	setHVACModeRequest struct {
		HVACMode string `json:"hvac_mode"`
	}

	setTemperatureRequest struct {
		Temperature *float64 `json:"temperature"`
	}

	setPresetModeRequest struct {
		PresetMode string `json:"preset_mode"`
	}
)

// Audited actions.
const (
	actionSetHVACMode           = "set_hvac_mode"
	actionSetTargetTemperature  = "set_target_temperature"
	actionSetPresetMode         = "set_preset_mode"
	actionSetPresetTemperatures = "set_preset_temperatures"
)

// maxHistoryLimit caps GET /thermostat/history?limit=.
const maxHistoryLimit = 1000

// handleGetThermostat returns the current snapshot.
func (s *Server) handleGetThermostat(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.thermostat.Snapshot())
}

// handleSetHVACMode switches between the supported HVAC modes.
func (s *Server) handleSetHVACMode(w http.ResponseWriter, r *http.Request) {
	var req setHVACModeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.HVACMode == "" {
		writeBadRequest(w, "hvac_mode is required")
		return
	}

	details := map[string]any{"hvac_mode": req.HVACMode}
	mode, err := climate.ParseHVACMode(req.HVACMode)
	if err != nil {
		s.record(r, actionSetHVACMode, details, err)
		writeClimateError(w, err)
		return
	}
	s.submit(w, r, actionSetHVACMode, details, climate.SetHVACModeRequest{Mode: mode})
}

// handleSetTemperature sets a manual target temperature.
func (s *Server) handleSetTemperature(w http.ResponseWriter, r *http.Request) {
	var req setTemperatureRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Temperature == nil {
		writeBadRequest(w, "temperature is required")
		return
	}
	s.submit(w, r, actionSetTargetTemperature,
		map[string]any{"temperature": *req.Temperature},
		climate.SetTargetTemperatureRequest{Temperature: *req.Temperature})
}

// handleSetPresetMode enters a preset, or leaves presets with "none".
func (s *Server) handleSetPresetMode(w http.ResponseWriter, r *http.Request) {
	var req setPresetModeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PresetMode == "" {
		writeBadRequest(w, "preset_mode is required")
		return
	}
	s.submit(w, r, actionSetPresetMode,
		map[string]any{"preset_mode": req.PresetMode},
		climate.SetPresetModeRequest{Preset: req.PresetMode})
}

// handleSetPresetTemperatures records temperatures for presets. The body is
// keyed by "{preset}_temp" attribute names, e.g. {"eco_temp": 18}.
func (s *Server) handleSetPresetTemperatures(w http.ResponseWriter, r *http.Request) {
	var req map[string]float64
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req) == 0 {
		writeBadRequest(w, "at least one preset temperature is required")
		return
	}

	temps := make(map[string]float64, len(req))
	details := make(map[string]any, len(req))
	for key, v := range req {
		name, ok := presetFromAttribute(key)
		if !ok {
			writeBadRequest(w, "unknown preset temperature: "+key)
			return
		}
		temps[name] = v
		details[key] = v
	}
	s.submit(w, r, actionSetPresetTemperatures, details, climate.SetPresetTemperaturesRequest{Temperatures: temps})
}

// handleThermostatHistory lists persisted snapshots, newest first.
func (s *Server) handleThermostatHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "history is not enabled")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	snap := s.thermostat.Snapshot()
	entries, err := s.history.History(r.Context(), snap.ThermostatID, limit)
	if err != nil {
		s.logger.Error("listing thermostat history", "error", err)
		writeInternalError(w, "failed to list history")
		return
	}
	if entries == nil {
		entries = []climate.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// submit runs ev on the control loop, audits it as action, and replies
// with the resulting snapshot.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, action string, details map[string]any, ev climate.Event) {
	err := s.thermostat.Submit(r.Context(), ev)
	s.record(r, action, details, err)
	if err != nil {
		s.logger.Warn("thermostat request failed",
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeClimateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.thermostat.Snapshot())
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// presetFromAttribute maps "eco_temp" to "eco" for known presets.
func presetFromAttribute(key string) (string, bool) {
	for _, name := range climate.KnownPresets {
		if climate.PresetAttribute(name) == key {
			return name, true
		}
	}
	return "", false
}
