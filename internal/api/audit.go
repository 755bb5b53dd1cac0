package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-thermostat/internal/audit"
	"github.com/nerrad567/gray-logic-thermostat/internal/climate"
)

// auditSource tags entries written by the API.
const auditSource = "api"

// record writes an audit entry for a thermostat change. Failures to write
// are logged and never fail the request.
func (s *Server) record(r *http.Request, action string, details map[string]any, err error) {
	if s.audit == nil {
		return
	}

	entry := &audit.Entry{
		Action:       action,
		ThermostatID: s.thermostat.Snapshot().ThermostatID,
		Source:       auditSource,
		Outcome:      outcomeOf(err),
		Details:      details,
	}
	if claims := claimsFromContext(r.Context()); claims != nil {
		entry.Subject = claims.Subject
	}
	if err != nil {
		entry.Details = withError(details, err)
	}

	// The request context may already be cancelled; the entry should still land.
	ctx := context.WithoutCancel(r.Context())
	if writeErr := s.audit.Create(ctx, entry); writeErr != nil {
		s.logger.Warn("writing audit entry failed", "action", action, "error", writeErr)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return audit.OutcomeApplied
	case errors.Is(err, climate.ErrUnrecognizedMode),
		errors.Is(err, climate.ErrUnrecognizedPreset),
		errors.Is(err, climate.ErrTemperatureOutOfRange):
		return audit.OutcomeRejected
	default:
		return audit.OutcomeFailed
	}
}

func withError(details map[string]any, err error) map[string]any {
	out := make(map[string]any, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}

// handleListAudit lists audit entries for this thermostat.
// Query parameters: action, subject, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "audit log is not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:       q.Get("action"),
		Subject:      q.Get("subject"),
		ThermostatID: s.thermostat.Snapshot().ThermostatID,
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	res, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit log", "error", err)
		writeInternalError(w, "failed to list audit log")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
