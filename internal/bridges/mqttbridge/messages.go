package mqttbridge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Switch commands.
const (
	CommandTurnOn  = "turn_on"
	CommandTurnOff = "turn_off"
)

// CommandMessage is sent to a switch entity.
// Topic: graylogic/command/entity/{entity_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation in logs.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC).
	Timestamp time.Time `json:"timestamp"`

	// EntityID is the switch being commanded.
	EntityID string `json:"entity_id"`

	// Command is CommandTurnOn or CommandTurnOff.
	Command string `json:"command"`

	// Source identifies the issuer, e.g. "climate:lounge".
	Source string `json:"source"`
}

// StateMessage wraps a thermostat snapshot.
// Topic: graylogic/core/climate/{id}/state
// QoS: 1, Retained: Yes
type StateMessage struct {
	// Timestamp is when the snapshot was taken (UTC).
	Timestamp time.Time `json:"timestamp"`

	// State is the climate.Snapshot.
	State any `json:"state"`
}

// entityState is the JSON form of an entity state update. State and Value
// are kept raw because sensors publish numbers, strings, booleans, and
// nested objects.
type entityState struct {
	State       json.RawMessage `json:"state"`
	Value       json.RawMessage `json:"value"`
	LastChanged string          `json:"last_changed"`
	Timestamp   string          `json:"timestamp"`
}

// nestedStateKeys are looked up, in order, when "state" is an object such
// as {"temperature": 21.5} or {"on": true}.
var nestedStateKeys = []string{"value", "temperature", "on", "state"}

// parseEntityState extracts the raw value and, when present, the time the
// value last changed. A zero time means "unknown".
func parseEntityState(payload []byte) (value string, changed time.Time, err error) {
	trimmed := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed, time.Time{}, nil
	}

	var msg entityState
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", time.Time{}, fmt.Errorf("decoding entity state: %w", err)
	}

	raw := msg.State
	if len(raw) == 0 {
		raw = msg.Value
	}
	value, err = rawValue(raw)
	if err != nil {
		return "", time.Time{}, err
	}

	for _, ts := range []string{msg.LastChanged, msg.Timestamp} {
		if ts == "" {
			continue
		}
		if t, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
			changed = t
			break
		}
	}
	return value, changed, nil
}

// rawValue renders a JSON scalar as the string the climate parsers accept.
// null and missing values become "unavailable".
func rawValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "unavailable", nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("decoding entity value: %w", err)
	}

	switch x := v.(type) {
	case nil:
		return "unavailable", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case map[string]any:
		for _, key := range nestedStateKeys {
			if inner, ok := x[key]; ok {
				b, _ := json.Marshal(inner) //nolint:errcheck // decoded from JSON
				return rawValue(b)
			}
		}
		return "unavailable", nil
	default:
		return "", fmt.Errorf("unsupported entity value %T", v)
	}
}
