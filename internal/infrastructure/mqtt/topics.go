package mqtt

import "fmt"

// Topic prefixes. Entity topics use the flat scheme
// graylogic/{category}/entity/{entity_id}; thermostat topics live under core.
const (
	TopicPrefix       = "graylogic"
	TopicPrefixCore   = "graylogic/core"
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for the thermostat's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.EntityState("sensor.lounge_temp")
//	// graylogic/state/entity/sensor.lounge_temp
type Topics struct{}

// EntityState is where a sensor or switch publishes its current state.
//
// Example: graylogic/state/entity/switch.lounge_heater
func (Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/state/entity/%s", TopicPrefix, entityID)
}

// EntityCommand is where commands for a switch entity are sent.
//
// Example: graylogic/command/entity/switch.lounge_heater
func (Topics) EntityCommand(entityID string) string {
	return fmt.Sprintf("%s/command/entity/%s", TopicPrefix, entityID)
}

// ClimateState carries the retained thermostat snapshot.
//
// Example: graylogic/core/climate/lounge/state
func (Topics) ClimateState(uniqueID string) string {
	return fmt.Sprintf("%s/climate/%s/state", TopicPrefixCore, uniqueID)
}

// AllClimateStates matches every thermostat snapshot.
//
// Pattern: graylogic/core/climate/+/state
func (Topics) AllClimateStates() string {
	return fmt.Sprintf("%s/climate/+/state", TopicPrefixCore)
}

// SystemStatus carries the online/offline status and the LWT.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
