// Package mqttbridge connects a thermostat to its sensor and switch over MQTT.
//
// It provides three adapters around the climate package:
//   - Actuator sends turn_on/turn_off commands to the switch entity
//   - StatePublisher publishes the retained thermostat snapshot
//   - Listener subscribes to the sensor and switch state topics and posts
//     SensorReading and ActuatorObserved events to the control loop
//
// Topic layout (see mqtt.Topics):
//
//	graylogic/state/entity/{entity_id}     sensor and switch state (in)
//	graylogic/command/entity/{entity_id}   switch commands (out)
//	graylogic/core/climate/{id}/state      thermostat snapshot (out, retained)
//
// Entity state payloads may be bare values ("21.5", "on") or JSON objects
// carrying "state" or "value", optionally with "last_changed".
package mqttbridge
