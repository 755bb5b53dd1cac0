// Package mqtt provides the MQTT client the thermostat uses to read its
// sensor, observe and command its switch, and publish its own state.
//
// Features:
//   - Auto-reconnect with subscription restoration
//   - Last Will and Testament on graylogic/system/status
//   - Panic recovery around every message handler
//
// Topic layout:
//
//	graylogic/state/entity/{entity_id}       sensor and switch states (in)
//	graylogic/command/entity/{entity_id}     switch commands (out)
//	graylogic/core/climate/{unique_id}/state thermostat snapshot (out, retained)
//	graylogic/system/status                  online/offline (retained)
package mqtt
