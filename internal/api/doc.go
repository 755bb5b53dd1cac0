// Package api provides the HTTP REST API and WebSocket server for the
// thermostat.
//
// Endpoints (under /api/v1):
//
//	GET  /health                      component health (no auth)
//	GET  /metrics                     Prometheus exposition (no auth)
//	GET  /system                      runtime and connection summary
//	POST /auth/ws-ticket              single-use WebSocket ticket
//	GET  /thermostat                  current snapshot
//	PUT  /thermostat/hvac_mode        {"hvac_mode": "heat"}
//	PUT  /thermostat/temperature      {"temperature": 21.5}
//	PUT  /thermostat/preset_mode      {"preset_mode": "eco"}
//	POST /thermostat/preset_temperatures  {"eco_temp": 18, ...}
//	GET  /thermostat/history?limit=N  persisted snapshots, newest first
//	GET  /ws?ticket=...               WebSocket, channel "climate.state_changed"
//
// Protected routes require "Authorization: Bearer <jwt>" signed with the
// configured HS256 secret. Tokens with role "viewer" may only read.
package api
