// Package climate implements a bang-bang (hysteresis) thermostat.
//
// A Controller decides when to switch one heater or AC actuator on or off
// from the current and target temperatures, with separate cold and hot
// tolerances, a minimum cycle duration, named presets, and a keep-alive
// that periodically resends the current command.
//
// All inputs reach the Controller as Events through a Loop, which applies
// them one at a time in arrival order:
//
//	ctrl, _ := climate.NewController(settings, climate.Deps{Actuator: relay})
//	loop := climate.NewLoop(ctrl, settings.KeepAlive)
//	go loop.Run(ctx)
//
//	loop.Post(climate.SensorReading{Raw: "20.6"})
//	err := loop.Submit(ctx, climate.SetPresetModeRequest{Preset: "eco"})
//
// The decision for heat mode is:
//
//	too_cold = target >= current + cold_tolerance  -> turn on
//	too_hot  = current >= target + hot_tolerance   -> turn off
//
// and the mirror image in AC mode.
package climate
