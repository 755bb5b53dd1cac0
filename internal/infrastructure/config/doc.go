// Package config handles loading and validating the thermostat service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GRAYLOGIC_* environment variables
//   - Validation of required fields, including the thermostat section
//
// Temperatures that may be left unset (target, limits, preset temperatures)
// are pointers so that "not configured" stays distinguishable from zero.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Thermostat.Name)
package config
