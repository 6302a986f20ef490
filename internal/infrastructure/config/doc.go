// Package config handles loading and validating motioncsv configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with MOTIONCSV_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/motioncsv.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Address())
package config
