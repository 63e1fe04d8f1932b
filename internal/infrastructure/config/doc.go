// Package config handles loading and validating EdgeLink Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with EDGELINK_* environment variables (via envdecode struct tags)
//   - Validation of required fields
//
// Security Considerations:
//   - Sensitive values (JWT secret, MQTT and Redis passwords, InfluxDB token)
//     should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Edge.DefaultDeviceID)
package config
