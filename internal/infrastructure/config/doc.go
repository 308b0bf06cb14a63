// Package config loads and validates netpanel configuration.
//
// Configuration comes from a YAML file with hardcoded defaults underneath
// and NETPANEL_* environment variable overrides on top. Secrets (MQTT
// password, InfluxDB token) should come from the environment rather than
// the file.
//
//	cfg, err := config.Load("configs/config.yaml")
//
// The zero configuration is not usable: Load always validates and returns
// an error describing the first offending field.
package config
