// Package config provides configuration loading, validation, and hot-reload
// for the admission gate.
//
// # Overview
//
// Configuration is loaded from a YAML file:
//
//	cfg, err := config.Load("turnstile.yaml")
//
// Load applies defaults for omitted fields and validates the result; an
// invalid configuration (zero or negative capacity, rate, interval) is
// rejected at load time rather than corrupting the limiter arithmetic later.
//
// # Hot reload
//
// The Watcher observes the configuration file and hands a freshly loaded,
// validated Config to a callback when it changes. Paired with
// admission.Limiter.ApplyOverrides this allows per-client limits to be
// updated without a restart.
package config
