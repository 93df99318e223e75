// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and CODERUN_* environment variables. It
// supports configuration for the inbound transports, the execution engine
// (backend, stage timeouts, size limits), logging, metrics and the per-language
// toolchain table.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Run timeout: %s\n", cfg.RunTimeout())
package config
