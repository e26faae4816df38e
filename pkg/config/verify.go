package config

import (
	"fmt"

	"github.com/invopop/jsonschema"
)

// Verify checks that the config is complete after defaults
func Verify(cfg *Config) error {
	if err := validateRequiredFields(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// validateRequiredFields performs basic validation of required fields
func validateRequiredFields(cfg *Config) error {
	// check server config
	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if cfg.Server.Timeout == 0 {
		return fmt.Errorf("server.timeout is required")
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	for i, src := range cfg.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d].id is required", i)
		}
		if src.Collection == "" {
			return fmt.Errorf("sources[%d].collection is required", i)
		}
	}
	for i, c := range cfg.Counters {
		if c.Name == "" || c.Source == "" {
			return fmt.Errorf("counters[%d] name and source are required", i)
		}
	}
	for i, b := range cfg.Breakdowns {
		if b.Name == "" || b.Source == "" || b.Field == "" {
			return fmt.Errorf("breakdowns[%d] name, source and field are required", i)
		}
	}
	return nil
}

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&Config{}), nil
}
