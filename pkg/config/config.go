// Package config holds the externally supplied pipeline configuration.
// All values are validated once at startup; an invalid or missing value is
// fatal before any stage runs.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

// Pass ids accepted in PassOrder. They match the ids recorded in merge
// provenance.
const (
	PassSeed     = "seed"
	PassPhonetic = "phonetic"
	PassToken    = "token"
	PassSuffix   = "suffix"
)

// ConfigError marks an invalid pipeline configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// Config is the full externally supplied configuration surface of the
// pipeline.
type Config struct {
	// PassOrder lists canonicalization passes in precedence order.
	PassOrder []string `validate:"required,min=1"`

	// RemovalList contains generic or incomplete names excluded before any
	// pass runs. Removed variants never enter an identity.
	RemovalList []string

	// SeedTable is the pre-supplied variant -> canonical display name
	// mapping consulted by the seed pass.
	SeedTable map[string]string

	// MinOccurrence prunes identities mentioned in fewer distinct
	// discussions before edge construction.
	MinOccurrence int `validate:"min=1"`

	// EdgeExampleCap bounds the example thread list stored per edge.
	EdgeExampleCap int `validate:"min=1"`

	// CommunityIterations bounds the aggregation levels of community
	// detection. Hitting the bound is not an error.
	CommunityIterations int `validate:"min=1"`

	// CommunitySeed fixes the node visiting order so detection is
	// reproducible.
	CommunitySeed int64

	// ExtractionMaxRetries bounds retries per discussion against the
	// external extraction service.
	ExtractionMaxRetries int `validate:"min=1"`

	// ExtractionParallel bounds concurrent extraction requests.
	ExtractionParallel int `validate:"min=1"`
}

var knownPasses = map[string]bool{
	PassSeed:     true,
	PassPhonetic: true,
	PassToken:    true,
	PassSuffix:   true,
}

// Validate checks the configuration and returns a ConfigError describing the
// first problem found.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return &ConfigError{
				Field:  errs[0].Field(),
				Reason: fmt.Sprintf("failed %q constraint", errs[0].Tag()),
			}
		}
		return &ConfigError{Field: "config", Reason: err.Error()}
	}

	seen := make(map[string]bool, len(c.PassOrder))
	for _, pass := range c.PassOrder {
		if !knownPasses[pass] {
			return &ConfigError{Field: "PassOrder", Reason: fmt.Sprintf("unknown pass %q", pass)}
		}
		if seen[pass] {
			return &ConfigError{Field: "PassOrder", Reason: fmt.Sprintf("duplicate pass %q", pass)}
		}
		seen[pass] = true
	}

	for _, name := range c.RemovalList {
		if strings.TrimSpace(name) == "" {
			return &ConfigError{Field: "RemovalList", Reason: "contains an empty name"}
		}
	}

	for variant, canonical := range c.SeedTable {
		if strings.TrimSpace(variant) == "" || strings.TrimSpace(canonical) == "" {
			return &ConfigError{Field: "SeedTable", Reason: "contains an empty mapping"}
		}
	}

	return nil
}

// Default returns the configuration used when no overrides are supplied.
func Default() *Config {
	return &Config{
		PassOrder:            []string{PassSeed, PassPhonetic, PassToken, PassSuffix},
		MinOccurrence:        4,
		EdgeExampleCap:       3,
		CommunityIterations:  100,
		CommunitySeed:        42,
		ExtractionMaxRetries: 3,
		ExtractionParallel:   10,
	}
}
