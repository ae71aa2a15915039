package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default config is valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty pass order",
			mutate:  func(c *Config) { c.PassOrder = nil },
			wantErr: "PassOrder",
		},
		{
			name:    "unknown pass",
			mutate:  func(c *Config) { c.PassOrder = []string{"seed", "levenshtein"} },
			wantErr: "unknown pass",
		},
		{
			name:    "duplicate pass",
			mutate:  func(c *Config) { c.PassOrder = []string{"seed", "seed"} },
			wantErr: "duplicate pass",
		},
		{
			name:    "zero threshold",
			mutate:  func(c *Config) { c.MinOccurrence = 0 },
			wantErr: "MinOccurrence",
		},
		{
			name:    "zero edge example cap",
			mutate:  func(c *Config) { c.EdgeExampleCap = 0 },
			wantErr: "EdgeExampleCap",
		},
		{
			name:    "zero iteration bound",
			mutate:  func(c *Config) { c.CommunityIterations = 0 },
			wantErr: "CommunityIterations",
		},
		{
			name:    "blank removal list entry",
			mutate:  func(c *Config) { c.RemovalList = []string{"Jeff", "  "} },
			wantErr: "RemovalList",
		},
		{
			name:    "blank seed table value",
			mutate:  func(c *Config) { c.SeedTable = map[string]string{"Bill": ""} },
			wantErr: "SeedTable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
