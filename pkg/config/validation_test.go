package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return GetDefaultConfig()
}

func TestValidate_Defaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "TRACE" },
			wantErr: "Level",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "Port",
		},
		{
			name:    "unknown storage type",
			mutate:  func(c *Config) { c.Storage.Type = "gcs" },
			wantErr: "Type",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Storage.Type = "s3" },
			wantErr: "storage.s3.bucket",
		},
		{
			name:    "unknown token mode",
			mutate:  func(c *Config) { c.Tokens.Mode = "jwt" },
			wantErr: "Mode",
		},
		{
			name:    "stateless without opt-in",
			mutate:  func(c *Config) { c.Tokens.Mode = "stateless" },
			wantErr: "allow_insecure_stateless",
		},
		{
			name: "stateless without marker",
			mutate: func(c *Config) {
				c.Tokens.Mode = "stateless"
				c.Tokens.AllowInsecureStateless = true
				c.Tokens.StatelessMarker = ""
			},
			wantErr: "stateless_marker",
		},
		{
			name:    "negative ttl",
			mutate:  func(c *Config) { c.Tokens.TTL = -1 },
			wantErr: "TTL",
		},
		{
			name:    "relative host url",
			mutate:  func(c *Config) { c.WOPI.HostURL = "wopi.example.com" },
			wantErr: "HostURL",
		},
		{
			name:    "non-http editor url",
			mutate:  func(c *Config) { c.WOPI.EditorURL = "ftp://office.example.com" },
			wantErr: "wopi.editor_url",
		},
		{
			name:    "launch path without slash",
			mutate:  func(c *Config) { c.WOPI.LaunchPath = "loleaflet.html" },
			wantErr: "LaunchPath",
		},
		{
			name: "metrics port clash",
			mutate: func(c *Config) {
				c.Server.Metrics.Enabled = true
				c.Server.Metrics.Port = c.Server.Port
			},
			wantErr: "server.metrics.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_StatelessOptIn(t *testing.T) {
	cfg := validConfig()
	cfg.Tokens.Mode = "stateless"
	cfg.Tokens.AllowInsecureStateless = true

	if err := Validate(cfg); err != nil {
		t.Fatalf("Stateless mode with opt-in should be valid: %v", err)
	}
}
