package config

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Stateless mode accepts any token carrying the marker for any file, so
	// it must be opted into explicitly.
	if cfg.Tokens.Mode == "stateless" {
		if !cfg.Tokens.AllowInsecureStateless {
			return fmt.Errorf("tokens.mode: stateless mode provides no access control; set tokens.allow_insecure_stateless to enable it")
		}
		if cfg.Tokens.StatelessMarker == "" {
			return fmt.Errorf("tokens.stateless_marker: required in stateless mode")
		}
	}

	if cfg.Storage.Type == "s3" {
		if bucket, _ := cfg.Storage.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("storage.s3.bucket: required when storage.type is s3")
		}
	}

	if cfg.Server.Metrics.Enabled && cfg.Server.Metrics.Port == cfg.Server.Port {
		return fmt.Errorf("server.metrics.port: must differ from server.port (%d)", cfg.Server.Port)
	}

	for _, field := range []struct{ name, value string }{
		{"wopi.host_url", cfg.WOPI.HostURL},
		{"wopi.editor_url", cfg.WOPI.EditorURL},
	} {
		u, err := url.Parse(field.value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s: must be an absolute http(s) URL (value: %q)", field.name, field.value)
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
