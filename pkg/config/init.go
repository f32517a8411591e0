package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# dittowopi Configuration File
#
# Every value can be overridden from the environment with the DITTOWOPI_
# prefix, e.g. DITTOWOPI_WOPI_HOST_URL or DITTOWOPI_STORAGE_S3_BUCKET.
#
# storage.type: s3 | filesystem | memory
#   s3 options:         region, bucket, key_prefix, endpoint,
#                       access_key_id, secret_access_key, max_retries,
#                       operation_timeout
#   filesystem options: path
#
# tokens.mode: stateful | stateless
#   stateless accepts any token containing stateless_marker for any file
#   and requires allow_insecure_stateless: true. Never use it in production.
# tokens.store: memory | badger (badger options: db_path)

`

// InitConfig writes a configuration file with default values to the
// default location.
//
// Parameters:
//   - force: Overwrite an existing file
//
// Returns:
//   - string: Path of the written file
//   - error: If the file exists (without force) or cannot be written
func InitConfig(force bool) (string, error) {
	return InitConfigAt(GetDefaultConfigPath(), force)
}

// InitConfigAt writes a default configuration file at path.
func InitConfigAt(path string, force bool) (string, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := GenerateDefaultConfig()
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}

// GenerateDefaultConfig renders the default configuration as commented YAML.
func GenerateDefaultConfig() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(GetDefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
