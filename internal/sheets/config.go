package sheets

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config locates the spreadsheet and the credentials that open it.
type Config struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// ErrNotConfigured means no sheets config file exists; the caller runs in
// tree-and-SQL-only mode.
var ErrNotConfigured = errors.New("sheets not configured")

// LoadConfig reads the yaml config at path. A missing file is reported as
// ErrNotConfigured rather than a hard failure.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, ErrNotConfigured
		}
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.SpreadsheetID == "" {
		return Config{}, fmt.Errorf("%s: spreadsheet_id is required", path)
	}
	return cfg, nil
}
