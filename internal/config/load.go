package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadDataSource reads and decodes a datasource config file. The format is
// chosen by extension: .yaml/.yml decode as YAML, everything else as JSON.
// The decoded value is validated; the first error-severity issue fails the
// load.
func LoadDataSource(path string) (DataSourceConfig, error) {
	var c DataSourceConfig
	if err := decodeFile(path, &c); err != nil {
		return DataSourceConfig{}, err
	}
	if err := FirstError(ValidateDataSource(c)); err != nil {
		return DataSourceConfig{}, fmt.Errorf("validate %s: %w", path, err)
	}
	return c, nil
}

// LoadChart reads, decodes, and validates a chart config file. Format
// selection matches LoadDataSource.
func LoadChart(path string) (ChartConfig, error) {
	var c ChartConfig
	if err := decodeFile(path, &c); err != nil {
		return ChartConfig{}, err
	}
	if err := FirstError(ValidateChart(c)); err != nil {
		return ChartConfig{}, fmt.Errorf("validate %s: %w", path, err)
	}
	return c, nil
}

func decodeFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, v); err != nil {
			return fmt.Errorf("decode yaml %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, v); err != nil {
			return fmt.Errorf("decode json %s: %w", path, err)
		}
	}
	return nil
}
