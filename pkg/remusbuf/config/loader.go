package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Section is the top-level key under which settings may be nested, so
// remusbuf can share a file with other toolstack settings.
const Section = "remus"

// FromFile reads a .yaml, .yml or .json settings file.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read settings %s: %w", path, err)
	}

	var c Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		c, err = FromYAML(data)
	case ".json":
		c, err = FromJSON(data)
	default:
		return Config{}, fmt.Errorf("settings %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return c, nil
}

// FromYAML decodes a YAML document. Keys nested under Section take the
// place of the whole document.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(section(m)), nil
}

// FromJSON decodes a JSON object, with the same Section handling as FromYAML.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(section(m)), nil
}

func section(m map[string]any) map[string]any {
	if sub, ok := m[Section].(map[string]any); ok {
		return sub
	}
	return m
}
