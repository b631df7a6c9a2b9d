package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// decoders maps a lower-case file extension to its parser.
var decoders = map[string]func([]byte) (Config, error){
	".yaml": FromYAML,
	".yml":  FromYAML,
	".json": FromJSON,
}

// FromFile loads configuration from a .yaml, .yml or .json file.
func FromFile(path string) (Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return Config{}, fmt.Errorf("unsupported config file extension: %q", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return decode(data)
}

// FromYAML parses a YAML document into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses a JSON object into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// FromEnv collects environment variables starting with prefix + "_".
// FromEnv("WINDER") maps WINDER_LOG_LEVEL to the key "log_level".
func FromEnv(prefix string) Config {
	return fromEnviron(prefix, os.Environ())
}

func fromEnviron(prefix string, environ []string) Config {
	p := strings.ToUpper(prefix) + "_"
	m := make(map[string]any)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, p) || len(k) == len(p) {
			continue
		}
		m[strings.ToLower(strings.TrimPrefix(k, p))] = v
	}
	return New(m)
}

// Load reads path and overlays the environment variables under envPrefix.
// A missing file is not an error; an empty path or prefix skips that layer.
func Load(path, envPrefix string) (Config, error) {
	file := New(nil)
	if path != "" {
		cfg, err := FromFile(path)
		switch {
		case err == nil:
			file = cfg
		case !errors.Is(err, fs.ErrNotExist):
			return Config{}, err
		}
	}
	if envPrefix == "" {
		return file, nil
	}
	return Merge(file, FromEnv(envPrefix)), nil
}
