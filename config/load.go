package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format is the encoding of a configuration document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	ErrEmptyPath         = errors.New("config: empty path")
	ErrUnsupportedFormat = errors.New("config: unsupported format")
)

// Load reads a registry document from disk. The format follows the extension
// (.yaml, .yml or .json).
func Load(path string) (Registry, error) {
	if path == "" {
		return Registry{}, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return Registry{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Registry{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data, format)
}

// Parse decodes and validates a registry document.
//
//	default: cache
//	connections:
//	  cache:
//	    host: 10.0.0.5
//	    prefix: "app:"
//	    pool_size: 32
//	    pool_wait_time: 60s
func Parse(data []byte, format Format) (Registry, error) {
	k := koanf.New(".")
	if err := loadData(k, data, format); err != nil {
		return Registry{}, err
	}
	var r Registry
	if err := k.UnmarshalWithConf("", &r, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Registry{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Registry{}, err
	}
	return r, nil
}

// ParseConnection decodes a single connection document (no registry wrapper).
func ParseConnection(data []byte, format Format) (Config, error) {
	k := koanf.New(".")
	if err := loadData(k, data, format); err != nil {
		return Config{}, err
	}
	var c Config
	if err := k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func detectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func loadData(k *koanf.Koanf, data []byte, format Format) error {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("config: parse: %w", err)
	}
	return nil
}
