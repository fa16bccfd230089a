package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/miekg/dns"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, verifies and validates a configuration file.
//
// When a .checksums manifest sits next to the file, the file's BLAKE3 hash
// must match its entry. ${VAR} references are replaced with environment
// values before parsing; unset variables are left in place and rejected by
// validation where a field forbids them.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	verified, err := VerifyChecksums(absPath)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", absPath, err)
	}
	cfg.Path = absPath
	cfg.Verified = verified

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Defaults and normalizes the result. It does
// not validate.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()

	dec := yaml.NewDecoder(bytes.NewReader([]byte(interpolateEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	applyConfigDefaults(cfg)
	return cfg, nil
}

// applyConfigDefaults fills values an explicit empty key cleared and puts
// zone names in canonical form.
func applyConfigDefaults(cfg *Config) {
	def := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = def.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = def.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = def.Service.LogFormat
	}
	if cfg.DNS.Net == "" {
		cfg.DNS.Net = def.DNS.Net
	}

	if len(cfg.DNS.Zone) > 0 {
		zone := make(map[string]string, len(cfg.DNS.Zone))
		for name, addr := range cfg.DNS.Zone {
			zone[dns.CanonicalName(name)] = addr
		}
		cfg.DNS.Zone = zone
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Unset variables are left as-is.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}
