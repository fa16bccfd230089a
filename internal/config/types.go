package config

// Config represents the complete hookd configuration.
type Config struct {
	Service   ServiceConfig `yaml:"service"`
	Hooks     []string      `yaml:"hooks,omitempty"`
	Libraries []LibrarySpec `yaml:"hooks_libraries,omitempty"`
	DNS       DNSConfig     `yaml:"dns"`
	Journal   JournalConfig `yaml:"journal"`
	API       APIConfig     `yaml:"api"`
	Metrics   MetricsConfig `yaml:"metrics"`

	// Path is the absolute path the configuration was loaded from.
	Path string `yaml:"-"`
	// Verified reports whether the file matched a .checksums manifest.
	Verified bool `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name" validate:"required"`
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=json text"`
	PIDFile   string `yaml:"pid_file" validate:"required"`
}

// LibrarySpec names one hooks library and its parameters. The position of
// the entry in Config.Libraries is the library's index, and therefore its
// place in dispatch order.
type LibrarySpec struct {
	Library    string         `yaml:"library" validate:"required"`
	Parameters map[string]any `yaml:"parameters,omitempty"`
}

// DNSConfig defines the DNS listener and its static zone.
type DNSConfig struct {
	Enabled bool              `yaml:"enabled"`
	Listen  string            `yaml:"listen" validate:"required,hostname_port"`
	Net     string            `yaml:"net" validate:"oneof=udp tcp"`
	Zone    map[string]string `yaml:"zone,omitempty" validate:"dive,keys,dns_name,endkeys,ip"`
	TTL     uint32            `yaml:"ttl" validate:"min=1"`
}

// JournalConfig defines the SQLite dispatch journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required"`
	Buffer  int    `yaml:"buffer" validate:"min=1,max=65536"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen" validate:"required,hostname_port"`
	APIKey  string `yaml:"api_key" validate:"required,min=8,no_placeholder"`
}

// MetricsConfig toggles the Prometheus collectors.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ChecksumManifest is the on-disk format of a .checksums file.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Defaults returns the configuration used for every key a file omits.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "hookd",
			LogLevel:  "info",
			LogFormat: "json",
			PIDFile:   "./data/hookd.pid",
		},
		DNS: DNSConfig{
			Enabled: true,
			Listen:  "127.0.0.1:5353",
			Net:     "udp",
			TTL:     300,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "./data/journal.db",
			Buffer:  256,
		},
		API: APIConfig{
			Listen: "127.0.0.1:8080",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
