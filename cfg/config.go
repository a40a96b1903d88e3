// Package cfg holds the declarative configuration document: a TOML file
// with a server section and an ordered list of mounts, loadable either
// from disk (pelletier/go-toml/v2) or bound to CLI flags via viper the
// way gcsfuse's cmd/root.go binds its own Config struct.
package cfg

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Defaults mirror the original tool's config.rs Default impl exactly.
const (
	DefaultIP             = "127.0.0.1"
	DefaultPort           = 11451
	DefaultLogLevel       = "error"
	DefaultMaxConnections = 100
	DefaultReadTimeout    = 30
	DefaultWriteTimeout   = 30
)

// ServerConfig is the *server* section of the configuration document. Each
// field also carries a mapstructure tag matching its toml tag so that
// viper.Unmarshal (which decodes via mapstructure, not go-toml) resolves
// the same snake_case keys cmd's flag bindings and TOML files both use.
type ServerConfig struct {
	IP             string `toml:"ip" mapstructure:"ip"`
	Port           uint16 `toml:"port" mapstructure:"port"`
	LogLevel       string `toml:"log_level" mapstructure:"log_level"`
	Verbose        bool   `toml:"verbose" mapstructure:"verbose"`
	Daemon         bool   `toml:"daemon" mapstructure:"daemon"`
	PIDFile        string `toml:"pid_file,omitempty" mapstructure:"pid_file"`
	WorkDir        string `toml:"work_dir,omitempty" mapstructure:"work_dir"`
	MaxConnections int    `toml:"max_connections" mapstructure:"max_connections"`
	ReadTimeout    int    `toml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   int    `toml:"write_timeout" mapstructure:"write_timeout"`
	ReadOnly       bool   `toml:"read_only" mapstructure:"read_only"`
	AllowIPs       string `toml:"allow_ips,omitempty" mapstructure:"allow_ips"`
	NoColor        bool   `toml:"no_color" mapstructure:"no_color"`
}

// DefaultServerConfig returns a ServerConfig with every field at its
// documented default.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		IP:             DefaultIP,
		Port:           DefaultPort,
		LogLevel:       DefaultLogLevel,
		MaxConnections: DefaultMaxConnections,
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
	}
}

// MountConfig is one entry of the *mounts* section.
type MountConfig struct {
	Source      string `toml:"source" mapstructure:"source"`
	Target      string `toml:"target" mapstructure:"target"`
	ReadOnly    bool   `toml:"read_only" mapstructure:"read_only"`
	Description string `toml:"description,omitempty" mapstructure:"description"`
}

// Config is the full configuration document.
type Config struct {
	Server ServerConfig  `toml:"server"`
	Mounts []MountConfig `toml:"mounts"`
}

// Default returns a Config with default server settings and no mounts
// (which Validate will reject -- the original tool's own default config
// is likewise invalid until at least one mount is added).
func Default() Config {
	return Config{Server: DefaultServerConfig()}
}

// FromFile loads a TOML document from path.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %q: %w", path, err)
	}
	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	c.Server = mergeServerDefaults(c.Server)
	return c, nil
}

// mergeServerDefaults fills in zero-valued fields with their documented
// defaults, the Go analogue of serde's per-field #[serde(default = ...)].
func mergeServerDefaults(s ServerConfig) ServerConfig {
	d := DefaultServerConfig()
	if s.IP == "" {
		s.IP = d.IP
	}
	if s.Port == 0 {
		s.Port = d.Port
	}
	if s.LogLevel == "" {
		s.LogLevel = d.LogLevel
	}
	if s.MaxConnections == 0 {
		s.MaxConnections = d.MaxConnections
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = d.ReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = d.WriteTimeout
	}
	return s
}

// ToFile writes c to path as pretty-printed TOML.
func ToFile(c Config, path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	return nil
}

// Validate enforces the configuration invariants: at least one mount;
// each source exists and is a directory; each target is non-empty and
// begins with "/"; target values are unique; port is non-zero.
func (c Config) Validate() error {
	if len(c.Mounts) == 0 {
		return fmt.Errorf("at least one mount point must be configured")
	}

	seen := make(map[string]bool, len(c.Mounts))
	for i, m := range c.Mounts {
		fi, err := os.Stat(m.Source)
		if err != nil {
			return fmt.Errorf("mount %d: source directory %q does not exist", i, m.Source)
		}
		if !fi.IsDir() {
			return fmt.Errorf("mount %d: source %q is not a directory", i, m.Source)
		}
		if m.Target == "" {
			return fmt.Errorf("mount %d: target path cannot be empty", i)
		}
		if m.Target[0] != '/' {
			return fmt.Errorf("mount %d: target path %q must start with '/'", i, m.Target)
		}
		if seen[m.Target] {
			return fmt.Errorf("mount %d: duplicate target path %q", i, m.Target)
		}
		seen[m.Target] = true
	}

	if c.Server.Port == 0 {
		return fmt.Errorf("server port cannot be 0")
	}

	return nil
}

// MountByTarget returns the MountConfig whose Target equals target.
func (c Config) MountByTarget(target string) (MountConfig, bool) {
	for _, m := range c.Mounts {
		if m.Target == target {
			return m, true
		}
	}
	return MountConfig{}, false
}

// SampleConfig returns the two-mount example document the CLI's
// --generate-config flag writes out, mirroring cli.rs::create_sample_config.
func SampleConfig() Config {
	c := Default()
	c.Mounts = []MountConfig{
		{
			Source:      "/Users/aaaa",
			Target:      "/bbbb",
			ReadOnly:    false,
			Description: "Example mount: maps /Users/aaaa to /bbbb",
		},
		{
			Source:      "/tmp/shared",
			Target:      "/shared",
			ReadOnly:    true,
			Description: "Read-only shared directory",
		},
	}
	return c
}
