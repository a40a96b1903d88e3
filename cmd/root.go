// Package cmd wires the cobra/pflag CLI surface onto cfg.Config via viper,
// the way gcsfuse's own cmd/root.go binds its Config struct to flags,
// environment variables and a config file with viper.BindPFlag and
// viper.Unmarshal -- translated onto this tool's own flag set from the
// original implementation's cli.rs.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/benignx/nfs-mirror/cfg"
	"github.com/benignx/nfs-mirror/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "nfs-mirror [flags] [directory]",
	Short: "Mirror local directories into an NFSv3 share",
	Long: `nfs-mirror exports one or more local directories over NFSv3,
composing them into a single synthetic namespace that NFS clients can
mount without requiring root privileges on the host.`,
	Args: cobra.MaximumNArgs(1),
	RunE: run,
}

// Execute runs the root command, exiting the process on error the way
// gcsfuse's own Execute does.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, args []string) error {
	if flags.generateConfig != "" {
		return writeSampleConfig(flags.generateConfig)
	}

	conf, err := loadConfig(args)
	if err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	format := "text"
	if conf.Server.Daemon {
		format = "json"
	}
	if err := logger.Init(conf.Server.LogLevel, format, conf.Server.NoColor, "", logger.DefaultRotateConfig()); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	printStartupInfo(conf)

	return serve(conf)
}

// serverFlagBindings lists every server-level flag's viper key alongside
// the pflag name it binds to, so bindServerFlags and loadConfig share one
// source of truth instead of repeating 13 names twice.
var serverFlagBindings = map[string]string{
	"server.ip":              "ip",
	"server.port":            "port",
	"server.log_level":       "log-level",
	"server.verbose":         "verbose",
	"server.daemon":          "daemon",
	"server.pid_file":        "pid-file",
	"server.work_dir":        "work-dir",
	"server.max_connections": "max-connections",
	"server.read_timeout":    "read-timeout",
	"server.write_timeout":   "write-timeout",
	"server.read_only":       "read-only",
	"server.allow_ips":       "allow-ips",
	"server.no_color":        "no-color",
}

// bindServerFlags binds every server.* viper key to its pflag, the way
// gcsfuse's cmd/root.go calls cfg.BindFlags before viper.Unmarshal. Once
// bound, viper.Get resolves each key from the flag only when the flag was
// explicitly set by the user; otherwise it falls through to the config
// file value and finally to the flag's own default -- precedence identical
// to cli.rs's override_config but expressed declaratively.
func bindServerFlags(v *viper.Viper) error {
	pf := rootCmd.PersistentFlags()
	for key, flagName := range serverFlagBindings {
		if err := v.BindPFlag(key, pf.Lookup(flagName)); err != nil {
			return fmt.Errorf("binding flag %q: %w", flagName, err)
		}
	}
	return nil
}

// loadConfig builds a cfg.Config from --config, or from a positional
// directory argument plus --target (single-directory mode), or fails --
// mirroring load_config's two supported modes in the original CLI. Either
// way, server settings are resolved through viper so CLI flags, a config
// file, and built-in defaults layer the way gcsfuse's own config loading
// layers viper.BindPFlag defaults against a config file.
func loadConfig(args []string) (cfg.Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if err := bindServerFlags(v); err != nil {
		return cfg.Config{}, err
	}

	if flags.config != "" {
		v.SetConfigFile(flags.config)
		if err := v.ReadInConfig(); err != nil {
			return cfg.Config{}, fmt.Errorf("reading config file %q: %w", flags.config, err)
		}

		var conf cfg.Config
		if err := v.Unmarshal(&conf); err != nil {
			return cfg.Config{}, fmt.Errorf("decoding config file %q: %w", flags.config, err)
		}
		conf.Server = fillServerDefaults(conf.Server)
		applyVerboseOverride(&conf)
		return conf, nil
	}

	if len(args) == 1 {
		var conf cfg.Config
		if err := v.Unmarshal(&conf); err != nil {
			return cfg.Config{}, fmt.Errorf("decoding flags: %w", err)
		}
		conf.Server = fillServerDefaults(conf.Server)
		applyVerboseOverride(&conf)

		if flags.target == "" {
			return cfg.Config{}, fmt.Errorf("--target is required when a directory is given")
		}
		conf.Mounts = []cfg.MountConfig{{
			Source:      args[0],
			Target:      flags.target,
			ReadOnly:    flags.readOnly,
			Description: fmt.Sprintf("Mount from %s to %s", args[0], flags.target),
		}}
		return conf, nil
	}

	return cfg.Config{}, fmt.Errorf("either --config or a directory with --target must be specified")
}

// fillServerDefaults fills any zero-valued field viper left unset --
// BindPFlag only supplies a value once the flag's Value is queried, and an
// empty config file section otherwise decodes to the Go zero value rather
// than the flag's default.
func fillServerDefaults(s cfg.ServerConfig) cfg.ServerConfig {
	d := cfg.DefaultServerConfig()
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

// applyVerboseOverride mirrors cli.rs's handling of --verbose: it always
// wins over whatever log level the config file or --log-level requested.
func applyVerboseOverride(conf *cfg.Config) {
	if conf.Server.Verbose {
		conf.Server.LogLevel = logger.Debug
	}
}

func writeSampleConfig(path string) error {
	if err := cfg.ToFile(cfg.SampleConfig(), path); err != nil {
		return fmt.Errorf("writing sample configuration to %q: %w", path, err)
	}
	fmt.Printf("Sample configuration file written to: %s\n", path)
	return nil
}

func printStartupInfo(conf cfg.Config) {
	logger.Infof("nfs-mirror service starting...")
	logger.Infof("Listen address: %s:%d", conf.Server.IP, conf.Server.Port)
	logger.Infof("Log level: %s", conf.Server.LogLevel)
	logger.Infof("Max connections: %d", conf.Server.MaxConnections)
	logger.Infof("Read timeout: %d seconds", conf.Server.ReadTimeout)
	logger.Infof("Write timeout: %d seconds", conf.Server.WriteTimeout)
	logger.Infof("Global read-only mode: %v", conf.Server.ReadOnly)

	if conf.Server.AllowIPs != "" {
		logger.Infof("Allowed IP addresses: %s", strings.Join(parseAllowIPs(conf.Server.AllowIPs), ", "))
	}
	if conf.Server.Daemon {
		logger.Infof("Daemon mode: enabled")
	}

	logger.Infof("Configured mount points:")
	for i, m := range conf.Mounts {
		ro := m.ReadOnly || conf.Server.ReadOnly
		desc := ""
		if m.Description != "" {
			desc = " - " + m.Description
		}
		logger.Infof("  %d: %s -> %s (read-only: %v)%s", i+1, m.Source, m.Target, ro, desc)
	}

	logger.Infof("Mount command examples:")
	for _, m := range conf.Mounts {
		logger.Infof("mount -t nfs -o nolocks,vers=3,tcp,port=%d,mountport=%d,soft %s:%s /mnt%s",
			conf.Server.Port, conf.Server.Port, conf.Server.IP, m.Target, m.Target)
	}
}

// parseAllowIPs splits the comma-separated --allow-ips value, trimming
// whitespace around each entry, mirroring parse_allowed_ips.
func parseAllowIPs(raw string) []string {
	var out []string
	for _, ip := range strings.Split(raw, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			out = append(out, ip)
		}
	}
	return out
}
