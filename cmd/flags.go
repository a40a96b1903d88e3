package cmd

// cliFlags mirrors the original tool's Cli struct (cli.rs): every flag name,
// short form, and default below is taken from there, translated into pflag
// declarations the way gcsfuse's cmd/flags.go declares its own mount flags.
type cliFlags struct {
	config         string
	target         string
	ip             string
	port           uint16
	logLevel       string
	verbose        bool
	daemon         bool
	pidFile        string
	workDir        string
	maxConnections int
	readTimeout    int
	writeTimeout   int
	readOnly       bool
	allowIPs       string
	noColor        bool
	generateConfig string
}

var flags cliFlags

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path (TOML format)")
	pf.StringVarP(&flags.target, "target", "t", "", "Target mount path (for single directory mode)")
	pf.StringVarP(&flags.ip, "ip", "i", "127.0.0.1", "Listen IP address")
	pf.Uint16VarP(&flags.port, "port", "p", 11451, "Listen port")
	pf.StringVarP(&flags.logLevel, "log-level", "l", "error", "Log level (trace, debug, info, warn, error)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose output")
	pf.BoolVarP(&flags.daemon, "daemon", "d", false, "Run in daemon mode")
	pf.StringVar(&flags.pidFile, "pid-file", "", "PID file path")
	pf.StringVar(&flags.workDir, "work-dir", "", "Working directory")
	pf.IntVar(&flags.maxConnections, "max-connections", 100, "Maximum number of connections")
	pf.IntVar(&flags.readTimeout, "read-timeout", 30, "Read timeout in seconds")
	pf.IntVar(&flags.writeTimeout, "write-timeout", 30, "Write timeout in seconds")
	pf.BoolVar(&flags.readOnly, "read-only", false, "Enable read-only mode")
	pf.StringVar(&flags.allowIPs, "allow-ips", "", "Comma-separated list of allowed client IP addresses")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable log colors")
	pf.StringVar(&flags.generateConfig, "generate-config", "", "Generate a sample configuration file and exit")
}
