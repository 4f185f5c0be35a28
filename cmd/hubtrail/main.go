package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

// GetVersionInfo returns the current version and commit information.
func GetVersionInfo() (string, string) {
	return version, commit
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath string
	var showVersion bool

	flagSet := pflag.NewFlagSet("hubtrail", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/hubtrail/config.yml)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information")
	flagSet.Usage = func() { printUsage(os.Stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	command := "run"
	rest := flagSet.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}
	if showVersion {
		command = "version"
	}

	switch command {
	case "version":
		printVersion(os.Stdout)
		return nil
	case "help":
		printUsage(os.Stdout, flagSet)
		return nil
	case "run", "export", "import":
	default:
		printUsage(os.Stderr, flagSet)
		return fmt.Errorf("unknown command %q", command)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	switch command {
	case "export":
		return runExport(cfg, rest, os.Stdout, os.Stderr)
	case "import":
		return runImport(cfg, rest, os.Stdin, os.Stderr)
	default:
		if len(rest) > 0 {
			return fmt.Errorf("run: unexpected argument %q", rest[0])
		}
		return runServer(cfg)
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "hubtrail - Hubitat event recorder\n")
	fmt.Fprintf(w, "  Version:    %s\n", version)
	fmt.Fprintf(w, "  Commit:     %s\n", commit)
	fmt.Fprintf(w, "  Built:      %s\n", buildTime)
	fmt.Fprintf(w, "  Go version: %s\n", goVersion)
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `Usage:
  hubtrail [--config FILE] <command> [flags]

Commands:
  run       connect to the hub and record events (default)
  export    write the event log to a file ("-" for stdout)
  import    append records from an export file ("-" for stdin)
  version   print version information

Global flags:
%s`, flagSet.FlagUsages())
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	defaultDataDir := filepath.Join(home, ".local", "share", "hubtrail")

	v := viper.New()
	v.SetEnvPrefix("HUBTRAIL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("hub-url", "")
	v.SetDefault("reconnect-delay", defaultReconnectDelay)
	v.SetDefault("read-limit", defaultReadLimit)
	v.SetDefault("data-dir", defaultDataDir)
	v.SetDefault("ephemeral", false)
	v.SetDefault("stdin-enabled", true)
	v.SetDefault("mux-buffer-size", defaultMuxBufferSize)
	v.SetDefault("host", defaultBindHost)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("api-addr", "")
	v.SetDefault("hook-enabled", false)
	v.SetDefault("hook-max-body", defaultHookMaxBody)
	v.SetDefault("tcp-enabled", false)
	v.SetDefault("tcp-port", defaultTCPPort)
	v.SetDefault("tcp-addr", "")
	v.SetDefault("backup-enabled", false)
	v.SetDefault("backup-interval", defaultBackupInterval)
	v.SetDefault("backup-local-dir", filepath.Join(defaultDataDir, "backups"))
	v.SetDefault("backup-keep-last", defaultBackupKeepLast)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "hubtrail", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return cfg, fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}
	if cfg.TCPEnabled && (cfg.TCPPort <= 0 || cfg.TCPPort > 65535) {
		return cfg, fmt.Errorf("invalid tcp-port: %d", cfg.TCPPort)
	}
	if cfg.ReconnectDelay <= 0 {
		return cfg, fmt.Errorf("invalid reconnect-delay: %s", cfg.ReconnectDelay)
	}
	if cfg.ReadLimit <= 0 {
		return cfg, fmt.Errorf("invalid read-limit: %d", cfg.ReadLimit)
	}
	if cfg.HookMaxBody <= 0 {
		return cfg, fmt.Errorf("invalid hook-max-body: %d", cfg.HookMaxBody)
	}
	if cfg.HookEnabled && !cfg.APIEnabled {
		return cfg, fmt.Errorf("hook-enabled requires api-enabled")
	}
	if cfg.BackupEnabled {
		if cfg.Ephemeral {
			return cfg, fmt.Errorf("backup-enabled cannot be combined with ephemeral")
		}
		if cfg.BackupInterval <= 0 {
			return cfg, fmt.Errorf("invalid backup-interval: %s", cfg.BackupInterval)
		}
		if cfg.BackupKeepLast <= 0 {
			return cfg, fmt.Errorf("invalid backup-keep-last: %d", cfg.BackupKeepLast)
		}
	}

	// Expand ~ in paths
	cfg.DataDir = expandHome(home, cfg.DataDir)
	cfg.BackupLocalDir = expandHome(home, cfg.BackupLocalDir)

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.APIPort))
	}
	if cfg.TCPAddr == "" {
		cfg.TCPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.TCPPort))
	}

	return cfg, nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
