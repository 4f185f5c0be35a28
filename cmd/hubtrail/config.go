package main

import (
	"time"

	"github.com/tinytelemetry/hubtrail/internal/model"
)

const (
	defaultReconnectDelay = model.DefaultReconnectDelay
	defaultBindHost       = "127.0.0.1"
	defaultMuxBufferSize  = model.DefaultMuxBuffer
	defaultAPIPort        = model.DefaultAPIPort
	defaultTCPPort        = 4000
	defaultHookMaxBody    = model.DefaultHookMaxBody
	defaultReadLimit      = model.DefaultReadLimit
	defaultBackupInterval = 6 * time.Hour
	defaultBackupKeepLast = 24
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	HubURL         string        `mapstructure:"hub-url"`
	ReconnectDelay time.Duration `mapstructure:"reconnect-delay"`
	ReadLimit      int64         `mapstructure:"read-limit"`
	DataDir        string        `mapstructure:"data-dir"`
	Ephemeral      bool          `mapstructure:"ephemeral"`
	StdinEnabled   bool          `mapstructure:"stdin-enabled"`
	MuxBufferSize  int           `mapstructure:"mux-buffer-size"`
	Host           string        `mapstructure:"host"`
	APIEnabled     bool          `mapstructure:"api-enabled"`
	APIPort        int           `mapstructure:"api-port"`
	APIAddr        string        `mapstructure:"api-addr"`
	HookEnabled    bool          `mapstructure:"hook-enabled"`
	HookMaxBody    int64         `mapstructure:"hook-max-body"`
	TCPEnabled     bool          `mapstructure:"tcp-enabled"`
	TCPPort        int           `mapstructure:"tcp-port"`
	TCPAddr        string        `mapstructure:"tcp-addr"`
	BackupEnabled  bool          `mapstructure:"backup-enabled"`
	BackupInterval time.Duration `mapstructure:"backup-interval"`
	BackupLocalDir string        `mapstructure:"backup-local-dir"`
	BackupKeepLast int           `mapstructure:"backup-keep-last"`
	ConfigPath     string        `mapstructure:"-"` // not from config file
}
