package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tinytelemetry/hubtrail/internal/eventsocket"
	"github.com/tinytelemetry/hubtrail/internal/httpserver"
	"github.com/tinytelemetry/hubtrail/internal/logsource"
	"github.com/tinytelemetry/hubtrail/internal/tcpserver"
)

// NamedLogSource aliases the shared source abstraction to keep app-layer APIs explicit.
type NamedLogSource = logsource.LogSource

// InputSourcePlugin is a small plugin primitive for wiring hub inputs.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (NamedLogSource, error)
}

// InputPluginConfig defines runtime input selection.
type InputPluginConfig struct {
	Hub          *eventsocket.Client
	HookServer   *httpserver.Server
	HookEnabled  bool
	StdinEnabled bool
	TCPEnabled   bool
	TCPAddr      string
	TCPBuffer    int
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	plugins := make([]InputSourcePlugin, 0, 4)
	plugins = append(plugins, eventsocketInputPlugin{client: cfg.Hub})
	plugins = append(plugins, hookInputPlugin{
		server:  cfg.HookServer,
		enabled: cfg.HookEnabled,
	})
	plugins = append(plugins, tcpInputPlugin{
		enabled: cfg.TCPEnabled,
		addr:    cfg.TCPAddr,
		buffer:  cfg.TCPBuffer,
	})
	plugins = append(plugins, stdinInputPlugin{enabled: cfg.StdinEnabled})
	return plugins
}

type eventsocketInputPlugin struct {
	client *eventsocket.Client
}

func (p eventsocketInputPlugin) Name() string { return eventsocket.SourceName }

func (p eventsocketInputPlugin) Enabled() bool { return p.client != nil }

func (p eventsocketInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	p.client.Start(ctx)
	return p.client, nil
}

type hookInputPlugin struct {
	server  *httpserver.Server
	enabled bool
}

func (p hookInputPlugin) Name() string { return httpserver.HookSourceName }

func (p hookInputPlugin) Enabled() bool { return p.enabled }

func (p hookInputPlugin) Build(_ context.Context) (NamedLogSource, error) {
	if p.server == nil || p.server.HookLines() == nil {
		return nil, fmt.Errorf("webhook requires the HTTP API with hook-enabled")
	}
	return logsource.NewHookSource(p.server), nil
}

type tcpInputPlugin struct {
	enabled bool
	addr    string
	buffer  int
}

func (p tcpInputPlugin) Name() string { return tcpserver.SourceName }

func (p tcpInputPlugin) Enabled() bool { return p.enabled }

func (p tcpInputPlugin) Build(_ context.Context) (NamedLogSource, error) {
	srv := tcpserver.NewServer(p.addr, tcpserver.ServerConfig{LineChannelSize: p.buffer})
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("tcp replay listener: %w", err)
	}
	return logsource.NewTCPSource(srv), nil
}

type stdinInputPlugin struct {
	enabled bool
}

func (p stdinInputPlugin) Name() string { return "stdin" }

// Enabled reports whether stdin is allowed and is a pipe or file rather than
// a terminal.
func (p stdinInputPlugin) Enabled() bool {
	if !p.enabled {
		return false
	}
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (p stdinInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	return logsource.NewStdinSource(ctx), nil
}
