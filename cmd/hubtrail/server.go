package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/hubtrail/internal/backup"
	"github.com/tinytelemetry/hubtrail/internal/eventsocket"
	"github.com/tinytelemetry/hubtrail/internal/httpserver"
	"github.com/tinytelemetry/hubtrail/internal/hubitat"
	"github.com/tinytelemetry/hubtrail/internal/ingest"
	"github.com/tinytelemetry/hubtrail/internal/metrics"
	"github.com/tinytelemetry/hubtrail/internal/seqstore"
)

// runServer connects the enabled sources to the ingest pipeline and serves
// the HTTP API until interrupted or the store fails.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	metrics.Init()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	metrics.SetLastSeq(store.LastSeq())

	backupManager, err := backup.NewManager(store, backup.Config{
		Enabled:  cfg.BackupEnabled,
		Interval: cfg.BackupInterval,
		LocalDir: cfg.BackupLocalDir,
		KeepLast: cfg.BackupKeepLast,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize backups: %w", err)
	}
	if backupManager != nil {
		defer backupManager.Stop()
	}

	processor := ingest.NewProcessor(store, hubitat.NewDecoder(nil))

	var hub *eventsocket.Client
	if cfg.HubURL != "" {
		hub, err = eventsocket.NewClient(eventsocket.Config{
			HubURL:         cfg.HubURL,
			ReconnectDelay: cfg.ReconnectDelay,
			Buffer:         cfg.MuxBufferSize,
			Dialer:         &eventsocket.WebsocketDialer{ReadLimit: cfg.ReadLimit},
		})
		if err != nil {
			return fmt.Errorf("failed to configure hub connection: %w", err)
		}
	}

	var apiServer *httpserver.Server
	if cfg.APIEnabled {
		deps := httpserver.Deps{Store: store, Stats: processor}
		if hub != nil {
			deps.ConnState = func() string { return hub.State().String() }
		}
		apiServer = httpserver.NewServer(httpserver.Options{
			Addr:        cfg.APIAddr,
			HookEnabled: cfg.HookEnabled,
			HookMaxBody: cfg.HookMaxBody,
		}, deps)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	plugins := buildInputPlugins(InputPluginConfig{
		Hub:          hub,
		HookServer:   apiServer,
		HookEnabled:  cfg.HookEnabled,
		StdinEnabled: cfg.StdinEnabled,
		TCPEnabled:   cfg.TCPEnabled,
		TCPAddr:      cfg.TCPAddr,
		TCPBuffer:    cfg.MuxBufferSize,
	})

	sources := make([]NamedLogSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			log.Printf("Error initializing input plugin %q: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		log.Printf("server: no input sources enabled; set hub-url, hook-enabled, tcp-enabled or pipe events on stdin")
	}

	mux := NewSourceMultiplexer(ctx, sources, cfg.MuxBufferSize)
	mux.Start()

	printStartupBanner(cfg, store, mux.SourceNames())

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	// Ingestion loop. A store failure ends the run; closed sources end it
	// cleanly.
	if mux.HasSources() {
		g.Go(func() error {
			if err := processor.Run(gctx, mux.Lines()); err != nil {
				return err
			}
			if gctx.Err() == nil {
				log.Printf("server: all input sources closed")
				cancel()
			}
			return nil
		})
	}

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	runErr := g.Wait()

	cancel()
	mux.Stop()
	signal.Stop(sigCh)

	st := processor.Stats()
	log.Printf("server: stopped at seq=%d accepted=%d rejected=%d ignored=%d forwarded=%v",
		store.LastSeq(), st.Accepted, st.Rejected, st.Ignored, mux.Forwarded())

	if runErr != nil {
		return fmt.Errorf("ingestion stopped: %w", runErr)
	}
	return nil
}

// openStore opens the configured store, or a temporary one in ephemeral mode.
func openStore(cfg appConfig) (*seqstore.Store, error) {
	if cfg.Ephemeral {
		store, err := seqstore.OpenEphemeral()
		if err != nil {
			return nil, fmt.Errorf("failed to open ephemeral store: %w", err)
		}
		return store, nil
	}
	store, err := seqstore.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", cfg.DataDir, err)
	}
	return store, nil
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "hubtrail")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "hubtrail.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, store *seqstore.Store, sources []string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╦ ╦╦ ╦╔╗ ╔╦╗╦═╗╔═╗╦╦
    ╠═╣║ ║╠╩╗ ║ ╠╦╝╠═╣║║
    ╩ ╩╚═╝╚═╝ ╩ ╩╚═╩ ╩╩╩═╝`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	// Inputs
	lines = append(lines, bold.Render("    Inputs"))
	lines = append(lines, "")

	if cfg.HubURL != "" {
		lines = append(lines, fmt.Sprintf("    %s  Hub            %s", check, cyan.Render(cfg.HubURL)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Hub            %s", dot, dim.Render("not configured")))
	}
	if cfg.HookEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Webhook        %s", check, cyan.Render("http://"+cfg.APIAddr+"/hook/hubitat")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Webhook        %s", dot, dim.Render("disabled")))
	}
	if cfg.TCPEnabled {
		lines = append(lines, fmt.Sprintf("    %s  TCP replay     %s", check, cyan.Render(cfg.TCPAddr)))
	}
	if len(sources) > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Active        %s", check, dim.Render(strings.Join(sources, ", "))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Active         %s", dot, yellow.Render("none")))
	}
	lines = append(lines, "")

	// Gateway
	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")

	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	// Storage
	lines = append(lines, bold.Render("    Storage"))
	lines = append(lines, "")

	if store.Ephemeral() {
		lines = append(lines, fmt.Sprintf("    %s  Event log      %s", check, yellow.Render("ephemeral")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Event log      %s", check, dim.Render(shortenPath(store.Dir()))))
	}
	lines = append(lines, fmt.Sprintf("    %s  Next seq       %s", check, dim.Render(fmt.Sprint(store.NextSeq()))))
	if cfg.BackupEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Checkpoints    %s", check, dim.Render(shortenPath(cfg.BackupLocalDir))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Checkpoints    %s", dot, dim.Render("disabled")))
	}

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
