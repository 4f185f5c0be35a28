package backup

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tinytelemetry/hubtrail/internal/metrics"
)

const (
	defaultInterval = 6 * time.Hour
	defaultKeepLast = 24

	checkpointPrefix = "hubtrail-"
	// Fixed-width so lexical order matches chronological order.
	checkpointLayout = "20060102-150405.000000000"
)

// Manager takes periodic checkpoints of the store and prunes old ones.
type Manager struct {
	store Snapshotter
	cfg   Config

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewManager initializes the backup manager. It returns nil when backups are
// disabled.
func NewManager(store Snapshotter, cfg Config) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if store == nil {
		return nil, fmt.Errorf("backup: nil snapshotter")
	}
	if store.Ephemeral() {
		return nil, fmt.Errorf("backup: store is ephemeral")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if strings.TrimSpace(cfg.LocalDir) == "" {
		return nil, fmt.Errorf("backup: local-dir is required when backup is enabled")
	}
	if cfg.KeepLast <= 0 {
		cfg.KeepLast = defaultKeepLast
	}
	if err := os.MkdirAll(cfg.LocalDir, 0755); err != nil {
		return nil, fmt.Errorf("backup: create local-dir: %w", err)
	}

	m := newManager(store, cfg)

	// Startup checkpoint to reduce recovery point after restarts.
	if _, err := m.RunOnce(m.ctx); err != nil {
		log.Printf("backup: startup checkpoint failed: %v", err)
	}

	m.wg.Add(1)
	go m.loop()
	return m, nil
}

func newManager(store Snapshotter, cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:  store,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (m *Manager) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.RunOnce(m.ctx); err != nil {
				log.Printf("backup: periodic checkpoint failed: %v", err)
			}
		case <-m.done:
			return
		}
	}
}

// RunOnce creates one checkpoint and prunes old ones. It returns the
// checkpoint directory.
func (m *Manager) RunOnce(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := checkpointPrefix + time.Now().UTC().Format(checkpointLayout)
	dst := filepath.Join(m.cfg.LocalDir, name)

	if err := m.store.Checkpoint(dst); err != nil {
		metrics.IncBackup("failed")
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	metrics.IncBackup("success")
	log.Printf("backup: created checkpoint %s", dst)

	if err := pruneLocalBackups(m.cfg.LocalDir, m.cfg.KeepLast); err != nil {
		return dst, fmt.Errorf("prune local backups: %w", err)
	}
	return dst, nil
}

// Stop terminates the periodic backup loop. It is safe to call more than once.
func (m *Manager) Stop() {
	m.once.Do(func() {
		m.cancel()
		close(m.done)
		m.wg.Wait()
	})
}

// List returns existing checkpoint directories, newest first.
func List(localDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(localDir, checkpointPrefix+"*"))
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i] > matches[j]
	})
	return matches, nil
}

func pruneLocalBackups(localDir string, keepLast int) error {
	if keepLast <= 0 {
		return nil
	}

	matches, err := List(localDir)
	if err != nil {
		return err
	}
	if len(matches) <= keepLast {
		return nil
	}

	for _, oldPath := range matches[keepLast:] {
		if err := os.RemoveAll(oldPath); err != nil {
			return err
		}
		log.Printf("backup: pruned %s", filepath.Base(oldPath))
	}
	return nil
}
