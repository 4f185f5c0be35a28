package backup

import "time"

// Config controls periodic store checkpoints.
type Config struct {
	Enabled  bool
	Interval time.Duration
	LocalDir string
	KeepLast int
}

// Snapshotter is the minimal store contract used by Manager.
type Snapshotter interface {
	Dir() string
	Ephemeral() bool
	Checkpoint(dstDir string) error
}
