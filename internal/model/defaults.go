package model

import "time"

// Shared defaults used by the run, export and import commands.
const (
	DefaultReconnectDelay = 2 * time.Second
	DefaultMuxBuffer      = 1000
	DefaultHookMaxBody    = 64 * 1024
	DefaultReadLimit      = 1 << 20
	DefaultAPIPort        = 3000
)
