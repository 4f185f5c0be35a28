package logsource

import "github.com/tinytelemetry/hubtrail/internal/model"

// LogSource is a unified interface for all hub message sources (eventsocket,
// webhook, tcp, stdin).
type LogSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of raw messages
	Stop()                              // graceful shutdown
	Name() string                       // "eventsocket", "hook", "tcp", "stdin"
}
