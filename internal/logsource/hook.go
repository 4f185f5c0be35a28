package logsource

import (
	"github.com/tinytelemetry/hubtrail/internal/httpserver"
	"github.com/tinytelemetry/hubtrail/internal/model"
)

// HookSource wraps the HTTP server's webhook stream as a LogSource.
type HookSource struct {
	server *httpserver.Server
}

// NewHookSource creates a HookSource from a server built with the webhook
// enabled.
func NewHookSource(server *httpserver.Server) *HookSource {
	return &HookSource{server: server}
}

func (h *HookSource) Lines() <-chan model.IngestEnvelope { return h.server.HookLines() }
func (h *HookSource) Stop()                              { h.server.CloseHook() }
func (h *HookSource) Name() string                       { return httpserver.HookSourceName }
