package httpserver

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/hubtrail/internal/metrics"
	"github.com/tinytelemetry/hubtrail/internal/model"
)

// HookSourceName tags envelopes received on the webhook route.
const HookSourceName = "hook"

// DefaultHookBuffer is the default channel buffer for webhook messages.
const DefaultHookBuffer = 1024

// Options configures the HTTP surface.
type Options struct {
	Addr        string
	HookEnabled bool
	HookMaxBody int64
	HookBuffer  int
}

// Deps are the read-only views the API reports from. Any of them may be nil.
type Deps struct {
	Store     model.SeqReporter
	Stats     model.StatsReporter
	ConnState func() string
}

// Server provides the health, metrics and webhook endpoints.
type Server struct {
	opts      Options
	deps      Deps
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time

	hookMu     sync.RWMutex
	hookCh     chan model.IngestEnvelope
	hookClosed bool
}

// NewServer creates a new HTTP API server.
func NewServer(opts Options, deps Deps) *Server {
	if opts.Addr == "" {
		opts.Addr = "0.0.0.0:3000"
	}
	if opts.HookMaxBody <= 0 {
		opts.HookMaxBody = model.DefaultHookMaxBody
	}
	if opts.HookBuffer <= 0 {
		opts.HookBuffer = DefaultHookBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:      opts,
		deps:      deps,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	if opts.HookEnabled {
		s.hookCh = make(chan model.IngestEnvelope, opts.HookBuffer)
	}
	return s
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if s.opts.HookEnabled {
		r.POST("/hook/hubitat", s.handleHook)
	}
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.router(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	s.listener = listener
	s.startTime = time.Now()
	log.Printf("httpserver: listening on %s", listener.Addr())

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("httpserver: serve: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address once started, or the configured
// address before that.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Stop closes the webhook stream and gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.CloseHook()
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// HookLines returns the webhook message stream, or nil when the webhook is
// disabled.
func (s *Server) HookLines() <-chan model.IngestEnvelope {
	return s.hookCh
}

// CloseHook stops accepting webhook messages and closes the stream. Later
// requests get 503.
func (s *Server) CloseHook() {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	if s.hookCh == nil || s.hookClosed {
		return
	}
	s.hookClosed = true
	close(s.hookCh)
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if s.deps.Store != nil {
		body["last_seq"] = s.deps.Store.LastSeq()
	}
	if s.deps.Stats != nil {
		st := s.deps.Stats.Stats()
		body["accepted"] = st.Accepted
		body["rejected"] = st.Rejected
		body["ignored"] = st.Ignored
	}
	if s.deps.ConnState != nil {
		body["connection"] = s.deps.ConnState()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleHook(c *gin.Context) {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.HookMaxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge, "body too large")
			return
		}
		c.String(http.StatusBadRequest, "failed to read body")
		return
	}

	s.hookMu.RLock()
	defer s.hookMu.RUnlock()
	if s.hookClosed {
		c.String(http.StatusServiceUnavailable, "ingest stopping")
		return
	}
	select {
	case s.hookCh <- model.IngestEnvelope{Source: HookSourceName, Data: data}:
		c.String(http.StatusOK, "ok")
	default:
		log.Printf("httpserver: webhook queue full, dropping %d bytes", len(data))
		c.String(http.StatusServiceUnavailable, "ingest queue full")
	}
}
