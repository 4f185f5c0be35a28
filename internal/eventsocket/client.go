// Package eventsocket maintains the connection to a Hubitat hub's
// /eventsocket endpoint and turns every frame into an ingest envelope.
package eventsocket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/hubtrail/internal/metrics"
	"github.com/tinytelemetry/hubtrail/internal/model"
)

// SourceName tags envelopes produced by the client.
const SourceName = "eventsocket"

// DefaultBuffer is the default channel buffer for received frames.
const DefaultBuffer = 1024

// State is the connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

var stateNames = []string{"disconnected", "connecting", "connected"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Config configures a Client.
type Config struct {
	// HubURL is the hub base address; the client connects to its
	// /eventsocket path.
	HubURL         string
	ReconnectDelay time.Duration
	Buffer         int
	Dialer         Dialer
	// OnState, if set, is called on every state transition from the
	// client goroutine.
	OnState func(State)
}

// Client reads hub events and reconnects after a fixed delay whenever the
// connection fails or closes. It implements logsource.LogSource.
type Client struct {
	url     string
	delay   time.Duration
	dialer  Dialer
	onState func(State)

	ch     chan model.IngestEnvelope
	state  atomic.Int32
	cancel context.CancelFunc
	start  sync.Once
	done   chan struct{}
}

// EventsocketURL resolves the /eventsocket endpoint against a hub address.
func EventsocketURL(hubURL string) (string, error) {
	if hubURL == "" {
		return "", errors.New("eventsocket: empty hub url")
	}
	base, err := url.Parse(hubURL)
	if err != nil {
		return "", fmt.Errorf("eventsocket: parse hub url: %w", err)
	}
	if base.Host == "" {
		return "", fmt.Errorf("eventsocket: hub url %q has no host", hubURL)
	}
	switch base.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return "", fmt.Errorf("eventsocket: unsupported scheme %q", base.Scheme)
	}
	return base.ResolveReference(&url.URL{Path: "/eventsocket"}).String(), nil
}

// NewClient validates cfg and returns an idle client. Call Start to connect.
func NewClient(cfg Config) (*Client, error) {
	u, err := EventsocketURL(cfg.HubURL)
	if err != nil {
		return nil, err
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = model.DefaultReconnectDelay
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &WebsocketDialer{}
	}
	return &Client{
		url:     u,
		delay:   cfg.ReconnectDelay,
		dialer:  cfg.Dialer,
		onState: cfg.OnState,
		ch:      make(chan model.IngestEnvelope, cfg.Buffer),
		cancel:  func() {},
		done:    make(chan struct{}),
	}, nil
}

// Start launches the connection loop. It runs until ctx is cancelled or Stop
// is called. Later calls are no-ops.
func (c *Client) Start(ctx context.Context) {
	c.start.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		c.cancel = cancel
		metrics.SetConnState(Disconnected.String(), stateNames)
		go c.run(ctx)
	})
}

func (c *Client) Lines() <-chan model.IngestEnvelope { return c.ch }
func (c *Client) Name() string                       { return SourceName }

// Stop cancels the connection loop and waits for it to exit. The lines
// channel is closed afterwards.
func (c *Client) Stop() {
	c.start.Do(func() {
		close(c.ch)
		close(c.done)
	})
	c.cancel()
	<-c.done
}

// State returns the current connection state.
func (c *Client) State() State { return State(c.state.Load()) }

// URL returns the resolved eventsocket endpoint.
func (c *Client) URL() string { return c.url }

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.ch)
	defer c.setState(Disconnected)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		c.setState(Connecting)
		metrics.IncDial()
		conn, err := c.dialer.Dial(ctx, c.url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("eventsocket: connect %s: %v", c.url, err)
		} else {
			c.setState(Connected)
			c.read(ctx, conn)
			_ = conn.Close()
		}
		if ctx.Err() != nil {
			return
		}
		c.setState(Disconnected)

		timer.Reset(c.delay)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

func (c *Client) read(ctx context.Context, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("eventsocket: read: %v", err)
			}
			return
		}
		if len(data) == 0 {
			continue
		}
		select {
		case c.ch <- model.IngestEnvelope{Source: SourceName, Data: data}:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev == s {
		return
	}
	log.Printf("eventsocket: %s -> %s", prev, s)
	metrics.SetConnState(s.String(), stateNames)
	if c.onState != nil {
		c.onState(s)
	}
}
