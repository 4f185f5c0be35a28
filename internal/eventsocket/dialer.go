package eventsocket

import (
	"context"
	"fmt"

	"github.com/coder/websocket"

	"github.com/tinytelemetry/hubtrail/internal/model"
)

// Conn is one established hub connection.
type Conn interface {
	// Read blocks for the next message.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens hub connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials real websocket connections.
type WebsocketDialer struct {
	// ReadLimit caps the size of a single message. Zero uses
	// model.DefaultReadLimit.
	ReadLimit int64
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	ws, resp, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("eventsocket: dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	limit := d.ReadLimit
	if limit <= 0 {
		limit = model.DefaultReadLimit
	}
	ws.SetReadLimit(limit)
	return wsConn{ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	return data, err
}

func (c wsConn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}
