package overlay

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Client is a write-only connection to a running overlay server. It
// lets a second process (the MCP tool surface) inject draw commands
// that the server enriches and broadcasts like its own.
type Client struct {
	log zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// Dial connects to the overlay server at host:port.
func Dial(host string, port int, log zerolog.Logger) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", host, port), Path: "/"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("overlay dial %s: %w", u.Host, err)
	}

	c := &Client{
		log:  log.With().Str("component", "overlay-client").Logger(),
		conn: conn,
	}
	// Drain inbound frames so server broadcasts never back up the
	// connection.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return c, nil
}

// Dispatch sends one command frame. Errors are logged; the draw queue
// treats the sink as fire-and-forget.
func (c *Client) Dispatch(p Payload) {
	data, err := json.Marshal(p)
	if err != nil {
		c.log.Error().Err(err).Msg("encode payload")
		return
	}

	c.mu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.mu.Unlock()
	if err != nil {
		c.log.Warn().Err(err).Msg("overlay write failed")
	}
}

// Close tears the connection down.
func (c *Client) Close() error {
	return c.conn.Close()
}
