package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrPageClosed is returned when the debug connection drops.
var ErrPageClosed = errors.New("page connection closed")

type cdpMessage struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *cdpError       `json:"error,omitempty"`
}

type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// cdpClient speaks the DevTools protocol over one page's debugger
// websocket. Responses are matched by id; events fan out to waiters
// registered by method name.
type cdpClient struct {
	conn *websocket.Conn
	log  zerolog.Logger

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan cdpMessage
	waiters map[string][]chan struct{}
	closed  bool
}

func dialPage(ctx context.Context, wsURL string, log zerolog.Logger) (*cdpClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial debugger: %w", err)
	}
	c := &cdpClient{
		conn:    conn,
		log:     log,
		pending: make(map[int64]chan cdpMessage),
		waiters: make(map[string][]chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *cdpClient) readLoop() {
	for {
		var msg cdpMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.shutdown()
			return
		}
		if msg.ID != 0 {
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
			continue
		}
		if msg.Method != "" {
			c.mu.Lock()
			waiters := c.waiters[msg.Method]
			delete(c.waiters, msg.Method)
			c.mu.Unlock()
			for _, w := range waiters {
				close(w)
			}
		}
	}
}

func (c *cdpClient) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[int64]chan cdpMessage)
	waiters := c.waiters
	c.waiters = make(map[string][]chan struct{})
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	for _, list := range waiters {
		for _, w := range list {
			close(w)
		}
	}
	c.conn.Close()
}

func (c *cdpClient) Close() {
	c.shutdown()
}

// call sends one command and waits for its response.
func (c *cdpClient) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrPageClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan cdpMessage, 1)
	c.pending[id] = ch

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			delete(c.pending, id)
			c.mu.Unlock()
			return nil, err
		}
		raw = data
	}
	err := c.conn.WriteJSON(cdpMessage{ID: id, Method: method, Params: raw})
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, ErrPageClosed
		}
		if msg.Error != nil {
			return nil, fmt.Errorf("%s: %s", method, msg.Error.Message)
		}
		return msg.Result, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// expectEvent registers interest in the next occurrence of an event
// before the action that triggers it is issued.
func (c *cdpClient) expectEvent(method string) chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch
	}
	c.waiters[method] = append(c.waiters[method], ch)
	c.mu.Unlock()
	return ch
}

func (c *cdpClient) awaitEvent(ctx context.Context, ch chan struct{}, timeout time.Duration) error {
	select {
	case <-ch:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for page event")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// navigate loads a URL and waits for DOM content.
func (c *cdpClient) navigate(ctx context.Context, url string, timeout time.Duration) error {
	if _, err := c.call(ctx, "Page.enable", nil); err != nil {
		return err
	}
	loaded := c.expectEvent("Page.domContentEventFired")
	if _, err := c.call(ctx, "Page.navigate", map[string]string{"url": url}); err != nil {
		return err
	}
	return c.awaitEvent(ctx, loaded, timeout)
}

// evaluate runs a JS expression and returns its value.
func (c *cdpClient) evaluate(ctx context.Context, expression string) (json.RawMessage, error) {
	res, err := c.call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": true,
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(res, &payload); err != nil {
		return nil, err
	}
	if payload.ExceptionDetails != nil {
		return nil, fmt.Errorf("evaluate: %s", payload.ExceptionDetails.Text)
	}
	return payload.Result.Value, nil
}

func (c *cdpClient) evaluateString(ctx context.Context, expression string) (string, error) {
	value, err := c.evaluate(ctx, expression)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", err
	}
	return s, nil
}

func (c *cdpClient) pageURL(ctx context.Context) (string, error) {
	return c.evaluateString(ctx, "location.href")
}

func (c *cdpClient) pageTitle(ctx context.Context) (string, error) {
	return c.evaluateString(ctx, "document.title")
}

// clickSelector clicks the first element matching selector, reporting
// whether anything matched.
func (c *cdpClient) clickSelector(ctx context.Context, selector string) (bool, error) {
	expr := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); if (!el) return false; el.click(); return true; })()`,
		selector)
	value, err := c.evaluate(ctx, expr)
	if err != nil {
		return false, err
	}
	var clicked bool
	if err := json.Unmarshal(value, &clicked); err != nil {
		return false, err
	}
	return clicked, nil
}
