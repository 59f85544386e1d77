package browser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// fakeDebugger emulates a page debugger endpoint: it answers every
// command via respond and can push events.
func fakeDebugger(t *testing.T, respond func(msg cdpMessage, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			var msg cdpMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			respond(msg, conn)
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestCallRoundTrip(t *testing.T) {
	srv := fakeDebugger(t, func(msg cdpMessage, conn *websocket.Conn) {
		_ = conn.WriteJSON(cdpMessage{ID: msg.ID, Result: json.RawMessage(`{"ok":true}`)})
	})
	defer srv.Close()

	client, err := dialPage(context.Background(), wsURL(srv), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	res, err := client.call(context.Background(), "Page.enable", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(res) != `{"ok":true}` {
		t.Errorf("result = %s", res)
	}
}

func TestCallProtocolError(t *testing.T) {
	srv := fakeDebugger(t, func(msg cdpMessage, conn *websocket.Conn) {
		_ = conn.WriteJSON(cdpMessage{ID: msg.ID, Error: &cdpError{Code: -32000, Message: "no such frame"}})
	})
	defer srv.Close()

	client, err := dialPage(context.Background(), wsURL(srv), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	_, err = client.call(context.Background(), "Page.navigate", map[string]string{"url": "about:blank"})
	if err == nil || !strings.Contains(err.Error(), "no such frame") {
		t.Errorf("err = %v", err)
	}
}

func TestNavigateWaitsForDomContent(t *testing.T) {
	srv := fakeDebugger(t, func(msg cdpMessage, conn *websocket.Conn) {
		_ = conn.WriteJSON(cdpMessage{ID: msg.ID, Result: json.RawMessage(`{}`)})
		if msg.Method == "Page.navigate" {
			_ = conn.WriteJSON(cdpMessage{Method: "Page.domContentEventFired"})
		}
	})
	defer srv.Close()

	client, err := dialPage(context.Background(), wsURL(srv), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.navigate(context.Background(), "https://example.com", 2*time.Second); err != nil {
		t.Fatal(err)
	}
}

func TestNavigateTimesOutWithoutEvent(t *testing.T) {
	srv := fakeDebugger(t, func(msg cdpMessage, conn *websocket.Conn) {
		_ = conn.WriteJSON(cdpMessage{ID: msg.ID, Result: json.RawMessage(`{}`)})
	})
	defer srv.Close()

	client, err := dialPage(context.Background(), wsURL(srv), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	err = client.navigate(context.Background(), "https://example.com", 200*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout")
	}
}

func TestEvaluateString(t *testing.T) {
	srv := fakeDebugger(t, func(msg cdpMessage, conn *websocket.Conn) {
		_ = conn.WriteJSON(cdpMessage{
			ID:     msg.ID,
			Result: json.RawMessage(`{"result":{"value":"Example Domain"}}`),
		})
	})
	defer srv.Close()

	client, err := dialPage(context.Background(), wsURL(srv), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	title, err := client.pageTitle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if title != "Example Domain" {
		t.Errorf("title = %q", title)
	}
}

func TestEvaluateException(t *testing.T) {
	srv := fakeDebugger(t, func(msg cdpMessage, conn *websocket.Conn) {
		_ = conn.WriteJSON(cdpMessage{
			ID:     msg.ID,
			Result: json.RawMessage(`{"result":{},"exceptionDetails":{"text":"Uncaught ReferenceError"}}`),
		})
	})
	defer srv.Close()

	client, err := dialPage(context.Background(), wsURL(srv), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	_, err = client.evaluate(context.Background(), "nope()")
	if err == nil || !strings.Contains(err.Error(), "ReferenceError") {
		t.Errorf("err = %v", err)
	}
}

func TestClickSelector(t *testing.T) {
	srv := fakeDebugger(t, func(msg cdpMessage, conn *websocket.Conn) {
		_ = conn.WriteJSON(cdpMessage{
			ID:     msg.ID,
			Result: json.RawMessage(`{"result":{"value":true}}`),
		})
	})
	defer srv.Close()

	client, err := dialPage(context.Background(), wsURL(srv), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	clicked, err := client.clickSelector(context.Background(), "a.result__a")
	if err != nil || !clicked {
		t.Errorf("clicked = %v err = %v", clicked, err)
	}
}

func TestCallAfterClose(t *testing.T) {
	srv := fakeDebugger(t, func(msg cdpMessage, conn *websocket.Conn) {})
	defer srv.Close()

	client, err := dialPage(context.Background(), wsURL(srv), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	client.Close()

	if _, err := client.call(context.Background(), "Page.enable", nil); err != ErrPageClosed {
		t.Errorf("err = %v, want ErrPageClosed", err)
	}
}
