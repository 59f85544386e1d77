package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/standardbeagle/clovis/internal/theme"
)

// Callbacks are invoked for inbound renderer events. All fields are
// optional.
type Callbacks struct {
	// OnInput receives a deduplicated user-typed command.
	OnInput func(text string)
	// OnCaptureScreenshot returns the current screen image, or nil.
	OnCaptureScreenshot func() image.Image
	// OnStopAll cancels everything in flight.
	OnStopAll func()
	// OnViewport receives the renderer-reported pixel size.
	OnViewport func(width, height int)
	// OnClick receives clicks on stateful overlay entities.
	OnClick func(id string)
}

// Server is the overlay transport: it accepts renderer clients, fans
// out commands, replays live entities to new clients, and enriches draw
// payloads with theme palettes so the renderer never infers styling.
type Server struct {
	log     zerolog.Logger
	sampler *theme.Sampler
	cb      Callbacks

	mu                sync.Mutex
	clients           map[*websocket.Conn]struct{}
	boxes             map[string]Payload
	texts             map[string]Payload
	dots              map[string]Payload
	activeStatusTheme *theme.Palette
	dedup             *inputDedup

	httpSrv   *http.Server
	ln        net.Listener
	clientSig chan struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	// The renderer is a local trusted process.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewServer creates a transport. sampler may be nil to disable theming.
func NewServer(sampler *theme.Sampler, cb Callbacks, log zerolog.Logger) *Server {
	return &Server{
		log:       log.With().Str("component", "overlay").Logger(),
		sampler:   sampler,
		cb:        cb,
		clients:   make(map[*websocket.Conn]struct{}),
		boxes:     make(map[string]Payload),
		texts:     make(map[string]Payload),
		dots:      make(map[string]Payload),
		dedup:     newInputDedup(nil),
		clientSig: make(chan struct{}, 1),
	}
}

// Start binds the WebSocket listener. The caller resolves port
// conflicts before calling (config.EnsureHostPort).
func (s *Server) Start(host string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("overlay listen: %w", err)
	}
	s.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)
	s.httpSrv = &http.Server{Handler: mux}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("overlay server stopped")
		}
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("overlay transport listening")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown closes the listener and all client connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// WaitForClient blocks until at least one renderer is connected.
func (s *Server) WaitForClient(ctx context.Context) error {
	for {
		s.mu.Lock()
		n := len(s.clients)
		s.mu.Unlock()
		if n > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clientSig:
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// ClientCount returns the number of connected renderers.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Dispatch applies a command to the live entity registry, enriches it
// with theming, and broadcasts it to connected clients. Draw commands
// mutate the registry even while no client is connected.
func (s *Server) Dispatch(p Payload) {
	s.mu.Lock()
	s.enrichLocked(&p)
	s.applyRegistryLocked(p)
	conns := s.connsLocked()
	s.mu.Unlock()

	s.send(conns, p)
}

// Snapshot returns the live entities in replay order.
func (s *Server) Snapshot() []Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Payload, 0, len(s.boxes)+len(s.texts)+len(s.dots))
	for _, p := range s.boxes {
		out = append(out, p)
	}
	for _, p := range s.texts {
		out = append(out, p)
	}
	for _, p := range s.dots {
		out = append(out, p)
	}
	return out
}

func (s *Server) enrichLocked(p *Payload) {
	if s.sampler == nil {
		return
	}
	switch p.Command {
	case CmdDrawBox:
		if p.AutoContrast {
			pal := s.sampler.ForPoint(int(p.X+p.Width/2), int(p.Y+p.Height/2))
			if pal.BoxStroke != "" {
				p.Stroke = pal.BoxStroke
			}
		}
	case CmdDrawText:
		pal := s.sampler.ForText(int(p.X), int(p.Y))
		p.Theme = &pal
		p.Color = pal.Accent
	case CmdShowStatusBubble:
		if p.Theme != nil {
			s.activeStatusTheme = p.Theme
		} else {
			pal := s.sampler.ForStatus()
			s.activeStatusTheme = &pal
			p.Theme = &pal
		}
	case CmdUpdateStatusBubble, CmdCompleteStatusBubble:
		switch {
		case p.Theme != nil:
			s.activeStatusTheme = p.Theme
		case s.activeStatusTheme != nil:
			p.Theme = s.activeStatusTheme
		default:
			pal := s.sampler.ForStatus()
			s.activeStatusTheme = &pal
			p.Theme = &pal
		}
	case CmdHideStatusBubble:
		s.activeStatusTheme = nil
	case CmdShowCursorStatus, CmdUpdateCursorStatus:
		if p.Theme == nil {
			pal := s.sampler.ForCursor()
			p.Theme = &pal
		}
	case CmdSetCursorStatusPos:
		s.sampler.SetCursorPos(int(p.X), int(p.Y))
	}
}

func (s *Server) applyRegistryLocked(p Payload) {
	switch p.Command {
	case CmdDrawBox:
		s.boxes[p.ID] = p
	case CmdDrawText:
		s.texts[p.ID] = p
	case CmdDrawDot:
		s.dots[p.ID] = p
	case CmdRemoveBox:
		delete(s.boxes, p.ID)
	case CmdRemoveText:
		delete(s.texts, p.ID)
	case CmdRemoveDot:
		delete(s.dots, p.ID)
	case CmdClear:
		s.boxes = make(map[string]Payload)
		s.texts = make(map[string]Payload)
		s.dots = make(map[string]Payload)
		s.activeStatusTheme = nil
	}
}

func (s *Server) connsLocked() []*websocket.Conn {
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	return conns
}

func (s *Server) send(conns []*websocket.Conn, p Payload) {
	if len(conns) == 0 {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		s.log.Error().Err(err).Msg("encode payload")
		return
	}

	var stale []*websocket.Conn
	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			stale = append(stale, c)
		}
	}
	if len(stale) > 0 {
		s.mu.Lock()
		for _, c := range stale {
			delete(s.clients, c)
			c.Close()
		}
		s.mu.Unlock()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()
	select {
	case s.clientSig <- struct{}{}:
	default:
	}
	s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("overlay client connected")

	// Replay the live entity snapshot so a reloaded renderer catches up.
	for _, p := range s.Snapshot() {
		if data, err := json.Marshal(p); err == nil {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				break
			}
		}
	}

	s.readLoop(conn)

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
	s.log.Info().Msg("overlay client disconnected")
}

func (s *Server) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var probe struct {
			Command string `json:"command"`
			Event   string `json:"event"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			continue
		}

		if probe.Command != "" {
			var p Payload
			if err := json.Unmarshal(data, &p); err != nil {
				continue
			}
			s.Dispatch(p)
			continue
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		s.handleEvent(ev)
	}
}

func (s *Server) handleEvent(ev Event) {
	switch ev.Event {
	case EventViewport:
		if ev.Width > 0 && ev.Height > 0 && s.cb.OnViewport != nil {
			s.cb.OnViewport(int(ev.Width), int(ev.Height))
		}
	case EventClick:
		s.log.Debug().Str("id", ev.ID).Msg("entity clicked")
		if s.cb.OnClick != nil {
			s.cb.OnClick(ev.ID)
		}
	case EventCaptureScreenshot:
		if s.cb.OnCaptureScreenshot != nil {
			if img := s.cb.OnCaptureScreenshot(); img != nil && s.sampler != nil {
				s.sampler.SetScreenshot(img)
			}
		}
	case EventStopAll:
		if s.cb.OnStopAll != nil {
			s.cb.OnStopAll()
		}
	case EventOverlayInput:
		requestID := ev.RequestID
		if requestID == "" {
			requestID = ev.ReqID
		}
		s.mu.Lock()
		ok := s.dedup.accept(ev.Text, requestID)
		s.mu.Unlock()
		if !ok {
			s.log.Debug().Str("text", ev.Text).Msg("duplicate overlay input dropped")
			return
		}
		if s.cb.OnInput != nil {
			s.cb.OnInput(ev.Text)
		}
	}
}
