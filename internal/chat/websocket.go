package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// ChannelWebSocket is the gateway name of the websocket hub.
const ChannelWebSocket = "websocket"

const defaultWriteTimeout = 5 * time.Second

// Frame is the JSON payload pushed to websocket clients.
type Frame struct {
	Kind   string            `json:"kind"`
	Title  string            `json:"title,omitempty"`
	Text   string            `json:"text"`
	Meta   map[string]string `json:"meta,omitempty"`
	SentAt time.Time         `json:"sentAt"`
}

type inboundFrame struct {
	Text string `json:"text"`
}

// WebSocketChannel is a hub of browser connections keyed by global user id.
// A user may hold several connections; each gets every frame.
type WebSocketChannel struct {
	mu           sync.RWMutex
	conns        map[string]map[*websocket.Conn]struct{}
	handler      func(InboundMessage)
	origins      []string
	writeTimeout time.Duration
	now          func() time.Time
}

// NewWebSocketChannel creates an empty hub. originPatterns is passed to websocket.Accept;
// empty means same-origin only.
func NewWebSocketChannel(originPatterns ...string) *WebSocketChannel {
	return &WebSocketChannel{
		conns:        make(map[string]map[*websocket.Conn]struct{}),
		origins:      originPatterns,
		writeTimeout: defaultWriteTimeout,
		now:          time.Now,
	}
}

// Serve upgrades the request and registers the connection for userID until it closes.
// Text frames from the client ({"text": "..."}) are passed to the inbound handler.
func (h *WebSocketChannel) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	// The server's read/write timeouts must not apply to a long-lived connection.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("websocket accept failed", "user_id", userID, "error", err)
		return
	}
	defer func() { _ = c.CloseNow() }()

	h.add(userID, c)
	defer h.remove(userID, c)
	slog.Debug("websocket connected", "user_id", userID)

	ctx := r.Context()
	for {
		var in inboundFrame
		if err := wsjson.Read(ctx, c, &in); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					slog.Debug("websocket read ended", "user_id", userID, "error", err)
				}
			}
			return
		}

		text := strings.TrimSpace(in.Text)
		if text == "" {
			continue
		}
		h.mu.RLock()
		handler := h.handler
		h.mu.RUnlock()
		if handler != nil {
			handler(InboundMessage{
				Channel:   ChannelWebSocket,
				UserID:    userID,
				Text:      text,
				AccountID: userID,
			})
		}
	}
}

// SendMessage writes a frame to every connection the user holds. Connections that fail to
// accept the write are closed and dropped.
func (h *WebSocketChannel) SendMessage(ctx context.Context, userID string, msg OutboundMessage) error {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return fmt.Errorf("websocket %s: %w", userID, ErrUnreachable)
	}

	kind := msg.Kind
	if kind == "" {
		kind = KindMessage
	}
	frame := Frame{Kind: kind, Title: msg.Title, Text: msg.Text, Meta: msg.Meta, SentAt: h.now().UTC()}

	var errs []error
	for _, c := range conns {
		wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
		err := wsjson.Write(wctx, c, frame)
		cancel()
		if err != nil {
			errs = append(errs, err)
			h.remove(userID, c)
			_ = c.CloseNow()
		}
	}
	if len(errs) == len(conns) {
		return fmt.Errorf("websocket write: %w", errors.Join(errs...))
	}
	return nil
}

// Reaches reports whether the user has at least one open connection.
func (h *WebSocketChannel) Reaches(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// Connections returns the number of open connections for the user.
func (h *WebSocketChannel) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Start installs the inbound handler. Connections are accepted through Serve.
func (h *WebSocketChannel) Start(_ context.Context, handler func(InboundMessage)) error {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
	return nil
}

// Stop closes every open connection.
func (h *WebSocketChannel) Stop() error {
	h.mu.Lock()
	all := h.conns
	h.conns = make(map[string]map[*websocket.Conn]struct{})
	h.mu.Unlock()

	// Close waits for the peer's close frame; do not hold up shutdown on slow clients.
	for _, set := range all {
		for c := range set {
			go func() { _ = c.Close(websocket.StatusGoingAway, "server shutting down") }()
		}
	}
	return nil
}

func (h *WebSocketChannel) add(userID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[*websocket.Conn]struct{})
		h.conns[userID] = set
	}
	set[c] = struct{}{}
}

func (h *WebSocketChannel) remove(userID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[userID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, userID)
	}
}
