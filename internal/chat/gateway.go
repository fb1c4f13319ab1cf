// Package chat provides a unified interface for messaging channels (Telegram, WebSocket).
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Message kinds carried by OutboundMessage.
const (
	KindMessage  = "message"
	KindReminder = "reminder"
)

// InboundMessage is a message received from any channel.
type InboundMessage struct {
	Channel    string
	UserID     string // channel-local recipient id (Telegram chat id)
	ExternalID string
	Text       string
	Username   string
	FirstName  string
	Language   string
	AccountID  string // global user id, set by channels keyed by it
}

// Address returns the global user id of the sender, e.g. "telegram:123".
func (m InboundMessage) Address() string {
	if m.AccountID != "" {
		return m.AccountID
	}
	return Address(m.Channel, m.UserID)
}

// OutboundMessage is a message to send via any channel.
type OutboundMessage struct {
	Channel   string
	UserID    string // channel-local recipient id
	Kind      string // KindMessage when empty
	Title     string
	Text      string
	ParseMode string // "Markdown", "HTML", or ""
	Meta      map[string]string
}

// Channel is the interface each messaging platform must implement.
type Channel interface {
	SendMessage(ctx context.Context, userID string, msg OutboundMessage) error
	Start(ctx context.Context, handler func(InboundMessage)) error
	Stop() error
}

// Reacher is implemented by channels that know whether a global user id is connected,
// such as the websocket hub.
type Reacher interface {
	Reaches(userID string) bool
}

// Address builds a global user id from a channel name and a channel-local id.
func Address(channel, localID string) string {
	return channel + ":" + localID
}

// ParseAddress splits a global user id built by Address.
func ParseAddress(userID string) (channel, localID string, ok bool) {
	channel, localID, ok = strings.Cut(userID, ":")
	if !ok || channel == "" || localID == "" {
		return "", "", false
	}
	return channel, localID, true
}

// ErrUnreachable is returned by Deliver when no channel can reach the user.
var ErrUnreachable = errors.New("user is not reachable on any channel")

// Gateway routes messages to/from registered channels.
type Gateway struct {
	channels map[string]Channel
	mu       sync.RWMutex
}

// NewGateway creates a new chat gateway.
func NewGateway() *Gateway {
	return &Gateway{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the gateway.
func (g *Gateway) Register(name string, ch Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[name] = ch
	slog.Info("chat channel registered", "channel", name)
}

// HasChannel returns true if the named channel is registered.
func (g *Gateway) HasChannel(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.channels[name]
	return ok
}

// Channels returns the registered channel names, sorted.
func (g *Gateway) Channels() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.channels))
	for name := range g.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Send dispatches a message to the appropriate channel.
func (g *Gateway) Send(ctx context.Context, msg OutboundMessage) error {
	g.mu.RLock()
	ch, ok := g.channels[msg.Channel]
	g.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown channel: %s", msg.Channel)
	}

	return ch.SendMessage(ctx, msg.UserID, msg)
}

// Deliver sends msg to every channel that can reach the global user id: the channel named
// in the address, plus any Reacher channel with a live connection for the user.
// It returns ErrUnreachable when no channel accepted the message.
func (g *Gateway) Deliver(ctx context.Context, userID string, msg OutboundMessage) error {
	g.mu.RLock()
	type target struct {
		name, local string
		ch          Channel
	}
	var targets []target
	if name, local, ok := ParseAddress(userID); ok {
		if ch, ok := g.channels[name]; ok {
			targets = append(targets, target{name, local, ch})
		}
	}
	for name, ch := range g.channels {
		if r, ok := ch.(Reacher); ok && r.Reaches(userID) {
			targets = append(targets, target{name, userID, ch})
		}
	}
	g.mu.RUnlock()

	if len(targets) == 0 {
		return fmt.Errorf("deliver to %s: %w", userID, ErrUnreachable)
	}

	var errs []error
	for _, t := range targets {
		m := msg
		m.Channel = t.name
		m.UserID = t.local
		if err := t.ch.SendMessage(ctx, t.local, m); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		}
	}
	if len(errs) == len(targets) {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		slog.Warn("partial delivery failure", "user_id", userID, "error", err)
	}
	return nil
}

// StartAll starts all registered channels with the given message handler.
func (g *Gateway) StartAll(ctx context.Context, handler func(InboundMessage)) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for name, ch := range g.channels {
		slog.Info("starting channel", "channel", name)
		if err := ch.Start(ctx, handler); err != nil {
			return fmt.Errorf("starting channel %s: %w", name, err)
		}
	}
	return nil
}

// StopAll stops all registered channels.
func (g *Gateway) StopAll() {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for name, ch := range g.channels {
		if err := ch.Stop(); err != nil {
			slog.Warn("stopping channel", "channel", name, "error", err)
		}
	}
}

// MockChannel is a test double for Channel.
type MockChannel struct {
	mu           sync.Mutex
	SentMessages []OutboundMessage
	Connected    map[string]bool // users Reaches reports as connected
	Err          error
}

func (m *MockChannel) SendMessage(_ context.Context, _ string, msg OutboundMessage) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, msg)
	return nil
}

// Sent returns a copy of the messages sent so far.
func (m *MockChannel) Sent() []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OutboundMessage(nil), m.SentMessages...)
}

func (m *MockChannel) Reaches(userID string) bool {
	return m.Connected[userID]
}

func (m *MockChannel) Start(_ context.Context, _ func(InboundMessage)) error {
	return nil
}

func (m *MockChannel) Stop() error {
	return nil
}
