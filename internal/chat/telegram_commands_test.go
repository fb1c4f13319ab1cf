package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTelegramChannelSyncCommands(t *testing.T) {
	var gotPath string
	var gotCommands string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		gotCommands = r.Form.Get("commands")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer server.Close()

	ch := &TelegramChannel{
		token:   "test-token",
		baseURL: server.URL,
		client:  server.Client(),
		stop:    make(chan struct{}),
	}

	if err := ch.syncCommands(context.Background()); err != nil {
		t.Fatalf("syncCommands() error = %v", err)
	}
	if gotPath != "/setMyCommands" {
		t.Fatalf("path = %q, want /setMyCommands", gotPath)
	}
	for _, cmd := range []string{`"start"`, `"today"`, `"done"`, `"stats"`} {
		if !strings.Contains(gotCommands, cmd) {
			t.Errorf("commands payload = %q, missing %s", gotCommands, cmd)
		}
	}
}

func TestTelegramChannelSyncCommands_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	ch := &TelegramChannel{baseURL: server.URL, client: server.Client(), stop: make(chan struct{})}
	if err := ch.syncCommands(context.Background()); err == nil {
		t.Error("syncCommands() should error on non-200 response")
	}
}

func TestTelegramChannelSendMessage_RetriesPlain(t *testing.T) {
	var modes []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mode := r.Form.Get("parse_mode")
		modes = append(modes, mode)
		if mode != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch := &TelegramChannel{baseURL: server.URL, client: server.Client(), stop: make(chan struct{})}
	err := ch.SendMessage(context.Background(), "42", OutboundMessage{Text: "*bold", ParseMode: "Markdown"})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if len(modes) != 2 || modes[0] != "Markdown" || modes[1] != "" {
		t.Errorf("parse modes = %q, want [Markdown, \"\"]", modes)
	}
}

func TestTelegramChannelSendMessage_PrependsTitle(t *testing.T) {
	var gotText, gotChat string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotText = r.Form.Get("text")
		gotChat = r.Form.Get("chat_id")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch := &TelegramChannel{baseURL: server.URL, client: server.Client(), stop: make(chan struct{})}
	msg := OutboundMessage{Kind: KindReminder, Title: "Study · Portuguese", Text: "Starts at 06:00"}
	if err := ch.SendMessage(context.Background(), "42", msg); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if gotChat != "42" {
		t.Errorf("chat_id = %q, want 42", gotChat)
	}
	if gotText != "Study · Portuguese\nStarts at 06:00" {
		t.Errorf("text = %q", gotText)
	}
}

func TestTelegramChannelSendMessage_SplitsLongListing(t *testing.T) {
	var texts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		texts = append(texts, r.Form.Get("text"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	line := "[ ] 18:00-19:00 Review · Administrative Law (a1b2c3d4)\n"
	body := strings.Repeat(line, 100)
	ch := &TelegramChannel{baseURL: server.URL, client: server.Client(), stop: make(chan struct{})}
	msg := OutboundMessage{Title: "Today, 2025-01-08", Text: body}
	if err := ch.SendMessage(context.Background(), "42", msg); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	if len(texts) != 2 {
		t.Fatalf("sendMessage calls = %d, want 2", len(texts))
	}
	if !strings.HasPrefix(texts[0], "Today, 2025-01-08\n[ ]") {
		t.Errorf("first part = %.40q, want the title first", texts[0])
	}
	for i, text := range texts {
		if len(text) > telegramMaxMessageLen {
			t.Errorf("part[%d] len = %d, exceeds %d", i, len(text), telegramMaxMessageLen)
		}
	}
	if got := strings.Join(texts, ""); got != msg.Title+"\n"+body {
		t.Error("parts do not add up to the title and listing")
	}
}
