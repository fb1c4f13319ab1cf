package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ChannelTelegram is the gateway name of the Telegram channel.
const ChannelTelegram = "telegram"

const telegramMaxMessageLen = 4096

// BotCommand is a command advertised in the Telegram command menu.
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// DefaultCommands is the study bot's command menu.
var DefaultCommands = []BotCommand{
	{Command: "start", Description: "Link this chat and show help"},
	{Command: "today", Description: "List today's study blocks"},
	{Command: "done", Description: "Mark a block as done: /done <id>"},
	{Command: "stats", Description: "Show adherence, hours and streak"},
}

// TelegramChannel implements the Channel interface for Telegram Bot API.
type TelegramChannel struct {
	token    string
	baseURL  string
	client   *http.Client
	offset   int
	commands []BotCommand
	stop     chan struct{}
}

// NewTelegramChannel creates a Telegram channel adapter.
func NewTelegramChannel(token string) (*TelegramChannel, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required (STUDY_TELEGRAM_BOT_TOKEN)")
	}
	return &TelegramChannel{
		token:   token,
		baseURL: "https://api.telegram.org/bot" + token,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		commands: DefaultCommands,
		stop:     make(chan struct{}),
	}, nil
}

func (t *TelegramChannel) SendMessage(ctx context.Context, userID string, msg OutboundMessage) error {
	text := msg.Text
	if msg.Title != "" {
		text = msg.Title + "\n" + text
	}

	for _, part := range SplitMessage(text, telegramMaxMessageLen) {
		params := url.Values{
			"chat_id": {userID},
			"text":    {part},
		}
		if msg.ParseMode != "" {
			params.Set("parse_mode", msg.ParseMode)
		}

		status, err := t.post(ctx, "/sendMessage", params)
		if err != nil {
			return fmt.Errorf("sending Telegram message: %w", err)
		}
		if status == http.StatusOK {
			continue
		}

		// If Markdown parsing fails, retry without parse mode
		if msg.ParseMode != "" && status == http.StatusBadRequest {
			slog.Warn("Telegram markdown parse failed, retrying plain")
			params.Del("parse_mode")
			status, err = t.post(ctx, "/sendMessage", params)
			if err != nil {
				return fmt.Errorf("sending Telegram message (retry): %w", err)
			}
			if status != http.StatusOK {
				return fmt.Errorf("telegram API error %d on retry", status)
			}
			continue
		}
		return fmt.Errorf("telegram API error %d", status)
	}

	return nil
}

// Start registers the command menu and begins long-polling for updates.
func (t *TelegramChannel) Start(ctx context.Context, handler func(InboundMessage)) error {
	if err := t.syncCommands(ctx); err != nil {
		slog.Warn("failed to sync Telegram commands", "error", err)
	}
	go t.pollLoop(ctx, handler)
	return nil
}

func (t *TelegramChannel) Stop() error {
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
	return nil
}

func (t *TelegramChannel) syncCommands(ctx context.Context) error {
	commands := t.commands
	if len(commands) == 0 {
		commands = DefaultCommands
	}
	payload, err := json.Marshal(commands)
	if err != nil {
		return fmt.Errorf("encoding commands: %w", err)
	}
	status, err := t.post(ctx, "/setMyCommands", url.Values{"commands": {string(payload)}})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("telegram API error %d", status)
	}
	return nil
}

func (t *TelegramChannel) post(ctx context.Context, method string, params url.Values) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+method, strings.NewReader(params.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func (t *TelegramChannel) pollLoop(ctx context.Context, handler func(InboundMessage)) {
	slog.Info("Telegram long-polling started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		default:
			updates, err := t.getUpdates(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("Telegram getUpdates error", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}

			for _, u := range updates {
				t.offset = u.UpdateID + 1
				msg, ok := mapTelegramInbound(u)
				if !ok {
					continue
				}
				// One chat's commands run in order; a user acts on one session at a time.
				handler(msg)
			}
		}
	}
}

func (t *TelegramChannel) getUpdates(ctx context.Context) ([]tgUpdate, error) {
	params := url.Values{
		"offset":  {strconv.Itoa(t.offset)},
		"timeout": {"30"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/getUpdates?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result struct {
		OK     bool       `json:"ok"`
		Result []tgUpdate `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	if !result.OK {
		return nil, fmt.Errorf("telegram API returned ok=false")
	}

	return result.Result, nil
}

// Telegram API types (minimal)
type tgUpdate struct {
	UpdateID int        `json:"update_id"`
	Message  *tgMessage `json:"message"`
}

type tgMessage struct {
	Text string `json:"text"`
	Chat tgChat `json:"chat"`
	From tgUser `json:"from"`
}

type tgChat struct {
	ID int64 `json:"id"`
}

type tgUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LanguageCode string `json:"language_code"`
}

// SplitMessage splits text into chunks that fit Telegram's max message length.
func SplitMessage(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			parts = append(parts, text)
			break
		}
		// Find last newline or space within limit
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > 0 {
			cutAt = idx + 1
		} else if idx := strings.LastIndex(text[:maxLen], " "); idx > 0 {
			cutAt = idx + 1
		}
		parts = append(parts, text[:cutAt])
		text = text[cutAt:]
	}
	return parts
}

func mapTelegramInbound(u tgUpdate) (InboundMessage, bool) {
	if u.Message == nil {
		return InboundMessage{}, false
	}

	text := strings.TrimSpace(u.Message.Text)
	if text == "" {
		return InboundMessage{}, false
	}

	return InboundMessage{
		Channel:    ChannelTelegram,
		UserID:     strconv.FormatInt(u.Message.Chat.ID, 10),
		ExternalID: strconv.FormatInt(u.Message.From.ID, 10),
		Text:       text,
		Username:   u.Message.From.Username,
		FirstName:  u.Message.From.FirstName,
		Language:   u.Message.From.LanguageCode,
	}, true
}
