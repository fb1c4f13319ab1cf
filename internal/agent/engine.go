// Package agent answers chat commands against the sender's study schedule.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/p-n-ai/pai-study/internal/adherence"
	"github.com/p-n-ai/pai-study/internal/chat"
	"github.com/p-n-ai/pai-study/internal/planner"
	"github.com/p-n-ai/pai-study/internal/schedule"
)

const (
	shortIDLen    = 8
	minPrefixLen  = 3
	troubleReply  = "Sorry, I couldn't reach your schedule right now. Please try again shortly."
	helpCommands  = "/today - today's blocks\n/done <id> - mark a block as done (again to reopen)\n/stats - adherence, hours and streak"
	defaultPerson = "there"
)

// EngineConfig holds dependencies for the agent engine.
type EngineConfig struct {
	Sessions *schedule.Sessions
	Reports  *adherence.Engine
	Location *time.Location // "today" is evaluated here (default time.Local)
	Now      func() time.Time
	// OnChange is called after a command changed the user's blocks.
	OnChange func(userID string, blocks []planner.StudyBlock)
}

// Engine is the command processor behind the chat channels.
type Engine struct {
	sessions *schedule.Sessions
	reports  *adherence.Engine
	loc      *time.Location
	now      func() time.Time
	onChange func(userID string, blocks []planner.StudyBlock)
}

// NewEngine creates a new agent engine.
func NewEngine(cfg EngineConfig) *Engine {
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = schedule.NewSessions(schedule.Config{})
	}
	reports := cfg.Reports
	if reports == nil {
		reports = adherence.NewEngine()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		sessions: sessions,
		reports:  reports,
		loc:      loc,
		now:      now,
		onChange: cfg.OnChange,
	}
}

// ProcessMessage handles an incoming message and returns the reply text.
// Failures are answered with an apology rather than returned, so the chat never goes silent.
func (e *Engine) ProcessMessage(ctx context.Context, msg chat.InboundMessage) (string, error) {
	slog.Info("processing message",
		"channel", msg.Channel,
		"user_id", msg.Address(),
		"text_len", len(msg.Text),
	)

	if !strings.HasPrefix(msg.Text, "/") {
		return "I understand commands only:\n" + helpCommands, nil
	}
	return e.handleCommand(ctx, msg)
}

// Handler returns an inbound handler that replies through gw on the sender's channel.
func (e *Engine) Handler(ctx context.Context, gw *chat.Gateway) func(chat.InboundMessage) {
	return func(msg chat.InboundMessage) {
		reply, err := e.ProcessMessage(ctx, msg)
		if err != nil {
			slog.Error("failed to process message", "channel", msg.Channel, "error", err)
			return
		}
		if err := gw.Send(ctx, chat.OutboundMessage{
			Channel: msg.Channel,
			UserID:  msg.UserID,
			Kind:    chat.KindMessage,
			Text:    reply,
		}); err != nil {
			slog.Error("failed to send reply", "channel", msg.Channel, "user_id", msg.UserID, "error", err)
		}
	}
}

func (e *Engine) handleCommand(ctx context.Context, msg chat.InboundMessage) (string, error) {
	fields := strings.Fields(msg.Text)
	// Telegram appends the bot name in groups: /today@study_bot
	cmd, _, _ := strings.Cut(fields[0], "@")
	args := fields[1:]

	switch cmd {
	case "/start", "/help":
		return e.handleStart(ctx, msg), nil
	case "/today":
		return e.withStore(ctx, msg, e.handleToday), nil
	case "/done":
		return e.withStore(ctx, msg, func(ctx context.Context, st *schedule.Store) string {
			return e.handleDone(ctx, st, args)
		}), nil
	case "/stats":
		return e.withStore(ctx, msg, e.handleStats), nil
	default:
		return fmt.Sprintf("Unknown command: %s\nUse /start to see what I can do.", cmd), nil
	}
}

func (e *Engine) withStore(ctx context.Context, msg chat.InboundMessage, fn func(context.Context, *schedule.Store) string) string {
	st, err := e.sessions.Open(ctx, msg.Address())
	if err != nil {
		slog.Error("failed to open schedule", "user_id", msg.Address(), "error", err)
		return troubleReply
	}
	return fn(ctx, st)
}

func (e *Engine) handleStart(ctx context.Context, msg chat.InboundMessage) string {
	name := msg.FirstName
	if name == "" {
		name = msg.Username
	}
	if name == "" {
		name = defaultPerson
	}

	// Opening the store links this chat to its schedule so reminders can reach it.
	if _, err := e.sessions.Open(ctx, msg.Address()); err != nil {
		slog.Error("failed to open schedule", "user_id", msg.Address(), "error", err)
	}

	return fmt.Sprintf(`Hi %s!

I keep track of your study plan and remind you when a block starts.
Your schedule id is %s.

%s`, name, msg.Address(), helpCommands)
}

func (e *Engine) handleToday(_ context.Context, st *schedule.Store) string {
	today := e.now().In(e.loc).Format(planner.DateLayout)
	blocks := st.ByDate(today)
	if len(blocks) == 0 {
		return fmt.Sprintf("Nothing scheduled for today (%s).", today)
	}
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Start < blocks[j].Start })

	var b strings.Builder
	fmt.Fprintf(&b, "Today (%s):\n", today)
	done := 0
	for _, blk := range blocks {
		mark := "[ ]"
		if blk.Completed {
			mark = "[x]"
			done++
		}
		fmt.Fprintf(&b, "%s %s-%s %s (%s)\n", mark, blk.Start, blk.End, blk.Title, shortID(blk.ID))
	}
	fmt.Fprintf(&b, "%d of %d done.", done, len(blocks))
	return b.String()
}

func (e *Engine) handleDone(ctx context.Context, st *schedule.Store, args []string) string {
	if len(args) == 0 {
		return "Usage: /done <id>\nThe id is shown in /today."
	}
	prefix := strings.ToLower(args[0])
	if len(prefix) < minPrefixLen {
		return fmt.Sprintf("Please give at least %d characters of the block id.", minPrefixLen)
	}

	var matches []planner.StudyBlock
	for _, b := range st.Blocks() {
		if strings.HasPrefix(strings.ToLower(b.ID), prefix) {
			matches = append(matches, b)
		}
	}
	switch len(matches) {
	case 0:
		return fmt.Sprintf("No block matches %q. Use /today to see ids.", args[0])
	case 1:
	default:
		return fmt.Sprintf("%d blocks match %q. Please use more characters.", len(matches), args[0])
	}

	res, err := st.ToggleCompletion(ctx, matches[0].ID, 0)
	if err != nil {
		if errors.Is(err, schedule.ErrNotFound) {
			return fmt.Sprintf("Block %s no longer exists.", shortID(matches[0].ID))
		}
		slog.Error("failed to toggle block", "user_id", st.UserID(), "block_id", matches[0].ID, "error", err)
		return troubleReply
	}
	if e.onChange != nil {
		e.onChange(st.UserID(), st.Blocks())
	}

	if !res.Block.Completed {
		return fmt.Sprintf("Reopened: %s.", res.Block.Title)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Done: %s.", res.Block.Title)
	if len(res.Reviews) > 0 {
		b.WriteString("\nReviews scheduled:")
		for _, r := range res.Reviews {
			fmt.Fprintf(&b, "\n- %s %s-%s", r.Date, r.Start, r.End)
		}
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(&b, "\n%d review(s) found no free slot.", len(res.Skipped))
	}
	return b.String()
}

func (e *Engine) handleStats(_ context.Context, st *schedule.Store) string {
	r := e.reports.Report(st.Blocks(), st.Logs(), e.now().In(e.loc))
	k := r.KPIs

	var b strings.Builder
	fmt.Fprintf(&b, "Adherence: %d%% (%d of %d blocks)\n", k.Adherence, k.CompletedBlocks, k.TotalBlocks)
	fmt.Fprintf(&b, "This week: %.1fh done of %.1fh planned\n", k.WeeklyCompletedHours, k.WeeklyHours)
	fmt.Fprintf(&b, "This month: %.1fh studied\n", k.MonthlyHours)
	fmt.Fprintf(&b, "Streak: %d day(s)\n", k.Streak)
	fmt.Fprintf(&b, "Reviews: %d up to date, %d overdue", k.ReviewsUpToDate, k.OverdueReviews)
	for _, in := range r.Insights {
		fmt.Fprintf(&b, "\n* %s", in.Message)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}
