package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/pai-study/internal/chat"
	"github.com/p-n-ai/pai-study/internal/planner"
)

const deliverTimeout = 10 * time.Second

// Notifier delivers a due reminder.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// Timer is the handle of an armed reminder.
type Timer interface {
	Stop() bool
}

// Config configures a Scheduler.
type Config struct {
	Notifier Notifier
	Lead     time.Duration  // fire this long before a block starts
	Location *time.Location // "today" is evaluated here; nil keeps now's location
	Now      func() time.Time
	// AfterFunc arms a timer; defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) Timer
}

// Scheduler keeps one set of one-shot timers per user.
type Scheduler struct {
	cfg Config

	mu      sync.Mutex
	timers  map[string]map[string]*armed // user -> block -> timer
	stopped bool
}

// armed identifies one arming of a reminder; a re-sync of the same block creates a new one.
type armed struct {
	timer Timer
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	return &Scheduler{cfg: cfg, timers: make(map[string]map[string]*armed)}
}

// Sync replaces the user's armed reminders with those due for blocks today.
// It returns the number of reminders armed.
func (s *Scheduler) Sync(userID string, blocks []planner.StudyBlock, now time.Time) int {
	if s.cfg.Location != nil {
		now = now.In(s.cfg.Location)
	}
	reminders := TodayReminders(blocks, now, s.cfg.Lead)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.timers[userID] {
		a.timer.Stop()
	}
	delete(s.timers, userID)
	if s.stopped || len(reminders) == 0 {
		return 0
	}

	set := make(map[string]*armed, len(reminders))
	for _, r := range reminders {
		r.UserID = userID
		a := &armed{}
		a.timer = s.cfg.AfterFunc(r.At.Sub(now), func() { s.fire(r, a) })
		set[r.BlockID] = a
	}
	s.timers[userID] = set
	slog.Debug("reminders armed", "user_id", userID, "count", len(set))
	return len(set)
}

// Pending returns how many reminders are armed for the user.
func (s *Scheduler) Pending(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers[userID])
}

// Run re-syncs every user returned by list once per interval until ctx is done, so reminders
// roll over at midnight and pick up blocks added elsewhere.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration, list func(ctx context.Context) map[string][]planner.StudyBlock) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.syncAll(ctx, list)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncAll(ctx, list)
		}
	}
}

func (s *Scheduler) syncAll(ctx context.Context, list func(ctx context.Context) map[string][]planner.StudyBlock) {
	now := s.cfg.Now()
	for userID, blocks := range list(ctx) {
		s.Sync(userID, blocks, now)
	}
}

// Stop cancels every armed reminder. Later Syncs arm nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, set := range s.timers {
		for _, a := range set {
			a.timer.Stop()
		}
	}
	clear(s.timers)
	s.stopped = true
}

// fire delivers r unless a Sync or Stop replaced the arming a in the meantime.
func (s *Scheduler) fire(r Reminder, a *armed) {
	s.mu.Lock()
	set := s.timers[r.UserID]
	if set[r.BlockID] != a {
		s.mu.Unlock()
		slog.Debug("stale reminder dropped", "user_id", r.UserID, "block_id", r.BlockID)
		return
	}
	delete(set, r.BlockID)
	if len(set) == 0 {
		delete(s.timers, r.UserID)
	}
	s.mu.Unlock()

	if s.cfg.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	if err := s.cfg.Notifier.Notify(ctx, r); err != nil {
		if errors.Is(err, chat.ErrUnreachable) {
			slog.Debug("reminder not delivered, user offline", "user_id", r.UserID, "block_id", r.BlockID)
			return
		}
		slog.Warn("reminder delivery failed", "user_id", r.UserID, "block_id", r.BlockID, "error", err)
		return
	}
	slog.Info("reminder sent", "user_id", r.UserID, "block_id", r.BlockID)
}

// GatewayNotifier delivers reminders through every chat channel the user is reachable on.
type GatewayNotifier struct {
	Gateway *chat.Gateway
}

func (n GatewayNotifier) Notify(ctx context.Context, r Reminder) error {
	return n.Gateway.Deliver(ctx, r.UserID, chat.OutboundMessage{
		Kind:  chat.KindReminder,
		Title: r.Title,
		Text:  r.Body,
		Meta: map[string]string{
			"blockId": r.BlockID,
			"at":      r.At.Format(time.RFC3339),
		},
	})
}
