// Package schedule owns a user's study blocks and progress log, and persists them as
// versioned snapshots through a pluggable key-value backend.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-study/internal/planner"
)

// Config holds the collaborators a Store is built with.
type Config struct {
	Persistence Persistence
	Reviews     *planner.ReviewScheduler
	Events      EventLogger
	NewID       func() string
	Now         func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Persistence == nil {
		c.Persistence = NewMemoryPersistence()
	}
	if c.Reviews == nil {
		c.Reviews = planner.NewReviewScheduler(planner.ReviewConfig{NewID: c.NewID})
	}
	if c.Events == nil {
		c.Events = NopEventLogger{}
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// ToggleResult reports the outcome of a completion toggle.
type ToggleResult struct {
	Block   planner.StudyBlock   `json:"block"`
	Reviews []planner.StudyBlock `json:"reviews,omitempty"`
	Skipped []planner.Skip       `json:"skipped,omitempty"`
}

// Store is the authoritative block collection and progress log of one user.
// All methods are safe for concurrent use; mutations are serialized and the last write wins.
type Store struct {
	cfg Config

	mu     sync.Mutex
	userID string
	blocks []planner.StudyBlock
	view   View
	logs   []ProgressEntry
}

// Open creates a store for userID and loads that user's persisted snapshots.
func Open(ctx context.Context, userID string, cfg Config) (*Store, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	s := &Store{cfg: cfg.withDefaults(), userID: userID}
	s.view = s.defaultView()
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// UserID returns the user the store currently belongs to.
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Add validates and appends one block. A block without an id gets one; a block without an
// owner is attributed to the store's user.
func (s *Store) Add(ctx context.Context, block planner.StudyBlock) (planner.StudyBlock, error) {
	added, err := s.AddAll(ctx, []planner.StudyBlock{block})
	if err != nil {
		return planner.StudyBlock{}, err
	}
	return added[0], nil
}

// AddAll validates every block first and appends them only if all are valid.
func (s *Store) AddAll(ctx context.Context, blocks []planner.StudyBlock) ([]planner.StudyBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]planner.StudyBlock(nil), s.blocks...)
	ids := make(map[string]bool, len(next)+len(blocks))
	for _, b := range next {
		ids[b.ID] = true
	}

	added := make([]planner.StudyBlock, 0, len(blocks))
	for _, b := range blocks {
		b, err := s.prepare(b)
		if err != nil {
			return nil, err
		}
		if ids[b.ID] {
			return nil, fmt.Errorf("%w: block id %s already exists", planner.ErrValidation, b.ID)
		}
		ids[b.ID] = true
		added = append(added, b)
	}
	next = append(next, added...)

	if err := s.commitBlocks(ctx, next); err != nil {
		return nil, err
	}

	if len(added) > 1 {
		s.logEvent(Event{EventType: EventPlanApplied, Data: map[string]any{"blocks": len(added)}})
	}
	return added, nil
}

// Update replaces the block with the same id. It returns ErrNotFound if the id is absent.
func (s *Store) Update(ctx context.Context, block planner.StudyBlock) (planner.StudyBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.index(block.ID)
	if idx < 0 {
		return planner.StudyBlock{}, fmt.Errorf("block %s: %w", block.ID, ErrNotFound)
	}
	block, err := s.prepare(block)
	if err != nil {
		return planner.StudyBlock{}, err
	}

	next := append([]planner.StudyBlock(nil), s.blocks...)
	next[idx] = block
	if err := s.commitBlocks(ctx, next); err != nil {
		return planner.StudyBlock{}, err
	}
	return block, nil
}

// Remove deletes the block with id. It returns ErrNotFound if the id is absent.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.index(id)
	if idx < 0 {
		return fmt.Errorf("block %s: %w", id, ErrNotFound)
	}

	next := make([]planner.StudyBlock, 0, len(s.blocks)-1)
	next = append(next, s.blocks[:idx]...)
	next = append(next, s.blocks[idx+1:]...)
	return s.commitBlocks(ctx, next)
}

// ToggleCompletion flips the completed flag of a block. Each transition to completed appends a
// progress entry; for study blocks it also schedules the spaced reviews. actualMinutes <= 0
// records the planned duration.
func (s *Store) ToggleCompletion(ctx context.Context, id string, actualMinutes int) (ToggleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.index(id)
	if idx < 0 {
		return ToggleResult{}, fmt.Errorf("block %s: %w", id, ErrNotFound)
	}

	next := append([]planner.StudyBlock(nil), s.blocks...)
	next[idx].Completed = !next[idx].Completed
	block := next[idx]
	res := ToggleResult{Block: block}

	logs := s.logs
	if block.Completed {
		minutes := actualMinutes
		if minutes <= 0 {
			minutes = block.Minutes()
		}
		logs = append(append([]ProgressEntry(nil), s.logs...), ProgressEntry{
			BlockID:       block.ID,
			DisciplineID:  block.DisciplineID,
			Type:          block.Type,
			ActualMinutes: minutes,
			CompletedAt:   s.cfg.Now().UTC(),
		})

		reviews, err := s.cfg.Reviews.OnCompletion(block, next)
		if err != nil {
			return ToggleResult{}, fmt.Errorf("scheduling reviews: %w", err)
		}
		next = append(next, reviews.Blocks...)
		res.Reviews = reviews.Blocks
		res.Skipped = reviews.Skipped
	}

	// Progress is written first so that a persisted completion always has its log entry.
	prevBlocks, prevLogs := s.blocks, s.logs
	s.blocks, s.logs = next, logs
	if block.Completed {
		if err := s.saveProgress(ctx); err != nil {
			s.blocks, s.logs = prevBlocks, prevLogs
			return ToggleResult{}, err
		}
	}
	if err := s.saveSchedule(ctx); err != nil {
		s.blocks, s.logs = prevBlocks, prevLogs
		if block.Completed {
			if rerr := s.saveProgress(ctx); rerr != nil {
				slog.Error("restoring progress snapshot failed",
					"user_id", s.userID,
					"block_id", block.ID,
					"error", rerr,
				)
			}
		}
		return ToggleResult{}, err
	}

	eventType := EventBlockReopened
	if block.Completed {
		eventType = EventBlockCompleted
	}
	s.logEvent(Event{
		EventType: eventType,
		BlockID:   block.ID,
		Data: map[string]any{
			"discipline_id": block.DisciplineID,
			"type":          string(block.Type),
			"reviews":       len(res.Reviews),
			"skipped":       len(res.Skipped),
		},
	})

	return res, nil
}

// Get returns the block with id.
func (s *Store) Get(id string) (planner.StudyBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.index(id)
	if idx < 0 {
		return planner.StudyBlock{}, fmt.Errorf("block %s: %w", id, ErrNotFound)
	}
	return s.blocks[idx], nil
}

// Blocks returns a copy of all blocks in insertion order.
func (s *Store) Blocks() []planner.StudyBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]planner.StudyBlock(nil), s.blocks...)
}

// ByDate returns the blocks on date, in insertion order.
func (s *Store) ByDate(date string) []planner.StudyBlock {
	return s.ByDateRange(date, date)
}

// ByDateRange returns the blocks dated within [from, to], in insertion order.
func (s *Store) ByDateRange(from, to string) []planner.StudyBlock {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []planner.StudyBlock
	for _, b := range s.blocks {
		if b.Date >= from && b.Date <= to {
			out = append(out, b)
		}
	}
	return out
}

// Logs returns a copy of the progress log.
func (s *Store) Logs() []ProgressEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ProgressEntry(nil), s.logs...)
}

// View returns the persisted calendar view state.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetView updates the calendar view state.
func (s *Store) SetView(ctx context.Context, v View) error {
	if !v.Mode.Valid() {
		return fmt.Errorf("%w: unknown view mode %q", planner.ErrValidation, v.Mode)
	}
	if _, err := time.Parse(planner.DateLayout, v.SelectedDate); err != nil {
		return fmt.Errorf("%w: invalid selected date %q", planner.ErrValidation, v.SelectedDate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.view
	s.view = v
	if err := s.saveSchedule(ctx); err != nil {
		s.view = prev
		return err
	}
	return nil
}

// ResetForUser switches the store to userID. Every block, log entry and view setting of the
// previous user is dropped from memory before the new user's own snapshots are loaded.
// The previous user's persisted data is left untouched.
//
// Sessions never switches users on a store; it opens one store per user instead. ResetForUser
// serves callers that hold a single Store for a whole client, such as an embedded or
// single-user deployment. To wipe a user's data use ClearUserData.
func (s *Store) ResetForUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.userID = userID
	s.blocks = nil
	s.logs = nil
	s.view = s.defaultView()

	if err := s.load(ctx); err != nil {
		s.blocks, s.logs, s.view = nil, nil, s.defaultView()
		return err
	}
	return nil
}

// ClearUserData deletes the current user's blocks, progress log and persisted snapshots.
func (s *Store) ClearUserData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kind := range []Kind{KindSchedule, KindProgress} {
		if err := s.cfg.Persistence.Delete(ctx, Key{Kind: kind, UserID: s.userID}); err != nil {
			return fmt.Errorf("clearing %s: %w", kind, err)
		}
	}

	removed := len(s.blocks)
	s.blocks = nil
	s.logs = nil
	s.view = s.defaultView()

	s.logEvent(Event{EventType: EventUserReset, Data: map[string]any{"blocks": removed}})
	return nil
}

func (s *Store) defaultView() View {
	return View{
		SelectedDate: s.cfg.Now().Format(planner.DateLayout),
		Mode:         ViewWeek,
	}
}

func (s *Store) index(id string) int {
	for i, b := range s.blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) prepare(b planner.StudyBlock) (planner.StudyBlock, error) {
	if b.ID == "" {
		b.ID = s.cfg.NewID()
	}
	if b.UserID == "" {
		b.UserID = s.userID
	}
	if b.UserID != s.userID {
		return planner.StudyBlock{}, fmt.Errorf("block %s of user %s: %w", b.ID, b.UserID, ErrUserMismatch)
	}
	if b.Pomodoros == 0 {
		b.Pomodoros = b.Type.DefaultPomodoros()
	}
	if err := b.Validate(); err != nil {
		return planner.StudyBlock{}, fmt.Errorf("%w: block %s: %v", planner.ErrValidation, b.ID, err)
	}
	return b, nil
}

func (s *Store) commitBlocks(ctx context.Context, next []planner.StudyBlock) error {
	prev := s.blocks
	s.blocks = next
	if err := s.saveSchedule(ctx); err != nil {
		s.blocks = prev
		return err
	}
	return nil
}

func (s *Store) load(ctx context.Context) error {
	data, err := s.cfg.Persistence.Load(ctx, Key{Kind: KindSchedule, UserID: s.userID})
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return fmt.Errorf("loading schedule: %w", err)
	default:
		snap, err := decodeSchedule(data)
		if err != nil {
			return err
		}
		if snap.UserID != "" && snap.UserID != s.userID {
			return fmt.Errorf("schedule snapshot of %s: %w", snap.UserID, ErrUserMismatch)
		}
		s.blocks = s.ownBlocks(snap.Blocks)
		if snap.SelectedDate != "" {
			s.view.SelectedDate = snap.SelectedDate
		}
		s.view.Mode = snap.ViewMode
	}

	data, err = s.cfg.Persistence.Load(ctx, Key{Kind: KindProgress, UserID: s.userID})
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return fmt.Errorf("loading progress: %w", err)
	default:
		snap, err := decodeProgress(data)
		if err != nil {
			return err
		}
		if snap.UserID != "" && snap.UserID != s.userID {
			return fmt.Errorf("progress snapshot of %s: %w", snap.UserID, ErrUserMismatch)
		}
		s.logs = snap.Logs
	}

	slog.Debug("schedule loaded",
		"user_id", s.userID,
		"blocks", len(s.blocks),
		"logs", len(s.logs),
	)
	return nil
}

// ownBlocks attributes unowned blocks to the current user and drops blocks of anyone else.
func (s *Store) ownBlocks(blocks []planner.StudyBlock) []planner.StudyBlock {
	out := make([]planner.StudyBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.UserID == "" {
			b.UserID = s.userID
		}
		if b.UserID != s.userID {
			slog.Warn("dropping block of another user",
				"user_id", s.userID,
				"block_id", b.ID,
				"owner", b.UserID,
			)
			continue
		}
		out = append(out, b)
	}
	return out
}

func (s *Store) saveSchedule(ctx context.Context) error {
	data, err := json.Marshal(ScheduleSnapshot{
		Version:      SnapshotVersion,
		Blocks:       s.blocks,
		SelectedDate: s.view.SelectedDate,
		ViewMode:     s.view.Mode,
		UserID:       s.userID,
	})
	if err != nil {
		return fmt.Errorf("encoding schedule snapshot: %w", err)
	}
	if err := s.cfg.Persistence.Save(ctx, Key{Kind: KindSchedule, UserID: s.userID}, data); err != nil {
		return fmt.Errorf("saving schedule: %w", err)
	}
	return nil
}

func (s *Store) saveProgress(ctx context.Context) error {
	data, err := json.Marshal(ProgressSnapshot{
		Version: SnapshotVersion,
		Logs:    s.logs,
		UserID:  s.userID,
	})
	if err != nil {
		return fmt.Errorf("encoding progress snapshot: %w", err)
	}
	if err := s.cfg.Persistence.Save(ctx, Key{Kind: KindProgress, UserID: s.userID}, data); err != nil {
		return fmt.Errorf("saving progress: %w", err)
	}
	return nil
}

func (s *Store) logEvent(e Event) {
	e.UserID = s.userID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.cfg.Now()
	}
	if err := s.cfg.Events.LogEvent(e); err != nil {
		slog.Warn("failed to log event", "type", e.EventType, "user_id", s.userID, "error", err)
	}
}
