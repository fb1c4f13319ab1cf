package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/p-n-ai/pai-study/internal/planner"
)

var (
	// ErrNotFound is returned when a block id or persisted snapshot does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUserMismatch is returned when data attributed to one user is handed to another user's store.
	ErrUserMismatch = errors.New("block belongs to another user")
	// ErrStaleData is returned when a persisted snapshot was written by a newer schema version.
	ErrStaleData = errors.New("snapshot written by a newer schema version")
)

// SnapshotVersion is the schema version written by Save.
//
// Version history:
//
//	1: blocks without userId, pomodoros or review source; progress without userId.
//	2: userId on both snapshots; pomodoros, sourceBlockId and reviewOffset on blocks.
const SnapshotVersion = 2

// ViewMode is the calendar granularity the user last looked at.
type ViewMode string

const (
	ViewDay   ViewMode = "day"
	ViewWeek  ViewMode = "week"
	ViewMonth ViewMode = "month"
)

// Valid reports whether m is a known view mode.
func (m ViewMode) Valid() bool {
	switch m {
	case ViewDay, ViewWeek, ViewMonth:
		return true
	}
	return false
}

// View is the per-user calendar state persisted next to the blocks.
type View struct {
	SelectedDate string   `json:"selectedDate"`
	Mode         ViewMode `json:"viewMode"`
}

// ProgressEntry records one completion event. Entries are append-only.
type ProgressEntry struct {
	BlockID       string            `json:"blockId"`
	DisciplineID  string            `json:"disciplineId,omitempty"`
	Type          planner.BlockType `json:"type,omitempty"`
	ActualMinutes int               `json:"actualMinutes"`
	CompletedAt   time.Time         `json:"completedAt"`
}

// ScheduleSnapshot is the persisted form of a user's blocks and view state.
type ScheduleSnapshot struct {
	Version      int                  `json:"version"`
	Blocks       []planner.StudyBlock `json:"blocks"`
	SelectedDate string               `json:"selectedDate"`
	ViewMode     ViewMode             `json:"viewMode"`
	UserID       string               `json:"userId,omitempty"`
}

// ProgressSnapshot is the persisted form of a user's progress log.
type ProgressSnapshot struct {
	Version int             `json:"version"`
	Logs    []ProgressEntry `json:"logs"`
	UserID  string          `json:"userId,omitempty"`
}

// MigrateSchedule upgrades a decoded schedule snapshot to SnapshotVersion. A missing version
// is treated as version 1. It does not modify its input.
func MigrateSchedule(s ScheduleSnapshot) (ScheduleSnapshot, error) {
	if s.Version > SnapshotVersion {
		return ScheduleSnapshot{}, fmt.Errorf("schedule snapshot version %d: %w", s.Version, ErrStaleData)
	}

	out := s
	out.Blocks = append([]planner.StudyBlock(nil), s.Blocks...)

	if out.Version < 2 {
		for i := range out.Blocks {
			b := &out.Blocks[i]
			if b.Type == "" {
				b.Type = planner.BlockStudy
			}
			if b.Pomodoros == 0 {
				b.Pomodoros = b.Type.DefaultPomodoros()
			}
		}
	}

	if !out.ViewMode.Valid() {
		out.ViewMode = ViewWeek
	}
	out.Version = SnapshotVersion
	return out, nil
}

// MigrateProgress upgrades a decoded progress snapshot to SnapshotVersion.
func MigrateProgress(p ProgressSnapshot) (ProgressSnapshot, error) {
	if p.Version > SnapshotVersion {
		return ProgressSnapshot{}, fmt.Errorf("progress snapshot version %d: %w", p.Version, ErrStaleData)
	}

	out := p
	out.Logs = append([]ProgressEntry(nil), p.Logs...)
	out.Version = SnapshotVersion
	return out, nil
}

func decodeSchedule(data []byte) (ScheduleSnapshot, error) {
	var s ScheduleSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return ScheduleSnapshot{}, fmt.Errorf("decoding schedule snapshot: %w", err)
	}
	return MigrateSchedule(s)
}

func decodeProgress(data []byte) (ProgressSnapshot, error) {
	var p ProgressSnapshot
	if err := json.Unmarshal(data, &p); err != nil {
		return ProgressSnapshot{}, fmt.Errorf("decoding progress snapshot: %w", err)
	}
	return MigrateProgress(p)
}
