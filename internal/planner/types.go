// Package planner turns disciplines, a weekly-hour budget and mastery ratings into
// concrete study blocks, and schedules the spaced reviews that follow a study block.
package planner

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used by blocks (ISO 8601).
const DateLayout = "2006-01-02"

// BlockType is the kind of a study block.
type BlockType string

const (
	BlockStudy         BlockType = "study"
	BlockReview        BlockType = "review"
	BlockSimulatedExam BlockType = "simulated_exam"
)

// Valid reports whether t is a known block type.
func (t BlockType) Valid() bool {
	switch t {
	case BlockStudy, BlockReview, BlockSimulatedExam:
		return true
	}
	return false
}

// DefaultPomodoros returns the pomodoro count a block of this type gets unless overridden.
func (t BlockType) DefaultPomodoros() int {
	switch t {
	case BlockSimulatedExam:
		return 3
	case BlockReview:
		return 1
	default:
		return 2
	}
}

// StudyBlock is one scheduled unit of study, review or simulated-exam time.
type StudyBlock struct {
	ID           string    `json:"id"`
	DisciplineID string    `json:"disciplineId"`
	Title        string    `json:"title"`
	Date         string    `json:"date"`      // YYYY-MM-DD
	Start        string    `json:"startTime"` // HH:MM
	End          string    `json:"endTime"`   // HH:MM
	Type         BlockType `json:"type"`
	Pomodoros    int       `json:"pomodoros"`
	Completed    bool      `json:"completed"`
	UserID       string    `json:"userId,omitempty"`

	// Set on reviews: the study block and day offset that produced them.
	SourceBlockID string `json:"sourceBlockId,omitempty"`
	ReviewOffset  int    `json:"reviewOffset,omitempty"`
}

// Minutes returns the planned duration of the block, or 0 if its times are malformed.
func (b StudyBlock) Minutes() int {
	start, err := ParseClock(b.Start)
	if err != nil {
		return 0
	}
	end, err := ParseClock(b.End)
	if err != nil || end <= start {
		return 0
	}
	return end - start
}

// Validate checks the block's structural invariants.
func (b StudyBlock) Validate() error {
	if b.DisciplineID == "" {
		return fmt.Errorf("disciplineId is required")
	}
	if _, err := time.Parse(DateLayout, b.Date); err != nil {
		return fmt.Errorf("invalid date %q", b.Date)
	}
	start, err := ParseClock(b.Start)
	if err != nil {
		return err
	}
	end, err := ParseClock(b.End)
	if err != nil {
		return err
	}
	if end <= start {
		return fmt.Errorf("end %s must be after start %s", b.End, b.Start)
	}
	if !b.Type.Valid() {
		return fmt.Errorf("unknown block type %q", b.Type)
	}
	if b.Pomodoros < 0 {
		return fmt.Errorf("pomodoros must not be negative")
	}
	return nil
}

// Overlaps reports whether two blocks of the same user share time on the same date.
func (b StudyBlock) Overlaps(o StudyBlock) bool {
	if b.Date != o.Date || b.UserID != o.UserID {
		return false
	}
	bs, be, ok1 := b.span()
	ostart, oend, ok2 := o.span()
	if !ok1 || !ok2 {
		return false
	}
	return bs < oend && ostart < be
}

// StartsAt returns the block's start instant in loc.
func (b StudyBlock) StartsAt(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, b.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	start, err := ParseClock(b.Start)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(start) * time.Minute), nil
}

func (b StudyBlock) span() (int, int, bool) {
	start, err := ParseClock(b.Start)
	if err != nil {
		return 0, 0, false
	}
	end, err := ParseClock(b.End)
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// ParseClock parses a wall-clock "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock formats minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate parses a block date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

// AddDays shifts a block date by n calendar days.
func AddDays(date string, n int) (string, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q", date)
	}
	return d.AddDate(0, 0, n).Format(DateLayout), nil
}
