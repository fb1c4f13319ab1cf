package planner

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-study/internal/catalog"
)

const defaultLookAheadDays = 7

// DefaultReviewOffsets is the 1-3-7 spaced repetition cadence, in days after the study block.
var DefaultReviewOffsets = []int{1, 3, 7}

// ReviewConfig holds the review scheduler's parameters.
type ReviewConfig struct {
	Catalog         catalog.Source
	Slots           SlotCatalog
	Offsets         []int
	LookAheadDays   int // days past the target date to search for a slot (default 7)
	PomodoroMinutes int
	NewID           func() string
}

// ReviewScheduler creates the review blocks that follow a completed study block.
type ReviewScheduler struct {
	catalog         catalog.Source
	slots           SlotCatalog
	offsets         []int
	lookAhead       int
	pomodoroMinutes int
	newID           func() string
}

// ReviewResult lists the reviews created and the offsets that found no slot.
type ReviewResult struct {
	Blocks  []StudyBlock `json:"blocks"`
	Skipped []Skip       `json:"skipped,omitempty"`
}

// NewReviewScheduler creates a review scheduler, filling unset config with defaults.
// A zero LookAheadDays means the default; use a negative value to search the target day only.
func NewReviewScheduler(cfg ReviewConfig) *ReviewScheduler {
	r := &ReviewScheduler{
		catalog:         cfg.Catalog,
		slots:           cfg.Slots,
		offsets:         cfg.Offsets,
		lookAhead:       cfg.LookAheadDays,
		pomodoroMinutes: cfg.PomodoroMinutes,
		newID:           cfg.NewID,
	}
	if len(r.slots) == 0 {
		r.slots = DefaultSlots()
	}
	if len(r.offsets) == 0 {
		r.offsets = DefaultReviewOffsets
	}
	if r.lookAhead == 0 {
		r.lookAhead = defaultLookAheadDays
	}
	if r.lookAhead < 0 {
		r.lookAhead = 0
	}
	if r.pomodoroMinutes <= 0 {
		r.pomodoroMinutes = defaultPomodoroMinutes
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	return r
}

// OnCompletion returns the reviews owed for a completed study block. Offsets already covered
// by a review in existing are skipped silently, so calling it again for the same block creates
// nothing new. Blocks that are not completed study blocks produce no reviews.
func (r *ReviewScheduler) OnCompletion(block StudyBlock, existing []StudyBlock) (ReviewResult, error) {
	var res ReviewResult
	if block.Type != BlockStudy || !block.Completed {
		return res, nil
	}
	if block.ID == "" {
		return res, fmt.Errorf("study block has no id")
	}

	covered := make(map[int]bool)
	for _, b := range existing {
		if b.Type == BlockReview && b.SourceBlockID == block.ID {
			covered[b.ReviewOffset] = true
		}
	}

	occupied := append([]StudyBlock(nil), existing...)
	duration := BlockReview.DefaultPomodoros() * r.pomodoroMinutes
	title := Title(BlockReview, r.disciplineName(block.DisciplineID))

	for _, offset := range r.offsets {
		if covered[offset] {
			continue
		}

		target, err := AddDays(block.Date, offset)
		if err != nil {
			return ReviewResult{}, err
		}

		date, start, ok := r.findSlot(occupied, target, block.UserID, duration)
		if !ok {
			res.Skipped = append(res.Skipped, Skip{
				DisciplineID: block.DisciplineID,
				Type:         BlockReview,
				Date:         target,
				Offset:       offset,
				Reason:       fmt.Sprintf("no free slot within %d days of the target date", r.lookAhead),
			})
			slog.Warn("review skipped",
				"block_id", block.ID,
				"offset", offset,
				"target", target,
			)
			continue
		}

		review := StudyBlock{
			ID:            r.newID(),
			DisciplineID:  block.DisciplineID,
			Title:         title,
			Date:          date,
			Start:         FormatClock(start),
			End:           FormatClock(start + duration),
			Type:          BlockReview,
			Pomodoros:     BlockReview.DefaultPomodoros(),
			UserID:        block.UserID,
			SourceBlockID: block.ID,
			ReviewOffset:  offset,
		}
		res.Blocks = append(res.Blocks, review)
		occupied = append(occupied, review)
	}

	return res, nil
}

// findSlot tries the target date, then each following day up to the look-ahead bound.
func (r *ReviewScheduler) findSlot(occupied []StudyBlock, target, userID string, duration int) (string, int, bool) {
	for d := 0; d <= r.lookAhead; d++ {
		date, err := AddDays(target, d)
		if err != nil {
			return "", 0, false
		}
		if start, ok := r.slots.find(busyOn(occupied, date, userID), duration); ok {
			return date, start, true
		}
	}
	return "", 0, false
}

func (r *ReviewScheduler) disciplineName(id string) string {
	if r.catalog != nil {
		if d, ok := r.catalog.Get(id); ok {
			return d.Name
		}
	}
	return id
}
