package adherence

import (
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/pai-study/internal/planner"
	"github.com/p-n-ai/pai-study/internal/schedule"
)

// KPIs is the derived progress snapshot. It is never persisted.
type KPIs struct {
	WeeklyHours          float64 `json:"weeklyHours"` // planned this week
	WeeklyCompletedHours float64 `json:"weeklyCompletedHours"`
	MonthlyHours         float64 `json:"monthlyHours"` // actual, from the progress log
	ActiveDisciplines    int     `json:"activeDisciplines"`
	Adherence            int     `json:"adherence"`
	ReviewsUpToDate      int     `json:"reviewsUpToDate"`
	OverdueReviews       int     `json:"overdueReviews"`
	Streak               int     `json:"streak"`
	TotalBlocks          int     `json:"totalBlocks"`
	CompletedBlocks      int     `json:"completedBlocks"`
}

// Report bundles the KPIs with the data they were derived from.
type Report struct {
	KPIs        KPIs              `json:"kpis"`
	Week        Period            `json:"week"`
	Month       Period            `json:"month"`
	Disciplines []DisciplineStats `json:"disciplines"`
	Insights    []Insight         `json:"insights"`
}

// Compute derives the KPI snapshot at now. Dates are interpreted in now's location.
//
// Active disciplines are those with a block in the current week. Reviews due on or before
// today count as up to date when completed and overdue otherwise.
func Compute(blocks []planner.StudyBlock, logs []schedule.ProgressEntry, now time.Time) KPIs {
	week := WeeklyStats(blocks, now)
	month := MonthlyStats(blocks, logs, now)
	today := midnight(now).Format(planner.DateLayout)

	k := KPIs{
		WeeklyHours:          week.PlannedHours,
		WeeklyCompletedHours: week.CompletedHours,
		MonthlyHours:         month.CompletedHours,
		Adherence:            Adherence(blocks),
		Streak:               StudyStreak(blocks, now),
		TotalBlocks:          len(blocks),
	}

	active := make(map[string]bool)
	for _, b := range blocks {
		if b.Completed {
			k.CompletedBlocks++
		}
		if b.Date >= week.From && b.Date <= week.To {
			active[b.DisciplineID] = true
		}
		if b.Type == planner.BlockReview && b.Date <= today {
			if b.Completed {
				k.ReviewsUpToDate++
			} else if b.Date < today {
				k.OverdueReviews++
			}
		}
	}
	k.ActiveDisciplines = len(active)
	return k
}

// Build computes the full report at now.
func Build(blocks []planner.StudyBlock, logs []schedule.ProgressEntry, now time.Time) Report {
	k := Compute(blocks, logs, now)
	return Report{
		KPIs:        k,
		Week:        WeeklyStats(blocks, now),
		Month:       MonthlyStats(blocks, logs, now),
		Disciplines: DisciplineProgress(blocks),
		Insights:    Insights(k),
	}
}

const maxMemo = 256

// Engine memoizes reports by a content hash of (blocks, logs, day, location). Build stays the
// source of truth; the memo only skips recomputation for identical inputs.
type Engine struct {
	mu   sync.Mutex
	memo map[[32]byte]Report
	hits int
}

// NewEngine creates an engine with an empty memo.
func NewEngine() *Engine {
	return &Engine{memo: make(map[[32]byte]Report)}
}

// Report returns the report for the inputs, computing it on a memo miss.
func (e *Engine) Report(blocks []planner.StudyBlock, logs []schedule.ProgressEntry, now time.Time) Report {
	key, ok := memoKey(blocks, logs, now)
	if !ok {
		return Build(blocks, logs, now)
	}

	e.mu.Lock()
	if r, ok := e.memo[key]; ok {
		e.hits++
		e.mu.Unlock()
		return r
	}
	e.mu.Unlock()

	r := Build(blocks, logs, now)

	e.mu.Lock()
	if len(e.memo) >= maxMemo {
		clear(e.memo)
	}
	e.memo[key] = r
	e.mu.Unlock()
	return r
}

// Hits returns how many reports were served from the memo.
func (e *Engine) Hits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hits
}

func memoKey(blocks []planner.StudyBlock, logs []schedule.ProgressEntry, now time.Time) ([32]byte, bool) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return [32]byte{}, false
	}
	enc := json.NewEncoder(h)
	if err := enc.Encode(blocks); err != nil {
		return [32]byte{}, false
	}
	if err := enc.Encode(logs); err != nil {
		return [32]byte{}, false
	}
	if err := enc.Encode([]string{midnight(now).Format(planner.DateLayout), now.Location().String()}); err != nil {
		return [32]byte{}, false
	}

	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key, true
}
