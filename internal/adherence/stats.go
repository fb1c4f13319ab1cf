// Package adherence derives progress KPIs and advisory insights from a user's blocks and
// progress log. Every function is pure: results depend only on the arguments.
package adherence

import (
	"math"
	"sort"
	"time"

	"github.com/p-n-ai/pai-study/internal/planner"
	"github.com/p-n-ai/pai-study/internal/schedule"
)

// Period is a planned/completed hour summary over a calendar range (inclusive dates).
type Period struct {
	From           string  `json:"from"`
	To             string  `json:"to"`
	PlannedHours   float64 `json:"plannedHours"`
	CompletedHours float64 `json:"completedHours"`
}

// Count is a total/completed pair.
type Count struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

func (c *Count) add(completed bool) {
	c.Total++
	if completed {
		c.Completed++
	}
}

// DisciplineStats breaks one discipline's blocks down by type.
type DisciplineStats struct {
	DisciplineID  string `json:"disciplineId"`
	Study         Count  `json:"study"`
	Review        Count  `json:"review"`
	SimulatedExam Count  `json:"simulatedExam"`
	All           Count  `json:"all"`
}

// Adherence returns the percentage of blocks completed, rounded to the nearest integer.
// It is 0 when there are no blocks.
func Adherence(blocks []planner.StudyBlock) int {
	if len(blocks) == 0 {
		return 0
	}
	done := 0
	for _, b := range blocks {
		if b.Completed {
			done++
		}
	}
	return int(math.Round(float64(done) * 100 / float64(len(blocks))))
}

// WeeklyStats sums the calendar week containing now, Sunday through Saturday in now's location.
func WeeklyStats(blocks []planner.StudyBlock, now time.Time) Period {
	today := midnight(now)
	start := today.AddDate(0, 0, -int(today.Weekday()))
	return periodStats(blocks, start, start.AddDate(0, 0, 6))
}

// MonthlyStats sums the calendar month containing now. Completed hours come from the progress
// log so they reflect actual minutes; only the latest entry per block counts, and blocks that
// have since been reopened are left out.
func MonthlyStats(blocks []planner.StudyBlock, logs []schedule.ProgressEntry, now time.Time) Period {
	today := midnight(now)
	start := today.AddDate(0, 0, 1-today.Day())
	end := start.AddDate(0, 1, -1)

	p := periodStats(blocks, start, end)

	completed := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		completed[b.ID] = b.Completed
	}

	latest := make(map[string]schedule.ProgressEntry)
	for _, e := range logs {
		if prev, ok := latest[e.BlockID]; !ok || !e.CompletedAt.Before(prev.CompletedAt) {
			latest[e.BlockID] = e
		}
	}

	minutes := 0
	for id, e := range latest {
		if done, known := completed[id]; known && !done {
			continue
		}
		at := e.CompletedAt.In(now.Location())
		if at.Before(start) || !at.Before(end.AddDate(0, 0, 1)) {
			continue
		}
		minutes += e.ActualMinutes
	}
	p.CompletedHours = hours(minutes)
	return p
}

// StudyStreak counts consecutive days with at least one completed block, walking back from
// the most recent completed block dated on or before today. It is 0 without completed blocks.
func StudyStreak(blocks []planner.StudyBlock, now time.Time) int {
	today := midnight(now).Format(planner.DateLayout)

	days := make(map[string]bool)
	latest := ""
	for _, b := range blocks {
		if !b.Completed || b.Date > today {
			continue
		}
		days[b.Date] = true
		if b.Date > latest {
			latest = b.Date
		}
	}
	if latest == "" {
		return 0
	}

	streak := 0
	for day := latest; days[day]; streak++ {
		prev, err := planner.AddDays(day, -1)
		if err != nil {
			break
		}
		day = prev
	}
	return streak
}

// DisciplineProgress counts total and completed blocks per discipline and type, ordered by id.
func DisciplineProgress(blocks []planner.StudyBlock) []DisciplineStats {
	byID := make(map[string]*DisciplineStats)
	for _, b := range blocks {
		s, ok := byID[b.DisciplineID]
		if !ok {
			s = &DisciplineStats{DisciplineID: b.DisciplineID}
			byID[b.DisciplineID] = s
		}
		switch b.Type {
		case planner.BlockStudy:
			s.Study.add(b.Completed)
		case planner.BlockReview:
			s.Review.add(b.Completed)
		case planner.BlockSimulatedExam:
			s.SimulatedExam.add(b.Completed)
		}
		s.All.add(b.Completed)
	}

	out := make([]DisciplineStats, 0, len(byID))
	for _, s := range byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisciplineID < out[j].DisciplineID })
	return out
}

func periodStats(blocks []planner.StudyBlock, start, end time.Time) Period {
	from, to := start.Format(planner.DateLayout), end.Format(planner.DateLayout)
	planned, completed := 0, 0
	for _, b := range blocks {
		if b.Date < from || b.Date > to {
			continue
		}
		m := b.Minutes()
		planned += m
		if b.Completed {
			completed += m
		}
	}
	return Period{
		From:           from,
		To:             to,
		PlannedHours:   hours(planned),
		CompletedHours: hours(completed),
	}
}

// hours converts minutes to hours rounded to one decimal.
func hours(minutes int) float64 {
	return math.Round(float64(minutes)/6) / 10
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
