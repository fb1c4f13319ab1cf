package adherence_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/p-n-ai/pai-study/internal/adherence"
	"github.com/p-n-ai/pai-study/internal/planner"
	"github.com/p-n-ai/pai-study/internal/schedule"
)

func block(id, discipline, date, start, end string, typ planner.BlockType, done bool) planner.StudyBlock {
	return planner.StudyBlock{
		ID:           id,
		DisciplineID: discipline,
		Date:         date,
		Start:        start,
		End:          end,
		Type:         typ,
		Completed:    done,
	}
}

func study(id, date string, done bool) planner.StudyBlock {
	return block(id, "1", date, "06:00", "07:00", planner.BlockStudy, done)
}

func TestAdherence(t *testing.T) {
	tests := []struct {
		name   string
		blocks []planner.StudyBlock
		want   int
	}{
		{"no blocks", nil, 0},
		{"none done", []planner.StudyBlock{study("a", "2025-01-01", false)}, 0},
		{"all done", []planner.StudyBlock{study("a", "2025-01-01", true), study("b", "2025-01-02", true)}, 100},
		{"half", []planner.StudyBlock{study("a", "2025-01-01", true), study("b", "2025-01-02", false)}, 50},
		{"two of three", []planner.StudyBlock{study("a", "2025-01-01", true), study("b", "2025-01-02", true), study("c", "2025-01-03", false)}, 67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adherence.Adherence(tt.blocks); got != tt.want {
				t.Errorf("Adherence() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAdherence_Monotonic(t *testing.T) {
	blocks := make([]planner.StudyBlock, 7)
	for i := range blocks {
		blocks[i] = study(fmt.Sprint(i), "2025-01-01", false)
	}

	prev := adherence.Adherence(blocks)
	for i := range blocks {
		blocks[i].Completed = true
		got := adherence.Adherence(blocks)
		if got < prev {
			t.Fatalf("Adherence() dropped from %d to %d after completing block %d", prev, got, i)
		}
		prev = got
	}
	if prev != 100 {
		t.Errorf("Adherence() = %d with all completed, want 100", prev)
	}
}

func TestWeeklyStats(t *testing.T) {
	// 2025-01-08 is a Wednesday; its week runs Sunday 01-05 to Saturday 01-11.
	now := time.Date(2025, 1, 8, 15, 0, 0, 0, time.UTC)
	blocks := []planner.StudyBlock{
		block("a", "1", "2025-01-04", "06:00", "08:00", planner.BlockStudy, true), // previous Saturday
		block("b", "1", "2025-01-05", "06:00", "07:00", planner.BlockStudy, true),
		block("c", "2", "2025-01-08", "12:00", "12:30", planner.BlockReview, false),
		block("d", "2", "2025-01-11", "18:00", "19:40", planner.BlockStudy, false),
		block("e", "2", "2025-01-12", "18:00", "19:00", planner.BlockStudy, true), // next Sunday
	}

	got := adherence.WeeklyStats(blocks, now)
	if got.From != "2025-01-05" || got.To != "2025-01-11" {
		t.Errorf("window = %s..%s, want 2025-01-05..2025-01-11", got.From, got.To)
	}
	// 60 + 30 + 100 = 190 minutes planned, 60 completed.
	if got.PlannedHours != 3.2 {
		t.Errorf("PlannedHours = %v, want 3.2", got.PlannedHours)
	}
	if got.CompletedHours != 1 {
		t.Errorf("CompletedHours = %v, want 1", got.CompletedHours)
	}
}

func TestWeeklyStats_UsesLocalTime(t *testing.T) {
	brt := time.FixedZone("BRT", -3*60*60)
	// Saturday night locally, already Sunday in UTC.
	now := time.Date(2025, 1, 4, 23, 30, 0, 0, brt)

	got := adherence.WeeklyStats(nil, now)
	if got.From != "2024-12-29" || got.To != "2025-01-04" {
		t.Errorf("window = %s..%s, want 2024-12-29..2025-01-04", got.From, got.To)
	}

	sunday := adherence.WeeklyStats(nil, now.UTC())
	if sunday.From != "2025-01-05" {
		t.Errorf("UTC window starts %s, want 2025-01-05", sunday.From)
	}
}

func TestStudyStreak(t *testing.T) {
	now := time.Date(2025, 1, 10, 21, 0, 0, 0, time.UTC)

	run := func(dates ...string) []planner.StudyBlock {
		var out []planner.StudyBlock
		for i, d := range dates {
			out = append(out, study(fmt.Sprint(i), d, true))
		}
		return out
	}

	tests := []struct {
		name   string
		blocks []planner.StudyBlock
		want   int
	}{
		{"no completed blocks", []planner.StudyBlock{study("x", "2025-01-10", false)}, 0},
		{"five days ending today", run("2025-01-06", "2025-01-07", "2025-01-08", "2025-01-09", "2025-01-10"), 5},
		{"gap resets", run("2025-01-05", "2025-01-06", "2025-01-08", "2025-01-09", "2025-01-10"), 3},
		{"several blocks per day", run("2025-01-09", "2025-01-09", "2025-01-10"), 2},
		{"ends before today", run("2025-01-02", "2025-01-03"), 2},
		{"future completions ignored", run("2025-01-10", "2025-01-11", "2025-01-12"), 1},
		{"across month boundary", run("2024-12-30", "2024-12-31", "2025-01-01"), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adherence.StudyStreak(tt.blocks, now); got != tt.want {
				t.Errorf("StudyStreak() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDisciplineProgress(t *testing.T) {
	blocks := []planner.StudyBlock{
		block("a", "2", "2025-01-01", "06:00", "07:00", planner.BlockStudy, true),
		block("b", "1", "2025-01-01", "07:00", "08:00", planner.BlockStudy, false),
		block("c", "2", "2025-01-02", "06:00", "06:30", planner.BlockReview, true),
		block("d", "2", "2025-01-03", "06:00", "06:30", planner.BlockReview, false),
		block("e", "2", "2025-01-07", "06:00", "09:00", planner.BlockSimulatedExam, false),
	}

	got := adherence.DisciplineProgress(blocks)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].DisciplineID != "1" || got[0].Study != (adherence.Count{Total: 1}) {
		t.Errorf("discipline 1 = %+v", got[0])
	}

	d2 := got[1]
	if d2.Study != (adherence.Count{Total: 1, Completed: 1}) {
		t.Errorf("Study = %+v", d2.Study)
	}
	if d2.Review != (adherence.Count{Total: 2, Completed: 1}) {
		t.Errorf("Review = %+v", d2.Review)
	}
	if d2.SimulatedExam != (adherence.Count{Total: 1}) {
		t.Errorf("SimulatedExam = %+v", d2.SimulatedExam)
	}
	if d2.All != (adherence.Count{Total: 4, Completed: 2}) {
		t.Errorf("All = %+v", d2.All)
	}
}

func TestMonthlyStats(t *testing.T) {
	now := time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)
	blocks := []planner.StudyBlock{
		study("a", "2025-01-02", true),
		study("b", "2025-01-03", false), // reopened after being logged
		study("c", "2025-01-31", true),
		study("d", "2024-12-31", true),
	}
	logs := []schedule.ProgressEntry{
		{BlockID: "a", ActualMinutes: 40, CompletedAt: time.Date(2025, 1, 2, 7, 0, 0, 0, time.UTC)},
		{BlockID: "a", ActualMinutes: 50, CompletedAt: time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)},
		{BlockID: "b", ActualMinutes: 60, CompletedAt: time.Date(2025, 1, 3, 7, 0, 0, 0, time.UTC)},
		{BlockID: "c", ActualMinutes: 70, CompletedAt: time.Date(2025, 1, 18, 7, 0, 0, 0, time.UTC)},
		{BlockID: "d", ActualMinutes: 45, CompletedAt: time.Date(2024, 12, 31, 7, 0, 0, 0, time.UTC)},
		{BlockID: "gone", ActualMinutes: 20, CompletedAt: time.Date(2025, 1, 5, 7, 0, 0, 0, time.UTC)},
	}

	got := adherence.MonthlyStats(blocks, logs, now)
	if got.From != "2025-01-01" || got.To != "2025-01-31" {
		t.Errorf("window = %s..%s", got.From, got.To)
	}
	if got.PlannedHours != 3 {
		t.Errorf("PlannedHours = %v, want 3", got.PlannedHours)
	}
	// a (latest, 50) + c (70) + removed block (20) = 140 minutes.
	if got.CompletedHours != 2.3 {
		t.Errorf("CompletedHours = %v, want 2.3", got.CompletedHours)
	}
}
