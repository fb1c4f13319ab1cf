package adherence_test

import (
	"testing"
	"time"

	"github.com/p-n-ai/pai-study/internal/adherence"
	"github.com/p-n-ai/pai-study/internal/planner"
	"github.com/p-n-ai/pai-study/internal/schedule"
)

func TestCompute(t *testing.T) {
	now := time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC)
	blocks := []planner.StudyBlock{
		block("s1", "1", "2025-01-06", "06:00", "07:00", planner.BlockStudy, true),
		block("s2", "2", "2025-01-07", "06:00", "07:00", planner.BlockStudy, true),
		block("r1", "1", "2025-01-07", "07:00", "07:30", planner.BlockReview, true),
		block("r2", "2", "2025-01-07", "12:00", "12:30", planner.BlockReview, false), // overdue
		block("r3", "1", "2025-01-08", "12:00", "12:30", planner.BlockReview, false), // due today
		block("r4", "2", "2025-01-10", "12:00", "12:30", planner.BlockReview, false),
		block("s3", "3", "2025-01-20", "06:00", "07:00", planner.BlockStudy, false),
	}
	logs := []schedule.ProgressEntry{
		{BlockID: "s1", ActualMinutes: 60, CompletedAt: time.Date(2025, 1, 6, 7, 0, 0, 0, time.UTC)},
		{BlockID: "s2", ActualMinutes: 45, CompletedAt: time.Date(2025, 1, 7, 7, 0, 0, 0, time.UTC)},
		{BlockID: "r1", ActualMinutes: 15, CompletedAt: time.Date(2025, 1, 7, 8, 0, 0, 0, time.UTC)},
	}

	k := adherence.Compute(blocks, logs, now)

	if k.Adherence != 43 {
		t.Errorf("Adherence = %d, want 43", k.Adherence)
	}
	if k.WeeklyHours != 4 {
		t.Errorf("WeeklyHours = %v, want 4", k.WeeklyHours)
	}
	if k.WeeklyCompletedHours != 2.5 {
		t.Errorf("WeeklyCompletedHours = %v, want 2.5", k.WeeklyCompletedHours)
	}
	if k.MonthlyHours != 2 {
		t.Errorf("MonthlyHours = %v, want 2", k.MonthlyHours)
	}
	if k.ActiveDisciplines != 2 {
		t.Errorf("ActiveDisciplines = %d, want 2", k.ActiveDisciplines)
	}
	if k.ReviewsUpToDate != 1 {
		t.Errorf("ReviewsUpToDate = %d, want 1", k.ReviewsUpToDate)
	}
	if k.OverdueReviews != 1 {
		t.Errorf("OverdueReviews = %d, want 1", k.OverdueReviews)
	}
	if k.Streak != 2 {
		t.Errorf("Streak = %d, want 2", k.Streak)
	}
	if k.TotalBlocks != 7 || k.CompletedBlocks != 3 {
		t.Errorf("blocks = %d/%d, want 3/7", k.CompletedBlocks, k.TotalBlocks)
	}
}

func TestCompute_Empty(t *testing.T) {
	k := adherence.Compute(nil, nil, time.Now())
	if k != (adherence.KPIs{}) {
		t.Errorf("Compute(nil) = %+v, want zero KPIs", k)
	}
}

func TestInsights(t *testing.T) {
	tests := []struct {
		name string
		kpis adherence.KPIs
		want []string
	}{
		{"low adherence", adherence.KPIs{Adherence: 59, WeeklyHours: 10}, []string{"low_adherence"}},
		{"middle ground", adherence.KPIs{Adherence: 70, WeeklyHours: 40}, []string{}},
		{"excellent and overloaded", adherence.KPIs{Adherence: 80, WeeklyHours: 40.1}, []string{"high_load", "excellent_adherence"}},
		{"low and overloaded", adherence.KPIs{Adherence: 10, WeeklyHours: 50}, []string{"low_adherence", "high_load"}},
		{"overdue and streak", adherence.KPIs{Adherence: 90, OverdueReviews: 2, Streak: 7}, []string{"excellent_adherence", "overdue_reviews", "week_streak"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adherence.Insights(tt.kpis)
			if len(got) != len(tt.want) {
				t.Fatalf("Insights() = %+v, want rules %v", got, tt.want)
			}
			for i, in := range got {
				if in.Rule != tt.want[i] {
					t.Errorf("insight %d rule = %s, want %s", i, in.Rule, tt.want[i])
				}
				if in.Message == "" {
					t.Errorf("insight %d has empty message", i)
				}
			}
		})
	}
}

func TestInsights_Kinds(t *testing.T) {
	got := adherence.Insights(adherence.KPIs{Adherence: 50, WeeklyHours: 45})
	if got[0].Kind != adherence.KindWarning || got[1].Kind != adherence.KindSuggestion {
		t.Errorf("kinds = %s, %s; want warning, suggestion", got[0].Kind, got[1].Kind)
	}
}

func TestEvaluate_CustomRules(t *testing.T) {
	rules := append([]adherence.Rule{}, adherence.DefaultRules...)
	rules = append(rules, adherence.Rule{
		Name:    "no_reviews_yet",
		Kind:    adherence.KindSuggestion,
		When:    func(k adherence.KPIs) bool { return k.ReviewsUpToDate == 0 },
		Message: func(adherence.KPIs) string { return "Complete a study block to unlock reviews." },
	})

	got := adherence.Evaluate(rules, adherence.KPIs{Adherence: 65})
	if len(got) != 1 || got[0].Rule != "no_reviews_yet" {
		t.Errorf("Evaluate() = %+v, want only no_reviews_yet", got)
	}
}

func TestEngine_Memoizes(t *testing.T) {
	e := adherence.NewEngine()
	now := time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC)
	blocks := []planner.StudyBlock{study("a", "2025-01-08", true)}

	first := e.Report(blocks, nil, now)
	second := e.Report(blocks, nil, now.Add(2*time.Hour))
	if e.Hits() != 1 {
		t.Errorf("Hits() = %d, want 1", e.Hits())
	}
	if first.KPIs != second.KPIs {
		t.Errorf("memoized KPIs differ: %+v vs %+v", first.KPIs, second.KPIs)
	}

	blocks[0].Completed = false
	third := e.Report(blocks, nil, now)
	if e.Hits() != 1 {
		t.Errorf("Hits() = %d after changing blocks, want 1", e.Hits())
	}
	if third.KPIs.Adherence != 0 {
		t.Errorf("Adherence = %d, want 0 after reopening", third.KPIs.Adherence)
	}

	if got := adherence.Build(blocks, nil, now); got.KPIs != third.KPIs {
		t.Errorf("Build() = %+v, want %+v", got.KPIs, third.KPIs)
	}
}
