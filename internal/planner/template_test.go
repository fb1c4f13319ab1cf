package planner_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/p-n-ai/pai-study/internal/planner"
)

func TestTemplates_Lookup(t *testing.T) {
	ts := planner.DefaultTemplates()

	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"balanced", planner.TemplateBalanced, true},
		{"Intensive", planner.TemplateIntensive, true},
		{"review-focused", planner.TemplateReviewFocused, true},
		{" REVIEW_FOCUSED ", planner.TemplateReviewFocused, true},
		{"cram", "", false},
	}

	for _, tt := range tests {
		got, ok := ts.Lookup(tt.name)
		if ok != tt.wantOK || got.Name != tt.want {
			t.Errorf("Lookup(%q) = (%q, %v), want (%q, %v)", tt.name, got.Name, ok, tt.want, tt.wantOK)
		}
	}
}

func TestTemplates_List(t *testing.T) {
	list := planner.DefaultTemplates().List()
	if len(list) != 3 {
		t.Fatalf("List() = %d templates, want 3", len(list))
	}
	if list[0].Name != "balanced" || list[1].Name != "intensive" || list[2].Name != "review_focused" {
		t.Errorf("List() order = %s, %s, %s", list[0].Name, list[1].Name, list[2].Name)
	}
}

func TestLoadTemplates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "templates.yaml")
	content := `
balanced:
  study_ratio: 0.5
weekend-warrior:
  weekly_hours: 12
  study_ratio: 0.8
  exam_every_days: 14
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ts, err := planner.LoadTemplates(path)
	if err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}

	balanced, _ := ts.Lookup("balanced")
	if balanced.StudyRatio != 0.5 {
		t.Errorf("balanced StudyRatio = %v, want 0.5", balanced.StudyRatio)
	}
	if balanced.ExamEveryDays != 7 {
		t.Errorf("balanced ExamEveryDays = %d, want 7 kept from default", balanced.ExamEveryDays)
	}

	ww, ok := ts.Lookup("weekend_warrior")
	if !ok {
		t.Fatal("weekend_warrior template not loaded")
	}
	if ww.WeeklyHours != 12 || ww.ExamEveryDays != 14 {
		t.Errorf("weekend_warrior = %+v", ww)
	}
}

func TestLoadTemplates_Errors(t *testing.T) {
	if _, err := planner.LoadTemplates(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadTemplates() error = nil for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("intensive:\n  study_ratio: 1.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := planner.LoadTemplates(path); err == nil {
		t.Error("LoadTemplates() error = nil for study_ratio > 1")
	}

	ts, err := planner.LoadTemplates("")
	if err != nil || len(ts) != 3 {
		t.Errorf("LoadTemplates(\"\") = %d templates, %v; want defaults", len(ts), err)
	}
}
