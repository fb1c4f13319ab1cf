package planner

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Canonical template names.
const (
	TemplateIntensive     = "intensive"
	TemplateBalanced      = "balanced"
	TemplateReviewFocused = "review_focused"
)

// Template is a named intensity profile.
type Template struct {
	Name          string  `yaml:"name" json:"name"`
	WeeklyHours   float64 `yaml:"weekly_hours" json:"weeklyHours"`
	StudyRatio    float64 `yaml:"study_ratio" json:"studyRatio"`        // share of weekly time for new study
	ExamEveryDays int     `yaml:"exam_every_days" json:"examEveryDays"` // 0 disables simulated exams
}

// Templates indexes templates by normalized name.
type Templates map[string]Template

// DefaultTemplates returns the three canonical templates.
func DefaultTemplates() Templates {
	return Templates{
		TemplateIntensive:     {Name: TemplateIntensive, WeeklyHours: 30, StudyRatio: 0.7, ExamEveryDays: 3},
		TemplateBalanced:      {Name: TemplateBalanced, WeeklyHours: 20, StudyRatio: 0.6, ExamEveryDays: 7},
		TemplateReviewFocused: {Name: TemplateReviewFocused, WeeklyHours: 15, StudyRatio: 0.3, ExamEveryDays: 5},
	}
}

// LoadTemplates reads YAML overrides keyed by template name and merges them over the defaults.
// An empty path returns the defaults.
func LoadTemplates(path string) (Templates, error) {
	templates := DefaultTemplates()
	if path == "" {
		return templates, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading templates: %w", err)
	}

	var overrides map[string]Template
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	for name, t := range overrides {
		key := normalizeTemplateName(name)
		t.Name = key
		if base, ok := templates[key]; ok {
			if t.WeeklyHours == 0 {
				t.WeeklyHours = base.WeeklyHours
			}
			if t.StudyRatio == 0 {
				t.StudyRatio = base.StudyRatio
			}
			if t.ExamEveryDays == 0 {
				t.ExamEveryDays = base.ExamEveryDays
			}
		}
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("template %s: %w", key, err)
		}
		templates[key] = t
	}
	return templates, nil
}

// Lookup finds a template by name, ignoring case and "-" vs "_".
func (ts Templates) Lookup(name string) (Template, bool) {
	t, ok := ts[normalizeTemplateName(name)]
	return t, ok
}

// List returns the templates ordered by name.
func (ts Templates) List() []Template {
	out := make([]Template, 0, len(ts))
	for _, t := range ts {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t Template) validate() error {
	if t.StudyRatio < 0 || t.StudyRatio > 1 {
		return fmt.Errorf("study_ratio must be within [0,1], got %v", t.StudyRatio)
	}
	if t.ExamEveryDays < 0 {
		return fmt.Errorf("exam_every_days must not be negative, got %d", t.ExamEveryDays)
	}
	if t.WeeklyHours < 0 {
		return fmt.Errorf("weekly_hours must not be negative, got %v", t.WeeklyHours)
	}
	return nil
}

func normalizeTemplateName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}
