// Package catalog holds the read-only discipline reference data consumed by the planner.
package catalog

import (
	"fmt"
	"strings"
)

// Level is the difficulty level of a discipline.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// ParseLevel accepts a level name in any case. An empty string maps to beginner.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case "", LevelBeginner:
		return LevelBeginner, nil
	case LevelIntermediate:
		return LevelIntermediate, nil
	case LevelAdvanced:
		return LevelAdvanced, nil
	}
	return "", fmt.Errorf("unknown level %q", s)
}

// Discipline is a subject a candidate studies for an exam board.
type Discipline struct {
	ID              string   `yaml:"id" json:"id"`
	Name            string   `yaml:"name" json:"name"`
	Board           string   `yaml:"board" json:"board"`
	Level           Level    `yaml:"level" json:"level"`
	DefaultDuration int      `yaml:"duration" json:"defaultDuration"` // minutes per study session
	Tags            []string `yaml:"tags" json:"tags,omitempty"`
	Prerequisites   []string `yaml:"prerequisites" json:"prerequisites,omitempty"`
}

// Source is the lookup the planner needs from a catalog.
type Source interface {
	Get(id string) (Discipline, bool)
}

// file is the on-disk YAML layout: a single discipline or a list under "disciplines".
type file struct {
	Discipline  `yaml:",inline"`
	Disciplines []Discipline `yaml:"disciplines"`
}
