package planner

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var typeLabels = map[BlockType]string{
	BlockStudy:         "Study",
	BlockReview:        "Review",
	BlockSimulatedExam: "Simulated exam",
}

// Title derives the human-readable title of a block. All-lowercase discipline names
// (typical of spreadsheet imports) are title-cased; anything else is kept as written.
func Title(t BlockType, disciplineName string) string {
	name := strings.TrimSpace(disciplineName)
	if name == strings.ToLower(name) {
		name = cases.Title(language.Und).String(name)
	}
	label, ok := typeLabels[t]
	if !ok {
		label = string(t)
	}
	if name == "" {
		return label
	}
	return label + " · " + name
}
