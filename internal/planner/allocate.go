package planner

import (
	"math"
	"sort"
)

// MaxMastery is the highest self-assessed mastery rating; ratings run 1..MaxMastery.
const MaxMastery = 5

// DisciplineRating is a self-assessed mastery rating for one discipline.
type DisciplineRating struct {
	DisciplineID string `json:"id"`
	Mastery      int    `json:"mastery"`
}

// Allocation is the weekly study time assigned to one discipline.
type Allocation struct {
	DisciplineID  string `json:"disciplineId"`
	Mastery       int    `json:"mastery"`
	Weight        int    `json:"weight"`
	WeeklyMinutes int    `json:"weeklyMinutes"`
}

// Budget is the weekly split between new study and review.
type Budget struct {
	WeeklyMinutes int          `json:"weeklyMinutes"`
	StudyMinutes  int          `json:"studyMinutes"`
	ReviewMinutes int          `json:"reviewMinutes"`
	Allocations   []Allocation `json:"allocations"`
}

// Weight returns the inverse-mastery weight: mastery 1 weighs 5, mastery 5 weighs 1.
func Weight(mastery int) int {
	return MaxMastery + 1 - mastery
}

// Allocate splits weeklyHours by studyRatio and shares the study pool among the rated
// disciplines in proportion to their weights. Minutes are whole numbers whose sum equals
// the study pool exactly (largest remainder rounding). Ratings must already be validated.
func Allocate(weeklyHours, studyRatio float64, ratings []DisciplineRating) Budget {
	weekly := int(math.Round(weeklyHours * 60))
	study := int(math.Round(float64(weekly) * studyRatio))
	b := Budget{
		WeeklyMinutes: weekly,
		StudyMinutes:  study,
		ReviewMinutes: weekly - study,
		Allocations:   make([]Allocation, len(ratings)),
	}

	total := 0
	for _, r := range ratings {
		total += Weight(r.Mastery)
	}
	if total == 0 {
		return b
	}

	type share struct {
		idx  int
		frac float64
	}
	shares := make([]share, len(ratings))
	assigned := 0
	for i, r := range ratings {
		w := Weight(r.Mastery)
		exact := float64(study) * float64(w) / float64(total)
		whole := int(math.Floor(exact))
		b.Allocations[i] = Allocation{
			DisciplineID:  r.DisciplineID,
			Mastery:       r.Mastery,
			Weight:        w,
			WeeklyMinutes: whole,
		}
		shares[i] = share{idx: i, frac: exact - float64(whole)}
		assigned += whole
	}

	sort.SliceStable(shares, func(i, j int) bool { return shares[i].frac > shares[j].frac })
	for i := 0; i < study-assigned; i++ {
		b.Allocations[shares[i%len(shares)].idx].WeeklyMinutes++
	}
	return b
}
