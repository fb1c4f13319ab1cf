package adherence

import "fmt"

// Kind classifies an insight.
type Kind string

const (
	KindWarning     Kind = "warning"
	KindSuggestion  Kind = "suggestion"
	KindAchievement Kind = "achievement"
)

// Insight is an advisory message derived from a KPI snapshot.
type Insight struct {
	Rule    string `json:"rule"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Rule pairs a predicate with the message it produces. Rules are evaluated independently.
type Rule struct {
	Name    string
	Kind    Kind
	When    func(KPIs) bool
	Message func(KPIs) string
}

// DefaultRules is the built-in insight rule table.
var DefaultRules = []Rule{
	{
		Name:    "low_adherence",
		Kind:    KindWarning,
		When:    func(k KPIs) bool { return k.Adherence < 60 },
		Message: func(k KPIs) string { return fmt.Sprintf("Adherence is %d%%. Consider reducing your load by about 10%%.", k.Adherence) },
	},
	{
		Name:    "high_load",
		Kind:    KindSuggestion,
		When:    func(k KPIs) bool { return k.WeeklyHours > 40 },
		Message: func(k KPIs) string { return fmt.Sprintf("%.1f hours planned this week. Make sure to include rest.", k.WeeklyHours) },
	},
	{
		Name:    "excellent_adherence",
		Kind:    KindAchievement,
		When:    func(k KPIs) bool { return k.Adherence >= 80 },
		Message: func(k KPIs) string { return fmt.Sprintf("Excellent adherence at %d%%. Keep it up!", k.Adherence) },
	},
	{
		Name: "overdue_reviews",
		Kind: KindWarning,
		When: func(k KPIs) bool { return k.OverdueReviews > 0 },
		Message: func(k KPIs) string {
			return fmt.Sprintf("%d review(s) are overdue. Catch up before new material.", k.OverdueReviews)
		},
	},
	{
		Name:    "week_streak",
		Kind:    KindAchievement,
		When:    func(k KPIs) bool { return k.Streak >= 7 },
		Message: func(k KPIs) string { return fmt.Sprintf("%d days in a row. Great consistency!", k.Streak) },
	},
}

// Insights evaluates DefaultRules against k.
func Insights(k KPIs) []Insight {
	return Evaluate(DefaultRules, k)
}

// Evaluate returns an insight for every rule whose predicate holds, in rule order.
func Evaluate(rules []Rule, k KPIs) []Insight {
	out := []Insight{}
	for _, r := range rules {
		if r.When(k) {
			out = append(out, Insight{Rule: r.Name, Kind: r.Kind, Message: r.Message(k)})
		}
	}
	return out
}
