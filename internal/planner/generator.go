package planner

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-study/internal/catalog"
)

const (
	defaultPomodoroMinutes = 30
	defaultStudyDays       = 7
	minBlockMinutes        = 15
)

// PlanSettings is the input of plan generation.
type PlanSettings struct {
	UserID      string             `json:"userId,omitempty"`
	WeeklyHours float64            `json:"weeklyHours"`
	ExamDate    string             `json:"examDate,omitempty"`
	StartDate   string             `json:"startDate,omitempty"` // defaults to today
	Template    string             `json:"template,omitempty"`
	Disciplines []DisciplineRating `json:"disciplines"`
}

// Summary describes a generated plan.
type Summary struct {
	Template       string `json:"template"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	HorizonDays    int    `json:"horizonDays"`
	StudyBlocks    int    `json:"studyBlocks"`
	ExamBlocks     int    `json:"examBlocks"`
	PlannedMinutes int    `json:"plannedMinutes"`
	Budget
}

// Plan is the output of plan generation. Warnings list blocks that found no slot.
type Plan struct {
	Blocks   []StudyBlock `json:"blocks"`
	Summary  Summary      `json:"summary"`
	Warnings []Skip       `json:"warnings,omitempty"`
}

// GeneratorConfig holds the generator's scheduling parameters.
type GeneratorConfig struct {
	Slots            SlotCatalog
	Templates        Templates
	DefaultTemplate  string
	PomodoroMinutes  int // length of one pomodoro including its break (default 30)
	StudyDaysPerWeek int // days the weekly study pool is spread over (default 7)
	NewID            func() string
	Now              func() time.Time
}

// Generator builds study plans. It has no side effects.
type Generator struct {
	slots           SlotCatalog
	templates       Templates
	defaultTemplate string
	pomodoroMinutes int
	studyDays       int
	newID           func() string
	now             func() time.Time
}

// NewGenerator creates a plan generator, filling unset config with defaults.
func NewGenerator(cfg GeneratorConfig) *Generator {
	g := &Generator{
		slots:           cfg.Slots,
		templates:       cfg.Templates,
		defaultTemplate: cfg.DefaultTemplate,
		pomodoroMinutes: cfg.PomodoroMinutes,
		studyDays:       cfg.StudyDaysPerWeek,
		newID:           cfg.NewID,
		now:             cfg.Now,
	}
	if len(g.slots) == 0 {
		g.slots = DefaultSlots()
	}
	if g.templates == nil {
		g.templates = DefaultTemplates()
	}
	if g.defaultTemplate == "" {
		g.defaultTemplate = TemplateBalanced
	}
	if g.pomodoroMinutes <= 0 {
		g.pomodoroMinutes = defaultPomodoroMinutes
	}
	if g.studyDays <= 0 || g.studyDays > 7 {
		g.studyDays = defaultStudyDays
	}
	if g.newID == nil {
		g.newID = uuid.NewString
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Templates returns the templates known to the generator.
func (g *Generator) Templates() Templates {
	return g.templates
}

// Generate produces the study and simulated-exam blocks covering horizonDays.
func (g *Generator) Generate(settings PlanSettings, source catalog.Source, horizonDays int) (Plan, error) {
	return g.GenerateAround(settings, source, horizonDays, nil)
}

// GenerateAround is Generate with pre-existing blocks that new blocks must not overlap.
func (g *Generator) GenerateAround(settings PlanSettings, source catalog.Source, horizonDays int, existing []StudyBlock) (Plan, error) {
	tmpl, err := g.validate(settings, source, horizonDays)
	if err != nil {
		return Plan{}, err
	}

	start, days, err := g.horizon(settings, horizonDays)
	if err != nil {
		return Plan{}, err
	}

	budget := Allocate(settings.WeeklyHours, tmpl.StudyRatio, settings.Disciplines)
	order := priorityOrder(budget.Allocations)

	p := &placement{
		gen:      g,
		source:   source,
		userID:   settings.UserID,
		start:    start,
		occupied: append([]StudyBlock(nil), existing...),
		dailyCap: int(math.Ceil(float64(budget.StudyMinutes) / float64(g.studyDays))),
	}

	examTurn := 0
	for weekStart := 0; weekStart < days; weekStart += 7 {
		weekLen := min(7, days-weekStart)

		if tmpl.ExamEveryDays > 0 {
			for d := weekStart; d < weekStart+weekLen; d++ {
				if (d+1)%tmpl.ExamEveryDays != 0 {
					continue
				}
				p.placeExam(d, order[examTurn%len(order)].DisciplineID)
				examTurn++
			}
		}

		p.placeWeek(weekStart, weekLen, order)
	}

	blocks := p.blocks
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Date != blocks[j].Date {
			return blocks[i].Date < blocks[j].Date
		}
		return blocks[i].Start < blocks[j].Start
	})

	summary := Summary{
		Template:    tmpl.Name,
		StartDate:   start.Format(DateLayout),
		EndDate:     start.AddDate(0, 0, days-1).Format(DateLayout),
		HorizonDays: days,
		Budget:      budget,
	}
	for _, b := range blocks {
		summary.PlannedMinutes += b.Minutes()
		switch b.Type {
		case BlockStudy:
			summary.StudyBlocks++
		case BlockSimulatedExam:
			summary.ExamBlocks++
		}
	}

	slog.Debug("plan generated",
		"user_id", settings.UserID,
		"template", tmpl.Name,
		"blocks", len(blocks),
		"warnings", len(p.skips),
	)

	return Plan{Blocks: blocks, Summary: summary, Warnings: p.skips}, nil
}

func (g *Generator) validate(s PlanSettings, source catalog.Source, horizonDays int) (Template, error) {
	if s.WeeklyHours <= 0 || math.IsNaN(s.WeeklyHours) || math.IsInf(s.WeeklyHours, 0) {
		return Template{}, invalid("weeklyHours", fmt.Sprintf("must be positive, got %v", s.WeeklyHours))
	}
	if s.WeeklyHours > 7*24 {
		return Template{}, invalid("weeklyHours", fmt.Sprintf("cannot exceed %d, got %v", 7*24, s.WeeklyHours))
	}
	if horizonDays <= 0 {
		return Template{}, invalid("horizonDays", fmt.Sprintf("must be positive, got %d", horizonDays))
	}

	name := s.Template
	if name == "" {
		name = g.defaultTemplate
	}
	tmpl, ok := g.templates.Lookup(name)
	if !ok {
		return Template{}, invalid("template", fmt.Sprintf("unknown template %q", s.Template))
	}

	if len(s.Disciplines) == 0 {
		return Template{}, invalid("disciplines", "at least one discipline is required")
	}
	seen := make(map[string]bool, len(s.Disciplines))
	for _, r := range s.Disciplines {
		if r.DisciplineID == "" {
			return Template{}, invalid("disciplines", "discipline id is required")
		}
		if seen[r.DisciplineID] {
			return Template{}, invalidDiscipline(r.DisciplineID, "listed more than once")
		}
		seen[r.DisciplineID] = true
		if _, ok := source.Get(r.DisciplineID); !ok {
			return Template{}, invalidDiscipline(r.DisciplineID, "not found in catalog")
		}
		if r.Mastery < 1 || r.Mastery > MaxMastery {
			return Template{}, invalidDiscipline(r.DisciplineID, fmt.Sprintf("mastery must be within 1-%d, got %d", MaxMastery, r.Mastery))
		}
	}
	return tmpl, nil
}

// horizon resolves the first plan day and the number of days, stopping before the exam date.
func (g *Generator) horizon(s PlanSettings, horizonDays int) (time.Time, int, error) {
	now := g.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if s.StartDate != "" {
		d, err := time.Parse(DateLayout, s.StartDate)
		if err != nil {
			return time.Time{}, 0, invalid("startDate", fmt.Sprintf("invalid date %q", s.StartDate))
		}
		start = d
	}

	days := horizonDays
	if s.ExamDate != "" {
		exam, err := time.Parse(DateLayout, s.ExamDate)
		if err != nil {
			return time.Time{}, 0, invalid("examDate", fmt.Sprintf("invalid date %q", s.ExamDate))
		}
		untilExam := int(exam.Sub(start).Hours() / 24)
		if untilExam <= 0 {
			return time.Time{}, 0, invalid("examDate", "must be after the start date")
		}
		days = min(days, untilExam)
	}
	return start, days, nil
}

// priorityOrder sorts allocations by weight, heaviest first, keeping input order on ties.
func priorityOrder(allocs []Allocation) []Allocation {
	order := append([]Allocation(nil), allocs...)
	sort.SliceStable(order, func(i, j int) bool { return order[i].Weight > order[j].Weight })
	return order
}

// placement accumulates blocks for one Generate call.
type placement struct {
	gen      *Generator
	source   catalog.Source
	userID   string
	start    time.Time
	occupied []StudyBlock
	blocks   []StudyBlock
	skips    []Skip
	dailyCap int
	used     map[int]int // study minutes per day index
}

func (p *placement) date(day int) string {
	return p.start.AddDate(0, 0, day).Format(DateLayout)
}

func (p *placement) emit(b StudyBlock) {
	b.ID = p.gen.newID()
	b.UserID = p.userID
	b.Pomodoros = b.Type.DefaultPomodoros()
	b.Title = Title(b.Type, p.disciplineName(b.DisciplineID))
	p.blocks = append(p.blocks, b)
	p.occupied = append(p.occupied, b)
}

func (p *placement) disciplineName(id string) string {
	if d, ok := p.source.Get(id); ok {
		return d.Name
	}
	return id
}

func (p *placement) placeExam(day int, disciplineID string) {
	date := p.date(day)
	w, ok := p.gen.slots.findFree(busyOn(p.occupied, date, p.userID))
	if !ok {
		p.skips = append(p.skips, Skip{
			DisciplineID: disciplineID,
			Type:         BlockSimulatedExam,
			Date:         date,
			Reason:       "no free slot for simulated exam",
		})
		return
	}
	p.emit(StudyBlock{
		DisciplineID: disciplineID,
		Date:         date,
		Start:        FormatClock(w.Start),
		End:          FormatClock(w.End),
		Type:         BlockSimulatedExam,
	})
}

// placeWeek spreads each discipline's weekly minutes over the week, round-robin across
// disciplines so that each day mixes subjects, earliest day and earliest slot first.
func (p *placement) placeWeek(weekStart, weekLen int, order []Allocation) {
	if p.used == nil {
		p.used = make(map[int]int)
	}

	remaining := make([]int, len(order))
	for i, a := range order {
		remaining[i] = int(math.Round(float64(a.WeeklyMinutes) * float64(weekLen) / 7))
	}

	for {
		progressed := false
		for i, a := range order {
			if remaining[i] <= 0 {
				continue
			}
			progressed = true

			longest := p.gen.slots.longest()
			dur := min(p.sessionMinutes(a.DisciplineID), longest, remaining[i])
			// A short tail joins this block only while the result still fits a window.
			if remaining[i]-dur < minBlockMinutes && remaining[i] <= longest {
				dur = remaining[i]
			}

			placed := p.placeStudy(weekStart, weekLen, a.DisciplineID, dur)
			if placed == 0 {
				p.skips = append(p.skips, Skip{
					DisciplineID: a.DisciplineID,
					Type:         BlockStudy,
					Date:         p.date(weekStart),
					Minutes:      remaining[i],
					Reason:       "weekly allocation does not fit the available slots",
				})
				remaining[i] = 0
				continue
			}
			remaining[i] -= placed
		}
		if !progressed {
			return
		}
	}
}

// placeStudy places one study block of dur minutes, falling back to shorter blocks one
// pomodoro at a time when no free window is long enough. It returns the minutes placed.
func (p *placement) placeStudy(weekStart, weekLen int, disciplineID string, dur int) int {
	for try := dur; try > 0; try = p.shorter(try) {
		if p.placeBlock(weekStart, weekLen, disciplineID, try) {
			return try
		}
	}
	return 0
}

func (p *placement) shorter(dur int) int {
	next := dur - p.gen.pomodoroMinutes
	if next < minBlockMinutes {
		return 0
	}
	return next
}

func (p *placement) placeBlock(weekStart, weekLen int, disciplineID string, dur int) bool {
	for day := weekStart; day < weekStart+weekLen; day++ {
		if p.used[day] >= p.dailyCap {
			continue
		}
		date := p.date(day)
		start, ok := p.gen.slots.find(busyOn(p.occupied, date, p.userID), dur)
		if !ok {
			continue
		}
		p.emit(StudyBlock{
			DisciplineID: disciplineID,
			Date:         date,
			Start:        FormatClock(start),
			End:          FormatClock(start + dur),
			Type:         BlockStudy,
		})
		p.used[day] += dur
		return true
	}
	return false
}

func (p *placement) sessionMinutes(disciplineID string) int {
	if d, ok := p.source.Get(disciplineID); ok && d.DefaultDuration > 0 {
		return d.DefaultDuration
	}
	return BlockStudy.DefaultPomodoros() * p.gen.pomodoroMinutes
}
