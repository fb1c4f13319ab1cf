package planner

import (
	"fmt"
	"sort"
	"strings"
)

// TimeWindow is a preferred daily study window, in minutes since midnight.
type TimeWindow struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Minutes returns the length of the window.
func (w TimeWindow) Minutes() int { return w.End - w.Start }

// SlotCatalog lists time windows in priority order. Placement always tries them in this order.
type SlotCatalog []TimeWindow

// DefaultSlots returns morning, midday and evening windows.
func DefaultSlots() SlotCatalog {
	return SlotCatalog{
		{Name: "morning", Start: 6 * 60, End: 9 * 60},
		{Name: "midday", Start: 12 * 60, End: 14 * 60},
		{Name: "evening", Start: 18 * 60, End: 22 * 60},
	}
}

// ParseSlots parses "name=HH:MM-HH:MM,..." keeping the given order as priority.
// Windows must not overlap each other.
func ParseSlots(list string) (SlotCatalog, error) {
	var slots SlotCatalog
	for i, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name := fmt.Sprintf("slot%d", i+1)
		span := part
		if n, rest, ok := strings.Cut(part, "="); ok {
			name, span = strings.TrimSpace(n), strings.TrimSpace(rest)
		}

		from, to, ok := strings.Cut(span, "-")
		if !ok {
			return nil, fmt.Errorf("slot %q: want HH:MM-HH:MM", part)
		}
		start, err := ParseClock(strings.TrimSpace(from))
		if err != nil {
			return nil, fmt.Errorf("slot %q: %w", part, err)
		}
		end, err := ParseClock(strings.TrimSpace(to))
		if err != nil {
			return nil, fmt.Errorf("slot %q: %w", part, err)
		}
		if end <= start {
			return nil, fmt.Errorf("slot %q: end must be after start", part)
		}
		slots = append(slots, TimeWindow{Name: name, Start: start, End: end})
	}

	if len(slots) == 0 {
		return nil, fmt.Errorf("no slots configured")
	}

	sorted := append(SlotCatalog(nil), slots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start < sorted[i-1].End {
			return nil, fmt.Errorf("slots %s and %s overlap", sorted[i-1].Name, sorted[i].Name)
		}
	}
	return slots, nil
}

// longest returns the length of the largest window.
func (c SlotCatalog) longest() int {
	n := 0
	for _, w := range c {
		n = max(n, w.Minutes())
	}
	return n
}

type interval struct{ start, end int }

// busyOn returns the occupied intervals on date for userID, ordered by start.
func busyOn(blocks []StudyBlock, date, userID string) []interval {
	var busy []interval
	for _, b := range blocks {
		if b.Date != date || b.UserID != userID {
			continue
		}
		if s, e, ok := b.span(); ok {
			busy = append(busy, interval{s, e})
		}
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].start < busy[j].start })
	return busy
}

// find returns the earliest start for a block of duration minutes that fits entirely in one
// window and touches no busy interval. Windows are tried in priority order.
func (c SlotCatalog) find(busy []interval, duration int) (int, bool) {
	for _, w := range c {
		if duration > w.Minutes() {
			continue
		}
		if start, ok := fitIn(w, busy, duration); ok {
			return start, true
		}
	}
	return 0, false
}

// findFree returns the first window with no busy time at all.
func (c SlotCatalog) findFree(busy []interval) (TimeWindow, bool) {
	for _, w := range c {
		if start, ok := fitIn(w, busy, w.Minutes()); ok && start == w.Start {
			return w, true
		}
	}
	return TimeWindow{}, false
}

func fitIn(w TimeWindow, busy []interval, duration int) (int, bool) {
	cursor := w.Start
	for _, iv := range busy {
		if iv.end <= cursor {
			continue
		}
		if iv.start >= cursor+duration {
			break
		}
		cursor = iv.end
	}
	if cursor+duration <= w.End {
		return cursor, true
	}
	return 0, false
}
