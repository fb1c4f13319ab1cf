// Package notify computes reminders for today's study blocks and fires them at their time.
package notify

import (
	"fmt"
	"sort"
	"time"

	"github.com/p-n-ai/pai-study/internal/planner"
)

// Reminder is a notification due at At for one block.
type Reminder struct {
	BlockID string    `json:"blockId"`
	UserID  string    `json:"userId"`
	At      time.Time `json:"at"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
}

// TodayReminders returns reminders for the incomplete blocks dated today (in now's location)
// whose reminder time, start minus lead, is still ahead of now. Results are ordered by time.
func TodayReminders(blocks []planner.StudyBlock, now time.Time, lead time.Duration) []Reminder {
	today := now.Format(planner.DateLayout)

	var out []Reminder
	for _, b := range blocks {
		if b.Completed || b.Date != today {
			continue
		}
		start, err := b.StartsAt(now.Location())
		if err != nil {
			continue
		}
		at := start.Add(-lead)
		if !at.After(now) {
			continue
		}
		out = append(out, Reminder{
			BlockID: b.ID,
			UserID:  b.UserID,
			At:      at,
			Title:   reminderTitle(b),
			Body:    reminderBody(b, lead),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

func reminderTitle(b planner.StudyBlock) string {
	if b.Title != "" {
		return b.Title
	}
	return planner.Title(b.Type, "")
}

func reminderBody(b planner.StudyBlock, lead time.Duration) string {
	body := fmt.Sprintf("%s-%s", b.Start, b.End)
	if b.Pomodoros > 0 {
		body += fmt.Sprintf(", %d pomodoro", b.Pomodoros)
		if b.Pomodoros > 1 {
			body += "s"
		}
	}
	if lead > 0 {
		body = fmt.Sprintf("Starts in %d min (%s)", int(lead.Minutes()), body)
	} else {
		body = "Starting now (" + body + ")"
	}
	return body
}
