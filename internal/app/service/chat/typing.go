package chat

import (
	"sort"
	"time"
)

type TypingStatus string

const (
	TypingIdle   TypingStatus = "idle"
	TypingActive TypingStatus = "typing"
)

// DefaultTypingTimeout is how long a typing timestamp stays visible.
const DefaultTypingTimeout = 3 * time.Second

// TypingTransition is the change caused by one keystroke.
type TypingTransition struct {
	From TypingStatus `json:"from"`
	To   TypingStatus `json:"to"`
}

// status reports the state of a timestamp at now. A missing or stale
// timestamp is idle.
func status(at time.Time, ok bool, now time.Time, timeout time.Duration) TypingStatus {
	if ok && fresh(at, now, timeout) {
		return TypingActive
	}
	return TypingIdle
}

func fresh(at, now time.Time, timeout time.Duration) bool {
	return at.After(now.Add(-timeout))
}

// freshTypers returns the sorted usernames typing at now, viewer excluded.
func freshTypers(entries map[string]time.Time, viewer string, now time.Time, timeout time.Duration) []string {
	out := make([]string, 0, len(entries))
	for name, at := range entries {
		if viewer != "" && presenceField(name) == presenceField(viewer) {
			continue
		}
		if fresh(at, now, timeout) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
