package filter

import (
	"path/filepath"
	"time"

	"github.com/specforge/specforge/internal/audit"
)

// Criteria defines filtering criteria for audit events.
// All filters are ANDed together - an event must match ALL criteria to pass.
type Criteria struct {
	Since     time.Time // zero = no lower bound
	Until     time.Time // zero = no upper bound
	StageGlob string    // Glob pattern for the stage name, empty = no filter
	Level     string    // Exact match for the event level, empty = no filter
}

// Matches returns true if the event matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
// An event with an unparseable timestamp fails any time-bounded filter.
func (c *Criteria) Matches(ev audit.Event) bool {
	if !c.Since.IsZero() || !c.Until.IsZero() {
		at, err := time.Parse(time.RFC3339, ev.TimeISO)
		if err != nil {
			return false
		}
		if !c.Since.IsZero() && at.Before(c.Since) {
			return false
		}
		if !c.Until.IsZero() && at.After(c.Until) {
			return false
		}
	}

	if c.StageGlob != "" {
		matched, err := filepath.Match(c.StageGlob, ev.Stage)
		if err != nil || !matched {
			return false
		}
	}

	if c.Level != "" && ev.Level != c.Level {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return !c.Since.IsZero() ||
		!c.Until.IsZero() ||
		c.StageGlob != "" ||
		c.Level != ""
}

// Apply returns the events matching the criteria, preserving order.
func (c *Criteria) Apply(events []audit.Event) []audit.Event {
	if !c.HasFilters() {
		return events
	}
	var out []audit.Event
	for _, ev := range events {
		if c.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out
}
