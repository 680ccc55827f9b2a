// Package models defines data structures and domain types.
package models

import "time"

// TimeWindow is a named relative span used to select snapshots for aggregation.
// The string values are the stable tokens exchanged with the bin backend.
type TimeWindow string

const (
	// Window1Day covers the last 24 hours.
	Window1Day TimeWindow = "1_day"
	// Window1Week covers the last 7 days.
	Window1Week TimeWindow = "1_week"
	// Window2Weeks covers the last 14 days.
	Window2Weeks TimeWindow = "2_weeks"
	// Window1Month covers the last calendar month.
	Window1Month TimeWindow = "1_month"
	// Window1Year covers the last calendar year.
	Window1Year TimeWindow = "1_year"
	// WindowAllTime applies no time filter.
	WindowAllTime TimeWindow = "all_time"

	// DefaultWindow is used whenever a token is not recognized.
	DefaultWindow = Window1Week
)

// TimeWindows lists every window in selection order.
var TimeWindows = []TimeWindow{
	Window1Day,
	Window1Week,
	Window2Weeks,
	Window1Month,
	Window1Year,
	WindowAllTime,
}

// ParseTimeWindow resolves a token to a window. Unknown tokens resolve to
// DefaultWindow instead of failing.
func ParseTimeWindow(token string) TimeWindow {
	w := TimeWindow(token)
	if w.Valid() {
		return w
	}
	return DefaultWindow
}

// Valid reports whether w is one of the recognized tokens.
func (w TimeWindow) Valid() bool {
	for _, known := range TimeWindows {
		if w == known {
			return true
		}
	}
	return false
}

// Normalize returns w, or DefaultWindow when w is not recognized.
func (w TimeWindow) Normalize() TimeWindow {
	if w.Valid() {
		return w
	}
	return DefaultWindow
}

// String returns the token.
func (w TimeWindow) String() string {
	return string(w)
}

// Label returns the display name for a window.
func (w TimeWindow) Label() string {
	switch w.Normalize() {
	case Window1Day:
		return "Last 24 Hours"
	case Window2Weeks:
		return "Last 2 Weeks"
	case Window1Month:
		return "Last Month"
	case Window1Year:
		return "Last Year"
	case WindowAllTime:
		return "All Time"
	default:
		return "Last Week"
	}
}

// Cutoff returns the earliest instant included in the window and false for
// WindowAllTime, which has no lower bound. Month and year spans are calendar
// spans, so they follow time.AddDate normalization at month ends.
func (w TimeWindow) Cutoff(now time.Time) (time.Time, bool) {
	switch w.Normalize() {
	case Window1Day:
		return now.AddDate(0, 0, -1), true
	case Window2Weeks:
		return now.AddDate(0, 0, -14), true
	case Window1Month:
		return now.AddDate(0, -1, 0), true
	case Window1Year:
		return now.AddDate(-1, 0, 0), true
	case WindowAllTime:
		return time.Time{}, false
	default:
		return now.AddDate(0, 0, -7), true
	}
}

// Next cycles to the next window.
func (w TimeWindow) Next() TimeWindow {
	w = w.Normalize()
	for i, known := range TimeWindows {
		if known == w {
			return TimeWindows[(i+1)%len(TimeWindows)]
		}
	}
	return DefaultWindow
}

// Prev cycles to the previous window.
func (w TimeWindow) Prev() TimeWindow {
	w = w.Normalize()
	for i, known := range TimeWindows {
		if known == w {
			return TimeWindows[(i-1+len(TimeWindows))%len(TimeWindows)]
		}
	}
	return DefaultWindow
}
