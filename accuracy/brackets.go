// Package accuracy computes forecast error statistics and ensemble weights
// from evaluated snapshots. Everything here is pure: repositories fetch the
// qualifying rows, this package groups and aggregates them.
package accuracy

import "fmt"

// Bracket is one lead-time bucket: the number of days between perception
// and target date.
type Bracket struct {
	Label string
	Min   int
	Max   int // inclusive; -1 means unbounded
}

// LeadBrackets are the standard forecast-horizon buckets, in display order.
var LeadBrackets = []Bracket{
	{Label: "0-7", Min: 0, Max: 7},
	{Label: "8-14", Min: 8, Max: 14},
	{Label: "15-30", Min: 15, Max: 30},
	{Label: "31-60", Min: 31, Max: 60},
	{Label: "61-90", Min: 61, Max: 90},
	{Label: "90+", Min: 91, Max: -1},
}

// BracketFor returns the label of the bracket containing the given lead time.
func BracketFor(leadDays int) string {
	for _, b := range LeadBrackets {
		if leadDays >= b.Min && (b.Max < 0 || leadDays <= b.Max) {
			return b.Label
		}
	}
	// Negative lead days cannot come out of the runner, but map them
	// somewhere deterministic anyway
	return LeadBrackets[0].Label
}

// BracketIndex returns the position of a bracket label in display order,
// or an error for an unknown label.
func BracketIndex(label string) (int, error) {
	for i, b := range LeadBrackets {
		if b.Label == label {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown lead bracket %q", label)
}
