package anniversary

import "time"

// DueOn reports whether anchor recurs on the calendar date of ref, ignoring
// the anchor's year. A zero anchor is never due.
func (c Calculator) DueOn(anchor, ref time.Time) bool {
	if anchor.IsZero() {
		return false
	}
	loc := c.Location()
	_, am, ad := anchor.In(loc).Date()
	today := c.Day(ref)
	return occurrence(today.Year(), am, ad, loc).Equal(today)
}

// SelectDue keeps the items whose anchor recurs on ref. anchorOf extracts the
// anchor; order is preserved.
func SelectDue[T any](c Calculator, items []T, ref time.Time, anchorOf func(T) time.Time) []T {
	due := make([]T, 0, len(items))
	for _, item := range items {
		if c.DueOn(anchorOf(item), ref) {
			due = append(due, item)
		}
	}
	return due
}
