// Package anniversary computes recurring-date facts for milestone anchors.
//
// An anchor is a historical date. Its month and day recur every year; its
// year is the first occurrence. All arithmetic here is on calendar dates in
// one configured location, never on raw time.Duration between two instants,
// so a daylight-saving shift can not turn "3 days" into "2.96 days".
//
// February 29 anchors are observed on February 28 in non-leap years.
package anniversary

import (
	"errors"
	"math"
	"strings"
	"time"
)

// ErrInvalidDate is returned by ParseDate for input that is not a date.
var ErrInvalidDate = errors.New("anniversary: invalid date")

// Info is the calculator output. Nil pointers serialise as JSON null and
// mean the anchor could not be read.
type Info struct {
	NextAnniversaryDate        *time.Time `json:"next_anniversary_date"`
	DaysUntilNextAnniversary   *int       `json:"days_until_next_anniversary"`
	CelebratedThisYear         bool       `json:"celebrated_this_year"`
	YearsSinceFirstCelebration *int       `json:"years_since_first_celebration"`
}

// Calculator interprets dates in a fixed location. The zero value uses UTC.
type Calculator struct {
	loc *time.Location
}

// NewCalculator returns a Calculator for loc. A nil loc means UTC.
func NewCalculator(loc *time.Location) Calculator {
	return Calculator{loc: loc}
}

// Location returns the location calendar dates are read in.
func (c Calculator) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Calculate returns the anniversary facts of anchor as seen on ref.
// A zero anchor yields the empty Info.
func (c Calculator) Calculate(anchor, ref time.Time) Info {
	if anchor.IsZero() {
		return Info{}
	}
	loc := c.Location()
	ay, am, ad := anchor.In(loc).Date()
	today := c.Day(ref)
	ry := today.Year()

	thisYear := occurrence(ry, am, ad, loc)
	next := thisYear
	if thisYear.Before(today) {
		next = occurrence(ry+1, am, ad, loc)
	}

	days := daysBetween(today, next)
	years := ry - ay
	if years < 0 {
		years = 0
	}

	return Info{
		NextAnniversaryDate:        &next,
		DaysUntilNextAnniversary:   &days,
		CelebratedThisYear:         !thisYear.After(today),
		YearsSinceFirstCelebration: &years,
	}
}

// CalculateString is Calculate for an anchor that has not been parsed yet.
// Unparseable input yields the empty Info rather than an error.
func (c Calculator) CalculateString(raw string, ref time.Time) Info {
	anchor, err := c.ParseDate(raw)
	if err != nil {
		return Info{}
	}
	return c.Calculate(anchor, ref)
}

// Day truncates t to midnight of its calendar date in the calculator's location.
func (c Calculator) Day(t time.Time) time.Time {
	loc := c.Location()
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// layouts accepted by ParseDate, tried in order. Layouts without a zone are
// read in the calculator's location.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseDate reads a timestamp or a plain calendar date.
func (c Calculator) ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, c.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// occurrence is the anchor's month/day in year, with Feb 29 clamped to Feb 28
// when year has no leap day.
func occurrence(year int, month time.Month, day int, loc *time.Location) time.Time {
	if month == time.February && day == 29 && !isLeap(year) {
		day = 28
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// daysBetween counts calendar days from one midnight to another. Both dates
// are moved to UTC first, where every day is exactly 24 hours long.
func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(t.Sub(f).Hours() / 24))
}
