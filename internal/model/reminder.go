package model

// ReminderOption is the human-facing form of a reminder lead time.
type ReminderOption string

const (
	ReminderOnDate       ReminderOption = "on_date"
	ReminderOneDay       ReminderOption = "1_day_before"
	ReminderThreeDays    ReminderOption = "3_days_before"
	ReminderOneWeek      ReminderOption = "1_week_before"
	ReminderOneMonth     ReminderOption = "1_month_before"
	ReminderNone         ReminderOption = "none"
	DefaultReminderDays                 = 7
	DefaultReminderOption               = ReminderOneWeek
)

var reminderDays = map[ReminderOption]int{
	ReminderOnDate:    0,
	ReminderOneDay:    1,
	ReminderThreeDays: 3,
	ReminderOneWeek:   7,
	ReminderOneMonth:  30,
}

// LeadDays maps an option to its lead time. ReminderNone yields nil.
// Unknown options fall back to DefaultReminderDays.
func (o ReminderOption) LeadDays() *int {
	if o == ReminderNone {
		return nil
	}
	days, ok := reminderDays[o]
	if !ok {
		days = DefaultReminderDays
	}
	return &days
}

// Valid reports whether o is one of the fixed options.
func (o ReminderOption) Valid() bool {
	if o == ReminderNone {
		return true
	}
	_, ok := reminderDays[o]
	return ok
}

// ReminderOptionFromDays is the inverse of LeadDays. A nil lead time is
// ReminderNone; a day count outside the table reads as the default option.
func ReminderOptionFromDays(days *int) ReminderOption {
	if days == nil {
		return ReminderNone
	}
	for opt, d := range reminderDays {
		if d == *days {
			return opt
		}
	}
	return DefaultReminderOption
}

// ParseReminderOption reads a client-supplied option. ok is false for values
// outside the table; the returned option is then DefaultReminderOption.
func ParseReminderOption(raw string) (opt ReminderOption, ok bool) {
	opt = ReminderOption(raw)
	if !opt.Valid() {
		return DefaultReminderOption, false
	}
	return opt, true
}
