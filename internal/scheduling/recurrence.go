package scheduling

import (
	"sort"
	"strings"
	"time"
)

// Validate checks the rule's shape. It does not look at is_active.
func (r RecurringRule) Validate() error {
	if r.RecurrenceInterval < 1 {
		return invalidRule("recurrence_interval must be at least 1, got %d", r.RecurrenceInterval)
	}
	if r.StartDate.IsZero() {
		return invalidRule("start_date is required")
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return invalidRule("end_date %s is before start_date %s", r.EndDate, r.StartDate)
	}
	if !r.StartTime.Valid() {
		return invalidRule("start_time is out of range")
	}
	if r.DurationMinutes <= 0 {
		return invalidRule("duration_minutes must be positive")
	}
	if strings.TrimSpace(r.Service) == "" {
		return invalidRule("service is required")
	}

	switch r.RecurrenceType {
	case RecurrenceDaily:
		if len(r.DaysOfWeek) > 0 || r.DayOfMonth != nil {
			return invalidRule("daily rules take neither days_of_week nor day_of_month")
		}
	case RecurrenceWeekly:
		if len(r.DaysOfWeek) == 0 {
			return invalidRule("weekly rules need at least one day in days_of_week")
		}
		for _, d := range r.DaysOfWeek {
			if d < 0 || d > 6 {
				return invalidRule("days_of_week entry %d is outside 0-6", d)
			}
		}
		if r.DayOfMonth != nil {
			return invalidRule("weekly rules take no day_of_month")
		}
	case RecurrenceMonthly:
		if r.DayOfMonth == nil {
			return invalidRule("monthly rules need day_of_month")
		}
		if *r.DayOfMonth < 1 || *r.DayOfMonth > 31 {
			return invalidRule("day_of_month %d is outside 1-31", *r.DayOfMonth)
		}
		if len(r.DaysOfWeek) > 0 {
			return invalidRule("monthly rules take no days_of_week")
		}
	default:
		return invalidRule("unknown recurrence_type %q", r.RecurrenceType)
	}

	return nil
}

// ExpandOccurrences lists the rule's occurrences between rangeStart and rangeEnd inclusive, in
// date order. It is a pure function of its arguments. Inactive rules have no occurrences.
func ExpandOccurrences(rule RecurringRule, rangeStart, rangeEnd Date) ([]Occurrence, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if !rule.IsActive {
		return nil, nil
	}

	lower := rule.StartDate
	if rangeStart.After(lower) {
		lower = rangeStart
	}
	upper := rangeEnd
	if rule.EndDate != nil && rule.EndDate.Before(upper) {
		upper = *rule.EndDate
	}
	if upper.Before(lower) {
		return nil, nil
	}

	var dates []Date
	switch rule.RecurrenceType {
	case RecurrenceDaily:
		dates = expandDaily(rule, lower, upper)
	case RecurrenceWeekly:
		dates = expandWeekly(rule, lower, upper)
	case RecurrenceMonthly:
		dates = expandMonthly(rule, lower, upper)
	}

	out := make([]Occurrence, 0, len(dates))
	for _, d := range dates {
		out = append(out, Occurrence{Date: d, Time: rule.StartTime})
	}
	return out, nil
}

func expandDaily(rule RecurringRule, lower, upper Date) []Date {
	step := rule.RecurrenceInterval
	offset := lower.DaysSince(rule.StartDate)
	// first multiple of step at or after offset
	first := (offset + step - 1) / step * step

	var dates []Date
	for d := rule.StartDate.AddDays(first); !d.After(upper); d = d.AddDays(step) {
		dates = append(dates, d)
	}
	return dates
}

// mondayOf returns the Monday starting d's week.
func mondayOf(d Date) Date {
	back := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-back)
}

func expandWeekly(rule RecurringRule, lower, upper Date) []Date {
	wanted := make(map[time.Weekday]bool, len(rule.DaysOfWeek))
	for _, wd := range rule.DaysOfWeek {
		wanted[time.Weekday(wd)] = true
	}
	anchor := mondayOf(rule.StartDate)

	var dates []Date
	for d := lower; !d.After(upper); d = d.AddDays(1) {
		if !wanted[d.Weekday()] {
			continue
		}
		weeks := mondayOf(d).DaysSince(anchor) / 7
		if weeks%rule.RecurrenceInterval == 0 {
			dates = append(dates, d)
		}
	}
	return dates
}

func expandMonthly(rule RecurringRule, lower, upper Date) []Date {
	dom := *rule.DayOfMonth
	startIndex := monthIndex(rule.StartDate.Year(), rule.StartDate.Month())

	var dates []Date
	for idx := monthIndex(lower.Year(), lower.Month()); idx <= monthIndex(upper.Year(), upper.Month()); idx++ {
		if (idx-startIndex)%rule.RecurrenceInterval != 0 {
			continue
		}
		year, month := idx/12, time.Month(idx%12+1)
		day := dom
		if last := daysIn(year, month); day > last {
			day = last
		}
		d := NewDate(year, month, day)
		if d.Before(lower) || d.After(upper) {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

func monthIndex(year int, month time.Month) int {
	return year*12 + int(month) - 1
}

// normalizeDaysOfWeek sorts and de-duplicates weekday indices.
func normalizeDaysOfWeek(days []int) []int {
	if len(days) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}
