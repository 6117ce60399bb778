package query

import (
	"fmt"
	"time"

	"teymia/internal/models"
)

// FormatDateRange labels an inclusive range of days:
//
//	same day               Jan 5, 2024
//	whole calendar month   January 2024
//	whole calendar year    2024
//	within one month       Jan 5 – 10, 2024
//	within one year        Jan 5 – Feb 10, 2024
//	otherwise              Dec 28, 2023 – Jan 3, 2024
//
// end is interpreted in start's location.
func FormatDateRange(start, end time.Time) string {
	s := StartOfDay(start)
	e := StartOfDay(end.In(start.Location()))
	if e.Before(s) {
		s, e = e, s
	}

	if s.Equal(e) {
		return s.Format("Jan 2, 2006")
	}

	nextDay := e.AddDate(0, 0, 1)
	if s.Day() == 1 && nextDay.Day() == 1 {
		if s.AddDate(0, 1, 0).Equal(nextDay) {
			return s.Format("January 2006")
		}
		if s.Month() == time.January && s.AddDate(1, 0, 0).Equal(nextDay) {
			return s.Format("2006")
		}
	}

	switch {
	case s.Year() == e.Year() && s.Month() == e.Month():
		return fmt.Sprintf("%s – %d, %d", s.Format("Jan 2"), e.Day(), e.Year())
	case s.Year() == e.Year():
		return fmt.Sprintf("%s – %s, %d", s.Format("Jan 2"), e.Format("Jan 2"), e.Year())
	default:
		return fmt.Sprintf("%s – %s", s.Format("Jan 2, 2006"), e.Format("Jan 2, 2006"))
	}
}

// PeriodRange returns the window of period containing now: the start of its
// first day and the last instant of its last day. Weeks start on Monday.
func PeriodRange(period models.BudgetPeriod, now time.Time) (start, end time.Time) {
	today := StartOfDay(now)
	switch period {
	case models.BudgetPeriodWeekly:
		offset := (int(today.Weekday()) + 6) % 7
		start = today.AddDate(0, 0, -offset)
		end = start.AddDate(0, 0, 7)
	case models.BudgetPeriodYearly:
		start = time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, today.Location())
		end = start.AddDate(1, 0, 0)
	default:
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		end = start.AddDate(0, 1, 0)
	}
	return start, end.Add(-time.Nanosecond)
}
