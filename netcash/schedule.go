package netcash

import "time"

// Business-day arithmetic for debit-order scheduling. Netcash needs a two-day
// batch no later than 3 business days before the strike date, and never
// debits on a weekend. All functions are pure; dates are truncated to
// midnight in the input's location.

const submissionLeadDays = 3

func truncateToDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

func isWeekend(d time.Time) bool {
	return d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
}

// NextCollectionDate walks forward from the given date, counting only
// weekdays, until daysAhead business days have elapsed.
func NextCollectionDate(from time.Time, daysAhead int) time.Time {
	d := truncateToDay(from)
	for daysAhead > 0 {
		d = d.AddDate(0, 0, 1)
		if !isWeekend(d) {
			daysAhead--
		}
	}
	return d
}

// AdjustForWeekend moves a Saturday or Sunday strike date to the following
// Monday.
func AdjustForWeekend(d time.Time) time.Time {
	d = truncateToDay(d)
	for isWeekend(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// SubmissionDate is the date a batch for the given strike date must reach
// Netcash: the weekend-adjusted strike date minus 3 business days.
func SubmissionDate(strikeDate time.Time) time.Time {
	d := AdjustForWeekend(strikeDate)
	remaining := submissionLeadDays
	for remaining > 0 {
		d = d.AddDate(0, 0, -1)
		if !isWeekend(d) {
			remaining--
		}
	}
	return d
}

// IsSubmissionDay reports whether a batch for the strike date is due to be
// submitted today. Used by the daily job to pick members for batching.
func IsSubmissionDay(today, strikeDate time.Time) bool {
	return truncateToDay(today).Equal(SubmissionDate(strikeDate))
}
