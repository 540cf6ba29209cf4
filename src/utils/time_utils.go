package utils

import "time"

// DaysPerPeriod is the length of one allocation period inside a month.
const DaysPerPeriod = 7

// WeekOfMonth numbers the allocation periods of a month from 1: days 1-7 are period 1,
// days 29-31 are period 5.
func WeekOfMonth(t time.Time) int {
	return (t.Day()-1)/DaysPerPeriod + 1
}

// MonthStart resets t to midnight on the first day of its month, keeping the location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// PeriodStart resets t to midnight on the first day of its allocation period.
func PeriodStart(t time.Time) time.Time {
	day := (WeekOfMonth(t)-1)*DaysPerPeriod + 1
	return time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, t.Location())
}
