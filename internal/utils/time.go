package utils

import "time"

func Now() time.Time {
	return time.Now().UTC()
}

func NowPtr() *time.Time {
	now := Now()
	return &now
}

func StartOfDayInUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days (UTC) from "from" to "to". Negative when
// "to" is before "from".
func DaysBetween(from, to time.Time) int {
	return int(StartOfDayInUTC(to).Sub(StartOfDayInUTC(from)).Hours() / 24)
}
