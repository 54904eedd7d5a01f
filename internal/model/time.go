package model

import "time"

// MaxTime is the far-future instant used as the end of every open interval.
// Comparing against it needs no special case for "still attached".
var MaxTime = time.Date(2999, time.December, 31, 0, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

const secondsPerDay = int64(day / time.Second)

// Days returns the number of whole days between start and end, rounded down.
// It works on Unix seconds so spans beyond the range of time.Duration stay
// exact.
func Days(start, end time.Time) int64 {
	secs := end.Unix() - start.Unix()
	if end.Nanosecond() < start.Nanosecond() {
		secs--
	}
	d := secs / secondsPerDay
	if secs%secondsPerDay != 0 && secs < 0 {
		d--
	}
	return d
}
