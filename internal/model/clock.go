package model

import "time"

const timeOfDayLayout = "15:04:05"

// TimeOfDayReached reports whether now is at or past the intraday
// "HH:MM:SS" mark on now's date. An empty or malformed mark never
// fires.
func TimeOfDayReached(now time.Time, mark string) bool {
	if mark == "" {
		return false
	}
	t, err := time.ParseInLocation(timeOfDayLayout, mark, now.Location())
	if err != nil {
		return false
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location())
	return !now.Before(at)
}
