package worktime

import (
	"fmt"
	"math"
	"time"
)

const day24h = 24 * time.Hour

// RoundedDays24h expresses d in 24 hour days rounded to the nearest half day.
func RoundedDays24h(d time.Duration) float64 {
	return roundHalf(d, day24h)
}

// RoundedDays expresses a business duration in working days of this
// calendar, rounded to the nearest half day.
func (c Calendar) RoundedDays(d time.Duration) float64 {
	return roundHalf(d, c.WorkDay())
}

// Hours expresses d in hours rounded to the nearest half hour.
func Hours(d time.Duration) float64 {
	return roundHalf(d, time.Hour)
}

// Seconds expresses d in whole seconds.
func Seconds(d time.Duration) int64 {
	return int64(math.Round(d.Seconds()))
}

// roundHalf rounds d/unit to the nearest 0.5. Time that was actually spent
// is never reported as zero: any positive duration is at least 0.5.
func roundHalf(d, unit time.Duration) float64 {
	if unit <= 0 {
		return 0
	}
	v := math.Round(float64(d)/float64(unit)*2) / 2
	if v == 0 && d > 0 {
		return 0.5
	}
	return v
}

// Date formats t as yyyy-MM-dd.
func Date(t time.Time) string {
	return t.Format(time.DateOnly)
}

// Week labels the ISO week of t, e.g. W2024-05.
func Week(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("W%04d-%02d", y, w)
}

// Month labels the month of t, e.g. M2024-01.
func Month(t time.Time) string {
	return "M" + t.Format("2006-01")
}

// Quarter labels the quarter of t, e.g. Q2024-Q1.
func Quarter(t time.Time) string {
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("Q%04d-Q%d", t.Year(), q)
}
