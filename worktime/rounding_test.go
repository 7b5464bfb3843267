package worktime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundedDays24h(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want float64
	}{
		{0, 0},
		{time.Minute, 0.5},
		{5 * time.Hour, 0.5},
		{24 * time.Hour, 1},
		{30 * time.Hour, 1.5},
		{36 * time.Hour, 1.5},
		{43 * time.Hour, 2},
		{10 * 24 * time.Hour, 10},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundedDays24h(tt.in), "RoundedDays24h(%s)", tt.in)
	}
}

func TestRoundedDaysBusiness(t *testing.T) {
	t.Parallel()

	cal := Default()

	assert.Equal(t, 0.0, cal.RoundedDays(0))
	assert.Equal(t, 0.5, cal.RoundedDays(time.Second))
	assert.Equal(t, 1.0, cal.RoundedDays(8*time.Hour))
	assert.Equal(t, 1.5, cal.RoundedDays(12*time.Hour))
	assert.Equal(t, 2.5, cal.RoundedDays(20*time.Hour))
}

func TestHours(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Hours(0))
	assert.Equal(t, 0.5, Hours(10*time.Minute))
	assert.Equal(t, 0.5, Hours(20*time.Minute))
	assert.Equal(t, 1.0, Hours(50*time.Minute))
	assert.Equal(t, 2.5, Hours(2*time.Hour+20*time.Minute))
}

func TestSeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(0), Seconds(0))
	assert.Equal(t, int64(2), Seconds(1500*time.Millisecond))
	assert.Equal(t, int64(3600), Seconds(time.Hour))
}

func TestLabels(t *testing.T) {
	t.Parallel()

	d := time.Date(2024, time.January, 3, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-03", Date(d))
	assert.Equal(t, "W2024-01", Week(d))
	assert.Equal(t, "M2024-01", Month(d))
	assert.Equal(t, "Q2024-Q1", Quarter(d))

	late := time.Date(2024, time.November, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Q2024-Q4", Quarter(late))
	assert.Equal(t, "M2024-11", Month(late))

	// 2024-12-30 belongs to ISO week 1 of 2025.
	assert.Equal(t, "W2025-01", Week(time.Date(2024, time.December, 30, 0, 0, 0, 0, time.UTC)))
}
