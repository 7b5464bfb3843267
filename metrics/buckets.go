package metrics

import (
	"errors"
	"fmt"
	"strconv"
)

// DefaultBucketBounds are the lead time boundaries in days.
var DefaultBucketBounds = []float64{7, 14, 21, 28, 35}

// ErrInvalidBuckets is returned for empty, non-positive or unordered bounds.
var ErrInvalidBuckets = errors.New("metrics: bucket bounds must be positive and strictly increasing")

// Buckets labels a day count with the fixed range it falls in. With bounds
// [7 14] the labels are "[1] 0 to 7 days", "[2] 7 to 14 days" and
// "[3] 14+ days".
type Buckets struct {
	bounds []float64
	labels []string
}

// NewBuckets validates bounds and precomputes the labels.
func NewBuckets(bounds []float64) (Buckets, error) {
	if len(bounds) == 0 {
		return Buckets{}, ErrInvalidBuckets
	}
	for i, b := range bounds {
		if b <= 0 || (i > 0 && b <= bounds[i-1]) {
			return Buckets{}, fmt.Errorf("%w: %v", ErrInvalidBuckets, bounds)
		}
	}

	b := Buckets{bounds: append([]float64(nil), bounds...)}
	lower := 0.0
	for i, upper := range b.bounds {
		b.labels = append(b.labels, fmt.Sprintf("[%d] %s to %s days", i+1, num(lower), num(upper)))
		lower = upper
	}
	b.labels = append(b.labels, fmt.Sprintf("[%d] %s+ days", len(b.bounds)+1, num(lower)))
	return b, nil
}

// MustBuckets is NewBuckets for bounds known to be valid.
func MustBuckets(bounds []float64) Buckets {
	b, err := NewBuckets(bounds)
	if err != nil {
		panic(err)
	}
	return b
}

// Label returns the label of the first bucket whose upper bound is at least
// days. Values above the last bound land in the open-ended bucket.
func (b Buckets) Label(days float64) string {
	for i, upper := range b.bounds {
		if days <= upper {
			return b.labels[i]
		}
	}
	if len(b.labels) == 0 {
		return ""
	}
	return b.labels[len(b.labels)-1]
}

// Labels returns every label in order, the open-ended one last.
func (b Buckets) Labels() []string {
	return append([]string(nil), b.labels...)
}

// Bounds returns a copy of the configured bounds.
func (b Buckets) Bounds() []float64 {
	return append([]float64(nil), b.bounds...)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
