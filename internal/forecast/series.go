// Package forecast prepares revenue series and scores pluggable forecast
// models on a chronological hold-out.
package forecast

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"retail-analytics/internal/models"
)

type Bucket string

const (
	Day   Bucket = "day"
	Week  Bucket = "week"
	Month Bucket = "month"
)

func ParseBucket(s string) (Bucket, error) {
	switch b := Bucket(s); b {
	case Day, Week, Month:
		return b, nil
	default:
		return "", fmt.Errorf("unknown forecast bucket %q", s)
	}
}

// BucketFor picks the series granularity for a periodicity: daily points for
// monthly framing, monthly points for yearly framing.
func BucketFor(p models.Periodicity) Bucket {
	if p == models.Yearly {
		return Month
	}
	return Day
}

// Point is one period of the revenue series.
type Point struct {
	Period string
	Start  time.Time
	Value  float64
}

func (b Bucket) start(t time.Time) time.Time {
	y, m, d := t.Date()
	switch b {
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	case Week:
		day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}
}

func (b Bucket) label(t time.Time) string {
	if b == Month {
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

// PrepareSeries sums TotalValue per bucket over dated records. The result is
// ordered by period with exactly one point per period that has data.
func PrepareSeries(records []models.Record, b Bucket) []Point {
	byPeriod := make(map[string]*Point)
	for _, r := range records {
		if !r.HasTime() {
			continue
		}
		start := b.start(r.Time)
		label := b.label(start)
		p, ok := byPeriod[label]
		if !ok {
			p = &Point{Period: label, Start: start}
			byPeriod[label] = p
		}
		p.Value += r.TotalValue
	}

	out := make([]Point, 0, len(byPeriod))
	for _, p := range byPeriod {
		out = append(out, *p)
	}
	// labels sort chronologically
	slices.SortFunc(out, func(x, y Point) int { return strings.Compare(x.Period, y.Period) })
	return out
}

func values(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
