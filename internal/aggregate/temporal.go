package aggregate

import (
	"slices"
	"time"

	"retail-analytics/internal/models"
)

var (
	dayNames   = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	monthNames = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
)

type periodGroup struct {
	stats    models.PeriodStats
	invoices map[string]struct{}
}

// Temporal rolls the dataset up by hour of day, weekday and calendar month.
// Rows without a parsable date are left out. It returns nil when the upload
// has no date column.
func Temporal(ds models.Dataset) *models.TemporalInsights {
	if !ds.Temporal {
		return nil
	}

	hourly := make(map[int]*periodGroup)
	daily := make(map[int]*periodGroup)
	monthly := make(map[int]*periodGroup)

	for _, r := range ds.Records {
		if !r.HasTime() {
			continue
		}
		key := ds.TransactionKey(r)
		accumulate(hourly, r.Hour, r, key)
		accumulate(daily, r.Weekday, r, key)
		accumulate(monthly, r.Month, r, key)
	}

	return &models.TemporalInsights{
		Hourly: flatten(hourly, func(k int) string {
			return time.Date(0, 1, 1, k, 0, 0, 0, time.UTC).Format("15:00")
		}),
		Daily:   flatten(daily, func(k int) string { return dayNames[k] }),
		Monthly: flatten(monthly, func(k int) string { return monthNames[k-1] }),
	}
}

func accumulate(groups map[int]*periodGroup, k int, r models.Record, txKey string) {
	g, ok := groups[k]
	if !ok {
		g = &periodGroup{
			stats:    models.PeriodStats{Key: k},
			invoices: make(map[string]struct{}),
		}
		groups[k] = g
	}
	g.stats.TotalQuantity += r.Quantity
	g.stats.TotalValue += r.TotalValue
	g.stats.Transactions++
	g.invoices[txKey] = struct{}{}
}

func flatten(groups map[int]*periodGroup, label func(int) string) []models.PeriodStats {
	out := make([]models.PeriodStats, 0, len(groups))
	for k, g := range groups {
		s := g.stats
		s.Label = label(k)
		s.UniqueInvoices = len(g.invoices)
		if s.Transactions > 0 {
			s.AvgQuantity = s.TotalQuantity / float64(s.Transactions)
			s.AvgValue = s.TotalValue / float64(s.Transactions)
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b models.PeriodStats) int {
		return a.Key - b.Key
	})
	return out
}
