package segment

import (
	"math"
	"time"

	"retail-analytics/internal/models"
)

const day = 24 * time.Hour

// ReferenceTime is the latest known timestamp plus one day. ok is false when
// no row carries a date.
func ReferenceTime(ds models.Dataset) (time.Time, bool) {
	var latest time.Time
	for _, r := range ds.Records {
		if r.HasTime() && r.Time.After(latest) {
			latest = r.Time
		}
	}
	if latest.IsZero() {
		return time.Time{}, false
	}
	return latest.Add(day), true
}

// ComputeRFM builds one RFM record per customer in first-seen order. Recency
// counts whole days from the customer's last dated purchase to ref, clipped
// at zero; customers with no dated purchase get the largest recency observed.
func ComputeRFM(ds models.Dataset, ref time.Time, churnDays int) []models.RFMRecord {
	type acc struct {
		last     time.Time
		monetary float64
		tx       map[string]struct{}
	}

	var order []string
	byID := make(map[string]*acc)
	for _, r := range ds.Records {
		a, ok := byID[r.CustomerID]
		if !ok {
			a = &acc{tx: make(map[string]struct{})}
			byID[r.CustomerID] = a
			order = append(order, r.CustomerID)
		}
		a.monetary += r.TotalValue
		a.tx[ds.TransactionKey(r)] = struct{}{}
		if r.HasTime() && r.Time.After(a.last) {
			a.last = r.Time
		}
	}

	out := make([]models.RFMRecord, 0, len(order))
	maxRecency := 0
	var undated []int
	for _, id := range order {
		a := byID[id]
		rec := models.RFMRecord{
			CustomerID: id,
			Frequency:  len(a.tx),
			Monetary:   a.monetary,
		}
		if a.last.IsZero() {
			undated = append(undated, len(out))
		} else {
			rec.Recency = int(math.Max(0, math.Floor(ref.Sub(a.last).Hours()/24)))
			maxRecency = max(maxRecency, rec.Recency)
		}
		out = append(out, rec)
	}
	for _, i := range undated {
		out[i].Recency = maxRecency
	}

	for i := range out {
		out[i].Churned = IsChurned(out[i].Recency, churnDays)
	}
	return out
}

// IsChurned is the churn label: inactive for strictly more than threshold
// days.
func IsChurned(recency, threshold int) bool {
	return recency > threshold
}

func features(rfm []models.RFMRecord) [][]float64 {
	out := make([][]float64, len(rfm))
	for i, r := range rfm {
		out[i] = []float64{float64(r.Recency), float64(r.Frequency), r.Monetary}
	}
	return out
}

// FeatureNames matches the column order of the feature matrix.
var FeatureNames = []string{"recency", "frequency", "monetary"}
