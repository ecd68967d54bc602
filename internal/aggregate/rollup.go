package aggregate

import (
	"slices"

	"retail-analytics/internal/models"
)

// rollupSet accumulates entity rollups while remembering first-seen order,
// which is the tie-break for every ranking.
type rollupSet struct {
	order []string
	byID  map[string]*models.EntityRollup
	seen  map[string]map[string]struct{}
}

func newRollupSet() *rollupSet {
	return &rollupSet{
		byID: make(map[string]*models.EntityRollup),
		seen: make(map[string]map[string]struct{}),
	}
}

func (s *rollupSet) add(id, txKey string, revenue, quantity float64) {
	r, ok := s.byID[id]
	if !ok {
		r = &models.EntityRollup{ID: id}
		s.byID[id] = r
		s.seen[id] = make(map[string]struct{})
		s.order = append(s.order, id)
	}
	r.TotalRevenue += revenue
	r.TotalQuantity += quantity
	if _, dup := s.seen[id][txKey]; !dup {
		s.seen[id][txKey] = struct{}{}
		r.TransactionCount++
	}
}

func (s *rollupSet) slice() []models.EntityRollup {
	out := make([]models.EntityRollup, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// CustomerRollups groups the dataset by customer in first-seen order.
func CustomerRollups(ds models.Dataset) []models.EntityRollup {
	set := newRollupSet()
	for _, r := range ds.Records {
		set.add(r.CustomerID, ds.TransactionKey(r), r.TotalValue, r.Quantity)
	}
	return set.slice()
}

// ProductRollups groups the dataset by product in first-seen order.
func ProductRollups(ds models.Dataset) []models.EntityRollup {
	set := newRollupSet()
	for _, r := range ds.Records {
		set.add(r.ProductID, ds.TransactionKey(r), r.TotalValue, r.Quantity)
	}
	return set.slice()
}

// TopN returns the n largest rollups by key. The sort is stable so equal keys
// keep their input order.
func TopN(rollups []models.EntityRollup, n int, key func(models.EntityRollup) float64) []models.EntityRollup {
	sorted := slices.Clone(rollups)
	slices.SortStableFunc(sorted, func(a, b models.EntityRollup) int {
		ka, kb := key(a), key(b)
		if ka > kb {
			return -1
		}
		if ka < kb {
			return 1
		}
		return 0
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func ByRevenue(r models.EntityRollup) float64  { return r.TotalRevenue }
func ByQuantity(r models.EntityRollup) float64 { return r.TotalQuantity }
func ByCount(r models.EntityRollup) float64    { return float64(r.TransactionCount) }
