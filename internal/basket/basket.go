// Package basket mines association rules from invoice baskets.
package basket

import (
	"context"
	"fmt"

	"retail-analytics/internal/models"
)

type Config struct {
	MinSupport     float64
	MinConfidence  float64
	MaxItemsetSize int
	MaxItems       int
	MaxRules       int
}

func DefaultConfig() Config {
	return Config{
		MinSupport:     0.01,
		MinConfidence:  0.3,
		MaxItemsetSize: 4,
		MaxItems:       500,
		MaxRules:       50,
	}
}

// Baskets is the one-hot basket matrix stored column-wise: one transaction
// bitset per item.
type Baskets struct {
	Items []string
	Count int
	tids  []bitset
}

// Support is the share of baskets containing item i.
func (b Baskets) Support(i int) float64 {
	if b.Count == 0 {
		return 0
	}
	return float64(b.tids[i].count()) / float64(b.Count)
}

// BuildBaskets groups records by transaction key. A product is in a basket
// when its summed quantity there is positive. Items and baskets keep
// first-seen order.
func BuildBaskets(ds models.Dataset) Baskets {
	basketIdx := make(map[string]int)
	itemIdx := make(map[string]int)
	var items []string
	qty := make(map[[2]int]float64)

	for _, r := range ds.Records {
		key := ds.TransactionKey(r)
		bi, ok := basketIdx[key]
		if !ok {
			bi = len(basketIdx)
			basketIdx[key] = bi
		}
		ii, ok := itemIdx[r.ProductID]
		if !ok {
			ii = len(items)
			itemIdx[r.ProductID] = ii
			items = append(items, r.ProductID)
		}
		qty[[2]int{bi, ii}] += r.Quantity
	}

	b := Baskets{Items: items, Count: len(basketIdx), tids: make([]bitset, len(items))}
	for i := range b.tids {
		b.tids[i] = newBitset(b.Count)
	}
	for cell, q := range qty {
		if q > 0 {
			b.tids[cell[1]].set(cell[0])
		}
	}
	return b
}

// Mine builds baskets from ds and returns the rules block. Cancellation is
// the only error.
func Mine(ctx context.Context, ds models.Dataset, cfg Config) (models.RuleBlock, error) {
	b := BuildBaskets(ds)
	block := models.RuleBlock{Rules: []models.AssociationRule{}, Baskets: b.Count}
	if b.Count == 0 {
		block.Reason = "no baskets to mine"
		return block, nil
	}

	sets, err := Frequent(ctx, b, cfg)
	if err != nil {
		return models.RuleBlock{}, err
	}
	block.FrequentItemsets = len(sets)
	if len(sets) == 0 {
		block.Reason = fmt.Sprintf("no itemset reaches minimum support %.3f", cfg.MinSupport)
		return block, nil
	}

	block.Rules = Rules(b, sets, cfg)
	return block, nil
}
