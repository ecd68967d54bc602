package basket

import (
	"context"
	"math/bits"
	"slices"
	"strconv"
	"strings"

	"retail-analytics/internal/models"
)

type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) set(i int) {
	b[i/64] |= 1 << (uint(i) % 64)
}

func (b bitset) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

func (b bitset) and(o bitset) bitset {
	out := make(bitset, len(b))
	for i := range b {
		out[i] = b[i] & o[i]
	}
	return out
}

// Itemset is a frequent itemset of item indexes in ascending order.
type Itemset struct {
	Items   []int
	Support float64
	tids    bitset
}

func key(items []int) string {
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(it))
	}
	return sb.String()
}

// Frequent runs level-wise apriori. Level k candidates join two frequent
// (k-1)-itemsets sharing their first k-2 items and are dropped when any
// (k-1)-subset is infrequent. Only the MaxItems most supported single items
// take part and no itemset grows past MaxItemsetSize.
func Frequent(ctx context.Context, b Baskets, cfg Config) ([]Itemset, error) {
	if b.Count == 0 {
		return nil, nil
	}
	// Support on the threshold counts as frequent.
	frequent := func(n int) bool {
		return n > 0 && float64(n)/float64(b.Count) >= cfg.MinSupport
	}

	var level []Itemset
	for i := range b.Items {
		c := b.tids[i].count()
		if frequent(c) {
			level = append(level, Itemset{Items: []int{i}, Support: float64(c) / float64(b.Count), tids: b.tids[i]})
		}
	}
	if cfg.MaxItems > 0 && len(level) > cfg.MaxItems {
		slices.SortStableFunc(level, func(x, y Itemset) int {
			switch {
			case x.Support > y.Support:
				return -1
			case x.Support < y.Support:
				return 1
			}
			return 0
		})
		level = level[:cfg.MaxItems]
		slices.SortFunc(level, func(x, y Itemset) int { return x.Items[0] - y.Items[0] })
	}

	var all []Itemset
	for size := 1; len(level) > 0; size++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		all = append(all, level...)
		if cfg.MaxItemsetSize > 0 && size >= cfg.MaxItemsetSize {
			break
		}

		known := make(map[string]struct{}, len(level))
		for _, s := range level {
			known[key(s.Items)] = struct{}{}
		}

		var next []Itemset
		for i := 0; i < len(level); i++ {
			a := level[i].Items
			for j := i + 1; j < len(level); j++ {
				c := level[j].Items
				if !slices.Equal(a[:size-1], c[:size-1]) {
					break
				}
				cand := append(slices.Clone(a), c[size-1])
				if !subsetsFrequent(cand, known) {
					continue
				}
				tids := level[i].tids.and(b.tids[c[size-1]])
				if n := tids.count(); frequent(n) {
					next = append(next, Itemset{Items: cand, Support: float64(n) / float64(b.Count), tids: tids})
				}
			}
		}
		level = next
	}
	return all, nil
}

// subsetsFrequent checks the (k-1)-subsets that drop one of the first k-2
// items; the other two are the join parents.
func subsetsFrequent(cand []int, known map[string]struct{}) bool {
	if len(cand) <= 2 {
		return true
	}
	sub := make([]int, 0, len(cand)-1)
	for skip := 0; skip < len(cand)-2; skip++ {
		sub = sub[:0]
		sub = append(sub, cand[:skip]...)
		sub = append(sub, cand[skip+1:]...)
		if _, ok := known[key(sub)]; !ok {
			return false
		}
	}
	return true
}

// Rules derives every rule X -> Y with X a non-empty proper subset of a
// frequent itemset and confidence at least MinConfidence. Rules are sorted by
// lift, then confidence, then support, all descending, keeping generation
// order on ties, and capped at MaxRules.
func Rules(b Baskets, sets []Itemset, cfg Config) []models.AssociationRule {
	support := make(map[string]float64, len(sets))
	for _, s := range sets {
		support[key(s.Items)] = s.Support
	}

	rules := []models.AssociationRule{}
	for _, s := range sets {
		n := len(s.Items)
		if n < 2 {
			continue
		}
		for mask := 1; mask < (1<<n)-1; mask++ {
			var ante, cons []int
			for i, it := range s.Items {
				if mask&(1<<i) != 0 {
					ante = append(ante, it)
				} else {
					cons = append(cons, it)
				}
			}
			anteSup, ok1 := support[key(ante)]
			consSup, ok2 := support[key(cons)]
			if !ok1 || !ok2 || anteSup == 0 || consSup == 0 {
				continue
			}
			conf := s.Support / anteSup
			if conf < cfg.MinConfidence {
				continue
			}
			rules = append(rules, models.AssociationRule{
				Antecedents:       names(b, ante),
				Consequents:       names(b, cons),
				Support:           s.Support,
				AntecedentSupport: anteSup,
				ConsequentSupport: consSup,
				Confidence:        conf,
				Lift:              conf / consSup,
			})
		}
	}

	slices.SortStableFunc(rules, func(x, y models.AssociationRule) int {
		if c := cmpDesc(x.Lift, y.Lift); c != 0 {
			return c
		}
		if c := cmpDesc(x.Confidence, y.Confidence); c != 0 {
			return c
		}
		return cmpDesc(x.Support, y.Support)
	})
	if cfg.MaxRules > 0 && len(rules) > cfg.MaxRules {
		rules = rules[:cfg.MaxRules]
	}
	return rules
}

func cmpDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

func names(b Baskets, items []int) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = b.Items[it]
	}
	return out
}
