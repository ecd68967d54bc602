package segment

import (
	"context"
	"math"
	"math/rand"
	"slices"
)

// ForestConfig controls the bagged decision-tree ensemble.
type ForestConfig struct {
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	// MaxFeatures is the size of the random feature subset tried per split;
	// 0 means floor(sqrt(features)).
	MaxFeatures int
}

func DefaultForestConfig() ForestConfig {
	return ForestConfig{Trees: 100, MaxDepth: 8, MinSamplesLeaf: 1}
}

type node struct {
	leaf      bool
	prob      float64 // fraction of positive samples at this node
	feature   int
	threshold float64
	left      *node
	right     *node
}

func (n *node) predict(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.prob
}

// Forest is a random forest binary classifier with Gini splits.
type Forest struct {
	trees       []*node
	importances []float64
}

// TrainForest fits one tree per bootstrap sample of (x, y). Labels are 0 or 1.
func TrainForest(ctx context.Context, x [][]float64, y []int, cfg ForestConfig, rng *rand.Rand) (*Forest, error) {
	if len(x) == 0 {
		return &Forest{}, nil
	}
	nFeatures := len(x[0])
	if cfg.Trees <= 0 {
		cfg.Trees = 1
	}
	if cfg.MaxFeatures <= 0 || cfg.MaxFeatures > nFeatures {
		cfg.MaxFeatures = max(1, int(math.Sqrt(float64(nFeatures))))
	}
	if cfg.MinSamplesLeaf <= 0 {
		cfg.MinSamplesLeaf = 1
	}

	f := &Forest{importances: make([]float64, nFeatures)}
	for t := 0; t < cfg.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = rng.Intn(len(x))
		}

		b := &builder{x: x, y: y, cfg: cfg, rng: rng, importance: make([]float64, nFeatures), total: float64(len(sample))}
		f.trees = append(f.trees, b.build(sample, 0))

		var sum float64
		for _, v := range b.importance {
			sum += v
		}
		if sum > 0 {
			for j, v := range b.importance {
				f.importances[j] += v / sum
			}
		}
	}

	var sum float64
	for _, v := range f.importances {
		sum += v
	}
	if sum > 0 {
		for j := range f.importances {
			f.importances[j] /= sum
		}
	}
	return f, nil
}

// Proba is the mean positive-class probability over all trees.
func (f *Forest) Proba(x []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.trees))
}

// Predict is the majority vote of the trees; an even split falls back to the
// averaged probability.
func (f *Forest) Predict(x []float64) int {
	votes := 0
	for _, t := range f.trees {
		if t.predict(x) > 0.5 {
			votes++
		}
	}
	switch {
	case 2*votes > len(f.trees):
		return 1
	case 2*votes < len(f.trees):
		return 0
	case f.Proba(x) >= 0.5:
		return 1
	default:
		return 0
	}
}

// Importances is the mean decrease in Gini impurity per feature, normalised
// to sum to one. All zeros when no tree ever split.
func (f *Forest) Importances() []float64 {
	return slices.Clone(f.importances)
}

type builder struct {
	x          [][]float64
	y          []int
	cfg        ForestConfig
	rng        *rand.Rand
	importance []float64
	total      float64
}

func (b *builder) build(idx []int, depth int) *node {
	pos := 0
	for _, i := range idx {
		pos += b.y[i]
	}
	n := &node{leaf: true, prob: float64(pos) / float64(len(idx))}

	if pos == 0 || pos == len(idx) || depth >= b.cfg.MaxDepth || len(idx) < 2*b.cfg.MinSamplesLeaf {
		return n
	}

	feature, threshold, gain, ok := b.bestSplit(idx, pos)
	if !ok {
		return n
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.importance[feature] += gain * float64(len(idx)) / b.total
	n.leaf = false
	n.feature = feature
	n.threshold = threshold
	n.left = b.build(left, depth+1)
	n.right = b.build(right, depth+1)
	return n
}

// bestSplit draws features in random order and evaluates them in groups of
// MaxFeatures, moving on to the next group only when none of the current one
// can split the node.
func (b *builder) bestSplit(idx []int, pos int) (int, float64, float64, bool) {
	nFeatures := len(b.x[0])
	order := b.rng.Perm(nFeatures)
	parent := gini(pos, len(idx))

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	for start := 0; start < nFeatures; start += b.cfg.MaxFeatures {
		end := min(start+b.cfg.MaxFeatures, nFeatures)
		for _, feature := range order[start:end] {
			threshold, impurity, ok := b.splitOn(idx, feature)
			if !ok {
				continue
			}
			if gain := parent - impurity; bestFeature < 0 || gain > bestGain {
				bestFeature, bestThreshold, bestGain = feature, threshold, gain
			}
		}
		if bestFeature >= 0 {
			return bestFeature, bestThreshold, bestGain, true
		}
	}
	return 0, 0, 0, false
}

// splitOn finds the midpoint threshold on one feature with the lowest
// weighted child impurity.
func (b *builder) splitOn(idx []int, feature int) (float64, float64, bool) {
	sorted := slices.Clone(idx)
	slices.SortStableFunc(sorted, func(i, j int) int {
		switch {
		case b.x[i][feature] < b.x[j][feature]:
			return -1
		case b.x[i][feature] > b.x[j][feature]:
			return 1
		}
		return 0
	})

	n := len(sorted)
	total := 0
	for _, i := range sorted {
		total += b.y[i]
	}

	leftPos := 0
	best, bestThreshold, found := math.Inf(1), 0.0, false
	for k := 1; k < n; k++ {
		leftPos += b.y[sorted[k-1]]
		lo, hi := b.x[sorted[k-1]][feature], b.x[sorted[k]][feature]
		if lo == hi {
			continue
		}
		if k < b.cfg.MinSamplesLeaf || n-k < b.cfg.MinSamplesLeaf {
			continue
		}
		impurity := (float64(k)*gini(leftPos, k) + float64(n-k)*gini(total-leftPos, n-k)) / float64(n)
		if impurity < best {
			best, bestThreshold, found = impurity, lo+(hi-lo)/2, true
		}
	}
	return bestThreshold, best, found
}

func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 1 - p*p - (1-p)*(1-p)
}
