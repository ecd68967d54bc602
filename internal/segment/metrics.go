package segment

import (
	"math"
	"math/rand"
	"slices"
)

// StratifiedSplit sizes the test set at ceil(ratio*n) and shares it out over
// the classes in proportion to their size, largest remainders first. Each
// class is shuffled before its test share is taken from the front. Classes
// with at least two members keep one sample on each side.
func StratifiedSplit(y []int, ratio float64, rng *rand.Rand) (train, test []int) {
	byClass := make(map[int][]int)
	var classes []int
	for i, label := range y {
		if _, ok := byClass[label]; !ok {
			classes = append(classes, label)
		}
		byClass[label] = append(byClass[label], i)
	}
	slices.Sort(classes)
	shares := testShares(classes, byClass, len(y), ratio)

	for _, c := range classes {
		members := byClass[c]
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })

		nTest := shares[c]
		if len(members) >= 2 {
			nTest = max(1, min(nTest, len(members)-1))
		}
		nTest = min(nTest, len(members))
		test = append(test, members[:nTest]...)
		train = append(train, members[nTest:]...)
	}

	slices.Sort(train)
	slices.Sort(test)
	return train, test
}

// testShares splits ceil(ratio*n) test samples over the classes. Each class
// gets the floor of its proportional share and the leftover goes one by one
// to the largest fractional parts, ties to the lower class label.
func testShares(classes []int, byClass map[int][]int, n int, ratio float64) map[int]int {
	total := int(math.Ceil(ratio*float64(n) - 1e-9))
	shares := make(map[int]int, len(classes))
	type frac struct {
		class int
		rest  float64
	}
	rests := make([]frac, 0, len(classes))
	assigned := 0
	for _, c := range classes {
		exact := float64(total) * float64(len(byClass[c])) / float64(n)
		whole := int(math.Floor(exact + 1e-9))
		shares[c] = whole
		assigned += whole
		rests = append(rests, frac{class: c, rest: exact - float64(whole)})
	}
	slices.SortStableFunc(rests, func(a, b frac) int {
		switch {
		case a.rest > b.rest:
			return -1
		case a.rest < b.rest:
			return 1
		}
		return 0
	})
	for i := 0; assigned < total && i < len(rests); i++ {
		shares[rests[i].class]++
		assigned++
	}
	return shares
}

// Accuracy is the share of predictions equal to the labels.
func Accuracy(labels, predicted []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	hits := 0
	for i := range labels {
		if labels[i] == predicted[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(labels))
}

// ROCAUC computes the area under the ROC curve from the Mann-Whitney U
// statistic with average ranks for ties. ok is false when labels hold a
// single class.
func ROCAUC(labels []int, scores []float64) (float64, bool) {
	n := len(labels)
	pos := 0
	for _, l := range labels {
		pos += l
	}
	neg := n - pos
	if pos == 0 || neg == 0 {
		return 0, false
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case scores[a] < scores[b]:
			return -1
		case scores[a] > scores[b]:
			return 1
		}
		return 0
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && scores[order[j+1]] == scores[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}

	var rankSum float64
	for i, l := range labels {
		if l == 1 {
			rankSum += ranks[i]
		}
	}
	u := rankSum - float64(pos*(pos+1))/2
	return u / float64(pos*neg), true
}
