package segment

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-analytics/internal/models"
)

var latest = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

// churnDataset builds active customers who bought within the last month and
// churned customers whose last purchase is 100+ days old.
func churnDataset(active, churned int) models.Dataset {
	ds := models.Dataset{Temporal: true}
	row := 0
	add := func(customer string, daysAgo int, value float64) {
		ds.Records = append(ds.Records, models.Record{
			Row:        row,
			CustomerID: customer,
			ProductID:  fmt.Sprintf("P%d", row%7),
			Quantity:   1,
			TotalValue: value,
			Time:       latest.AddDate(0, 0, -daysAgo),
		})
		row++
	}

	for i := 0; i < active; i++ {
		id := fmt.Sprintf("A%02d", i)
		visits := 1 + i%3
		for v := 0; v < visits; v++ {
			add(id, (i*3+v*5)%29, float64(20+(i*37)%180))
		}
	}
	for i := 0; i < churned; i++ {
		id := fmt.Sprintf("Z%02d", i)
		visits := 1 + i%3
		for v := 0; v < visits; v++ {
			add(id, 100+i*9+v*20, float64(20+(i*53)%180))
		}
	}
	return ds
}

func TestComputeRFM(t *testing.T) {
	ds := models.Dataset{
		Temporal: true,
		Grouped:  true,
		Records: []models.Record{
			{Row: 0, Invoice: "I1", CustomerID: "C1", TotalValue: 10, Time: latest.AddDate(0, 0, -10)},
			{Row: 1, Invoice: "I1", CustomerID: "C1", TotalValue: 5, Time: latest.AddDate(0, 0, -10)},
			{Row: 2, Invoice: "I2", CustomerID: "C1", TotalValue: 7, Time: latest.AddDate(0, 0, -3)},
			{Row: 3, Invoice: "I3", CustomerID: "C2", TotalValue: 100, Time: latest.AddDate(0, 0, -200)},
			{Row: 4, Invoice: "I4", CustomerID: "C3", TotalValue: 1, Time: latest},
		},
	}

	ref, ok := ReferenceTime(ds)
	require.True(t, ok)
	assert.Equal(t, latest.Add(24*time.Hour), ref)

	rfm := ComputeRFM(ds, ref, 90)

	require.Len(t, rfm, 3)
	assert.Equal(t, models.RFMRecord{CustomerID: "C1", Recency: 4, Frequency: 2, Monetary: 22}, rfm[0])
	assert.Equal(t, 201, rfm[1].Recency)
	assert.True(t, rfm[1].Churned)
	assert.Equal(t, 1, rfm[2].Recency)
	assert.False(t, rfm[2].Churned)
}

func TestIsChurned_MonotonicInRecency(t *testing.T) {
	prev := false
	for recency := 0; recency <= 365; recency++ {
		got := IsChurned(recency, 90)
		if prev && !got {
			t.Fatalf("recency %d is active although a lower recency was churned", recency)
		}
		prev = got
	}
	assert.False(t, IsChurned(90, 90))
	assert.True(t, IsChurned(91, 90))
}

func TestStandardScale(t *testing.T) {
	scaled := StandardScale([][]float64{{1, 5}, {2, 5}, {3, 5}})

	assert.InDelta(t, -1.2247, scaled[0][0], 1e-4)
	assert.InDelta(t, 0, scaled[1][0], 1e-9)
	assert.InDelta(t, 1.2247, scaled[2][0], 1e-4)
	for _, row := range scaled {
		assert.Equal(t, 0.0, row[1], "constant columns scale to zero")
	}
}

func TestKMeans(t *testing.T) {
	points := [][]float64{
		{0, 0}, {0.1, 0.2}, {0.2, 0.1},
		{10, 10}, {10.1, 9.9}, {9.8, 10.2},
	}

	t.Run("separates well split blobs", func(t *testing.T) {
		res, err := KMeans(context.Background(), points, 2, 100, rand.New(rand.NewSource(42)))

		require.NoError(t, err)
		assert.Equal(t, res.Labels[0], res.Labels[1])
		assert.Equal(t, res.Labels[0], res.Labels[2])
		assert.Equal(t, res.Labels[3], res.Labels[4])
		assert.Equal(t, res.Labels[3], res.Labels[5])
		assert.NotEqual(t, res.Labels[0], res.Labels[3])
		assert.LessOrEqual(t, res.Iterations, 100)
	})

	t.Run("same seed same labels", func(t *testing.T) {
		a, _ := KMeans(context.Background(), points, 3, 100, rand.New(rand.NewSource(7)))
		b, _ := KMeans(context.Background(), points, 3, 100, rand.New(rand.NewSource(7)))
		assert.Equal(t, a.Labels, b.Labels)
	})

	t.Run("k larger than the point count", func(t *testing.T) {
		res, err := KMeans(context.Background(), points[:2], 4, 100, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		assert.Len(t, res.Centroids, 2)
	})

	t.Run("respects cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := KMeans(ctx, points, 2, 100, rand.New(rand.NewSource(1)))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCluster_OrderedByMonetary(t *testing.T) {
	ds := churnDataset(20, 5)
	ref, _ := ReferenceTime(ds)
	rfm := ComputeRFM(ds, ref, 90)

	block, err := Cluster(context.Background(), rfm, DefaultConfig())

	require.NoError(t, err)
	require.NotEmpty(t, block.Clusters)
	total := 0
	for i, c := range block.Clusters {
		assert.Equal(t, i, c.Cluster)
		total += c.Customers
		if i > 0 {
			assert.GreaterOrEqual(t, c.AvgMonetary, block.Clusters[i-1].AvgMonetary)
		}
	}
	assert.Equal(t, len(rfm), total)
	for _, r := range rfm {
		assert.GreaterOrEqual(t, r.Cluster, 0)
		assert.Less(t, r.Cluster, len(block.Clusters))
	}
}

func TestROCAUC(t *testing.T) {
	auc, ok := ROCAUC([]int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
	require.True(t, ok)
	assert.InDelta(t, 0.75, auc, 1e-9)

	auc, ok = ROCAUC([]int{0, 1}, []float64{0.5, 0.5})
	require.True(t, ok)
	assert.InDelta(t, 0.5, auc, 1e-9)

	_, ok = ROCAUC([]int{1, 1, 1}, []float64{0.2, 0.3, 0.4})
	assert.False(t, ok, "single-class labels have no AUC")
}

func TestStratifiedSplit(t *testing.T) {
	y := make([]int, 25)
	for i := 0; i < 5; i++ {
		y[i] = 1
	}

	train, test := StratifiedSplit(y, 0.3, rand.New(rand.NewSource(42)))

	assert.Len(t, train, 17)
	assert.Len(t, test, 8)
	positives := 0
	for _, i := range test {
		positives += y[i]
	}
	assert.Equal(t, 2, positives)

	train2, test2 := StratifiedSplit(y, 0.3, rand.New(rand.NewSource(42)))
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestStratifiedSplit_TestSizeRoundsUp(t *testing.T) {
	// 10 samples at 0.25 give 2.5 test samples; the test set takes 3.
	y := []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 1}

	train, test := StratifiedSplit(y, 0.25, rand.New(rand.NewSource(7)))

	assert.Len(t, test, 3)
	assert.Len(t, train, 7)
	positives := 0
	for _, i := range test {
		positives += y[i]
	}
	// shares 1.8 and 1.2: class 0 takes the leftover sample
	assert.Equal(t, 1, positives)

	_, test = StratifiedSplit(make([]int, 10), 0.3, rand.New(rand.NewSource(7)))
	assert.Len(t, test, 3, "0.3*10 must not round up to 4")
}

func TestTrainForest_Separable(t *testing.T) {
	var x [][]float64
	var y []int
	for i := 0; i < 30; i++ {
		x = append(x, []float64{float64(i), float64(i % 5), 50})
		if i >= 15 {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}

	f, err := TrainForest(context.Background(), x, y, DefaultForestConfig(), rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	assert.Equal(t, 0, f.Predict([]float64{2, 2, 50}))
	assert.Equal(t, 1, f.Predict([]float64{28, 3, 50}))
	assert.Greater(t, f.Proba([]float64{28, 3, 50}), f.Proba([]float64{2, 2, 50}))

	imp := f.Importances()
	assert.InDelta(t, 1.0, imp[0]+imp[1]+imp[2], 1e-9)
	assert.Greater(t, imp[0], imp[1])
	assert.Equal(t, 0.0, imp[2], "a constant feature never splits")
}

func TestAnalyze_ChurnScenario(t *testing.T) {
	ds := churnDataset(20, 5)

	res, err := Analyze(context.Background(), ds, DefaultConfig())
	require.NoError(t, err)

	churn := res.Churn
	require.True(t, churn.ModelUsed, churn.Reason)
	assert.Equal(t, 5, churn.ChurnedCustomers)
	assert.Equal(t, 20, churn.ActiveCustomers)
	require.NotNil(t, churn.Accuracy)
	assert.GreaterOrEqual(t, *churn.Accuracy, 0.0)
	assert.LessOrEqual(t, *churn.Accuracy, 1.0)
	require.NotNil(t, churn.RocAuc, "the stratified test split holds both classes")
	assert.Len(t, churn.TopAtRiskCustomers, 5)
	assert.Contains(t, churn.FeatureImportances, "recency")

	for i := 1; i < len(churn.TopAtRiskCustomers); i++ {
		assert.GreaterOrEqual(t, churn.TopAtRiskCustomers[i-1].ChurnProbability, churn.TopAtRiskCustomers[i].ChurnProbability)
	}

	churnedInTop := 0
	for _, c := range churn.TopAtRiskCustomers {
		if c.RecencyDays > 90 {
			churnedInTop++
		}
	}
	assert.GreaterOrEqual(t, churnedInTop, 3, "high-recency customers should dominate the at-risk ranking")
}

func TestScoreCustomers_ChurnedScoreHigher(t *testing.T) {
	ds := churnDataset(20, 5)
	ref, _ := ReferenceTime(ds)
	rfm := ComputeRFM(ds, ref, 90)
	x := features(rfm)
	y := make([]int, len(rfm))
	for i, r := range rfm {
		if r.Churned {
			y[i] = 1
		}
	}

	f, err := TrainForest(context.Background(), x, y, DefaultForestConfig(), rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	probs := scoreCustomers(f, x)

	var churnedMean, activeMean float64
	for i, r := range rfm {
		if r.Churned {
			churnedMean += probs[i] / 5
		} else {
			activeMean += probs[i] / 20
		}
	}
	assert.Greater(t, churnedMean, activeMean)
}

func TestAnalyze_NotTrainable(t *testing.T) {
	t.Run("too few customers", func(t *testing.T) {
		res, err := Analyze(context.Background(), churnDataset(8, 2), DefaultConfig())

		require.NoError(t, err)
		assert.False(t, res.Churn.ModelUsed)
		assert.Contains(t, res.Churn.Reason, "need at least 20")
		assert.Nil(t, res.Churn.Accuracy)
		assert.NotEmpty(t, res.Segments.Clusters, "clustering still runs")
	})

	t.Run("single class", func(t *testing.T) {
		res, err := Analyze(context.Background(), churnDataset(25, 0), DefaultConfig())

		require.NoError(t, err)
		assert.False(t, res.Churn.ModelUsed)
		assert.Contains(t, res.Churn.Reason, "labelled active")
	})

	t.Run("no date column", func(t *testing.T) {
		ds := churnDataset(25, 5)
		ds.Temporal = false

		res, err := Analyze(context.Background(), ds, DefaultConfig())

		require.NoError(t, err)
		assert.False(t, res.Churn.ModelUsed)
		assert.NotEmpty(t, res.Segments.Reason)
		assert.Nil(t, res.RFM)
	})
}

func TestAnalyze_Deterministic(t *testing.T) {
	a, err := Analyze(context.Background(), churnDataset(20, 5), DefaultConfig())
	require.NoError(t, err)
	b, err := Analyze(context.Background(), churnDataset(20, 5), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
