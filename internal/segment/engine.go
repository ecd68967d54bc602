// Package segment computes RFM metrics, clusters customers in scaled RFM
// space and trains the per-upload churn classifier.
package segment

import (
	"context"
	"fmt"
	"math/rand"
	"slices"

	"retail-analytics/internal/models"
	"retail-analytics/internal/stats"
)

type Config struct {
	Seed          int64
	Clusters      int
	MaxIterations int
	ChurnDays     int
	MinCustomers  int
	TestRatio     float64
	TopAtRisk     int
	Forest        ForestConfig
}

func DefaultConfig() Config {
	return Config{
		Seed:          42,
		Clusters:      4,
		MaxIterations: 300,
		ChurnDays:     90,
		MinCustomers:  20,
		TestRatio:     0.3,
		TopAtRisk:     5,
		Forest:        DefaultForestConfig(),
	}
}

// Result is the segmentation and churn part of a report.
type Result struct {
	RFM      []models.RFMRecord
	Segments models.SegmentBlock
	Churn    models.ChurnModel
}

// Analyze runs RFM, clustering and churn training. Clustering and churn
// failures are reported as reasons on their blocks; only context
// cancellation is returned as an error.
func Analyze(ctx context.Context, ds models.Dataset, cfg Config) (Result, error) {
	var res Result

	ref, ok := ReferenceTime(ds)
	if !ds.Temporal || !ok {
		reason := "no parsable transaction dates; recency cannot be computed"
		if !ds.Temporal {
			reason = "upload has no date column; recency cannot be computed"
		}
		res.Segments = models.SegmentBlock{Reason: reason}
		res.Churn = models.ChurnModel{Description: describe(cfg), Reason: reason}
		return res, nil
	}

	res.RFM = ComputeRFM(ds, ref, cfg.ChurnDays)

	segments, err := Cluster(ctx, res.RFM, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, err
		}
		segments = models.SegmentBlock{Reason: err.Error()}
	}
	res.Segments = segments

	churn, err := TrainChurn(ctx, res.RFM, cfg)
	if err != nil {
		return Result{}, err
	}
	res.Churn = churn

	return res, nil
}

// Cluster assigns every RFM record a cluster id in place and summarises each
// cluster. Ids are ordered by ascending mean monetary value.
func Cluster(ctx context.Context, rfm []models.RFMRecord, cfg Config) (models.SegmentBlock, error) {
	if len(rfm) == 0 {
		return models.SegmentBlock{Reason: "no customers to cluster"}, nil
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	scaled := StandardScale(features(rfm))
	km, err := KMeans(ctx, scaled, cfg.Clusters, cfg.MaxIterations, rng)
	if err != nil {
		return models.SegmentBlock{}, err
	}

	k := len(km.Centroids)
	summaries := make([]models.ClusterSummary, k)
	for i, r := range rfm {
		c := km.Labels[i]
		summaries[c].Customers++
		summaries[c].AvgRecency += float64(r.Recency)
		summaries[c].AvgFrequency += float64(r.Frequency)
		summaries[c].AvgMonetary += r.Monetary
	}
	for c := range summaries {
		summaries[c].Cluster = c
		if n := float64(summaries[c].Customers); n > 0 {
			summaries[c].AvgRecency /= n
			summaries[c].AvgFrequency /= n
			summaries[c].AvgMonetary /= n
		}
	}

	kept := make([]models.ClusterSummary, 0, k)
	for _, s := range summaries {
		if s.Customers > 0 {
			kept = append(kept, s)
		}
	}
	slices.SortStableFunc(kept, func(a, b models.ClusterSummary) int {
		switch {
		case a.AvgMonetary < b.AvgMonetary:
			return -1
		case a.AvgMonetary > b.AvgMonetary:
			return 1
		}
		return 0
	})

	relabel := make([]int, k)
	for newID := range kept {
		relabel[kept[newID].Cluster] = newID
		kept[newID].Cluster = newID
	}
	for i := range rfm {
		rfm[i].Cluster = relabel[km.Labels[i]]
	}

	return models.SegmentBlock{Clusters: kept, Iterations: km.Iterations}, nil
}

// TrainChurn fits the random forest on recency, frequency and monetary value.
// Inputs that cannot support a model yield ModelUsed=false and a reason.
func TrainChurn(ctx context.Context, rfm []models.RFMRecord, cfg Config) (models.ChurnModel, error) {
	out := models.ChurnModel{Description: describe(cfg)}

	y := make([]int, len(rfm))
	for i, r := range rfm {
		if r.Churned {
			y[i] = 1
			out.ChurnedCustomers++
		}
	}
	out.ActiveCustomers = len(rfm) - out.ChurnedCustomers

	if len(rfm) < cfg.MinCustomers {
		out.Reason = fmt.Sprintf("not enough customers to train a churn model: need at least %d, got %d", cfg.MinCustomers, len(rfm))
		return out, nil
	}
	if out.ChurnedCustomers == 0 || out.ActiveCustomers == 0 {
		label := "active"
		if out.ActiveCustomers == 0 {
			label = "churned"
		}
		out.Reason = fmt.Sprintf("all %d customers are labelled %s; both churned and active customers are needed", len(rfm), label)
		return out, nil
	}

	x := features(rfm)
	rng := rand.New(rand.NewSource(cfg.Seed))
	trainIdx, testIdx := StratifiedSplit(y, cfg.TestRatio, rng)

	trainX, trainY := pick(x, y, trainIdx)
	forest, err := TrainForest(ctx, trainX, trainY, cfg.Forest, rng)
	if err != nil {
		return models.ChurnModel{}, err
	}

	testX, testY := pick(x, y, testIdx)
	predicted := make([]int, len(testX))
	scores := make([]float64, len(testX))
	for i, row := range testX {
		predicted[i] = forest.Predict(row)
		scores[i] = forest.Proba(row)
	}

	accuracy := Accuracy(testY, predicted)
	out.ModelUsed = true
	out.Accuracy = &accuracy
	if auc, ok := ROCAUC(testY, scores); ok {
		out.RocAuc = &auc
	}

	out.FeatureImportances = make(map[string]float64, len(FeatureNames))
	for j, v := range forest.Importances() {
		out.FeatureImportances[FeatureNames[j]] = stats.Finite(v)
	}

	out.TopAtRiskCustomers = topAtRisk(rfm, scoreCustomers(forest, x), cfg.TopAtRisk)
	return out, nil
}

func scoreCustomers(f *Forest, x [][]float64) []float64 {
	probs := make([]float64, len(x))
	for i, row := range x {
		probs[i] = f.Proba(row)
	}
	return probs
}

func topAtRisk(rfm []models.RFMRecord, probs []float64, n int) []models.AtRiskCustomer {
	order := make([]int, len(rfm))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case probs[a] > probs[b]:
			return -1
		case probs[a] < probs[b]:
			return 1
		}
		return 0
	})
	if len(order) > n {
		order = order[:n]
	}

	out := make([]models.AtRiskCustomer, 0, len(order))
	for _, i := range order {
		r := rfm[i]
		out = append(out, models.AtRiskCustomer{
			CustomerID:       r.CustomerID,
			RecencyDays:      r.Recency,
			Frequency:        r.Frequency,
			TotalSpent:       r.Monetary,
			ChurnProbability: probs[i],
		})
	}
	return out
}

func pick(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	px := make([][]float64, len(idx))
	py := make([]int, len(idx))
	for k, i := range idx {
		px[k] = x[i]
		py[k] = y[i]
	}
	return px, py
}

func describe(cfg Config) string {
	return fmt.Sprintf("Random forest of %d trees trained on recency, frequency and monetary value; "+
		"customers inactive for more than %d days are labelled churned.", cfg.Forest.Trees, cfg.ChurnDays)
}
