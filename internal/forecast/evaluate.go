package forecast

import (
	"context"
	"fmt"
	"math"

	"retail-analytics/internal/models"
	"retail-analytics/internal/stats"
)

// MinPoints is the shortest series Evaluate will score.
const MinPoints = 4

type Metrics struct {
	RMSE float64
	MAE  float64
	R2   float64
}

// Score compares predictions with actuals pairwise, over the shorter of the
// two. R2 is 0 when the actuals have no variance.
func Score(actual, predicted []float64) Metrics {
	n := min(len(actual), len(predicted))
	if n == 0 {
		return Metrics{}
	}
	actual = actual[:n]
	mean := stats.Mean(actual)

	var sse, sae, sst float64
	for i := range actual {
		e := actual[i] - predicted[i]
		sse += e * e
		sae += math.Abs(e)
		d := actual[i] - mean
		sst += d * d
	}

	m := Metrics{
		RMSE: math.Sqrt(sse / float64(n)),
		MAE:  sae / float64(n),
	}
	if sst > 0 {
		m.R2 = 1 - sse/sst
	}
	return m
}

type Config struct {
	Model     string
	TestRatio float64
}

func DefaultConfig() Config {
	return Config{Model: "linear", TestRatio: 0.2}
}

// Evaluate fits model on the first floor(n*(1-testRatio)) points and scores
// its predictions for the rest. Short series and model failures come back as
// a reason on the block; only cancellation is an error.
func Evaluate(ctx context.Context, model Model, series []Point, b Bucket, testRatio float64) (models.ForecastBlock, error) {
	block := models.ForecastBlock{Model: model.Name(), Bucket: string(b)}
	if err := ctx.Err(); err != nil {
		return models.ForecastBlock{}, err
	}

	n := len(series)
	if n < MinPoints {
		block.Reason = fmt.Sprintf("need at least %d %s periods to evaluate a forecast, got %d", MinPoints, b, n)
		return block, nil
	}

	train := int(math.Floor(float64(n) * (1 - testRatio)))
	train = max(2, min(train, n-1))
	block.TrainPoints = train
	block.TestPoints = n - train

	y := values(series)
	if err := model.Fit(y[:train]); err != nil {
		block.Reason = err.Error()
		return block, nil
	}
	predicted, err := model.Predict(n - train)
	if err != nil {
		block.Reason = err.Error()
		return block, nil
	}
	if len(predicted) != n-train {
		block.Reason = fmt.Sprintf("model returned %d predictions for %d periods", len(predicted), n-train)
		return block, nil
	}

	actual := y[train:]
	for i := range predicted {
		predicted[i] = stats.Finite(predicted[i])
		block.Predictions = append(block.Predictions, models.ForecastPoint{
			Period:    series[train+i].Period,
			Actual:    actual[i],
			Predicted: predicted[i],
		})
	}

	m := Score(actual, predicted)
	block.RMSE, block.MAE, block.R2 = m.RMSE, m.MAE, m.R2
	return block, nil
}

// Run prepares the revenue series of ds for the periodicity and evaluates the
// configured model on it.
func Run(ctx context.Context, ds models.Dataset, p models.Periodicity, cfg Config) (models.ForecastBlock, error) {
	model, err := NewModel(cfg.Model)
	if err != nil {
		return models.ForecastBlock{Model: cfg.Model, Reason: err.Error()}, nil
	}
	b := BucketFor(p)
	if !ds.Temporal {
		return models.ForecastBlock{Model: model.Name(), Bucket: string(b), Reason: "upload has no date column; no series to forecast"}, nil
	}
	return Evaluate(ctx, model, PrepareSeries(ds.Records, b), b, cfg.TestRatio)
}
