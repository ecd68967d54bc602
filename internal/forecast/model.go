package forecast

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Model is a univariate forecaster. Fit must be called before Predict.
type Model interface {
	Name() string
	Fit(train []float64) error
	Predict(steps int) ([]float64, error)
}

var ErrNotFitted = errors.New("forecast: model is not fitted")

// NewModel returns a reference model by name.
func NewModel(name string) (Model, error) {
	switch name {
	case "naive":
		return &NaiveModel{}, nil
	case "", "linear":
		return &LinearTrendModel{}, nil
	default:
		return nil, fmt.Errorf("unknown forecast model %q", name)
	}
}

// NaiveModel repeats the last observed value.
type NaiveModel struct {
	last   float64
	fitted bool
}

func (m *NaiveModel) Name() string { return "naive" }

func (m *NaiveModel) Fit(train []float64) error {
	if len(train) == 0 {
		return errors.New("forecast: empty training series")
	}
	m.last = train[len(train)-1]
	m.fitted = true
	return nil
}

func (m *NaiveModel) Predict(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, steps)
	for i := range out {
		out[i] = m.last
	}
	return out, nil
}

// LinearTrendModel fits value = alpha + beta*t by least squares over the
// period index t.
type LinearTrendModel struct {
	alpha, beta float64
	n           int
}

func (m *LinearTrendModel) Name() string { return "linear" }

func (m *LinearTrendModel) Fit(train []float64) error {
	if len(train) < 2 {
		return fmt.Errorf("forecast: linear trend needs at least 2 points, got %d", len(train))
	}
	t := make([]float64, len(train))
	for i := range t {
		t[i] = float64(i)
	}
	m.alpha, m.beta = stat.LinearRegression(t, train, nil, false)
	m.n = len(train)
	return nil
}

func (m *LinearTrendModel) Predict(steps int) ([]float64, error) {
	if m.n == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, steps)
	for i := range out {
		out[i] = m.alpha + m.beta*float64(m.n+i)
	}
	return out, nil
}
