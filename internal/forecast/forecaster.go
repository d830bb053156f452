package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/andresuchdata/autoreorder/internal/series"
)

const DefaultTrainRatio = 0.8

// Config controls how the forecaster splits and models the series.
type Config struct {
	LagDepth   int
	TrainRatio float64
	NewModel   ModelFactory
}

// Forecast is one training-and-projection result.
type Forecast struct {
	Values       []float64   `json:"values"`
	PeriodStarts []time.Time `json:"period_starts"`
	Accuracy     float64     `json:"accuracy"`
	Model        string      `json:"model"`
	TrainRows    int         `json:"train_rows"`
	HoldoutRows  int         `json:"holdout_rows"`
}

// Next is the first projected value, or 0 for an empty projection.
func (f Forecast) Next() float64 {
	if len(f.Values) == 0 {
		return 0
	}
	return f.Values[0]
}

// Forecaster trains a fresh model for every call and holds no state between
// calls, so one instance is safe for concurrent use.
type Forecaster struct {
	cfg Config
}

func NewForecaster(cfg Config) *Forecaster {
	if cfg.LagDepth <= 0 {
		cfg.LagDepth = series.DefaultLagDepth
	}
	if cfg.TrainRatio <= 0 || cfg.TrainRatio >= 1 {
		cfg.TrainRatio = DefaultTrainRatio
	}
	if cfg.NewModel == nil {
		cfg.NewModel = func() Model { return NewLinearRegression(DefaultRidge) }
	}
	return &Forecaster{cfg: cfg}
}

// TrainAndForecast fits on the earliest share of periods, scores the held-out
// tail, refits on the full series and projects horizon buckets forward.
func (f *Forecaster) TrainAndForecast(periods []domain.PeriodAggregate, horizon int) (Forecast, error) {
	if horizon <= 0 {
		return Forecast{}, fmt.Errorf("forecast horizon must be positive, got %d", horizon)
	}

	n := len(periods)
	trainN := int(math.Floor(float64(n) * f.cfg.TrainRatio))
	if trainN < f.cfg.LagDepth+1 {
		return Forecast{}, fmt.Errorf("%w: training split has %d rows, need at least %d",
			domain.ErrInsufficientData, trainN, f.cfg.LagDepth+1)
	}

	x := FeatureMatrix(periods, f.cfg.LagDepth)
	y := Target(periods)

	scoring := f.cfg.NewModel()
	if err := scoring.Fit(x[:trainN], y[:trainN]); err != nil {
		return Forecast{}, fmt.Errorf("fit training split: %w", err)
	}
	accuracy := 0.0
	if trainN < n {
		predicted, err := scoring.Predict(x[trainN:])
		if err != nil {
			return Forecast{}, fmt.Errorf("score holdout: %w", err)
		}
		accuracy = Accuracy(y[trainN:], predicted)
	}

	final := f.cfg.NewModel()
	if err := final.Fit(x, y); err != nil {
		return Forecast{}, fmt.Errorf("fit full series: %w", err)
	}

	values, starts, err := PredictNext(final, periods, horizon, f.cfg.LagDepth)
	if err != nil {
		return Forecast{}, err
	}

	return Forecast{
		Values:       values,
		PeriodStarts: starts,
		Accuracy:     accuracy,
		Model:        final.Name(),
		TrainRows:    trainN,
		HoldoutRows:  n - trainN,
	}, nil
}

// PredictNext projects horizon buckets past the end of periods. Each step
// feeds its prediction back as the newest row, so later steps lag on
// predicted values.
func PredictNext(model Model, periods []domain.PeriodAggregate, horizon, lagDepth int) ([]float64, []time.Time, error) {
	if len(periods) == 0 {
		return nil, nil, fmt.Errorf("%w: no periods to project from", domain.ErrInsufficientData)
	}

	history := make([]domain.PeriodAggregate, len(periods), len(periods)+horizon)
	copy(history, periods)

	values := make([]float64, 0, horizon)
	starts := make([]time.Time, 0, horizon)
	for h := 0; h < horizon; h++ {
		last := history[len(history)-1]
		start := last.PeriodStart.Add(series.BucketWidth)

		pred, err := model.Predict([][]float64{futureRow(history, start, lagDepth)})
		if err != nil {
			return nil, nil, fmt.Errorf("predict period %s: %w", start.Format(time.DateOnly), err)
		}
		v := pred[0]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, fmt.Errorf("model produced non-finite value for period %s", start.Format(time.DateOnly))
		}

		history = append(history, series.Extend(history, domain.PeriodAggregate{
			PeriodStart:  start,
			NetQuantity:  v,
			ClosingStock: last.ClosingStock + v,
		}, lagDepth))
		values = append(values, v)
		starts = append(starts, start)
	}
	return values, starts, nil
}

// FeatureMatrix lays out month, quarter, rolling mean, rolling std,
// pct_change and lag_1..lag_k per period.
func FeatureMatrix(periods []domain.PeriodAggregate, lagDepth int) [][]float64 {
	out := make([][]float64, len(periods))
	for i, p := range periods {
		out[i] = featureRow(p, lagDepth)
	}
	return out
}

// Target is the net quantity column.
func Target(periods []domain.PeriodAggregate) []float64 {
	out := make([]float64, len(periods))
	for i, p := range periods {
		out[i] = p.NetQuantity
	}
	return out
}

func featureRow(p domain.PeriodAggregate, lagDepth int) []float64 {
	row := make([]float64, 0, 5+lagDepth)
	row = append(row, calendar(p.PeriodStart)...)
	row = append(row, p.RollingMean, p.RollingStd, p.PctChange)
	for k := 0; k < lagDepth; k++ {
		if k < len(p.Lags) {
			row = append(row, p.Lags[k])
		} else {
			row = append(row, 0)
		}
	}
	return row
}

// futureRow uses fresh calendar features for start and takes rolling and lag
// features from the newest row of history.
func futureRow(history []domain.PeriodAggregate, start time.Time, lagDepth int) []float64 {
	last := history[len(history)-1]
	row := make([]float64, 0, 5+lagDepth)
	row = append(row, calendar(start)...)
	row = append(row, last.RollingMean, last.RollingStd, last.PctChange)
	for k := 0; k < lagDepth; k++ {
		i := len(history) - 1 - k
		if i < 0 {
			i = 0
		}
		row = append(row, history[i].NetQuantity)
	}
	return row
}

func calendar(t time.Time) []float64 {
	month := int(t.Month())
	return []float64{float64(month), float64((month-1)/3 + 1)}
}

// Accuracy is 100 × (1 − Σ|actual−predicted| / Σ|actual|), clamped to
// [0, 100]. An all-zero actual series scores 100 only on an exact match.
func Accuracy(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return 0
	}
	absErr, absActual := 0.0, 0.0
	for i := range actual {
		absErr += math.Abs(actual[i] - predicted[i])
		absActual += math.Abs(actual[i])
	}

	var normalized float64
	switch {
	case absActual > 0:
		normalized = absErr / absActual
	case absErr == 0:
		normalized = 0
	default:
		normalized = 1
	}

	acc := 100 * (1 - normalized)
	if math.IsNaN(acc) {
		return 0
	}
	return math.Max(0, math.Min(100, acc))
}
