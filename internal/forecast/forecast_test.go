package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/andresuchdata/autoreorder/internal/series"
	"gonum.org/v1/gonum/stat"
)

func steadyConsumption(t *testing.T, buckets int, perBucket float64) []domain.PeriodAggregate {
	t.Helper()
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	records := make([]domain.TransactionRecord, buckets)
	for i := range records {
		records[i] = domain.TransactionRecord{
			MaterialID:    "M-1",
			PostingDate:   start.Add(time.Duration(i) * series.BucketWidth),
			QuantityDelta: perBucket,
		}
	}
	opening := 1000.0
	periods, err := series.Aggregate(records, series.Options{OpeningStock: &opening})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	return periods
}

func TestLinearRegression_RecoversPlane(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := 0; i < 12; i++ {
		a, b := float64(i), float64((i*7)%5)
		x = append(x, []float64{a, b})
		y = append(y, 2*a+3*b+1)
	}

	m := NewLinearRegression(DefaultRidge)
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	got, err := m.Predict([][]float64{{20, 4}})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if want := 2*20.0 + 3*4 + 1; math.Abs(got[0]-want) > 0.1 {
		t.Errorf("Predict() = %v, want ~%v", got[0], want)
	}
}

func TestLinearRegression_ConstantFeature(t *testing.T) {
	x := [][]float64{{1, 5}, {2, 5}, {3, 5}, {4, 5}}
	y := []float64{2, 4, 6, 8}

	m := NewLinearRegression(DefaultRidge)
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	got, _ := m.Predict([][]float64{{5, 5}})
	if math.Abs(got[0]-10) > 0.1 {
		t.Errorf("Predict() = %v, want ~10", got[0])
	}
}

func TestLinearRegression_MatchesSimpleRegression(t *testing.T) {
	xs := []float64{1, 2, 4, 5, 7, 8, 11}
	ys := []float64{3.1, 4.9, 9.2, 10.8, 15.1, 17.2, 22.9}
	var x [][]float64
	for _, v := range xs {
		x = append(x, []float64{v})
	}

	m := NewLinearRegression(0)
	if err := m.Fit(x, ys); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)

	got, err := m.Predict([][]float64{{0}, {20}})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for i, at := range []float64{0, 20} {
		if want := alpha + beta*at; math.Abs(got[i]-want) > 1e-9 {
			t.Errorf("Predict(%v) = %v, want %v", at, got[i], want)
		}
	}
}

func TestModels_PredictBeforeFit(t *testing.T) {
	for _, m := range []Model{NewLinearRegression(0), NewRegressionTree(0, 0)} {
		if _, err := m.Predict([][]float64{{1}}); !errors.Is(err, ErrNotFitted) {
			t.Errorf("%s Predict() error = %v, want ErrNotFitted", m.Name(), err)
		}
	}
}

func TestRegressionTree_StepFunction(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := 0; i < 10; i++ {
		x = append(x, []float64{float64(i)})
		if i < 5 {
			y = append(y, 0)
		} else {
			y = append(y, 10)
		}
	}

	tree := NewRegressionTree(2, 2)
	if err := tree.Fit(x, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	got, err := tree.Predict([][]float64{{1}, {8}, {4.4}, {4.6}})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	want := []float64{0, 10, 0, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Predict()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNewModelFactory(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", ModelLinear, false},
		{"linear", ModelLinear, false},
		{" Tree ", ModelTree, false},
		{"xgboost", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, err := NewModelFactory(tt.name, 3, 1)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewModelFactory() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && factory().Name() != tt.want {
				t.Errorf("model name = %q, want %q", factory().Name(), tt.want)
			}
		})
	}
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name      string
		actual    []float64
		predicted []float64
		want      float64
	}{
		{"exact", []float64{-10, -20}, []float64{-10, -20}, 100},
		{"half off", []float64{10, 10}, []float64{5, 15}, 50},
		{"clamped low", []float64{1}, []float64{50}, 0},
		{"zero actual exact", []float64{0, 0}, []float64{0, 0}, 100},
		{"zero actual miss", []float64{0}, []float64{3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Accuracy(tt.actual, tt.predicted); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Accuracy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrainAndForecast_SteadyDemand(t *testing.T) {
	periods := steadyConsumption(t, 20, -10)
	f := NewForecaster(Config{})

	got, err := f.TrainAndForecast(periods, 3)
	if err != nil {
		t.Fatalf("TrainAndForecast() error = %v", err)
	}
	if len(got.Values) != 3 || len(got.PeriodStarts) != 3 {
		t.Fatalf("got %d values, %d starts, want 3", len(got.Values), len(got.PeriodStarts))
	}
	for i, v := range got.Values {
		if math.Abs(v+10) > 1e-6 {
			t.Errorf("Values[%d] = %v, want -10", i, v)
		}
	}
	last := periods[len(periods)-1].PeriodStart
	for i, start := range got.PeriodStarts {
		if want := last.Add(time.Duration(i+1) * series.BucketWidth); !start.Equal(want) {
			t.Errorf("PeriodStarts[%d] = %v, want %v", i, start, want)
		}
	}
	if math.Abs(got.Accuracy-100) > 1e-6 {
		t.Errorf("Accuracy = %v, want 100", got.Accuracy)
	}
	if got.TrainRows != 16 || got.HoldoutRows != 4 {
		t.Errorf("split = %d/%d, want 16/4", got.TrainRows, got.HoldoutRows)
	}
	if got.Next() != got.Values[0] {
		t.Errorf("Next() = %v, want %v", got.Next(), got.Values[0])
	}
}

func TestTrainAndForecast_TreeModel(t *testing.T) {
	factory, err := NewModelFactory(ModelTree, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	f := NewForecaster(Config{NewModel: factory})

	got, err := f.TrainAndForecast(steadyConsumption(t, 12, -5), 2)
	if err != nil {
		t.Fatalf("TrainAndForecast() error = %v", err)
	}
	if got.Model != ModelTree {
		t.Errorf("Model = %q, want %q", got.Model, ModelTree)
	}
	for i, v := range got.Values {
		if v != -5 {
			t.Errorf("Values[%d] = %v, want -5", i, v)
		}
	}
}

func TestTrainAndForecast_InsufficientData(t *testing.T) {
	f := NewForecaster(Config{LagDepth: 3})

	// floor(4 * 0.8) = 3 training rows, one short of lag depth + 1.
	_, err := f.TrainAndForecast(steadyConsumption(t, 4, -1), 1)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("error = %v, want ErrInsufficientData", err)
	}

	if _, err := f.TrainAndForecast(steadyConsumption(t, 5, -1), 1); err != nil {
		t.Fatalf("five periods should train, got %v", err)
	}
}

func TestTrainAndForecast_RejectsNonPositiveHorizon(t *testing.T) {
	f := NewForecaster(Config{})
	if _, err := f.TrainAndForecast(steadyConsumption(t, 10, -1), 0); err == nil {
		t.Fatal("expected error for zero horizon")
	}
}

func TestPredictNext_LagsFollowPredictions(t *testing.T) {
	periods := steadyConsumption(t, 6, -4)
	m := &echoLag{}

	values, _, err := PredictNext(m, periods, 3, 3)
	if err != nil {
		t.Fatalf("PredictNext() error = %v", err)
	}
	// echoLag returns lag_1 - 1, so each step sees the previous prediction.
	want := []float64{-5, -6, -7}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("values[%d] = %v, want %v", i, values[i], want[i])
		}
	}
}

// echoLag predicts lag_1 minus one.
type echoLag struct{}

func (echoLag) Name() string                     { return "echo" }
func (echoLag) Fit([][]float64, []float64) error { return nil }
func (echoLag) Predict(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = row[5] - 1
	}
	return out, nil
}
