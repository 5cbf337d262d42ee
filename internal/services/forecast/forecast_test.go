package forecast_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"OpsPulse/internal/domain/models"
	"OpsPulse/internal/services/forecast"
)

// hourlySeries builds n hourly points starting at a fixed midnight, with
// values produced from the hour-of-day and the absolute index.
func hourlySeries(n int, value func(hour, i int) float64) models.MetricSeries {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	points := make([]models.MetricPoint, n)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		points[i] = models.MetricPoint{Timestamp: ts, Value: value(ts.Hour(), i)}
	}
	return models.MetricSeries{Metric: "session_demand", Points: points}
}

// peakAt18 is a daily demand curve with its maximum at hour 18.
func peakAt18(hour, _ int) float64 {
	d := float64(hour - 18)
	if d > 12 {
		d -= 24
	}
	if d < -12 {
		d += 24
	}
	return 40 + 25*math.Exp(-d*d/8)
}

func TestForecastWeekOfHistory(t *testing.T) {
	e := forecast.New(forecast.DefaultConfig())
	series := hourlySeries(168, peakAt18)

	points, err := e.Forecast(series, 24)
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}
	if len(points) != 24 {
		t.Fatalf("expected 24 points, got %d", len(points))
	}

	prevConf := 1.0
	for i, p := range points {
		if p.LowerBound > p.Predicted || p.Predicted > p.UpperBound {
			t.Errorf("point %d: bounds %v <= %v <= %v violated", i, p.LowerBound, p.Predicted, p.UpperBound)
		}
		if p.Confidence < 0.4 || p.Confidence > 0.95 {
			t.Errorf("point %d: confidence %v outside [0.4, 0.95]", i, p.Confidence)
		}
		if p.Confidence > prevConf {
			t.Errorf("point %d: confidence %v increased from %v", i, p.Confidence, prevConf)
		}
		prevConf = p.Confidence
		if p.Predicted < 0 || p.LowerBound < 0 {
			t.Errorf("point %d: negative projection", i)
		}
	}
}

func TestForecastPredictsDailyPeak(t *testing.T) {
	e := forecast.New(forecast.DefaultConfig())
	series := hourlySeries(720, peakAt18) // 30 days of hourly points

	points, err := e.Forecast(series, 24)
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}

	best := 0
	for i, p := range points {
		if p.Predicted > points[best].Predicted {
			best = i
		}
	}
	if got := points[best].Timestamp.Hour(); got != 18 {
		t.Errorf("expected peak prediction at hour 18, got hour %d", got)
	}
	if c := points[best].Confidence; c < 0.7 || c > 0.9 {
		t.Errorf("expected peak confidence in [0.7, 0.9], got %v", c)
	}
}

func TestForecastInsufficientData(t *testing.T) {
	e := forecast.New(forecast.DefaultConfig())
	series := hourlySeries(23, func(_, i int) float64 { return float64(i) })

	_, err := e.Forecast(series, 24)
	var ide *models.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if ide.Points != 23 || ide.Required != 24 {
		t.Errorf("unexpected error detail: %+v", ide)
	}
}

func TestForecastHoltFallback(t *testing.T) {
	// 30 points with a fixed 24h period leaves less than two cycles,
	// so the engine must fall back to trend-only and still answer.
	cfg := forecast.DefaultConfig()
	cfg.SeasonalPeriod = 24
	e := forecast.New(cfg)
	series := hourlySeries(30, func(_, i int) float64 { return 100 + 2*float64(i) })

	points, err := e.Forecast(series, 6)
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}
	if len(points) != 6 {
		t.Fatalf("expected 6 points, got %d", len(points))
	}
	// Rising trend should carry forward.
	if points[5].Predicted <= points[0].Predicted {
		t.Errorf("expected rising projection, got %v then %v", points[0].Predicted, points[5].Predicted)
	}
}

func TestForecastFloorsAtZero(t *testing.T) {
	e := forecast.New(forecast.DefaultConfig())
	series := hourlySeries(48, func(_, i int) float64 { return 200 - 5*float64(i) })

	points, err := e.Forecast(series, 48)
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}
	last := points[len(points)-1]
	if last.Predicted != 0 {
		t.Errorf("expected floor at zero, got %v", last.Predicted)
	}
	if last.LowerBound != 0 {
		t.Errorf("expected lower bound floor at zero, got %v", last.LowerBound)
	}
}

func TestForecastRejectsUnorderedSeries(t *testing.T) {
	e := forecast.New(forecast.DefaultConfig())
	series := hourlySeries(48, func(_, i int) float64 { return float64(i) })
	series.Points[10].Timestamp = series.Points[9].Timestamp // duplicate

	_, err := e.Forecast(series, 4)
	var iie *models.InvalidInputError
	if !errors.As(err, &iie) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

// --- DetectAnomalies ---

func TestDetectAnomaliesFlagsSpike(t *testing.T) {
	e := forecast.New(forecast.DefaultConfig())
	series := hourlySeries(48, func(_, i int) float64 {
		if i == 30 {
			return 100
		}
		return 50
	})

	got := e.DetectAnomalies(series, 0) // non-positive threshold uses the default
	if len(got) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(got))
	}
	a := got[0]
	if a.Value != 100 {
		t.Errorf("flagged wrong point: %+v", a)
	}
	if a.Direction != models.DirectionAbove {
		t.Errorf("expected direction above, got %s", a.Direction)
	}
	if a.ZScore <= 2.5 {
		t.Errorf("expected z-score above threshold, got %v", a.ZScore)
	}
}

func TestDetectAnomaliesDip(t *testing.T) {
	e := forecast.New(forecast.DefaultConfig())
	series := hourlySeries(48, func(_, i int) float64 {
		if i == 12 {
			return 5
		}
		return 50
	})

	got := e.DetectAnomalies(series, 2.5)
	if len(got) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(got))
	}
	if got[0].Direction != models.DirectionBelow {
		t.Errorf("expected direction below, got %s", got[0].Direction)
	}
}

func TestDetectAnomaliesFlatSeries(t *testing.T) {
	e := forecast.New(forecast.DefaultConfig())
	series := hourlySeries(48, func(_, _ int) float64 { return 50 })

	if got := e.DetectAnomalies(series, 2.5); len(got) != 0 {
		t.Fatalf("flat series should have no anomalies, got %d", len(got))
	}
}

// --- Accuracy ---

func TestAccuracySkipsZeroActuals(t *testing.T) {
	e := forecast.New(forecast.DefaultConfig())

	report, err := e.Accuracy(
		[]float64{100, 200, 0, 50},
		[]float64{110, 190, 5, 45},
	)
	if err != nil {
		t.Fatalf("accuracy failed: %v", err)
	}
	// APE over the three non-zero actuals: (0.10 + 0.05 + 0.10)/3 = 8.33%.
	if report.MAPE != 8.33 {
		t.Errorf("expected MAPE 8.33, got %v", report.MAPE)
	}
	// RMSE over all four pairs: sqrt(250/4) = 7.91.
	if report.RMSE != 7.91 {
		t.Errorf("expected RMSE 7.91, got %v", report.RMSE)
	}
}

func TestAccuracyAllZeroActuals(t *testing.T) {
	e := forecast.New(forecast.DefaultConfig())

	report, err := e.Accuracy([]float64{0, 0}, []float64{1, 2})
	if err != nil {
		t.Fatalf("accuracy failed: %v", err)
	}
	if report.MAPE != 0 {
		t.Errorf("expected MAPE 0 when every actual is zero, got %v", report.MAPE)
	}
}

func TestAccuracyInputErrors(t *testing.T) {
	e := forecast.New(forecast.DefaultConfig())

	tests := []struct {
		name      string
		actual    []float64
		predicted []float64
	}{
		{"length mismatch", []float64{1, 2, 3}, []float64{1, 2}},
		{"empty actual", nil, []float64{1}},
		{"empty predicted", []float64{1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Accuracy(tt.actual, tt.predicted)
			var iie *models.InvalidInputError
			if !errors.As(err, &iie) {
				t.Fatalf("expected InvalidInputError, got %v", err)
			}
		})
	}
}
