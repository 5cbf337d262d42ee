package models

import "time"

// MetricPoint is a single observation of an operational metric.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricSeries is an ordered series of observations for one metric
// (e.g. hourly session demand). Timestamps must be strictly ascending
// with no duplicates; Validate enforces that instead of silently
// truncating or reordering.
type MetricSeries struct {
	Metric string        `json:"metric"`
	Points []MetricPoint `json:"points"`
}

// Validate checks the series ordering invariant.
func (s MetricSeries) Validate() error {
	for i := 1; i < len(s.Points); i++ {
		prev, cur := s.Points[i-1].Timestamp, s.Points[i].Timestamp
		if !cur.After(prev) {
			return &InvalidInputError{
				Field:  "points",
				Reason: "timestamps must be strictly ascending without duplicates",
			}
		}
	}
	return nil
}

// Values returns the raw observation values in series order.
func (s MetricSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Step returns the spacing between the last two observations, or the
// fallback when the series is too short to tell.
func (s MetricSeries) Step(fallback time.Duration) time.Duration {
	n := len(s.Points)
	if n < 2 {
		return fallback
	}
	d := s.Points[n-1].Timestamp.Sub(s.Points[n-2].Timestamp)
	if d <= 0 {
		return fallback
	}
	return d
}

// ForecastPoint is one projected step of a metric forecast.
type ForecastPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	Predicted  float64   `json:"predicted"`
	LowerBound float64   `json:"lowerBound"`
	UpperBound float64   `json:"upperBound"`
	Confidence float64   `json:"confidence"`
	RiskTier   RiskTier  `json:"riskTier"`
}

// AnomalyPoint is an observation flagged as a statistical outlier.
type AnomalyPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Expected  float64   `json:"expected"`
	ZScore    float64   `json:"zScore"`
	Direction Direction `json:"direction"`
}

// Direction tells which side of the expected value an observation sits on.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// AccuracyReport compares a forecast against what actually happened.
// Both values are rounded to two decimals.
type AccuracyReport struct {
	MAPE float64 `json:"mape"`
	RMSE float64 `json:"rmse"`
}
