package forecast

import (
	"fmt"
	"math"

	"OpsPulse/internal/domain/models"
)

// DetectAnomalies flags observations whose z-score against the series
// mean exceeds thresholdStdDevs (defaulted when non-positive). Pure and
// order-preserving; a flat series has no anomalies.
func (e *Engine) DetectAnomalies(series models.MetricSeries, thresholdStdDevs float64) []models.AnomalyPoint {
	if thresholdStdDevs <= 0 {
		thresholdStdDevs = DefaultAnomalyThreshold
	}
	values := series.Values()
	if len(values) < 2 {
		return nil
	}
	m, std := meanStd(values)
	if std == 0 {
		return nil
	}

	var out []models.AnomalyPoint
	for i, p := range series.Points {
		z := (values[i] - m) / std
		if math.Abs(z) <= thresholdStdDevs {
			continue
		}
		dir := models.DirectionAbove
		if z < 0 {
			dir = models.DirectionBelow
		}
		out = append(out, models.AnomalyPoint{
			Timestamp: p.Timestamp,
			Value:     p.Value,
			Expected:  round2(m),
			ZScore:    round2(z),
			Direction: dir,
		})
	}
	return out
}

// Accuracy compares actuals against predictions. MAPE skips zero actuals
// (a zero-demand hour would blow the ratio up); RMSE uses every pair.
// Both come back rounded to two decimals.
func (e *Engine) Accuracy(actual, predicted []float64) (models.AccuracyReport, error) {
	if len(actual) == 0 || len(predicted) == 0 {
		return models.AccuracyReport{}, &models.InvalidInputError{
			Field:  "actual",
			Reason: "series must not be empty",
		}
	}
	if len(actual) != len(predicted) {
		return models.AccuracyReport{}, &models.InvalidInputError{
			Field:  "predicted",
			Reason: fmt.Sprintf("length %d does not match actual length %d", len(predicted), len(actual)),
		}
	}

	sumAPE := 0.0
	apeCount := 0
	sumSq := 0.0
	for i := range actual {
		diff := actual[i] - predicted[i]
		sumSq += diff * diff
		if actual[i] != 0 {
			sumAPE += math.Abs(diff / actual[i])
			apeCount++
		}
	}

	mape := 0.0
	if apeCount > 0 {
		mape = sumAPE / float64(apeCount) * 100
	}
	rmse := math.Sqrt(sumSq / float64(len(actual)))

	return models.AccuracyReport{MAPE: round2(mape), RMSE: round2(rmse)}, nil
}
