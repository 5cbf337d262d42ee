package forecast

import (
	"math"
	"time"

	"OpsPulse/internal/domain/models"
)

const (
	// defaultSeasonalPeriod is the daily cycle for hourly metrics.
	defaultSeasonalPeriod = 24

	// DefaultAnomalyThreshold is the z-score cutoff used when callers
	// pass a non-positive threshold.
	DefaultAnomalyThreshold = 2.5
)

// dailyDivisors are the candidate cycle lengths tried for short series,
// largest first. All divide 24 so phases stay aligned to hours.
var dailyDivisors = []int{24, 12, 8, 6, 4, 3, 2}

// Config holds the smoothing and confidence knobs. Zero values fall back
// to the defaults below, so Config{} is usable.
type Config struct {
	SeasonalPeriod  int     // fixed cycle length; 0 = auto-detect
	Alpha           float64 // level smoothing
	Beta            float64 // trend smoothing
	Gamma           float64 // seasonal smoothing
	MinObservations int     // fewer points than this is an error
	FullWeekPoints  int     // hourly points in a full week of history

	BaseConfidence        float64 // starting confidence per step
	MinConfidence         float64 // floor after all penalties
	HorizonDecay          float64 // confidence decay rate per cycle of horizon
	VariancePenaltyWeight float64 // confidence penalty per unit of residual CV
	MaxVariancePenalty    float64 // cap on the variance penalty
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Alpha:                 0.35,
		Beta:                  0.08,
		Gamma:                 0.2,
		MinObservations:       24,
		FullWeekPoints:        168,
		BaseConfidence:        0.95,
		MinConfidence:         0.4,
		HorizonDecay:          0.3,
		VariancePenaltyWeight: 0.5,
		MaxVariancePenalty:    0.25,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Alpha <= 0 || c.Alpha >= 1 {
		c.Alpha = def.Alpha
	}
	if c.Beta <= 0 || c.Beta >= 1 {
		c.Beta = def.Beta
	}
	if c.Gamma <= 0 || c.Gamma >= 1 {
		c.Gamma = def.Gamma
	}
	if c.MinObservations <= 0 {
		c.MinObservations = def.MinObservations
	}
	if c.FullWeekPoints <= 0 {
		c.FullWeekPoints = def.FullWeekPoints
	}
	if c.BaseConfidence <= 0 || c.BaseConfidence > 1 {
		c.BaseConfidence = def.BaseConfidence
	}
	if c.MinConfidence <= 0 || c.MinConfidence > c.BaseConfidence {
		c.MinConfidence = def.MinConfidence
	}
	if c.HorizonDecay <= 0 {
		c.HorizonDecay = def.HorizonDecay
	}
	if c.VariancePenaltyWeight <= 0 {
		c.VariancePenaltyWeight = def.VariancePenaltyWeight
	}
	if c.MaxVariancePenalty <= 0 || c.MaxVariancePenalty >= 1 {
		c.MaxVariancePenalty = def.MaxVariancePenalty
	}
	return c
}

// Engine forecasts operational metric series using additive triple
// exponential smoothing (level + trend + zero-sum seasonal offsets).
// It is pure and stateless: safe for concurrent use.
type Engine struct {
	cfg Config
}

// New creates a forecast engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// fit is the smoothed state after one pass over a series.
type fit struct {
	level       float64
	trend       float64
	seasonal    []float64 // len == period, sums to zero; nil for trend-only fits
	period      int
	residualStd float64
}

// Forecast projects the series horizon steps forward. Each step carries
// a widening confidence interval, a confidence value non-increasing in
// the horizon, and a risk tier for how far the prediction sits from the
// historical mean.
func (e *Engine) Forecast(series models.MetricSeries, horizon int) ([]models.ForecastPoint, error) {
	if horizon <= 0 {
		return nil, &models.InvalidInputError{Field: "horizon", Reason: "must be at least 1"}
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	values := series.Values()
	n := len(values)
	if n < e.cfg.MinObservations {
		return nil, &models.InsufficientDataError{Metric: series.Metric, Points: n, Required: e.cfg.MinObservations}
	}

	period := e.cfg.SeasonalPeriod
	if period <= 0 {
		period = detectPeriod(n, e.cfg.FullWeekPoints)
	}

	var f fit
	if period >= 2 && n >= 2*period {
		f = fitHoltWinters(values, period, e.cfg)
	} else {
		// Not enough history for a full seasonal decomposition.
		f = fitHolt(values, e.cfg)
		f.period = period
		if f.period < 2 {
			f.period = defaultSeasonalPeriod
		}
	}

	mean, std := meanStd(values)
	weekFrac := float64(n) / float64(e.cfg.FullWeekPoints)
	if weekFrac > 1 {
		weekFrac = 1
	}
	step := series.Step(time.Hour)
	last := series.Points[n-1].Timestamp

	out := make([]models.ForecastPoint, 0, horizon)
	for h := 1; h <= horizon; h++ {
		pred := f.level + float64(h)*f.trend
		if f.seasonal != nil {
			pred += f.seasonal[(n+h-1)%f.period]
		}
		if pred < 0 {
			pred = 0
		}

		conf := e.confidence(weekFrac, h, f)
		margin := zMultiplier(conf) * f.residualStd * math.Sqrt(1+float64(h)/float64(f.period))
		lower := pred - margin
		if lower < 0 {
			lower = 0
		}

		out = append(out, models.ForecastPoint{
			Timestamp:  last.Add(time.Duration(h) * step),
			Predicted:  round2(pred),
			LowerBound: round2(lower),
			UpperBound: round2(pred + margin),
			Confidence: round2(conf),
			RiskTier:   tierForDeviation(pred, mean, std),
		})
	}
	return out, nil
}

// confidence scales BaseConfidence by history depth, horizon distance,
// and residual noise, then clamps to [MinConfidence, BaseConfidence].
func (e *Engine) confidence(weekFrac float64, h int, f fit) float64 {
	conf := e.cfg.BaseConfidence * weekFrac
	conf /= 1 + e.cfg.HorizonDecay*float64(h)/float64(f.period)

	cv := 0.0
	if base := math.Abs(f.level); base > 1e-9 {
		cv = f.residualStd / base
	}
	penalty := e.cfg.VariancePenaltyWeight * cv
	if penalty > e.cfg.MaxVariancePenalty {
		penalty = e.cfg.MaxVariancePenalty
	}
	conf *= 1 - penalty

	if conf < e.cfg.MinConfidence {
		conf = e.cfg.MinConfidence
	}
	if conf > e.cfg.BaseConfidence {
		conf = e.cfg.BaseConfidence
	}
	return conf
}

// detectPeriod picks the seasonal cycle for n observations: the daily
// cycle once a full week of history exists, otherwise the largest daily
// divisor that still leaves two full cycles in the data.
func detectPeriod(n, fullWeek int) int {
	if n >= fullWeek {
		return defaultSeasonalPeriod
	}
	for _, p := range dailyDivisors {
		if 2*p <= n {
			return p
		}
	}
	return 0
}

// fitHoltWinters runs one additive smoothing pass. Seasonal offsets are
// initialized from per-cycle deviations and renormalized to sum to zero
// at the end, folding any drift back into the level.
func fitHoltWinters(values []float64, period int, cfg Config) fit {
	n := len(values)
	cycles := n / period

	level := mean(values[:period])
	trend := (mean(values[period:2*period]) - level) / float64(period)

	seasonal := make([]float64, period)
	for i := 0; i < period; i++ {
		sum := 0.0
		for k := 0; k < cycles; k++ {
			cycle := values[k*period : (k+1)*period]
			sum += values[k*period+i] - mean(cycle)
		}
		seasonal[i] = sum / float64(cycles)
	}
	normalizeSeasonal(seasonal)

	residuals := make([]float64, 0, n-period)
	for t := 0; t < n; t++ {
		x := values[t]
		idx := t % period

		predicted := level + trend + seasonal[idx]
		if t >= period {
			residuals = append(residuals, x-predicted)
		}

		prevLevel := level
		level = cfg.Alpha*(x-seasonal[idx]) + (1-cfg.Alpha)*(level+trend)
		trend = cfg.Beta*(level-prevLevel) + (1-cfg.Beta)*trend
		seasonal[idx] = cfg.Gamma*(x-level) + (1-cfg.Gamma)*seasonal[idx]
	}

	// Smoothing updates let the offsets drift off zero-sum; shift the
	// drift into the level so the invariant holds for projections.
	drift := mean(seasonal)
	for i := range seasonal {
		seasonal[i] -= drift
	}
	level += drift

	return fit{
		level:       level,
		trend:       trend,
		seasonal:    seasonal,
		period:      period,
		residualStd: stdDev(residuals),
	}
}

// fitHolt is the trend-only fallback for series shorter than two cycles.
func fitHolt(values []float64, cfg Config) fit {
	level := values[0]
	trend := values[1] - values[0]

	residuals := make([]float64, 0, len(values)-1)
	for t := 1; t < len(values); t++ {
		x := values[t]
		residuals = append(residuals, x-(level+trend))

		prevLevel := level
		level = cfg.Alpha*x + (1-cfg.Alpha)*(level+trend)
		trend = cfg.Beta*(level-prevLevel) + (1-cfg.Beta)*trend
	}

	return fit{
		level:       level,
		trend:       trend,
		residualStd: stdDev(residuals),
	}
}

func normalizeSeasonal(seasonal []float64) {
	drift := mean(seasonal)
	for i := range seasonal {
		seasonal[i] -= drift
	}
}

// Deviation cutoffs, in historical standard deviations, for tagging
// forecast points with a risk tier.
const (
	criticalSigma = 3.0
	highSigma     = 2.0
	mediumSigma   = 1.5
)

func tierForDeviation(predicted, mean, std float64) models.RiskTier {
	if std <= 0 {
		return models.TierLow
	}
	z := math.Abs(predicted-mean) / std
	switch {
	case z >= criticalSigma:
		return models.TierCritical
	case z >= highSigma:
		return models.TierHigh
	case z >= mediumSigma:
		return models.TierMedium
	default:
		return models.TierLow
	}
}

// zMultiplier maps a confidence value onto a one-sided normal quantile
// for interval widths. Stepped rather than exact: interval width should
// track confidence bands, not chase decimal noise.
func zMultiplier(conf float64) float64 {
	switch {
	case conf >= 0.9:
		return 1.64
	case conf >= 0.8:
		return 1.28
	case conf >= 0.7:
		return 1.04
	case conf >= 0.6:
		return 0.84
	default:
		return 0.67
	}
}
