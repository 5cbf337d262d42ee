package risk_test

import (
	"errors"
	"math"
	"testing"

	"OpsPulse/internal/domain/models"
	"OpsPulse/internal/services/risk"
)

func newScorer() *risk.Scorer {
	return risk.New(risk.DefaultModel())
}

// healthyCustomer is an engaged, long-tenured account as a baseline.
func healthyCustomer(id string) models.FeatureVector {
	return models.FeatureVector{
		EntityID: id,
		Features: map[string]float64{
			risk.FeatureDaysSinceSession: 2,
			risk.FeatureSessionVelocity:  3,
			risk.FeatureAverageRating:    4.8,
			risk.FeatureSupportTickets:   1,
			risk.FeatureCancellationRate: 0.05,
			risk.FeatureTenureDays:       365,
			risk.FeatureSessionCount:     40,
		},
	}
}

func factorNames(factors []models.RiskFactor) []string {
	names := make([]string, len(factors))
	for i, f := range factors {
		names[i] = f.Factor
	}
	return names
}

func TestTierBoundaries(t *testing.T) {
	s := newScorer()

	tests := []struct {
		probability float64
		want        models.RiskTier
	}{
		{0.95, models.TierCritical},
		{0.70, models.TierCritical}, // boundary is inclusive
		{0.6999, models.TierHigh},
		{0.50, models.TierHigh},
		{0.4999, models.TierMedium},
		{0.30, models.TierMedium},
		{0.2999, models.TierLow},
		{0.0, models.TierLow},
	}
	for _, tt := range tests {
		if got := s.TierFor(tt.probability); got != tt.want {
			t.Errorf("TierFor(%v) = %s, want %s", tt.probability, got, tt.want)
		}
	}
}

func TestScoreInactiveCustomerIsCritical(t *testing.T) {
	s := newScorer()

	res, err := s.Score(models.FeatureVector{
		EntityID: "cust-42",
		Features: map[string]float64{
			risk.FeatureAverageRating:    2.0,
			risk.FeatureDaysSinceSession: 25,
			risk.FeatureSessionVelocity:  0.2,
		},
	})
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if res.Tier != models.TierCritical {
		t.Errorf("expected critical tier, got %s (p=%v)", res.Tier, res.Probability)
	}
	if res.Probability < 0.70 || res.Probability >= 1 {
		t.Errorf("probability %v outside expected range", res.Probability)
	}
	if len(res.RankedFactors) == 0 || res.RankedFactors[0].Factor != risk.LabelInactive {
		t.Errorf("expected %q as the leading factor, got %v", risk.LabelInactive, factorNames(res.RankedFactors))
	}
	if len(res.RecommendedActions) == 0 {
		t.Error("expected recommended actions for a critical customer")
	}
}

func TestScoreHealthyCustomerIsLow(t *testing.T) {
	s := newScorer()

	res, err := s.Score(healthyCustomer("cust-1"))
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if res.Tier != models.TierLow {
		t.Errorf("expected low tier, got %s (p=%v)", res.Tier, res.Probability)
	}
	if res.Probability <= 0 || res.Probability >= 0.30 {
		t.Errorf("unexpected probability %v", res.Probability)
	}
	if len(res.RankedFactors) != 0 {
		t.Errorf("healthy customer should have no factors, got %v", factorNames(res.RankedFactors))
	}
	if res.Confidence != 1.0 {
		t.Errorf("full vector with history should have confidence 1.0, got %v", res.Confidence)
	}
}

func TestScoreProbabilityStaysOpen(t *testing.T) {
	s := newScorer()

	worst := models.FeatureVector{
		EntityID: "worst",
		Features: map[string]float64{
			risk.FeatureDaysSinceSession: 30,
			risk.FeatureSessionVelocity:  0,
			risk.FeatureAverageRating:    0,
			risk.FeatureSupportTickets:   10,
			risk.FeatureCancellationRate: 1,
			risk.FeatureTenureDays:       0,
			risk.FeatureSessionCount:     0,
		},
	}
	res, err := s.Score(worst)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if res.Probability <= 0 || res.Probability >= 1 {
		t.Errorf("probability must stay strictly inside (0,1), got %v", res.Probability)
	}
}

func TestScoreFactorsSortedAndCapped(t *testing.T) {
	s := newScorer()

	res, err := s.Score(models.FeatureVector{
		EntityID: "cust-all-bad",
		Features: map[string]float64{
			risk.FeatureDaysSinceSession: 29,
			risk.FeatureSessionVelocity:  0.1,
			risk.FeatureAverageRating:    1.0,
			risk.FeatureSupportTickets:   9,
			risk.FeatureCancellationRate: 0.9,
			risk.FeatureTenureDays:       5,
			risk.FeatureSessionCount:     1,
		},
	})
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if len(res.RankedFactors) != 5 {
		t.Fatalf("expected factor cap of 5, got %d: %v", len(res.RankedFactors), factorNames(res.RankedFactors))
	}
	for i := 1; i < len(res.RankedFactors); i++ {
		if res.RankedFactors[i-1].Impact > res.RankedFactors[i].Impact {
			t.Errorf("factors not sorted most-negative-first: %v", res.RankedFactors)
		}
	}
	for _, f := range res.RankedFactors {
		if f.Impact >= 0 {
			t.Errorf("factor impact must be negative, got %+v", f)
		}
	}
	if len(res.RecommendedActions) > 5 {
		t.Errorf("recommendations exceed cap: %v", res.RecommendedActions)
	}
}

func TestScoreMissingFeaturesLowerConfidence(t *testing.T) {
	s := newScorer()

	res, err := s.Score(models.FeatureVector{
		EntityID: "cust-thin",
		Features: map[string]float64{
			risk.FeatureDaysSinceSession: 10,
		},
	})
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	// Five declared features missing plus no session history:
	// 0.95^5 * 0.75.
	want := math.Pow(0.95, 5) * 0.75
	if math.Abs(res.Confidence-want) > 0.001 {
		t.Errorf("expected confidence %.4f, got %v", want, res.Confidence)
	}
}

func TestScoreOnboardingActionsDeduped(t *testing.T) {
	s := newScorer()

	v := healthyCustomer("cust-new")
	v.Features[risk.FeatureTenureDays] = 5

	res, err := s.Score(v)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	// The New Account factor and the onboarding fallback share an action;
	// it must appear once.
	seen := map[string]int{}
	for _, a := range res.RecommendedActions {
		seen[a]++
	}
	for a, n := range seen {
		if n > 1 {
			t.Errorf("action %q recommended %d times", a, n)
		}
	}
	if len(res.RecommendedActions) == 0 {
		t.Error("expected onboarding recommendations for a young account")
	}
}

func TestScoreRejectsEmptyEntity(t *testing.T) {
	s := newScorer()

	_, err := s.Score(models.FeatureVector{Features: map[string]float64{"x": 1}})
	var iie *models.InvalidInputError
	if !errors.As(err, &iie) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

func TestBatchScorePreservesOrder(t *testing.T) {
	s := newScorer()

	results, err := s.BatchScore([]models.FeatureVector{
		healthyCustomer("a"),
		healthyCustomer("b"),
		healthyCustomer("c"),
	})
	if err != nil {
		t.Fatalf("batch score failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, id := range []string{"a", "b", "c"} {
		if results[i].EntityID != id {
			t.Errorf("result %d: expected entity %s, got %s", i, id, results[i].EntityID)
		}
	}
}

func TestFeatureImportanceSorted(t *testing.T) {
	s := newScorer()

	imp := s.FeatureImportance()
	if len(imp) != 6 {
		t.Fatalf("expected 6 features, got %d", len(imp))
	}
	if imp[0].Feature != risk.FeatureDaysSinceSession {
		t.Errorf("expected %s first, got %s", risk.FeatureDaysSinceSession, imp[0].Feature)
	}
	for i := 1; i < len(imp); i++ {
		if imp[i-1].Weight < imp[i].Weight {
			t.Errorf("importance not sorted descending at %d: %v", i, imp)
		}
	}
	for _, fi := range imp {
		if fi.Weight < 0 {
			t.Errorf("importance must be absolute, got %+v", fi)
		}
	}
}
