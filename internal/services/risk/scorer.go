package risk

import (
	"math"
	"sort"

	"OpsPulse/internal/domain/models"
)

// Scorer turns customer feature vectors into churn probabilities with
// ranked factors and recommended actions. Weighted logistic model, no
// training at runtime: weights come from ModelConfig. Pure and
// stateless; safe for concurrent use.
type Scorer struct {
	cfg ModelConfig
}

// New creates a scorer from the given model.
func New(cfg ModelConfig) *Scorer {
	return &Scorer{cfg: cfg.withDefaults()}
}

// Score computes the churn risk for one entity. Missing declared
// features fall back to their model defaults and reduce confidence;
// they never fail the call.
func (s *Scorer) Score(vector models.FeatureVector) (models.ScoreResult, error) {
	if vector.EntityID == "" {
		return models.ScoreResult{}, &models.InvalidInputError{Field: "entityId", Reason: "must not be empty"}
	}

	z := s.cfg.Intercept
	missing := 0
	var factors []models.RiskFactor

	for _, spec := range s.cfg.Features {
		raw, ok := vector.Features[spec.Name]
		if !ok {
			raw = spec.Default
			missing++
		}
		norm := clamp01(raw / spec.Cap)
		z += spec.Weight * norm

		if f, concerned := s.factorFor(spec, norm); concerned {
			factors = append(factors, f)
		}
	}

	probability := sigmoid(z)

	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Impact < factors[j].Impact
	})
	if len(factors) > s.cfg.MaxFactors {
		factors = factors[:s.cfg.MaxFactors]
	}

	return models.ScoreResult{
		EntityID:           vector.EntityID,
		Probability:        round4(probability),
		Tier:               s.TierFor(probability),
		RankedFactors:      factors,
		RecommendedActions: s.recommend(factors, vector),
		Confidence:         round4(s.confidence(vector, missing)),
	}, nil
}

// BatchScore scores vectors element-wise, preserving order. The first
// invalid vector fails the batch.
func (s *Scorer) BatchScore(vectors []models.FeatureVector) ([]models.ScoreResult, error) {
	out := make([]models.ScoreResult, 0, len(vectors))
	for _, v := range vectors {
		res, err := s.Score(v)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// TierFor buckets a probability. Boundaries are inclusive: exactly 0.70
// is critical, exactly 0.50 is high, exactly 0.30 is medium.
func (s *Scorer) TierFor(probability float64) models.RiskTier {
	switch {
	case probability >= s.cfg.CriticalThreshold:
		return models.TierCritical
	case probability >= s.cfg.HighThreshold:
		return models.TierHigh
	case probability >= s.cfg.MediumThreshold:
		return models.TierMedium
	default:
		return models.TierLow
	}
}

// FeatureImportance reports absolute weights, largest first. Ties keep
// the model's declaration order.
func (s *Scorer) FeatureImportance() []models.FeatureImportance {
	out := make([]models.FeatureImportance, 0, len(s.cfg.Features))
	for _, spec := range s.cfg.Features {
		out = append(out, models.FeatureImportance{
			Feature: spec.Name,
			Weight:  math.Abs(spec.Weight),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Weight > out[j].Weight
	})
	return out
}

// factorFor checks one feature against its concern threshold. The weight
// sign gives the risky direction: positive weights worry high, negative
// weights worry low. Impact is -|weight| scaled by how far past the
// threshold the value sits.
func (s *Scorer) factorFor(spec FeatureSpec, norm float64) (models.RiskFactor, bool) {
	concern := clamp01(spec.Concern / spec.Cap)

	var ratio float64
	if spec.Weight >= 0 {
		if norm < concern || concern >= 1 {
			return models.RiskFactor{}, false
		}
		ratio = (norm - concern) / (1 - concern)
	} else {
		if norm > concern || concern <= 0 {
			return models.RiskFactor{}, false
		}
		ratio = (concern - norm) / concern
	}

	return models.RiskFactor{
		Factor:      spec.Label,
		Impact:      round2(-math.Abs(spec.Weight) * clamp01(ratio)),
		Description: spec.Description,
	}, true
}

// recommend collects the playbook actions for the triggered factors,
// appends the onboarding actions for young or thin accounts, dedupes
// preserving order, and caps the list.
func (s *Scorer) recommend(factors []models.RiskFactor, vector models.FeatureVector) []string {
	var actions []string
	for _, f := range factors {
		actions = append(actions, s.cfg.Actions[f.Factor]...)
	}
	if vector.Features[FeatureSessionCount] < float64(s.cfg.MinHistoryObservations) ||
		s.tenure(vector) < s.cfg.MinTenureDays {
		actions = append(actions, s.cfg.OnboardingActions...)
	}

	seen := make(map[string]struct{}, len(actions))
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
		if len(out) == s.cfg.MaxRecommendations {
			break
		}
	}
	return out
}

// confidence starts at 1.0 and shrinks for thin history, young accounts,
// and every missing declared feature.
func (s *Scorer) confidence(vector models.FeatureVector, missing int) float64 {
	conf := 1.0
	if vector.Features[FeatureSessionCount] < float64(s.cfg.MinHistoryObservations) {
		conf *= s.cfg.LowHistoryPenalty
	}
	if s.tenure(vector) < s.cfg.MinTenureDays {
		conf *= s.cfg.LowTenurePenalty
	}
	for i := 0; i < missing; i++ {
		conf *= s.cfg.MissingFeaturePenalty
	}
	return conf
}

// tenure reads the effective tenure, falling back to the model default
// when the vector does not carry it.
func (s *Scorer) tenure(vector models.FeatureVector) float64 {
	if v, ok := vector.Features[FeatureTenureDays]; ok {
		return v
	}
	for _, spec := range s.cfg.Features {
		if spec.Name == FeatureTenureDays {
			return spec.Default
		}
	}
	return 0
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
