package models

// RiskTier buckets a probability into an operational urgency level.
type RiskTier string

const (
	TierCritical RiskTier = "critical"
	TierHigh     RiskTier = "high"
	TierMedium   RiskTier = "medium"
	TierLow      RiskTier = "low"
)

// TierRank orders tiers by urgency (critical first). Unknown tiers sort last.
func TierRank(t RiskTier) int {
	switch t {
	case TierCritical:
		return 0
	case TierHigh:
		return 1
	case TierMedium:
		return 2
	case TierLow:
		return 3
	default:
		return 4
	}
}

// FeatureVector is the named numeric feature set of one scored entity
// (a customer, in the churn model). Missing declared features fall back
// to model defaults and lower the result confidence; they are not errors.
type FeatureVector struct {
	EntityID string             `json:"entityId"`
	Features map[string]float64 `json:"features"`
}

// RiskFactor explains one contribution to a risk score. Impact is
// negative-signed severity: the more negative, the worse.
type RiskFactor struct {
	Factor      string  `json:"factor"`
	Impact      float64 `json:"impact"`
	Description string  `json:"description"`
}

// ScoreResult is the outcome of scoring one entity.
type ScoreResult struct {
	EntityID           string       `json:"entityId"`
	Probability        float64      `json:"probability"`
	Tier               RiskTier     `json:"riskTier"`
	RankedFactors      []RiskFactor `json:"rankedFactors"`
	RecommendedActions []string     `json:"recommendedActions"`
	Confidence         float64      `json:"confidence"`
}

// FeatureImportance reports the absolute model weight of one feature.
type FeatureImportance struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}
