package risk

// Canonical churn-model feature names. The warehouse feature vectors and
// the YAML weight overrides both use these keys.
const (
	FeatureSessionVelocity  = "sessionVelocity"
	FeatureDaysSinceSession = "daysSinceLastSession"
	FeatureAverageRating    = "averageRating"
	FeatureSupportTickets   = "supportTickets"
	FeatureCancellationRate = "cancellationRate"
	FeatureTenureDays       = "tenureDays"

	// FeatureSessionCount carries no weight; it only informs confidence
	// and the onboarding recommendations.
	FeatureSessionCount = "sessionCount"
)

// FeatureSpec describes one weighted model feature. Values are divided
// by Cap and clamped to [0,1] before weighting, so weights stay
// comparable across features. Concern is in raw units: crossing it (in
// the direction the weight sign implies) surfaces an explainability
// factor.
type FeatureSpec struct {
	Name        string  `yaml:"name"`
	Weight      float64 `yaml:"weight"`
	Cap         float64 `yaml:"cap"`
	Default     float64 `yaml:"default"`
	Concern     float64 `yaml:"concern"`
	Label       string  `yaml:"label"`
	Description string  `yaml:"description"`
}

// ModelConfig is the full churn model: logistic weights, tier cutoffs,
// explainability caps, and confidence penalties. Everything here is
// overridable from YAML; DefaultModel is the production baseline.
type ModelConfig struct {
	Intercept float64       `yaml:"intercept"`
	Features  []FeatureSpec `yaml:"features"`

	// Probability cutoffs, inclusive at each boundary.
	CriticalThreshold float64 `yaml:"critical_threshold"`
	HighThreshold     float64 `yaml:"high_threshold"`
	MediumThreshold   float64 `yaml:"medium_threshold"`

	MaxFactors         int `yaml:"max_factors"`
	MaxRecommendations int `yaml:"max_recommendations"`

	// Confidence penalties.
	MinHistoryObservations int     `yaml:"min_history_observations"`
	MinTenureDays          float64 `yaml:"min_tenure_days"`
	LowHistoryPenalty      float64 `yaml:"low_history_penalty"`
	LowTenurePenalty       float64 `yaml:"low_tenure_penalty"`
	MissingFeaturePenalty  float64 `yaml:"missing_feature_penalty"`

	// Actions maps a factor label to the playbook steps it suggests.
	Actions map[string][]string `yaml:"actions"`

	// OnboardingActions are appended for low-tenure or low-history
	// entities regardless of which factors fired.
	OnboardingActions []string `yaml:"onboarding_actions"`
}

// Factor labels surfaced to operators. The churn sweep and the action
// playbook key off these strings.
const (
	LabelInactive       = "Inactive Account"
	LabelLowEngagement  = "Low Engagement"
	LabelPoorQuality    = "Poor Session Quality"
	LabelSupportContact = "Elevated Support Contact"
	LabelCancellations  = "Frequent Cancellations"
	LabelNewAccount     = "New Account"
)

// DefaultModel returns the baseline churn model. Weights are signed:
// positive pushes toward churn, negative away from it.
func DefaultModel() ModelConfig {
	return ModelConfig{
		Intercept: -0.5,
		Features: []FeatureSpec{
			{
				Name:        FeatureDaysSinceSession,
				Weight:      2.8,
				Cap:         30,
				Default:     7,
				Concern:     14,
				Label:       LabelInactive,
				Description: "No sessions booked for an extended stretch",
			},
			{
				Name:        FeatureSessionVelocity,
				Weight:      -2.0,
				Cap:         10,
				Default:     1,
				Concern:     0.5,
				Label:       LabelLowEngagement,
				Description: "Weekly session rate has dropped near zero",
			},
			{
				Name:        FeatureAverageRating,
				Weight:      -1.5,
				Cap:         5,
				Default:     4,
				Concern:     3,
				Label:       LabelPoorQuality,
				Description: "Recent session ratings are well below par",
			},
			{
				Name:        FeatureCancellationRate,
				Weight:      1.2,
				Cap:         1,
				Default:     0,
				Concern:     0.25,
				Label:       LabelCancellations,
				Description: "A high share of booked sessions get cancelled",
			},
			{
				Name:        FeatureSupportTickets,
				Weight:      1.0,
				Cap:         10,
				Default:     0,
				Concern:     3,
				Label:       LabelSupportContact,
				Description: "Support contact volume is unusually high",
			},
			{
				Name:        FeatureTenureDays,
				Weight:      -0.5,
				Cap:         365,
				Default:     180,
				Concern:     30,
				Label:       LabelNewAccount,
				Description: "Account is still inside its first month",
			},
		},
		CriticalThreshold:      0.70,
		HighThreshold:          0.50,
		MediumThreshold:        0.30,
		MaxFactors:             5,
		MaxRecommendations:     5,
		MinHistoryObservations: 3,
		MinTenureDays:          14,
		LowHistoryPenalty:      0.75,
		LowTenurePenalty:       0.85,
		MissingFeaturePenalty:  0.95,
		Actions: map[string][]string{
			LabelInactive: {
				"Schedule a win-back call with the customer",
				"Send a personalized re-engagement offer",
			},
			LabelLowEngagement: {
				"Offer a discounted session bundle",
				"Suggest tutors matched to past subjects",
			},
			LabelPoorQuality: {
				"Review recent session feedback with the tutor",
				"Offer a session with a top-rated tutor",
			},
			LabelSupportContact: {
				"Escalate open support tickets for same-day follow-up",
			},
			LabelCancellations: {
				"Investigate scheduling conflicts and offer flexible slots",
			},
			LabelNewAccount: {
				"Enroll the customer in the onboarding check-in program",
			},
		},
		OnboardingActions: []string{
			"Enroll the customer in the onboarding check-in program",
			"Schedule a first-month progress review",
		},
	}
}

func (m ModelConfig) withDefaults() ModelConfig {
	def := DefaultModel()
	if len(m.Features) == 0 {
		m.Features = def.Features
	}
	if m.CriticalThreshold <= 0 {
		m.CriticalThreshold = def.CriticalThreshold
	}
	if m.HighThreshold <= 0 {
		m.HighThreshold = def.HighThreshold
	}
	if m.MediumThreshold <= 0 {
		m.MediumThreshold = def.MediumThreshold
	}
	if m.MaxFactors <= 0 {
		m.MaxFactors = def.MaxFactors
	}
	if m.MaxRecommendations <= 0 {
		m.MaxRecommendations = def.MaxRecommendations
	}
	if m.MinHistoryObservations <= 0 {
		m.MinHistoryObservations = def.MinHistoryObservations
	}
	if m.MinTenureDays <= 0 {
		m.MinTenureDays = def.MinTenureDays
	}
	if m.LowHistoryPenalty <= 0 || m.LowHistoryPenalty > 1 {
		m.LowHistoryPenalty = def.LowHistoryPenalty
	}
	if m.LowTenurePenalty <= 0 || m.LowTenurePenalty > 1 {
		m.LowTenurePenalty = def.LowTenurePenalty
	}
	if m.MissingFeaturePenalty <= 0 || m.MissingFeaturePenalty > 1 {
		m.MissingFeaturePenalty = def.MissingFeaturePenalty
	}
	if m.Actions == nil {
		m.Actions = def.Actions
	}
	if m.OnboardingActions == nil {
		m.OnboardingActions = def.OnboardingActions
	}
	return m
}
