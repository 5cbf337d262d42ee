package models

// Requests for the ops HTTP endpoints. Defined in domain for consistency and reuse.

type ForecastRequest struct {
	Metric     string `query:"metric" json:"metric" validate:"required"`
	Horizon    int    `query:"horizon" json:"horizon" default:"24" validate:"gte=1,lte=168"`
	WindowDays int    `query:"window_days" json:"window_days" default:"14" validate:"gte=1,lte=90"`
}

type AnomalyScanRequest struct {
	Metric     string  `query:"metric" json:"metric" validate:"required"`
	WindowDays int     `query:"window_days" json:"window_days" default:"7" validate:"gte=1,lte=90"`
	Threshold  float64 `query:"threshold" json:"threshold" default:"2.5" validate:"gte=0.5,lte=10"`
}

type AccuracyRequest struct {
	Metric  string `query:"metric" json:"metric" validate:"required"`
	Horizon int    `query:"horizon" json:"horizon" default:"24" validate:"gte=1,lte=168"`
}

type ScoreRequest struct {
	EntityID string             `json:"entityId" validate:"required"`
	Features map[string]float64 `json:"features" validate:"required,min=1"`
}

type BatchScoreRequest struct {
	Vectors []ScoreRequest `json:"vectors" validate:"required,min=1,max=500,dive"`
}

type CreateAlertRequest struct {
	Kind     string         `json:"kind" validate:"required,oneof=anomaly threshold system performance"`
	Severity string         `json:"severity" validate:"required,oneof=critical high medium low"`
	Title    string         `json:"title" validate:"required,max=200"`
	Message  string         `json:"message" validate:"required,max=2000"`
	Source   string         `json:"source" default:"operator" validate:"max=100"`
	Metadata map[string]any `json:"metadata"`
	Channels []string       `json:"channels" validate:"omitempty,dive,oneof=dashboard email webhook sms"`
}

type AlertListRequest struct {
	Status   string `query:"status" json:"status" validate:"omitempty,oneof=active acknowledged resolved dismissed"`
	Severity string `query:"severity" json:"severity" validate:"omitempty,oneof=critical high medium low"`
	Kind     string `query:"kind" json:"kind" validate:"omitempty,oneof=anomaly threshold system performance"`
	Limit    int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type ActiveAlertsRequest struct {
	Severity string `query:"severity" json:"severity" validate:"omitempty,oneof=critical high medium low"`
}

type AlertActionRequest struct {
	By string `json:"by" default:"operator" validate:"max=100"`
}
