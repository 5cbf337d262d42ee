package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"OpsPulse/internal/domain/models"
	domrepo "OpsPulse/internal/domain/repository"
	"OpsPulse/internal/service/ratelimit"
	"OpsPulse/internal/service/ws"
	"OpsPulse/internal/services/alerting"
	"OpsPulse/internal/usecase"
	xhttp "OpsPulse/pkg/http"
	applogger "OpsPulse/pkg/logger"
)

const healthTimeout = 2 * time.Second

// OpsEchoHandler exposes forecasting, risk scoring and the alert table
// over HTTP plus the websocket feed for live dashboards.
type OpsEchoHandler struct {
	logger   *applogger.Logger
	insights *usecase.InsightsUseCase
	engine   *alerting.Engine
	hub      *ws.Hub
	source   domrepo.MetricSource
	rl       *ratelimit.Limiter
}

func NewOpsEchoHandler(
	logger *applogger.Logger,
	insights *usecase.InsightsUseCase,
	engine *alerting.Engine,
	hub *ws.Hub,
	source domrepo.MetricSource,
) *OpsEchoHandler {
	return &OpsEchoHandler{
		logger:   logger,
		insights: insights,
		engine:   engine,
		hub:      hub,
		source:   source,
		rl:       ratelimit.New(),
	}
}

func (h *OpsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")

	g.GET("/forecast", h.Forecast)
	g.GET("/anomalies", h.Anomalies)
	g.GET("/accuracy", h.Accuracy)

	g.POST("/risk/score", h.ScoreRisk)
	g.POST("/risk/batch", h.ScoreRiskBatch)
	g.GET("/risk/importance", h.RiskImportance)
	g.GET("/risk/customers/:id", h.ScoreCustomer)

	g.POST("/alerts", h.CreateAlert)
	g.GET("/alerts", h.ListAlerts)
	g.GET("/alerts/active", h.ActiveAlerts)
	g.GET("/alerts/stats", h.AlertStats)
	g.GET("/alerts/:id", h.GetAlert)
	g.POST("/alerts/:id/acknowledge", h.AcknowledgeAlert)
	g.POST("/alerts/:id/resolve", h.ResolveAlert)
	g.POST("/alerts/:id/dismiss", h.DismissAlert)

	g.GET("/rules", h.Rules)

	e.GET("/ws/alerts", h.AlertSocket)
	e.GET("/healthz", h.Health)
}

// allow gates the model-fitting endpoints per client so one dashboard
// refresh loop cannot monopolize the fitter.
func (h *OpsEchoHandler) allow(c echo.Context, endpoint string) bool {
	return h.rl.Allow(c.RealIP()+":"+endpoint, 10, 5)
}

func (h *OpsEchoHandler) Forecast(c echo.Context) error {
	if !h.allow(c, "forecast") {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.insights.GetForecast(c.Request().Context(), usecase.ForecastParams{
		Metric:     req.Metric,
		Horizon:    req.Horizon,
		WindowDays: req.WindowDays,
	})
	if err != nil {
		return respondError(c, h.logger, "forecast", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *OpsEchoHandler) Anomalies(c echo.Context) error {
	if !h.allow(c, "anomalies") {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}
	req := &models.AnomalyScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.insights.GetAnomalies(c.Request().Context(), usecase.AnomalyParams{
		Metric:     req.Metric,
		WindowDays: req.WindowDays,
		Threshold:  req.Threshold,
	})
	if err != nil {
		return respondError(c, h.logger, "anomalies", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *OpsEchoHandler) Accuracy(c echo.Context) error {
	if !h.allow(c, "accuracy") {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}
	req := &models.AccuracyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.insights.GetAccuracy(c.Request().Context(), usecase.AccuracyParams{
		Metric:  req.Metric,
		Horizon: req.Horizon,
	})
	if err != nil {
		return respondError(c, h.logger, "accuracy", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *OpsEchoHandler) ScoreRisk(c echo.Context) error {
	req := &models.ScoreRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.insights.ScoreVector(c.Request().Context(), models.FeatureVector{
		EntityID: req.EntityID,
		Features: req.Features,
	})
	if err != nil {
		return respondError(c, h.logger, "risk score", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *OpsEchoHandler) ScoreRiskBatch(c echo.Context) error {
	req := &models.BatchScoreRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	vectors := make([]models.FeatureVector, 0, len(req.Vectors))
	for _, v := range req.Vectors {
		vectors = append(vectors, models.FeatureVector{EntityID: v.EntityID, Features: v.Features})
	}
	results, err := h.insights.ScoreBatch(c.Request().Context(), vectors)
	if err != nil {
		return respondError(c, h.logger, "risk batch", err)
	}
	return xhttp.ListResponse(c, results, int64(len(results)))
}

func (h *OpsEchoHandler) RiskImportance(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.insights.FeatureImportance())
}

func (h *OpsEchoHandler) ScoreCustomer(c echo.Context) error {
	res, err := h.insights.ScoreCustomer(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, "customer score", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *OpsEchoHandler) CreateAlert(c echo.Context) error {
	req := &models.CreateAlertRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	draft := alerting.Draft{
		Kind:     models.AlertKind(req.Kind),
		Severity: models.Severity(req.Severity),
		Title:    req.Title,
		Message:  req.Message,
		Source:   req.Source,
		Metadata: models.Metadata(req.Metadata),
	}
	for _, ch := range req.Channels {
		draft.Channels = append(draft.Channels, models.Channel(ch))
	}

	alert, err := h.engine.Create(c.Request().Context(), draft)
	if err != nil {
		return respondError(c, h.logger, "create alert", err)
	}
	return xhttp.CreatedResponse(c, alert)
}

func (h *OpsEchoHandler) ListAlerts(c echo.Context) error {
	req := &models.AlertListRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	alerts := h.engine.List(models.ListFilter{
		Status:   models.AlertStatus(req.Status),
		Severity: models.Severity(req.Severity),
		Kind:     models.AlertKind(req.Kind),
		Limit:    req.Limit,
	})
	return xhttp.ListResponse(c, alerts, int64(len(alerts)))
}

func (h *OpsEchoHandler) ActiveAlerts(c echo.Context) error {
	req := &models.ActiveAlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	alerts := h.engine.Active(models.Severity(req.Severity))
	return xhttp.ListResponse(c, alerts, int64(len(alerts)))
}

func (h *OpsEchoHandler) AlertStats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.Statistics())
}

func (h *OpsEchoHandler) GetAlert(c echo.Context) error {
	alert, err := h.engine.Get(c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, "get alert", err)
	}
	return xhttp.SuccessResponse(c, alert)
}

func (h *OpsEchoHandler) AcknowledgeAlert(c echo.Context) error {
	return h.transition(c, "acknowledge", h.engine.Acknowledge)
}

func (h *OpsEchoHandler) ResolveAlert(c echo.Context) error {
	return h.transition(c, "resolve", h.engine.Resolve)
}

func (h *OpsEchoHandler) DismissAlert(c echo.Context) error {
	return h.transition(c, "dismiss", h.engine.Dismiss)
}

// transition runs one lifecycle action. A refused action on an alert
// that exists is a state conflict, not a missing resource.
func (h *OpsEchoHandler) transition(c echo.Context, action string, fn func(id, by string) bool) error {
	id := c.Param("id")
	req := &models.AlertActionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if fn(id, req.By) {
		alert, err := h.engine.Get(id)
		if err != nil {
			return respondError(c, h.logger, action, err)
		}
		return xhttp.SuccessResponse(c, alert)
	}

	alert, err := h.engine.Get(id)
	if err != nil {
		return xhttp.NotFoundResponse(c, []*xhttp.AppError{
			xhttp.NotFoundErrorf("alert %q not found", id),
		})
	}
	return xhttp.ConflictResponse(c, []*xhttp.AppError{
		xhttp.ConflictErrorf("cannot %s alert in status %s", action, alert.Status),
	})
}

func (h *OpsEchoHandler) Rules(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.Rules())
}

func (h *OpsEchoHandler) AlertSocket(c echo.Context) error {
	h.hub.ServeHTTP(c.Response(), c.Request())
	return nil
}

func (h *OpsEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	if err := h.source.Health(ctx); err != nil {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
