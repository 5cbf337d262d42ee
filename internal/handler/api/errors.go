package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"OpsPulse/internal/domain/models"
	xhttp "OpsPulse/pkg/http"
	applogger "OpsPulse/pkg/logger"
)

// respondError translates domain errors into the API envelope. Client
// mistakes map to 400/404 without log noise; anything unrecognized is a
// 500 and gets logged.
func respondError(c echo.Context, l *applogger.Logger, op string, err error) error {
	var (
		notFound     *models.NotFoundError
		invalidInput *models.InvalidInputError
		insufficient *models.InsufficientDataError
	)
	switch {
	case errors.As(err, &notFound):
		return xhttp.NotFoundResponse(c, []*xhttp.AppError{
			xhttp.NotFoundError(notFound.Error()),
		})
	case errors.As(err, &invalidInput):
		appErr := xhttp.BadRequestError(invalidInput.Reason)
		appErr.Field = invalidInput.Field
		return xhttp.BadRequestResponse(c, []*xhttp.AppError{appErr})
	case errors.As(err, &insufficient):
		appErr := xhttp.BadRequestError(insufficient.Error()).
			WithParam("points", insufficient.Points).
			WithParam("required", insufficient.Required)
		return xhttp.BadRequestResponse(c, []*xhttp.AppError{appErr})
	default:
		if l != nil {
			l.Error(op+" failed", applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
}
