package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/komodo-sh/komodo/pkg/types"
)

// mapError maps core errors to HTTP error responses.
func mapError(err error) *echo.HTTPError {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	}
	if errors.Is(err, types.ErrUnauthenticated) {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}
	// Read-denial wraps ErrNotFound so missing and invisible resources are
	// indistinguishable to the caller.
	if errors.Is(err, types.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	if errors.Is(err, types.ErrForbidden) {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if errors.Is(err, types.ErrBusy) {
		return echo.NewHTTPError(http.StatusConflict, "resource is busy")
	}
	if errors.Is(err, types.ErrConflict) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	var xerr *types.ExternalError
	if errors.As(err, &xerr) {
		return echo.NewHTTPError(http.StatusBadGateway, xerr.Error())
	}

	// Unexpected error
	slog.Error("Unexpected error handling request", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
