package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/komodo-sh/komodo/pkg/types"
)

// executeHandler handles POST /execute. Single variants return the
// InProgress update as soon as it exists; the client follows progress through
// GetUpdate with the returned id while the work runs detached from the
// request. Batch variants fan out inline and return one result per matched
// resource.
func (s *Server) executeHandler(c *echo.Context) error {
	var req types.ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid execute request body")
	}
	if req.Type == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "execution type is required")
	}

	ctx := c.Request().Context()
	user := userFrom(c)

	if req.IsBatch() {
		results, err := s.exec.Batch(ctx, user, req)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, results)
	}

	u, err := s.exec.ExecuteDetached(ctx, user, req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, u)
}
