package api

import (
	"io"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/komodo-sh/komodo/pkg/types"
)

// githubSignatureHeader carries the HMAC-SHA256 digest of the delivery body.
const githubSignatureHeader = "X-Hub-Signature-256"

// maxWebhookBody bounds delivery payloads; github push events are far
// smaller.
const maxWebhookBody = 1 << 20

// delivery pulls the raw body and signature off a webhook request. The body
// must be read whole for the signature check.
func delivery(c *echo.Context) (signature string, body []byte, err error) {
	body, err = io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return "", nil, types.NewValidationError("body", "failed to read delivery body")
	}
	return c.Request().Header.Get(githubSignatureHeader), body, nil
}

// listenerBuildHandler handles POST /listener/github/build/:id.
func (s *Server) listenerBuildHandler(c *echo.Context) error {
	sig, body, err := delivery(c)
	if err != nil {
		return mapError(err)
	}
	if err := s.listener.Build(c.Request().Context(), c.Param("id"), sig, body); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusOK)
}

// listenerRepoCloneHandler handles POST /listener/github/repo/:id/clone.
func (s *Server) listenerRepoCloneHandler(c *echo.Context) error {
	return s.listenerRepo(c, types.ExecCloneRepo)
}

// listenerRepoPullHandler handles POST /listener/github/repo/:id/pull.
func (s *Server) listenerRepoPullHandler(c *echo.Context) error {
	return s.listenerRepo(c, types.ExecPullRepo)
}

func (s *Server) listenerRepo(c *echo.Context, execType types.ExecutionType) error {
	sig, body, err := delivery(c)
	if err != nil {
		return mapError(err)
	}
	if err := s.listener.Repo(c.Request().Context(), c.Param("id"), sig, body, execType); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusOK)
}

// listenerProcedureHandler handles POST /listener/github/procedure/:id/:branch.
func (s *Server) listenerProcedureHandler(c *echo.Context) error {
	sig, body, err := delivery(c)
	if err != nil {
		return mapError(err)
	}
	if err := s.listener.Procedure(c.Request().Context(), c.Param("id"), c.Param("branch"), sig, body); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusOK)
}

// listenerSyncRefreshHandler handles POST /listener/github/sync/:id/refresh.
func (s *Server) listenerSyncRefreshHandler(c *echo.Context) error {
	sig, body, err := delivery(c)
	if err != nil {
		return mapError(err)
	}
	if err := s.listener.SyncRefresh(c.Request().Context(), c.Param("id"), sig, body); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusOK)
}

// listenerSyncRunHandler handles POST /listener/github/sync/:id/sync.
func (s *Server) listenerSyncRunHandler(c *echo.Context) error {
	sig, body, err := delivery(c)
	if err != nil {
		return mapError(err)
	}
	if err := s.listener.SyncRun(c.Request().Context(), c.Param("id"), sig, body); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusOK)
}
