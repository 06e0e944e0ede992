package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodo-sh/komodo/pkg/config"
	"github.com/komodo-sh/komodo/pkg/types"
)

func executeContext(t *testing.T, s *Server, body string) *echo.Context {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.Set(userKey, &types.User{Username: "ops"})
	return c
}

func TestExecuteHandler_RejectsMalformedBody(t *testing.T) {
	s := NewServer(&config.Config{}, Deps{})
	c := executeContext(t, s, `not json`)

	err := s.executeHandler(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestExecuteHandler_RequiresType(t *testing.T) {
	s := NewServer(&config.Config{}, Deps{})
	c := executeContext(t, s, `{"params":{}}`)

	err := s.executeHandler(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}
