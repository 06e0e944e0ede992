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

func TestApiKeyAuth_MissingCredentials(t *testing.T) {
	s := NewServer(&config.Config{}, Deps{})

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"no headers", nil},
		{"key only", map[string]string{headerApiKey: "K-abc"}},
		{"secret only", map[string]string{headerApiSecret: "S-abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/read", strings.NewReader(`{}`))
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			s.echo.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestUserFrom(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/read", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assert.Nil(t, userFrom(c))

	user := &types.User{Username: "ops"}
	c.Set(userKey, user)
	got := userFrom(c)
	require.NotNil(t, got)
	assert.Equal(t, "ops", got.Username)
}
