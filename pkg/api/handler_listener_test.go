package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/komodo-sh/komodo/pkg/config"
	"github.com/komodo-sh/komodo/pkg/state"
	"github.com/komodo-sh/komodo/pkg/webhook"
)

func TestListenerRoutes_RejectBadSignature(t *testing.T) {
	cfg := &config.Config{WebhookSecret: "shhh"}
	st := state.New(cfg, nil)
	s := NewServer(cfg, Deps{
		State:    st,
		Listener: webhook.New(st, nil, nil, nil),
	})

	paths := []string{
		"/listener/github/build/abc",
		"/listener/github/repo/abc/clone",
		"/listener/github/repo/abc/pull",
		"/listener/github/procedure/abc/main",
		"/listener/github/sync/abc/refresh",
		"/listener/github/sync/abc/sync",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"ref":"refs/heads/main"}`))
			req.Header.Set(githubSignatureHeader, "sha256=deadbeef")
			rec := httptest.NewRecorder()
			s.echo.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
