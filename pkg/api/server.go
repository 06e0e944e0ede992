// Package api exposes the core over HTTP. The surface is three authenticated
// dispatch endpoints (POST /read, /write, /execute), the unauthenticated git
// webhook subtree (HMAC-verified per delivery), and the health and version
// probes. Handlers translate between the wire envelopes and the core
// packages; no domain logic lives here.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/komodo-sh/komodo/pkg/alert"
	"github.com/komodo-sh/komodo/pkg/config"
	"github.com/komodo-sh/komodo/pkg/database"
	"github.com/komodo-sh/komodo/pkg/execute"
	"github.com/komodo-sh/komodo/pkg/permission"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/state"
	"github.com/komodo-sh/komodo/pkg/syncer"
	"github.com/komodo-sh/komodo/pkg/update"
	"github.com/komodo-sh/komodo/pkg/webhook"
)

const readHeaderTimeout = 10 * time.Second

// Deps bundles the core components the server dispatches into.
type Deps struct {
	DB       *database.Client
	State    *state.State
	Store    *resource.Store
	Registry *resource.Registry
	Perms    *permission.Engine
	Journal  *update.Journal
	Alerts   *alert.Manager
	Syncer   *syncer.Syncer
	Exec     *execute.Executor
	Listener *webhook.Listener
}

// Server is the HTTP front of the core.
type Server struct {
	cfg      *config.Config
	db       *database.Client
	state    *state.State
	store    *resource.Store
	registry *resource.Registry
	perms    *permission.Engine
	journal  *update.Journal
	alerts   *alert.Manager
	syncer   *syncer.Syncer
	exec     *execute.Executor
	listener *webhook.Listener

	echo       *echo.Echo
	httpServer *http.Server
}

// NewServer wires the router. Start must be called to serve.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		db:       deps.DB,
		state:    deps.State,
		store:    deps.Store,
		registry: deps.Registry,
		perms:    deps.Perms,
		journal:  deps.Journal,
		alerts:   deps.Alerts,
		syncer:   deps.Syncer,
		exec:     deps.Exec,
		listener: deps.Listener,
	}
	s.echo = s.routes()
	return s
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.Use(securityHeaders())

	e.GET("/health", s.healthHandler)
	e.GET("/version", s.versionHandler)

	authed := e.Group("", s.apiKeyAuth)
	authed.POST("/read", s.readHandler)
	authed.POST("/write", s.writeHandler)
	authed.POST("/execute", s.executeHandler)

	// Webhook deliveries authenticate with the HMAC signature over the
	// body, not api keys.
	gh := e.Group("/listener/github")
	gh.POST("/build/:id", s.listenerBuildHandler)
	gh.POST("/repo/:id/clone", s.listenerRepoCloneHandler)
	gh.POST("/repo/:id/pull", s.listenerRepoPullHandler)
	gh.POST("/procedure/:id/:branch", s.listenerProcedureHandler)
	gh.POST("/sync/:id/refresh", s.listenerSyncRefreshHandler)
	gh.POST("/sync/:id/sync", s.listenerSyncRunHandler)

	return e
}

// Start serves on addr until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
