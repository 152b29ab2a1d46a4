// Package httpapi is the thin HTTP/JSON + SSE adaptor over C1–C7 (C8,
// spec §6). It contains no business logic: scoring, disabling, and issue
// detection all happen in internal/health, internal/account, and
// internal/issues.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/antigravity-proxy/core/internal/account"
	"github.com/antigravity-proxy/core/internal/config"
	"github.com/antigravity-proxy/core/internal/events"
	"github.com/antigravity-proxy/core/internal/health"
	"github.com/antigravity-proxy/core/internal/issues"
	"github.com/antigravity-proxy/core/internal/router"
	"github.com/antigravity-proxy/core/pkg/middleware"
)

// Server is the HTTP surface composition root.
type Server struct {
	registry   *account.Registry
	tracker    *health.Tracker
	recorder   *events.Recorder
	broker     *events.Broker
	aggregator *issues.Aggregator
	router     *router.Router
	cfg        *config.Store
	logger     *slog.Logger

	modelIDs []string
}

// Options configures a Server.
type Options struct {
	Registry   *account.Registry
	Tracker    *health.Tracker
	Recorder   *events.Recorder
	Broker     *events.Broker
	Aggregator *issues.Aggregator
	Router     *router.Router
	Config     *config.Store
	Logger     *slog.Logger

	// ModelIDs is the default set of models shown in the health matrix
	// when the caller omits ?models=.
	ModelIDs []string

	ValidateAPIKey middleware.APIKeyValidator
}

// New builds a Server and its HTTP handler chain.
func New(opts Options) (*Server, http.Handler) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		registry:   opts.Registry,
		tracker:    opts.Tracker,
		recorder:   opts.Recorder,
		broker:     opts.Broker,
		aggregator: opts.Aggregator,
		router:     opts.Router,
		cfg:        opts.Config,
		logger:     logger,
		modelIDs:   opts.ModelIDs,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	validate := opts.ValidateAPIKey
	if validate == nil {
		validate = func(string) bool { return true }
	}

	var handler http.Handler = mux
	handler = middleware.Auth(validate, logger)(handler)
	handler = middleware.Logging(logger)(handler)

	return s, handler
}
