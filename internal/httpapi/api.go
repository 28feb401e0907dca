// Package httpapi is the HTTP boundary: routing, request hygiene middleware,
// the dual-token authorization middleware, and the handlers.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"workhub.org/internal/auth"
	"workhub.org/internal/obs"
	"workhub.org/internal/workspace"
)

// ReadyProbe checks dependencies for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries everything the API needs; main builds it from config so no
// handler ever reads process-global state.
type Options struct {
	ReadyProbe    ReadyProbe
	Version       string
	Identity      auth.IdentityValidator
	Codec         *auth.TokenCodec
	Directory     auth.Directory
	Workspaces    *workspace.Service
	MaxBodyBytes  int64
	RateBurst     int
	RatePerSecond int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	identity   auth.IdentityValidator
	codec      *auth.TokenCodec
	directory  auth.Directory
	workspaces *workspace.Service

	maxBodyBytes  int64
	rateBurst     int
	ratePerSecond int
}

func New(opts Options) *API {
	a := &API{
		mux:           http.NewServeMux(),
		readyProbe:    opts.ReadyProbe,
		version:       opts.Version,
		identity:      opts.Identity,
		codec:         opts.Codec,
		directory:     opts.Directory,
		workspaces:    opts.Workspaces,
		maxBodyBytes:  opts.MaxBodyBytes,
		rateBurst:     opts.RateBurst,
		ratePerSecond: opts.RatePerSecond,
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 20
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSecond <= 0 {
		a.ratePerSecond = 10
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// OpenAPI YAML
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// token issuance and refresh
	a.mux.HandleFunc("/v1/auth/validate", a.handleAuthValidate)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleAuthRefresh)

	// workspaces and members
	a.mux.HandleFunc("/v1/workspaces", a.handleWorkspaces)
	a.mux.HandleFunc("/v1/workspaces/", a.handleWorkspaceScoped)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux. Authorization runs
// innermost so every earlier layer applies to denied requests too.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	return h
}
