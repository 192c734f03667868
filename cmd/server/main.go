// Command server runs the portier authentication gateway.
//
// Configuration is loaded from a YAML file (see pkg/config for discovery
// order) with PORTIER_* environment overrides. The server exposes:
//
//	GET  /healthz          - liveness probe, unauthenticated
//	GET  /metrics          - Prometheus metrics (when enabled)
//	GET  /whoami           - the authenticated principal's claims
//	GET  /check/{policy}   - 204 when the named policy admits the caller
//	POST /session          - sign in under the configured session scheme
//	DELETE /session        - sign out
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avekoy/portier/pkg/auth"
	"github.com/avekoy/portier/pkg/authz"
	"github.com/avekoy/portier/pkg/config"
	"github.com/avekoy/portier/pkg/debug"
	"github.com/avekoy/portier/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	debug.Init(cfg.Observability.Logging.Debug, cfg.Observability.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Build the authentication service and its policies.
	svc, cleanup, err := config.BuildService(ctx, cfg.Auth)
	if err != nil {
		return fmt.Errorf("building authentication service: %w", err)
	}
	defer cleanup()

	policies := config.BuildPolicies(cfg.Policies, svc)
	limiter := config.BuildLimiter(cfg.Auth.RateLimit)

	// Authentication without extra requirements guards the identity and
	// session endpoints.
	authenticated := authz.NewPolicyBuilder().Build(svc)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	guard := func(policy *authz.Policy, h http.Handler) http.Handler {
		return auth.Middleware(svc, policy, limiter, nil)(h)
	}

	mux.Handle("GET /whoami", guard(authenticated, http.HandlerFunc(whoami)))

	for name, policy := range policies {
		mux.Handle("GET /check/"+name, guard(policy, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})))
	}

	if scheme := cfg.Auth.SessionScheme; scheme != "" {
		mux.Handle("POST /session", guard(authenticated, signInHandler(svc, scheme)))
		mux.Handle("DELETE /session", signOutHandler(svc, scheme))
	}

	// Outer chain: recovery first, then request id, access log, metrics.
	var handler http.Handler = mux
	handler = observability.MetricsMiddleware(handler)
	handler = observability.LoggingMiddleware(handler)
	handler = observability.RequestIDMiddleware(handler)
	handler = observability.RecoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"port", cfg.Server.Port,
			"schemes", svc.Schemes(),
			"default_scheme", svc.DefaultScheme(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// whoami reports the authenticated principal's claims.
func whoami(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	claims := make(map[string]string, p.Len())
	for _, name := range p.Names() {
		v, _ := p.Get(name)
		claims[name] = v.String()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"subject": p.Subject(),
		"claims":  claims,
	})
}

// signInHandler establishes a session for the already-authenticated caller.
func signInHandler(svc *auth.Service, scheme string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := auth.PrincipalFromContext(r.Context())
		resp, err := svc.SignIn(r.Context(), r, scheme, p)
		if err != nil {
			slog.Error("sign-in failed", "scheme", scheme, "error", err)
			http.Error(w, `{"error":{"type":"server_error","message":"sign-in failed"}}`, http.StatusInternalServerError)
			return
		}
		observability.SessionsTotal.WithLabelValues(scheme, "sign_in").Inc()
		resp.Write(w)
	})
}

// signOutHandler tears down the caller's session. It does not require
// authentication: clearing an absent session is harmless.
func signOutHandler(svc *auth.Service, scheme string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, err := svc.SignOut(r.Context(), r, scheme)
		if err != nil {
			slog.Error("sign-out failed", "scheme", scheme, "error", err)
			http.Error(w, `{"error":{"type":"server_error","message":"sign-out failed"}}`, http.StatusInternalServerError)
			return
		}
		observability.SessionsTotal.WithLabelValues(scheme, "sign_out").Inc()
		resp.Write(w)
	})
}
