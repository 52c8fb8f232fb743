package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/acs-tracts/internal/acs"
	"github.com/sells-group/acs-tracts/internal/export"
	"github.com/sells-group/acs-tracts/internal/monitoring"
	"github.com/sells-group/acs-tracts/internal/statecodes"
	"github.com/sells-group/acs-tracts/pkg/census"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tract tables over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		metrics := monitoring.NewMetrics(reg)
		env, err := initTractEnv(metrics)
		if err != nil {
			return err
		}

		h := &tractServer{
			runner:   env.Pipeline,
			states:   env.States,
			metrics:  metrics,
			gatherer: reg,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(h, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// tractRunner runs the pipeline for one request.
type tractRunner interface {
	Run(ctx context.Context, req acs.Request) (*acs.Result, error)
}

// tractServer holds the dependencies of the HTTP handlers.
type tractServer struct {
	runner   tractRunner
	states   *statecodes.Table
	metrics  *monitoring.Metrics
	gatherer prometheus.Gatherer
}

func newRouter(s *tractServer, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/v1/states", s.handleStates)
	r.Get("/v1/tracts/{year}/{profile}", s.handleTracts)

	return r
}

// observe records request metrics by route pattern.
func (s *tractServer) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		s.metrics.ObserveHTTP(r.Method, path, ww.Status(), time.Since(start))
	})
}

func (s *tractServer) handleStates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.states.States())
}

// handleTracts runs the pipeline and streams the result as CSV. The optional
// states query parameter is a comma-separated list of state codes.
func (s *tractServer) handleTracts(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer")
		return
	}
	profile := strings.ToUpper(chi.URLParam(r, "profile"))

	var selected []string
	if q := r.URL.Query().Get("states"); q != "" {
		selected = strings.Split(q, ",")
	}
	states, err := s.states.Filter(selected)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.runner.Run(r.Context(), acs.Request{
		Year:       year,
		Profile:    profile,
		States:     states,
		StateNames: s.states.Names(),
	})
	if err != nil {
		zap.L().Error("tract request failed",
			zap.Int("year", year),
			zap.String("profile", profile),
			zap.Error(err),
		)
		writeError(w, statusFor(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName(year, export.FormatCSV)))
	w.Header().Set("X-Run-ID", res.RunID.String())
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(r.Context(), w, res.Records); err != nil {
		zap.L().Warn("tract response interrupted", zap.String("run_id", res.RunID.String()), zap.Error(err))
	}
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, acs.ErrInvalidRequest), errors.Is(err, acs.ErrUnknownState):
		return http.StatusBadRequest
	case errors.Is(err, census.ErrNotFound), errors.Is(err, census.ErrNoContent):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
