package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"sales-nlu/internal/app"
	"sales-nlu/internal/httputil"
	"sales-nlu/internal/nlp"
	"sales-nlu/internal/queue"
	"sales-nlu/internal/store"
)

const (
	shutdownTimeout     = 10 * time.Second
	defaultHistoryLimit = 50
)

// operationRoutes maps each POST endpoint to the operation it runs.
var operationRoutes = map[string]nlp.Operation{
	"/api/extract/profile":    nlp.OpExtractInitialProfile,
	"/api/recommend":          nlp.OpRecommendPlan,
	"/api/pitch":              nlp.OpGenerateSalesPitch,
	"/api/classify/intent":    nlp.OpClassifyIntent,
	"/api/extract/scheduling": nlp.OpExtractSchedulingData,
}

type server struct {
	log      *slog.Logger
	ext      nlp.Extractor
	validate *validator.Validate
	recorder store.Recorder
	status   func() nlp.Status
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, "nlu")
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	if err := run(ctx, deps); err != nil {
		deps.Log.Error("nlu service stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, deps app.Deps) error {
	srv := &server{
		log:      deps.Log,
		ext:      deps.Service,
		validate: deps.Validator,
		recorder: deps.Recorder,
		status:   deps.Service.Status,
	}
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           srv.routes(deps.Registry, deps.Config.RequestTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		deps.Log.Info("nlu listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	// Request/reply over NATS when a queue is configured
	if deps.NATS != nil {
		responder := queue.NewNATS(deps.Log, deps.NATS, deps.Config.QueueGroup)
		g.Go(func() error {
			return responder.Serve(ctx, queue.OperationHandlers(deps.Service, deps.Validator))
		})
	}

	return g.Wait()
}

func (s *server) routes(reg prometheus.Gatherer, timeout time.Duration) http.Handler {
	r := httputil.NewRouter(s.log, timeout)

	for path, op := range operationRoutes {
		r.Post(path, s.operationHandler(op))
	}
	r.Get("/api/status", s.statusHandler)
	r.Get("/api/extractions", s.historyHandler)
	r.Get("/healthz", httputil.HealthHandler(s.log))
	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *server) operationHandler(op nlp.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := httputil.ReadBody(w, r)
		if err != nil {
			httputil.WriteError(s.log, w, r, err)
			return
		}
		result, err := nlp.Invoke(r.Context(), s.ext, s.validate, op, body)
		if err != nil {
			httputil.WriteError(s.log, w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, result)
	}
}

func (s *server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.status())
}

func (s *server) historyHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.Fail(s.log, w, "limit must be a positive integer", err, http.StatusBadRequest)
			return
		}
		limit = n
	}
	records, err := s.recorder.ListRecent(r.Context(), limit)
	if err != nil {
		httputil.Fail(s.log, w, "failed to list extractions", err, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"records": records})
}
