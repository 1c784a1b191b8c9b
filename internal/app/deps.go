package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"sales-nlu/internal/config"
	"sales-nlu/internal/domain"
	"sales-nlu/internal/llm"
	"sales-nlu/internal/logger"
	"sales-nlu/internal/metrics"
	"sales-nlu/internal/nlp"
	"sales-nlu/internal/prompts"
	"sales-nlu/internal/queue"
	"sales-nlu/internal/store"
)

// Deps bundles common runtime dependencies for the NLU binaries.
type Deps struct {
	Config    config.Config
	Log       *slog.Logger
	Registry  *prometheus.Registry
	Validator *validator.Validate
	Recorder  store.Recorder
	Service   *nlp.Service
	NATS      *nats.Conn // nil unless QUEUE_URL is set
}

// Build loads env, config, and shared components. A missing provider
// credential is not an error: the service starts and reports it via Status.
func Build(ctx context.Context, service string) (Deps, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Deps{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	log := logger.New(service, cfg.LogLevel)

	set, err := prompts.Load(cfg.PromptsPath)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to load prompts: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to register metrics: %w", err)
	}

	rec, err := buildRecorder(ctx, cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize audit store: %w", err)
	}

	v := domain.NewValidator()
	client := buildLLM(cfg, log, v)
	svc := nlp.NewService(nlp.Deps{
		Client:    client,
		Prompts:   set,
		Validator: v,
		Recorder:  rec,
		Metrics:   m,
		Log:       log,
	})

	deps := Deps{
		Config:    cfg,
		Log:       log,
		Registry:  reg,
		Validator: v,
		Recorder:  rec,
		Service:   svc,
	}
	if cfg.QueueURL != "" {
		nc, err := queue.Connect(ctx, log, cfg.QueueURL)
		if err != nil {
			rec.Close()
			return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
		}
		log.Info("using NATS request/reply", "group", cfg.QueueGroup)
		deps.NATS = nc
	}
	return deps, nil
}

// Close releases the audit store and the NATS connection.
func (d Deps) Close() {
	if d.NATS != nil {
		if err := d.NATS.Drain(); err != nil {
			d.Log.Warn("failed to drain NATS connection", "err", err)
		}
	}
	if d.Recorder != nil {
		if err := d.Recorder.Close(); err != nil {
			d.Log.Warn("failed to close audit store", "err", err)
		}
	}
}

func buildRecorder(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Recorder, error) {
	switch cfg.AuditProvider {
	case "", "none":
		return store.NewNoop(), nil
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when AUDIT_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(ctx, cfg.DBURL, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres audit store")
		return db, nil
	default:
		return nil, fmt.Errorf("invalid AUDIT_PROVIDER: %s (valid options: none, postgres)", cfg.AuditProvider)
	}
}

func buildLLM(cfg config.Config, log *slog.Logger, v *validator.Validate) *llm.Client {
	id, err := llm.ParseProviderID(cfg.ModelProvider)
	if err != nil {
		log.Warn("falling back to default model provider", "provider", id, "err", err)
	}
	p := llm.NewProvider(id, llm.Credentials{OpenAI: cfg.OpenAIKey, DeepSeek: cfg.DeepSeekKey})
	return llm.NewClient(log, p, llm.Options{MaxAttempts: cfg.MaxAttempts, Validator: v})
}
