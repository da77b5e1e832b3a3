package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-interio/internal/billing"
	"github.com/noah-isme/backend-interio/internal/common"
	"github.com/noah-isme/backend-interio/internal/config"
	"github.com/noah-isme/backend-interio/internal/customer"
	"github.com/noah-isme/backend-interio/internal/events"
	"github.com/noah-isme/backend-interio/internal/health"
	"github.com/noah-isme/backend-interio/internal/notify"
	"github.com/noah-isme/backend-interio/internal/obs"
	"github.com/noah-isme/backend-interio/internal/quote"
	"github.com/noah-isme/backend-interio/internal/ratelimit"
	"github.com/noah-isme/backend-interio/internal/security"
	"github.com/noah-isme/backend-interio/internal/store"
)

func main() {
	cfg := config.MustLoad()

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "interio")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   cfg.ServiceName,
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", cfg.OTELExporterTraces),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	db := store.New()
	validate := validator.New()

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if metricsEnabled {
			if err := redisotel.InstrumentMetrics(redisClient); err != nil {
				logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("ping redis")
		}
		cancel()
	} else {
		logger.Info().Msg("redis not configured, idempotency and rate limiting disabled")
	}

	registry := notify.NewRegistry()
	dispatcher := &notify.Dispatcher{
		Registry:    registry,
		Client:      notify.HTTPClient(cfg.WebhookTimeout),
		MaxAttempts: cfg.WebhookMaxAttempts,
		BackoffBase: cfg.WebhookBackoffBase,
		Async:       true,
		Logger:      logger,
	}
	var notifiers []events.Notifier
	if cfg.WebhooksEnabled {
		notifiers = append(notifiers, dispatcher)
	}
	bus := &events.Bus{Notifiers: notifiers}

	quoteSvc := &quote.Service{Store: db, Events: bus, Logger: logger}
	quoteHandler := &quote.Handler{Svc: quoteSvc, Store: db, Validate: validate, DefaultGSTPercentage: cfg.DefaultGSTPercentage}

	customerSvc := &customer.Service{Store: db, Logger: logger}
	customerHandler := &customer.Handler{Svc: customerSvc, Store: db, Validate: validate}

	billingSvc := &billing.Service{Store: db, Events: bus, Logger: logger}
	billingHandler := &billing.Handler{Svc: billingSvc, Store: db, Validate: validate}

	notifyAdmin := &notify.AdminHandler{Registry: registry, Validate: validate}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	limiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:"},
		Config: ratelimit.Config{
			Key:    common.ClientIP,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:     envBool("SECURITY_HEADERS_ENABLED", true),
		EnableHSTS: envBool("SECURITY_HSTS_ENABLED", false),
		HSTSMaxAge: envInt("SECURITY_HSTS_MAX_AGE", 31536000),
	}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURITY_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if redisClient != nil {
		r.Use(limiter.Middleware)
	}

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
		Counts:       db.Counts,
	}
	if redisClient != nil {
		healthHandler.Checker = readinessChecker{redis: redisClient}
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/customers", func(c chi.Router) {
			c.Get("/", customerHandler.List)
			c.With(idem.Middleware).Post("/", customerHandler.Create)
			c.Route("/{customerID}", func(child chi.Router) {
				child.Get("/", customerHandler.Get)
				child.Put("/", customerHandler.Update)
				child.Delete("/", customerHandler.Delete)
			})
		})

		v.Route("/quotations", func(q chi.Router) {
			q.Get("/", quoteHandler.List)
			q.With(idem.Middleware).Post("/", quoteHandler.Create)
			q.Route("/{quotationID}", func(child chi.Router) {
				child.Get("/", quoteHandler.Get)
				child.Delete("/", quoteHandler.Delete)
				child.Patch("/policy", quoteHandler.UpdatePolicy)
				child.Patch("/status", quoteHandler.UpdateStatus)
				child.With(idem.Middleware).Post("/rooms", quoteHandler.CreateRoom)
				child.Put("/rooms/order", quoteHandler.ReorderRooms)
			})
		})

		v.Route("/rooms/{roomID}", func(room chi.Router) {
			room.Patch("/", quoteHandler.RenameRoom)
			room.Delete("/", quoteHandler.DeleteRoom)
			room.With(idem.Middleware).Post("/items", quoteHandler.CreateItem)
			room.With(idem.Middleware).Post("/charges", quoteHandler.CreateCharge)
		})
		v.Patch("/items/{itemID}", quoteHandler.UpdateItem)
		v.Delete("/items/{itemID}", quoteHandler.DeleteItem)
		v.Patch("/charges/{chargeID}", quoteHandler.UpdateCharge)
		v.Delete("/charges/{chargeID}", quoteHandler.DeleteCharge)

		v.Route("/orders", func(o chi.Router) {
			o.Get("/", billingHandler.ListOrders)
			o.With(idem.Middleware).Post("/", billingHandler.CreateOrder)
			o.Get("/{orderID}", billingHandler.GetOrder)
			o.Patch("/{orderID}/status", billingHandler.UpdateOrderStatus)
		})
		v.Route("/invoices", func(i chi.Router) {
			i.With(idem.Middleware).Post("/", billingHandler.IssueInvoice)
			i.Get("/{invoiceID}", billingHandler.GetInvoice)
			i.With(idem.Middleware).Post("/{invoiceID}/payments", billingHandler.RecordPayment)
		})

		v.Route("/admin/webhooks", func(admin chi.Router) {
			admin.Get("/", notifyAdmin.List)
			admin.Get("/topics", notifyAdmin.Topics)
			admin.Post("/", notifyAdmin.Create)
			admin.Delete("/{endpointID}", notifyAdmin.Delete)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		health.SetReady(false)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	redis *redis.Client
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
