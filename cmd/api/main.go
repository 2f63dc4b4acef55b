package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/pharmacy-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/pharmacy-ai-platform/internal/api/router"
	"github.com/wolfman30/pharmacy-ai-platform/internal/app/bootstrap"
	"github.com/wolfman30/pharmacy-ai-platform/internal/channels/telegram"
	"github.com/wolfman30/pharmacy-ai-platform/internal/channels/whatsapp"
	appconfig "github.com/wolfman30/pharmacy-ai-platform/internal/config"
	"github.com/wolfman30/pharmacy-ai-platform/internal/conversation"
	"github.com/wolfman30/pharmacy-ai-platform/internal/customers"
	"github.com/wolfman30/pharmacy-ai-platform/internal/database"
	httpmiddleware "github.com/wolfman30/pharmacy-ai-platform/internal/http/middleware"
	"github.com/wolfman30/pharmacy-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-ai-platform/internal/products"
	"github.com/wolfman30/pharmacy-ai-platform/internal/promotions"
	"github.com/wolfman30/pharmacy-ai-platform/internal/sales"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	appconfig.LoadDotEnv()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting pharmacy-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	pool, err := database.Connect(ctx, database.Config{
		URL:               cfg.DatabaseURL,
		MaxConns:          int32(cfg.DBMaxConns),
		MinConns:          int32(cfg.DBMinConns),
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		ConnectTimeout:    cfg.DBConnectTimeout,
		HealthCheckPeriod: cfg.DBHealthCheckEvery,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	cache, redisClient := bootstrap.BuildContextCache(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	chain, err := bootstrap.BuildLLMChain(ctx, cfg, mainconfig.LoadAWSConfig, logger)
	if err != nil {
		return err
	}
	defer func() { _ = chain.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	convMetrics := metrics.NewConversationMetrics(reg)
	channelMetrics := metrics.NewChannelMetrics(reg)

	customersRepo := customers.NewPostgresRepository(pool)
	customersService := customers.NewService(customersRepo, logger.WithComponent("customers"))
	productsService := products.NewService(products.NewPostgresRepository(pool), logger.WithComponent("products"))
	promotionsService := promotions.NewService(promotions.NewPostgresRepository(pool), customersRepo, convMetrics, logger.WithComponent("promotions"))
	salesRepo := sales.NewPostgresRepository(pool)
	salesService := sales.NewService(pool, salesRepo, logger.WithComponent("sales"))

	convLogger := logger.WithComponent("conversation")
	store := conversation.NewContextStore(cache, conversation.NewPostgresContextRepository(pool), conversation.ContextStoreConfig{
		HistoryLimit: cfg.HistoryLimit,
		TTL:          cfg.ContextCacheTTL,
	}, convMetrics, convLogger)
	sweeper, err := conversation.NewSweeper(store, cfg.ContextSweepSchedule, convLogger)
	if err != nil {
		return err
	}

	resolver := conversation.NewLLMIntentResolver(chain.Client, chain.Model, convMetrics, convLogger)
	composer := conversation.NewComposer(chain.Client, productsService, promotionsService, salesRepo, customersRepo, conversation.ComposerConfig{
		Model:        chain.Model,
		MaxTokens:    int32(cfg.LLMMaxTokens),
		Temperature:  float32(cfg.LLMTemperature),
		PharmacyName: cfg.PharmacyName,
	}, convMetrics, convLogger)
	agent := conversation.NewAgent(store, resolver, composer, convMetrics, convLogger)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	housekeeping := cron.New()
	if _, err := housekeeping.AddFunc("@every 5m", func() {
		if n := limiter.Prune(); n > 0 {
			logger.Debug("rate limiter pruned", "buckets", n)
		}
	}); err != nil {
		return fmt.Errorf("schedule limiter prune: %w", err)
	}

	routerCfg := &router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(agent, customersService, convLogger),
		CustomersHandler:    customers.NewHandler(customersService, logger.WithComponent("customers")),
		ProductsHandler:     products.NewHandler(productsService, logger.WithComponent("products")),
		PromotionsHandler:   promotions.NewHandler(promotionsService, logger.WithComponent("promotions")),
		SalesHandler:        sales.NewHandler(salesService, logger.WithComponent("sales")),
		Health:              router.NewHealthHandler(healthChecks(pool.Ping, redisClient, chain.Breakers)),
		MetricsHandler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		APIJWTSecret:        cfg.APIJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		WebhookLimiter:      limiter,
	}
	if strings.TrimSpace(cfg.APIJWTSecret) == "" {
		logger.Warn("API_JWT_SECRET is empty; /api routes will reject every request")
	}

	if cfg.TelegramEnabled() {
		if strings.TrimSpace(cfg.TelegramWebhookSecret) == "" {
			logger.Warn("TELEGRAM_WEBHOOK_SECRET is empty; telegram webhooks will be rejected")
		}
		routerCfg.Telegram = telegram.NewAdapter(
			telegram.NewClient(cfg.TelegramBotToken),
			agent, customersService,
			telegram.Config{WebhookSecret: cfg.TelegramWebhookSecret, PharmacyName: cfg.PharmacyName},
			channelMetrics, logger.WithComponent("telegram"),
		)
		logger.Info("telegram channel enabled")
	}
	if cfg.WhatsAppEnabled() {
		routerCfg.WhatsApp = whatsapp.NewAdapter(
			whatsapp.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber),
			agent, customersService,
			whatsapp.Config{AuthToken: cfg.TwilioAuthToken, WebhookURL: webhookURL(cfg.PublicBaseURL, "/webhooks/whatsapp")},
			channelMetrics, logger.WithComponent("whatsapp"),
		)
		logger.Info("whatsapp channel enabled")
	}

	srv := newHTTPServer(":"+cfg.Port, router.New(routerCfg))

	sweeper.Start()
	housekeeping.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		sweeper.Stop(shutdownCtx)
		<-housekeeping.Stop().Done()
		return err
	})
	return g.Wait()
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Replies wait on up to two model calls.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// webhookURL is the public URL Twilio signs requests against.
func webhookURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return base + path
}

func healthChecks(dbPing router.Check, redisClient *redis.Client, breakers map[string]*conversation.BreakerLLMClient) map[string]router.Check {
	checks := map[string]router.Check{}
	if dbPing != nil {
		checks["database"] = dbPing
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if len(breakers) > 0 {
		checks["llm"] = llmCheck(breakers)
	}
	return checks
}

// llmCheck fails only when every provider breaker is open.
func llmCheck(breakers map[string]*conversation.BreakerLLMClient) router.Check {
	return func(context.Context) error {
		var open []string
		for name, b := range breakers {
			if b.State() != "open" {
				return nil
			}
			open = append(open, name)
		}
		return fmt.Errorf("all providers unavailable: %s", strings.Join(open, ","))
	}
}
