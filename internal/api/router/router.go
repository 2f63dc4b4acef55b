package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/pharmacy-ai-platform/internal/channels/telegram"
	"github.com/wolfman30/pharmacy-ai-platform/internal/channels/whatsapp"
	"github.com/wolfman30/pharmacy-ai-platform/internal/conversation"
	"github.com/wolfman30/pharmacy-ai-platform/internal/customers"
	httpmiddleware "github.com/wolfman30/pharmacy-ai-platform/internal/http/middleware"
	"github.com/wolfman30/pharmacy-ai-platform/internal/products"
	"github.com/wolfman30/pharmacy-ai-platform/internal/promotions"
	"github.com/wolfman30/pharmacy-ai-platform/internal/sales"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes unmounted.
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	CustomersHandler    *customers.Handler
	ProductsHandler     *products.Handler
	PromotionsHandler   *promotions.Handler
	SalesHandler        *sales.Handler
	Telegram            *telegram.Adapter
	WhatsApp            *whatsapp.Adapter
	Health              *HealthHandler
	MetricsHandler      http.Handler
	APIJWTSecret        string
	CORSAllowedOrigins  []string
	// WebhookLimiter throttles the public webhook and chat routes per client IP.
	WebhookLimiter *httpmiddleware.RateLimiter
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	limit := func(h http.HandlerFunc) http.Handler {
		if cfg.WebhookLimiter == nil {
			return h
		}
		return cfg.WebhookLimiter.Limit(h)
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.ServeHTTP)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Telegram != nil {
			public.Method(http.MethodPost, "/webhooks/telegram", limit(cfg.Telegram.HandleWebhook))
		}
		if cfg.WhatsApp != nil {
			public.Method(http.MethodPost, "/webhooks/whatsapp", limit(cfg.WhatsApp.HandleWebhook))
		}
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.APIJWT(cfg.APIJWTSecret))

		if cfg.ConversationHandler != nil {
			api.Method(http.MethodPost, "/chat/message", limit(cfg.ConversationHandler.Message))
			api.Get("/conversations/{customerID}/context", cfg.ConversationHandler.GetContext)
			api.Delete("/conversations/{customerID}/context", cfg.ConversationHandler.DeleteContext)
		}
		if cfg.CustomersHandler != nil {
			api.Get("/customers/{customerID}", cfg.CustomersHandler.GetCustomer)
			api.Patch("/customers/{customerID}", cfg.CustomersHandler.UpdateProfile)
			api.Get("/customers/{customerID}/summary", cfg.CustomersHandler.GetSummary)
			api.Post("/customers/{customerID}/loyalty", cfg.CustomersHandler.AddLoyaltyPoints)
		}
		if cfg.ProductsHandler != nil {
			api.Get("/products/search", cfg.ProductsHandler.Search)
			api.Get("/products/categories", cfg.ProductsHandler.Categories)
			api.Get("/products/{productID}", cfg.ProductsHandler.Get)
			api.Get("/products/symptom/{symptom}", cfg.ProductsHandler.BySymptom)
			api.Get("/products/{productID}/availability", cfg.ProductsHandler.Availability)
		}
		if cfg.SalesHandler != nil {
			api.Post("/customers/{customerID}/purchases", cfg.SalesHandler.RecordPurchase)
			api.Get("/customers/{customerID}/orders", cfg.SalesHandler.Orders)
		}
		if cfg.PromotionsHandler != nil {
			api.Get("/promotions/eligible/{customerID}", cfg.PromotionsHandler.Eligible)
			api.Post("/promotions/{promotionID}/apply", cfg.PromotionsHandler.Apply)
		}
	})

	return r
}
