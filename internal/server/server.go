// Package server wires stores, services and handlers into the HTTP API.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/speechvault/speechvault/internal/blob"
	"github.com/speechvault/speechvault/internal/catalog"
	"github.com/speechvault/speechvault/internal/entitlement"
	"github.com/speechvault/speechvault/internal/handler"
	"github.com/speechvault/speechvault/internal/middleware"
	"github.com/speechvault/speechvault/internal/pricing"
	"github.com/speechvault/speechvault/internal/seal"
	"github.com/speechvault/speechvault/internal/store"
	"github.com/speechvault/speechvault/internal/stripeclient"
	"github.com/speechvault/speechvault/internal/websocket"
)

type Config struct {
	Pricing      pricing.Config
	Durations    []int64
	MasterSecret []byte
	Blob         blob.Config
	Stripe       stripeclient.Config
}

type Server struct {
	db           *sql.DB
	sessionStore *store.SessionStore
	rateLimiter  *middleware.RateLimiter
	hub          *websocket.Hub
	logger       *slog.Logger

	authH         *handler.AuthHandler
	languageH     *handler.LanguageHandler
	datasetH      *handler.DatasetHandler
	subscriptionH *handler.SubscriptionHandler
	sealH         *handler.SealHandler
	accountH      *handler.AccountHandler
	eventH        *handler.EventHandler
	walletH       *handler.WalletHandler
	webhookH      *handler.WebhookHandler
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) (*Server, error) {
	accountStore := store.NewAccountStore(db)
	sessionStore := store.NewSessionStore(db)
	languageStore := store.NewLanguageStore(db)
	datasetStore := store.NewDatasetStore(db)
	subscriptionStore := store.NewSubscriptionStore(db)
	eventStore := store.NewEventStore(db)

	sealer, err := seal.NewSealer(cfg.MasterSecret)
	if err != nil {
		return nil, err
	}
	blobs := blob.NewStore(cfg.Blob)

	hub := websocket.NewHub(logger.With("component", "websocket"))

	cat := catalog.NewService(languageStore)
	entitlements := entitlement.NewService(
		db,
		datasetStore,
		subscriptionStore,
		accountStore,
		eventStore,
		cat,
		entitlement.Config{
			Pricing:   cfg.Pricing,
			Durations: cfg.Durations,
			Notify:    hub.BroadcastEvent,
		},
		logger.With("component", "entitlement"),
	)

	var stripeClient *stripeclient.Client
	var walletH *handler.WalletHandler
	var webhookH *handler.WebhookHandler
	if cfg.Stripe.Enabled() {
		stripeClient = stripeclient.NewClient(cfg.Stripe)
		walletH = handler.NewWalletHandler(stripeClient, accountStore, logger.With("component", "wallet"))
		webhookH = handler.NewWebhookHandler(stripeClient, accountStore, logger.With("component", "webhook"))
	}

	return &Server{
		db:            db,
		sessionStore:  sessionStore,
		rateLimiter:   middleware.NewRateLimiter(),
		hub:           hub,
		logger:        logger,
		authH:         handler.NewAuthHandler(accountStore, sessionStore, logger.With("component", "auth")),
		languageH:     handler.NewLanguageHandler(cat, logger.With("component", "language")),
		datasetH:      handler.NewDatasetHandler(entitlements, datasetStore, sealer, blobs, logger.With("component", "dataset")),
		subscriptionH: handler.NewSubscriptionHandler(entitlements, subscriptionStore, logger.With("component", "subscription")),
		sealH:         handler.NewSealHandler(entitlements, sealer, logger.With("component", "seal")),
		accountH:      handler.NewAccountHandler(accountStore, datasetStore, logger.With("component", "account")),
		eventH:        handler.NewEventHandler(eventStore, logger.With("component", "event")),
		walletH:       walletH,
		webhookH:      webhookH,
	}, nil
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthCheck)

	// Auth (public, rate-limited by IP)
	authLimit := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	mux.Handle("POST /api/auth/register", authLimit(http.HandlerFunc(s.authH.Register)))
	mux.Handle("POST /api/auth/login", authLimit(http.HandlerFunc(s.authH.Login)))
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)

	// Stripe webhook (public, signature-verified)
	if s.webhookH != nil {
		mux.HandleFunc("POST /webhooks/stripe", s.webhookH.HandleStripeWebhook)
	}

	// Public catalog reads
	mux.HandleFunc("GET /api/languages", s.languageH.List)
	mux.HandleFunc("GET /api/languages/{name}", s.languageH.Get)
	mux.HandleFunc("GET /api/datasets", s.datasetH.List)
	mux.HandleFunc("GET /api/datasets/{id}", s.datasetH.Get)
	mux.HandleFunc("GET /api/events", s.eventH.List)

	// Event stream
	mux.HandleFunc("GET /ws", websocket.HandleWebSocket(s.hub, s.logger))

	// Authenticated routes
	auth := middleware.RequireAuth(s.sessionStore)
	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, auth(h))
	}

	protected("POST /api/languages", s.languageH.Create)
	protected("POST /api/languages/{name}/dialects", s.languageH.AddDialect)
	protected("POST /api/languages/{name}/samples", s.languageH.AddSampleText)

	protected("POST /api/datasets", s.datasetH.Create)
	protected("PUT /api/datasets/{id}/content", s.datasetH.UploadContent)
	protected("GET /api/datasets/{id}/content", s.datasetH.DownloadContent)
	protected("POST /api/datasets/{id}/withdraw", s.datasetH.Withdraw)

	protected("POST /api/subscriptions/quote", s.subscriptionH.Quote)
	protected("POST /api/subscriptions", s.subscriptionH.Subscribe)
	protected("POST /api/subscriptions/bulk", s.subscriptionH.SubscribeBulk)
	protected("GET /api/subscriptions", s.subscriptionH.List)

	protected("POST /api/seal/approve", s.sealH.Approve)
	protected("GET /api/account", s.accountH.Get)

	if s.walletH != nil {
		protected("POST /api/wallet/topup", s.walletH.TopUp)
	}

	return middleware.RequestLogger(s.logger)(mux)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
