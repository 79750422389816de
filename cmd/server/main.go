package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/liamcoop/crm/audience"
	"github.com/liamcoop/crm/campaigns"
	"github.com/liamcoop/crm/customers"
	"github.com/liamcoop/crm/internal/config"
	"github.com/liamcoop/crm/internal/logger"
)

type Server struct {
	db        *sql.DB // nil when running on in-memory stores
	filter    *audience.Filter
	customers customers.Store
	orders    customers.OrderStore
	ledger    *customers.Ledger
	campaigns *campaigns.Engine
	router    *chi.Mux
	slow      time.Duration
}

// Stores groups the persistence the server runs on
type Stores struct {
	Customers customers.Store
	Orders    customers.OrderStore
	Campaigns campaigns.Store
}

// InMemoryStores returns empty in-memory stores
func InMemoryStores() Stores {
	return Stores{
		Customers: customers.NewInMemoryStore(),
		Orders:    customers.NewInMemoryOrderStore(),
		Campaigns: campaigns.NewInMemoryStore(),
	}
}

// PostgresStores returns stores backed by db
func PostgresStores(db *sql.DB) Stores {
	return Stores{
		Customers: customers.NewPostgresStore(db),
		Orders:    customers.NewPostgresOrderStore(db),
		Campaigns: campaigns.NewPostgresStore(db),
	}
}

// NewServer builds a server from configuration, connecting to Postgres when
// DATABASE_URL is set
func NewServer(cfg config.Config) (*Server, error) {
	if !cfg.UsesDatabase() {
		stores := InMemoryStores()
		if cfg.SeedDemoData {
			if err := customers.Seed(stores.Customers, stores.Orders); err != nil {
				return nil, err
			}
			logger.Info("Seeded demo data")
		}
		return NewServerWithStores(nil, stores, cfg.SlowRequestThreshold)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	stores := PostgresStores(db)
	if cfg.SeedDemoData {
		if err := customers.Seed(stores.Customers, stores.Orders); err != nil {
			logger.Warn("Demo data not seeded", "error", err)
		}
	}

	return NewServerWithStores(db, stores, cfg.SlowRequestThreshold)
}

// NewServerWithDB builds a server on Postgres stores over an open connection
func NewServerWithDB(db *sql.DB) (*Server, error) {
	return NewServerWithStores(db, PostgresStores(db), time.Second)
}

// NewServerWithStores builds a server over the given stores. db may be nil.
func NewServerWithStores(db *sql.DB, stores Stores, slow time.Duration) (*Server, error) {
	filter := audience.NewFilter(audience.Default())

	engine, err := campaigns.NewEngine(filter, stores.Campaigns)
	if err != nil {
		return nil, fmt.Errorf("failed to create campaign engine: %w", err)
	}

	s := &Server{
		db:        db,
		filter:    filter,
		customers: stores.Customers,
		orders:    stores.Orders,
		ledger:    customers.NewLedger(stores.Customers, stores.Orders),
		campaigns: engine,
		slow:      slow,
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger(s.slow))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/dashboard", s.handleDashboard)

	r.Route("/api/v1/fields", func(r chi.Router) {
		r.Get("/", s.handleListFields)
		r.Get("/{name}", s.handleDescribeField)
	})

	r.Route("/api/v1/audience", func(r chi.Router) {
		r.Post("/validate", s.handleValidateRules)
		r.Post("/preview", s.handlePreviewAudience)
	})

	r.Route("/api/v1/customers", func(r chi.Router) {
		r.Get("/", s.handleListCustomers)
		r.Post("/", s.handleCreateCustomer)
		r.Post("/import", s.handleImportCustomers)

		r.Route("/{customerId}", func(r chi.Router) {
			r.Get("/", s.handleGetCustomer)
			r.Put("/", s.handleUpdateCustomer)
			r.Delete("/", s.handleDeleteCustomer)
			r.Get("/campaigns", s.handleCustomerCampaigns)
		})
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Get("/", s.handleListOrders)
		r.Post("/", s.handleCreateOrder)
		r.Get("/summary", s.handleOrderSummary)
	})

	r.Route("/api/v1/campaigns", func(r chi.Router) {
		r.Get("/", s.handleListCampaigns)
		r.Post("/", s.handleCreateCampaign)

		r.Route("/{campaignId}", func(r chi.Router) {
			r.Get("/", s.handleGetCampaign)
			r.Put("/", s.handleUpdateCampaign)
			r.Delete("/", s.handleDeleteCampaign)
			r.Post("/deliveries", s.handleRecordDelivery)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the database connection, if any
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", "error", err)
	}

	if err := logger.Setup(context.Background(), logger.OptionsFromEnv()); err != nil {
		logger.Warn("Logger setup failed", "error", err)
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "database", cfg.UsesDatabase())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
	}

	logger.Info("Server stopped")
}
