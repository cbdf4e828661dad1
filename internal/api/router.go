// Package api exposes the laptop, customer, cart and order tables over HTTP.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/laptop-store/internal/circuitbreaker"
	"github.com/jogardn/laptop-store/pkg/models"
)

const defaultMaxUploadBytes = 10 << 20

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	Laptops   LaptopRepository
	Customers CustomerRepository
	Carts     CartRepository
	Orders    OrderRepository

	Uploads  Uploader
	Notifier *Notifier
	// WebSocket serves the live change feed on /ws when set.
	WebSocket http.HandlerFunc
	DB        Pinger
	Breakers  *circuitbreaker.Manager
	Metrics   *Metrics

	PublicDir      string
	MaxUploadBytes int64
	Logger         *logrus.Logger
}

// NewRouter returns the fully wrapped HTTP handler.
func NewRouter(opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	logger := opts.Logger

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Resource not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondSuccess(w, http.StatusOK, nil)
	}).Methods(http.MethodGet)
	router.HandleFunc("/health", healthHandler(opts.DB, opts.Breakers)).Methods(http.MethodGet)
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}
	if opts.WebSocket != nil {
		router.HandleFunc("/ws", opts.WebSocket).Methods(http.MethodGet)
	}
	if opts.PublicDir != "" {
		router.PathPrefix("/public/").
			Handler(http.StripPrefix("/public/", staticFiles(opts.PublicDir))).
			Methods(http.MethodGet, http.MethodHead)
	}

	(&resource[models.Laptop, models.LaptopInput, models.LaptopPatch, models.LaptopFilter]{
		singular: "laptop",
		plural:   "laptops",
		label:    "Laptop",
		repo:     opts.Laptops,
		idOf:     func(l models.Laptop) int64 { return l.ID },
		filter:   laptopFilter,
		fromForm: laptopPatchFromForm,
		attach:   laptopImage(opts.Uploads),
		uploads:  opts.Uploads,
		notifier: opts.Notifier,
		logger:   logger,
		maxBytes: opts.MaxUploadBytes,
	}).register(router)

	(&resource[models.Customer, models.CustomerInput, models.CustomerPatch, models.CustomerFilter]{
		singular: "customer",
		plural:   "customers",
		label:    "Customer",
		repo:     opts.Customers,
		idOf:     func(c models.Customer) int64 { return c.ID },
		filter:   customerFilter,
		fromForm: customerPatchFromForm,
		notifier: opts.Notifier,
		logger:   logger,
		maxBytes: opts.MaxUploadBytes,
	}).register(router)

	(&resource[models.Cart, models.CartInput, models.CartPatch, models.CartFilter]{
		singular: "cart",
		plural:   "carts",
		label:    "Cart",
		repo:     opts.Carts,
		idOf:     func(c models.Cart) int64 { return c.ID },
		filter:   cartFilter,
		fromForm: cartPatchFromForm,
		notifier: opts.Notifier,
		logger:   logger,
		maxBytes: opts.MaxUploadBytes,
	}).register(router)

	(&resource[models.Order, models.OrderInput, models.OrderPatch, models.OrderFilter]{
		singular: "order",
		plural:   "orders",
		label:    "Order",
		repo:     opts.Orders,
		idOf:     func(o models.Order) int64 { return o.ID },
		filter:   orderFilter,
		fromForm: orderPatchFromForm,
		notifier: opts.Notifier,
		logger:   logger,
		maxBytes: opts.MaxUploadBytes,
	}).register(router)

	middlewares := []mux.MiddlewareFunc{
		requestIDMiddleware(),
		loggingMiddleware(logger),
		recoverMiddleware(logger),
		corsMiddleware(),
	}
	if opts.Metrics != nil {
		middlewares = append(middlewares, opts.Metrics.Middleware(router))
	}
	return chain(router, middlewares...)
}

// staticFiles serves files but never directory listings.
func staticFiles(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			respondWithError(w, http.StatusNotFound, "Resource not found")
			return
		}
		fs.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status          string                    `json:"status"`
	Service         string                    `json:"service"`
	Database        string                    `json:"database"`
	CircuitBreakers []circuitbreaker.Snapshot `json:"circuit_breakers"`
	CheckedAt       string                    `json:"checked_at"`
}

// healthHandler reports 503 when the database is unreachable and "degraded"
// while a breaker is open.
func healthHandler(db Pinger, breakers *circuitbreaker.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:          "healthy",
			Service:         eventSource,
			Database:        "up",
			CircuitBreakers: []circuitbreaker.Snapshot{},
			CheckedAt:       time.Now().UTC().Format(time.RFC3339),
		}
		if breakers != nil {
			resp.CircuitBreakers = breakers.Snapshots()
			if breakers.AnyOpen() {
				resp.Status = "degraded"
			}
		}

		code := http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				resp.Status = "unhealthy"
				resp.Database = "down"
				code = http.StatusServiceUnavailable
			}
		}
		respondWithJSON(w, code, resp)
	}
}
