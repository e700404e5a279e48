package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ir-comercio/ir-comercio-sistema/internal/http/handlers"
	"github.com/ir-comercio/ir-comercio-sistema/internal/middleware"
	"github.com/ir-comercio/ir-comercio-sistema/internal/sessionclient"
)

// Mount paths of the apps served by the gateway
const (
	PortalPath     = "/"
	OrdersPath     = "/ordem-compra"
	PriceTablePath = "/tabela-precos"
	PortalApp      = "portal"
	OrdersApp      = "ordem-compra"
	PriceTableApp  = "tabela-precos"
)

// AvailableApps maps each app to its mount path
func AvailableApps() map[string]string {
	return map[string]string{
		PortalApp:     PortalPath,
		OrdersApp:     OrdersPath,
		PriceTableApp: PriceTablePath,
	}
}

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Auth     *handlers.AuthHandler
	Orders   *handlers.OrderHandler
	Products *handlers.ProductHandler
	Health   *handlers.HealthHandler
}

// Deps are the cross-cutting collaborators of the router
type Deps struct {
	Logger       *zap.Logger
	Sessions     sessionclient.Verifier
	LoginLimiter middleware.Limiter
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(h Handlers, deps Deps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS)

	r.Get("/health", h.Health.ServeHTTP)

	// Portal: session authority
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health.App(PortalApp))
		r.Get("/ip", h.Auth.HandleIP)
		r.Get("/check-ip-access", h.Auth.HandleCheckIPAccess)
		r.Get("/business-hours", h.Auth.HandleBusinessHours)

		r.Group(func(r chi.Router) {
			if deps.LoginLimiter != nil {
				r.Use(middleware.RateLimitMiddleware(deps.LoginLimiter, middleware.GetIPKey, logger))
			}
			r.Post("/login", h.Auth.HandleLogin)
		})
		r.Post("/logout", h.Auth.HandleLogout)
		r.Post("/verify-session", h.Auth.HandleVerifySession)
	})

	requireSession := middleware.RequireSession(deps.Sessions, logger)

	r.Route(OrdersPath, func(r chi.Router) {
		r.Get("/health", h.Health.App(OrdersApp))
		r.Route("/api/ordens", func(r chi.Router) {
			r.Use(requireSession)
			r.Get("/", h.Orders.HandleList)
			r.Post("/", h.Orders.HandleCreate)
			r.Get("/{id}", h.Orders.HandleGet)
			r.Put("/{id}", h.Orders.HandleUpdate)
			r.Patch("/{id}/status", h.Orders.HandleUpdateStatus)
			r.Delete("/{id}", h.Orders.HandleDelete)
		})
	})

	r.Route(PriceTablePath, func(r chi.Router) {
		r.Get("/health", h.Health.App(PriceTableApp))
		r.Route("/api/produtos", func(r chi.Router) {
			r.Use(requireSession)
			r.Get("/", h.Products.HandleList)
			r.Post("/", h.Products.HandleCreate)
			r.Get("/search/{termo}", h.Products.HandleSearch)
			r.Get("/categoria/{categoria}", h.Products.HandleByCategory)
			r.Get("/{id}", h.Products.HandleGet)
			r.Put("/{id}", h.Products.HandleUpdate)
			r.Delete("/{id}", h.Products.HandleDelete)
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":         "route not found",
			"path":          req.URL.Path,
			"availableApps": AvailableApps(),
		})
	})

	return r
}
