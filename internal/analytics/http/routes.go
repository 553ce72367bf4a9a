package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/profitboard/internal/shared"
)

// MountRoutes registers the dashboard and its downloads onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/", h.handleDashboard)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/export/daily.csv", h.handleDailyCSV)
		gr.Get("/export/top-skus.csv", h.handleTopSKUCSV)
		gr.Get("/export/order-lines.csv", h.handleOrderLinesCSV)
		gr.Get("/export/profitability.xlsx", h.handleXLSX)
	})
}

// MountAPI registers the JSON endpoints, normally under /api/v1.
func (h *Handler) MountAPI(r chi.Router) {
	if h == nil {
		return
	}
	r.Use(h.apiGuard)
	r.Get("/marketplaces", h.apiMarketplaces)
	r.Get("/date-bounds", h.apiDateBounds)
	r.Get("/kpis/daily", h.apiDailyKPIs)
	r.Get("/skus/top", h.apiTopSKUs)
	r.Get("/order-lines", h.apiOrderLines)
}

func rateLimitKey(r *http.Request) (string, error) {
	if identity, ok := shared.IdentityFromContext(r.Context()); ok {
		return "user:" + identity.Username, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
