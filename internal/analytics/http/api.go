package analytichttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/profitboard/internal/analytics"
	"github.com/odyssey-erp/profitboard/internal/platform/httpx"
	"github.com/odyssey-erp/profitboard/internal/shared"
)

type filterResponse struct {
	Start        string   `json:"start"`
	End          string   `json:"end"`
	Marketplaces []string `json:"marketplaces"`
	SKU          string   `json:"sku,omitempty"`
}

type boundsResponse struct {
	Min          *string         `json:"min"`
	Max          *string         `json:"max"`
	DefaultRange *filterResponse `json:"default_range,omitempty"`
}

type dailyResponse struct {
	Filter  filterResponse       `json:"filter"`
	Summary analytics.Summary    `json:"summary"`
	Rows    []analytics.DailyKPI `json:"rows"`
}

type skuResponse struct {
	Filter filterResponse             `json:"filter"`
	Limit  int                        `json:"limit"`
	Rows   []analytics.SKUPerformance `json:"rows"`
}

type pageResponse struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type orderLineResponse struct {
	Filter     filterResponse        `json:"filter"`
	Pagination pageResponse          `json:"pagination"`
	Rows       []analytics.OrderLine `json:"rows"`
}

func toFilterResponse(f analytics.Filter) filterResponse {
	codes := f.MarketplaceCodes
	if codes == nil {
		codes = []string{}
	}
	return filterResponse{
		Start:        f.Range.Start.Format(analytics.DateLayout),
		End:          f.Range.End.Format(analytics.DateLayout),
		Marketplaces: codes,
		SKU:          f.SKU,
	}
}

func (h *Handler) apiMarketplaces(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	markets, err := h.service.ListMarketplaces(ctx)
	if err != nil {
		h.respondAPIError(w, "list marketplaces", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": markets})
}

func (h *Handler) apiDateBounds(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	bounds, err := h.service.GetDateBounds(ctx)
	if err != nil {
		h.respondAPIError(w, "date bounds", err)
		return
	}
	resp := boundsResponse{Min: formatBound(bounds.Min), Max: formatBound(bounds.Max)}
	if rng, ok := analytics.DefaultRange(bounds, h.opts.DefaultWindowDays); ok {
		def := toFilterResponse(analytics.Filter{Range: rng})
		resp.DefaultRange = &def
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) apiDailyKPIs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	filter, err := h.exportFilter(ctx, r)
	if err != nil {
		h.respondAPIError(w, "resolve filter", err)
		return
	}
	rows, err := h.service.DailyKPIs(ctx, filter)
	if err != nil {
		h.respondAPIError(w, "daily kpis", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dailyResponse{
		Filter:  toFilterResponse(filter),
		Summary: analytics.Totals(rows),
		Rows:    rows,
	})
}

func (h *Handler) apiTopSKUs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	limit := h.opts.TopSKULimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			h.respondAPIError(w, "parse limit", validationError{field: "limit", message: "must be an integer"})
			return
		}
		limit = value
	}

	filter, err := h.exportFilter(ctx, r)
	if err != nil {
		h.respondAPIError(w, "resolve filter", err)
		return
	}
	rows, err := h.service.TopSKUs(ctx, filter, limit)
	if err != nil {
		h.respondAPIError(w, "top skus", err)
		return
	}
	httpx.JSON(w, http.StatusOK, skuResponse{Filter: toFilterResponse(filter), Limit: limit, Rows: rows})
}

func (h *Handler) apiOrderLines(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	perPage := h.opts.PageSize
	if raw := strings.TrimSpace(r.URL.Query().Get("per_page")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 || value > 500 {
			h.respondAPIError(w, "parse per_page", validationError{field: "per_page", message: "must be between 1 and 500"})
			return
		}
		perPage = value
	}

	filter, err := h.exportFilter(ctx, r)
	if err != nil {
		h.respondAPIError(w, "resolve filter", err)
		return
	}
	in := readFilterInput(r)
	page := 1
	if in.hasPage {
		page = in.page
	}
	rows, pagination, err := h.service.OrderLinePage(ctx, filter, page, perPage)
	if err != nil {
		h.respondAPIError(w, "order lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orderLineResponse{
		Filter: toFilterResponse(filter),
		Pagination: pageResponse{
			Page:       pagination.Page,
			PerPage:    pagination.PerPage,
			Total:      pagination.Total,
			TotalPages: pagination.TotalPages,
		},
		Rows: rows,
	})
}

func (h *Handler) respondAPIError(w http.ResponseWriter, context string, err error) {
	var vErr validationError
	switch {
	case errors.As(err, &vErr):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, vErr.message))
		return
	case errors.Is(err, errNoOrders):
		httpx.Problem(w, http.StatusNotFound, "No Data", msgNoOrders)
		return
	case errors.Is(err, shared.ErrUnauthenticated):
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	h.logError(context, err)
	var connErr *pgconn.ConnectError
	switch {
	case isTimeout(err):
		httpx.RespondError(w, httpx.ErrTimeout)
	case errors.As(err, &connErr):
		httpx.RespondError(w, httpx.ErrUnavailable)
	default:
		httpx.RespondError(w, err)
	}
}

func formatBound(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(analytics.DateLayout)
	return &s
}

// apiGuard re-checks the session so the API never serves an anonymous caller
// even when mounted without the auth gate.
func (h *Handler) apiGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shared.SessionFromContext(r.Context()).Authenticated() {
			h.respondAPIError(w, "api guard", shared.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
