package analytichttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/profitboard/internal/analytics"
	"github.com/odyssey-erp/profitboard/internal/analytics/svg"
	"github.com/odyssey-erp/profitboard/internal/analytics/ui"
	"github.com/odyssey-erp/profitboard/internal/shared"
	"github.com/odyssey-erp/profitboard/internal/view"
)

const (
	sessionDetailPage   = "detail_page"
	sessionDetailFilter = "detail_filter"
)

// AnalyticsService defines the dashboard data contract used by the handler.
type AnalyticsService interface {
	ListMarketplaces(ctx context.Context) ([]analytics.Marketplace, error)
	GetDateBounds(ctx context.Context) (analytics.DateBounds, error)
	DailyKPIs(ctx context.Context, filter analytics.Filter) ([]analytics.DailyKPI, error)
	TopSKUs(ctx context.Context, filter analytics.Filter, limit int) ([]analytics.SKUPerformance, error)
	OrderLinePage(ctx context.Context, filter analytics.Filter, page, perPage int) ([]analytics.OrderLine, shared.Pagination, error)
	ExportOrderLines(ctx context.Context, filter analytics.Filter, limit int) ([]analytics.OrderLine, error)
}

// Options tunes the presentation layer.
type Options struct {
	TopSKULimit       int
	PageSize          int
	DefaultWindowDays int
	RequestTimeout    time.Duration
	MaxExportRows     int
}

func (o Options) withDefaults() Options {
	if o.TopSKULimit == 0 {
		o.TopSKULimit = 25
	}
	if o.PageSize <= 0 {
		o.PageSize = shared.DefaultPerPage
	}
	if o.DefaultWindowDays <= 0 {
		o.DefaultWindowDays = 30
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 20 * time.Second
	}
	if o.MaxExportRows <= 0 {
		o.MaxExportRows = 100000
	}
	return o
}

// Handler coordinates HTTP requests for the profitability dashboard.
type Handler struct {
	logger    *slog.Logger
	service   AnalyticsService
	templates *view.Engine
	csrf      *shared.CSRFManager
	line      ui.LineRenderer
	bar       ui.BarRenderer
	opts      Options
	bufPool   sync.Pool
	now       func() time.Time
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService, templates *view.Engine, csrf *shared.CSRFManager, line ui.LineRenderer, bar ui.BarRenderer, opts Options) *Handler {
	h := &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		line:      line,
		bar:       bar,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
	h.bufPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

type dashboardData struct {
	daily      []analytics.DailyKPI
	skus       []analytics.SKUPerformance
	lines      []analytics.OrderLine
	pagination shared.Pagination
}

type referenceData struct {
	markets []analytics.Marketplace
	bounds  analytics.DateBounds
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	ref, err := h.loadReference(ctx)
	if err != nil {
		h.handleServerError(w, "load reference data", err)
		return
	}
	if ref.bounds.Empty() {
		h.render(w, r, http.StatusOK, "pages/nodata.html", "No data", map[string]string{"Message": msgNoOrders})
		return
	}

	in := readFilterInput(r)
	filter, err := resolveFilter(in, ref.bounds, h.opts.DefaultWindowDays)
	if err != nil {
		var vErr validationError
		if !errors.As(err, &vErr) {
			h.handleServerError(w, "parse filters", err)
			return
		}
		vm := ui.DashboardViewModel{
			Filters: rawFilters(in, ref),
			Error:   vErr.message,
		}
		h.render(w, r, http.StatusBadRequest, "pages/dashboard.html", "Profitability", vm)
		return
	}

	query := filterQuery(filter).Encode()
	page := h.resolvePage(sess, in, query)

	data, err := h.loadDashboardData(ctx, filter, page)
	if err != nil {
		h.handleServerError(w, "load dashboard", err)
		return
	}
	h.rememberPage(sess, query, data.pagination.Page)

	vm, err := h.buildViewModel(filter, ref, data)
	if err != nil {
		h.handleServerError(w, "render charts", err)
		return
	}
	vm.Query = query
	h.render(w, r, http.StatusOK, "pages/dashboard.html", "Profitability", vm)
}

func (h *Handler) loadReference(ctx context.Context) (referenceData, error) {
	var ref referenceData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		markets, err := h.service.ListMarketplaces(gctx)
		if err != nil {
			return err
		}
		ref.markets = markets
		return nil
	})
	g.Go(func() error {
		bounds, err := h.service.GetDateBounds(gctx)
		if err != nil {
			return err
		}
		ref.bounds = bounds
		return nil
	})
	if err := g.Wait(); err != nil {
		return referenceData{}, err
	}
	return ref, nil
}

func (h *Handler) loadDashboardData(ctx context.Context, filter analytics.Filter, page int) (dashboardData, error) {
	var data dashboardData
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := h.service.DailyKPIs(ctx, filter)
		if err != nil {
			return err
		}
		data.daily = rows
		return nil
	})

	g.Go(func() error {
		rows, err := h.service.TopSKUs(ctx, filter, h.opts.TopSKULimit)
		if err != nil {
			return err
		}
		data.skus = rows
		return nil
	})

	g.Go(func() error {
		rows, pagination, err := h.service.OrderLinePage(ctx, filter, page, h.opts.PageSize)
		if err != nil {
			return err
		}
		data.lines = rows
		data.pagination = pagination
		return nil
	})

	if err := g.Wait(); err != nil {
		return dashboardData{}, err
	}
	return data, nil
}

func (h *Handler) buildViewModel(filter analytics.Filter, ref referenceData, data dashboardData) (ui.DashboardViewModel, error) {
	if h.line == nil || h.bar == nil {
		return ui.DashboardViewModel{}, fmt.Errorf("svg renderer missing")
	}
	vm := ui.DashboardViewModel{
		Filters:     formFilters(filter, ref),
		Daily:       data.daily,
		TopSKUs:     data.skus,
		TopSKULimit: h.opts.TopSKULimit,
		Detail:      ui.DetailView{Rows: data.lines, Pagination: data.pagination},
	}

	if len(data.daily) == 0 {
		vm.NoData = true
		vm.Notice = msgNoData
	} else {
		vm.Cards = ui.SummaryCards(analytics.Totals(data.daily))
		days, series := ui.ContributionChartSeries(data.daily)
		chart, err := h.line.Lines(svg.DefaultWidth, svg.DefaultHeight, days, series, svg.LineOpts{
			Title:       "Contribution by day",
			Description: "Daily contribution per marketplace",
			ShowDots:    len(days) <= 31,
		})
		if err != nil {
			return ui.DashboardViewModel{}, err
		}
		vm.ContributionSVG = chart
	}

	if len(data.skus) > 0 {
		labels, gmv, contribution := ui.SKUChartData(data.skus)
		chart, err := h.bar.Bars(svg.DefaultWidth, svg.DefaultHeight, gmv, contribution, labels, svg.BarOpts{
			Title:        "Top SKUs",
			Description:  "GMV against contribution for the highest contributing SKUs",
			SeriesALabel: "GMV",
			SeriesBLabel: "Contribution",
		})
		if err != nil {
			return ui.DashboardViewModel{}, err
		}
		vm.TopSKUSVG = chart
	}
	return vm, nil
}

func formFilters(filter analytics.Filter, ref referenceData) ui.DashboardFilters {
	return ui.DashboardFilters{
		Start:        filter.Range.Start.Format(analytics.DateLayout),
		End:          filter.Range.End.Format(analytics.DateLayout),
		MinDate:      boundString(ref.bounds.Min),
		MaxDate:      boundString(ref.bounds.Max),
		SKU:          filter.SKU,
		Marketplaces: ui.MarketplaceOptions(ref.markets, filter.MarketplaceCodes),
	}
}

func rawFilters(in filterInput, ref referenceData) ui.DashboardFilters {
	return ui.DashboardFilters{
		Start:        in.start,
		End:          in.end,
		MinDate:      boundString(ref.bounds.Min),
		MaxDate:      boundString(ref.bounds.Max),
		SKU:          in.sku,
		Marketplaces: ui.MarketplaceOptions(ref.markets, in.marketplaces),
	}
}

func boundString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(analytics.DateLayout)
}

// resolvePage prefers an explicit page parameter, then the page remembered for
// the same filters, then page 1.
func (h *Handler) resolvePage(sess *shared.Session, in filterInput, query string) int {
	if in.hasPage {
		return in.page
	}
	if sess == nil || sess.Get(sessionDetailFilter) != query {
		return 1
	}
	page, err := strconv.Atoi(sess.Get(sessionDetailPage))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func (h *Handler) rememberPage(sess *shared.Session, query string, page int) {
	if sess == nil {
		return
	}
	value := strconv.Itoa(page)
	if sess.Get(sessionDetailFilter) == query && sess.Get(sessionDetailPage) == value {
		return
	}
	sess.Set(sessionDetailFilter, query)
	sess.Set(sessionDetailPage, value)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	var flash *shared.FlashMessage
	csrfToken := ""
	if sess != nil {
		flash = sess.PopFlash()
		if h.csrf != nil {
			csrfToken, _ = h.csrf.EnsureToken(sess)
		}
	}
	identity, _ := shared.IdentityFromContext(r.Context())

	var buf bytes.Buffer
	if err := h.templates.Execute(&buf, name, view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Identity:    identity,
		Data:        data,
	}); err != nil {
		h.handleServerError(w, "render template", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		h.logError("stream html", err)
	}
}

func (h *Handler) handleServerError(w http.ResponseWriter, context string, err error) {
	h.logError(context, err)
	status := http.StatusInternalServerError
	if isTimeout(err) {
		status = http.StatusGatewayTimeout
	}
	http.Error(w, http.StatusText(status), status)
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var qe *analytics.QueryError
	return errors.As(err, &qe) && qe.Timeout()
}

// HandleDashboardForTest exposes the dashboard handler for tests.
func (h *Handler) HandleDashboardForTest(w http.ResponseWriter, r *http.Request) {
	h.handleDashboard(w, r)
}
