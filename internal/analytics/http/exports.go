package analytichttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/odyssey-erp/profitboard/internal/analytics"
	"github.com/odyssey-erp/profitboard/internal/analytics/export"
	"github.com/odyssey-erp/profitboard/internal/shared"
)

var errNoOrders = errors.New("analytics: no orders")

// exportFilter resolves the request filter against the store bounds.
func (h *Handler) exportFilter(ctx context.Context, r *http.Request) (analytics.Filter, error) {
	in := readFilterInput(r)
	bounds, err := h.service.GetDateBounds(ctx)
	if err != nil {
		return analytics.Filter{}, err
	}
	if bounds.Empty() {
		return analytics.Filter{}, errNoOrders
	}
	return resolveFilter(in, bounds, h.opts.DefaultWindowDays)
}

// allOrderLines reads the filtered detail in one pass, capped at MaxExportRows.
func (h *Handler) allOrderLines(ctx context.Context, filter analytics.Filter) ([]analytics.OrderLine, error) {
	return h.service.ExportOrderLines(ctx, filter, h.opts.MaxExportRows)
}

func (h *Handler) handleDailyCSV(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, "daily-kpis", "csv", func(ctx context.Context, filter analytics.Filter, buf *bytes.Buffer) error {
		rows, err := h.service.DailyKPIs(ctx, filter)
		if err != nil {
			return err
		}
		return export.WriteDailyKPICSV(buf, rows)
	})
}

func (h *Handler) handleTopSKUCSV(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, "top-skus", "csv", func(ctx context.Context, filter analytics.Filter, buf *bytes.Buffer) error {
		rows, err := h.service.TopSKUs(ctx, filter, h.opts.TopSKULimit)
		if err != nil {
			return err
		}
		return export.WriteTopSKUCSV(buf, rows)
	})
}

func (h *Handler) handleOrderLinesCSV(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, "order-lines", "csv", func(ctx context.Context, filter analytics.Filter, buf *bytes.Buffer) error {
		rows, err := h.allOrderLines(ctx, filter)
		if err != nil {
			return err
		}
		return export.WriteOrderLinesCSV(buf, rows)
	})
}

func (h *Handler) handleXLSX(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, "profitability", "xlsx", func(ctx context.Context, filter analytics.Filter, buf *bytes.Buffer) error {
		data, err := h.loadDashboardData(ctx, filter, 1)
		if err != nil {
			return err
		}
		lines, err := h.allOrderLines(ctx, filter)
		if err != nil {
			return err
		}
		return export.WriteWorkbook(buf, export.Workbook{
			Range:       filter.Range,
			Marketplace: filter.MarketplaceCodes,
			SKU:         filter.SKU,
			GeneratedAt: h.now().UTC(),
			Daily:       data.daily,
			TopSKUs:     data.skus,
			OrderLines:  lines,
		})
	})
}

func (h *Handler) serveExport(w http.ResponseWriter, r *http.Request, name, ext string, write func(context.Context, analytics.Filter, *bytes.Buffer) error) {
	sess := shared.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	filter, err := h.exportFilter(ctx, r)
	if err != nil {
		var vErr validationError
		switch {
		case errors.As(err, &vErr):
			http.Error(w, vErr.message, http.StatusBadRequest)
		case errors.Is(err, errNoOrders):
			http.Error(w, msgNoOrders, http.StatusNotFound)
		default:
			h.handleServerError(w, "resolve export filter", err)
		}
		return
	}

	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.bufPool.Put(buf)
	}()

	if err := write(ctx, filter, buf); err != nil {
		h.handleServerError(w, "write "+name+" "+ext, err)
		return
	}

	filename := fmt.Sprintf("%s-%s-%s.%s", name,
		filter.Range.Start.Format(analytics.DateLayout),
		filter.Range.End.Format(analytics.DateLayout), ext)
	contentType := "text/csv; charset=utf-8"
	if ext == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream "+ext, err)
	}
}

// HandleDailyCSVForTest exposes the daily CSV handler for tests.
func (h *Handler) HandleDailyCSVForTest(w http.ResponseWriter, r *http.Request) { h.handleDailyCSV(w, r) }

// HandleOrderLinesCSVForTest exposes the order line CSV handler for tests.
func (h *Handler) HandleOrderLinesCSVForTest(w http.ResponseWriter, r *http.Request) {
	h.handleOrderLinesCSV(w, r)
}

// HandleXLSXForTest exposes the XLSX handler for tests.
func (h *Handler) HandleXLSXForTest(w http.ResponseWriter, r *http.Request) { h.handleXLSX(w, r) }
