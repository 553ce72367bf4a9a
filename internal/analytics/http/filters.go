package analytichttp

import (
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/profitboard/internal/analytics"
)

// Messages shown on the dashboard for soft failures.
const (
	msgNoOrders     = "No orders found yet. Ingest data first."
	msgInvalidRange = "Start date must be before end date."
	msgNoData       = "No data for the selected filters."
)

var errInvalidDate = errors.New("analytics: invalid date")

type validationError struct {
	field   string
	message string
}

func (v validationError) Error() string {
	return "invalid " + v.field + ": " + v.message
}

// filterInput is the raw query state before defaults are applied.
type filterInput struct {
	start        string
	end          string
	marketplaces []string
	sku          string
	page         int
	hasPage      bool
}

func readFilterInput(r *http.Request) filterInput {
	q := r.URL.Query()
	in := filterInput{
		start: strings.TrimSpace(q.Get("start")),
		end:   strings.TrimSpace(q.Get("end")),
		sku:   strings.TrimSpace(q.Get("sku")),
	}
	for _, raw := range q["marketplace"] {
		for _, code := range strings.Split(raw, ",") {
			if code = strings.TrimSpace(code); code != "" {
				in.marketplaces = append(in.marketplaces, code)
			}
		}
	}
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil {
			in.page = page
			in.hasPage = true
		}
	}
	return in
}

// resolveFilter applies the default window to missing dates and validates
// the range. bounds must not be empty.
func resolveFilter(in filterInput, bounds analytics.DateBounds, windowDays int) (analytics.Filter, error) {
	def, _ := analytics.DefaultRange(bounds, windowDays)
	start, err := parseDateOr(in.start, def.Start)
	if err != nil {
		return analytics.Filter{}, validationError{field: "start", message: err.Error()}
	}
	end, err := parseDateOr(in.end, def.End)
	if err != nil {
		return analytics.Filter{}, validationError{field: "end", message: err.Error()}
	}
	rng, err := analytics.NewDateRange(start, end)
	if err != nil {
		return analytics.Filter{}, validationError{field: "start", message: msgInvalidRange}
	}
	return analytics.Filter{
		Range:            rng,
		MarketplaceCodes: in.marketplaces,
		SKU:              in.sku,
	}.Normalize(), nil
}

func parseDateOr(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(analytics.DateLayout, raw)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return t, nil
}

// filterQuery renders the filter back into query parameters, without the page.
func filterQuery(f analytics.Filter) url.Values {
	q := url.Values{}
	q.Set("start", f.Range.Start.Format(analytics.DateLayout))
	q.Set("end", f.Range.End.Format(analytics.DateLayout))
	codes := append([]string(nil), f.MarketplaceCodes...)
	sort.Strings(codes)
	for _, code := range codes {
		q.Add("marketplace", code)
	}
	if f.SKU != "" {
		q.Set("sku", f.SKU)
	}
	return q
}
