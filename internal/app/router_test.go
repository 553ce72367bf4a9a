package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/profitboard/internal/analytics"
	analytichttp "github.com/odyssey-erp/profitboard/internal/analytics/http"
	"github.com/odyssey-erp/profitboard/internal/analytics/ui"
	"github.com/odyssey-erp/profitboard/internal/auth"
	"github.com/odyssey-erp/profitboard/internal/observability"
	"github.com/odyssey-erp/profitboard/internal/shared"
	"github.com/odyssey-erp/profitboard/internal/view"
)

type emptyAnalytics struct{}

func (emptyAnalytics) ListMarketplaces(context.Context) ([]analytics.Marketplace, error) {
	return []analytics.Marketplace{{Code: "FR", Name: "France"}}, nil
}

func (emptyAnalytics) GetDateBounds(context.Context) (analytics.DateBounds, error) {
	return analytics.DateBounds{}, nil
}

func (emptyAnalytics) DailyKPIs(context.Context, analytics.Filter) ([]analytics.DailyKPI, error) {
	return nil, nil
}

func (emptyAnalytics) TopSKUs(context.Context, analytics.Filter, int) ([]analytics.SKUPerformance, error) {
	return nil, nil
}

func (emptyAnalytics) OrderLineDetail(context.Context, analytics.Filter, int, int) (analytics.DetailPage, error) {
	return analytics.DetailPage{}, nil
}

func (emptyAnalytics) ExportOrderLines(context.Context, analytics.Filter, int) ([]analytics.OrderLine, error) {
	return nil, nil
}

func (emptyAnalytics) OrderLinePage(_ context.Context, _ analytics.Filter, page, perPage int) ([]analytics.OrderLine, shared.Pagination, error) {
	return nil, shared.NewPagination(page, perPage, 0), nil
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) Check(ctx context.Context) error { return f(ctx) }

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func newTestRouter(t *testing.T, readiness ReadinessChecker) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &Config{AppEnv: "development", AppRequestTimeout: 5 * time.Second}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := shared.NewSessionManager(client, "test_session", "0123456789abcdef", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	templates, err := view.NewEngine()
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	repo, err := auth.ParseCredentials([]byte("credentials:\n  usernames:\n    jdoe:\n      name: Jane Doe\n      email: jane@example.com\n      password: " + string(hash) + "\n"))
	require.NoError(t, err)

	return NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessions,
		CSRFManager:      csrf,
		AuthHandler:      auth.NewHandler(logger, auth.NewService(repo, logger), templates, sessions, csrf),
		AnalyticsHandler: analytichttp.NewHandler(logger, emptyAnalytics{}, templates, csrf, ui.SVGRenderer{}, ui.SVGRenderer{}, analytichttp.Options{}),
		Readiness:        readiness,
		Metrics:          observability.NewMetrics(),
	})
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body.String())
}

func TestReadyzReportsStoreFailure(t *testing.T) {
	router := newTestRouter(t, checkerFunc(func(context.Context) error { return errors.New("connection refused") }))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestAnonymousDashboardRedirectsToLogin(t *testing.T) {
	router := newTestRouter(t, nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, res.Header().Get("Set-Cookie"))
}

func TestAnonymousExportKeepsNext(t *testing.T) {
	router := newTestRouter(t, nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/export/daily.csv?start=2024-01-01", nil))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login?next="+url.QueryEscape("/export/daily.csv?start=2024-01-01"), res.Header().Get("Location"))
}

func TestAnonymousAPIGetsProblem(t *testing.T) {
	router := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/marketplaces", nil)
	req.Header.Set("Accept", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Header().Get("Content-Type"), "application/problem+json")
}

func TestPostWithoutCSRFTokenIsForbidden(t *testing.T) {
	router := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestLoginFlowReachesDashboard(t *testing.T) {
	router := newTestRouter(t, nil)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusOK, res.Code)
	match := csrfPattern.FindStringSubmatch(res.Body.String())
	require.Len(t, match, 2, "login form should carry a csrf token")
	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)

	form := url.Values{"username": {"jdoe"}, "password": {"s3cret"}, "csrf_token": {match[1]}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
	authCookies := res.Result().Cookies()
	require.NotEmpty(t, authCookies)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range authCookies {
		req.AddCookie(c)
	}
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "No orders found yet. Ingest data first.")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/marketplaces", nil)
	for _, c := range authCookies {
		req.AddCookie(c)
	}
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"FR"`)
}

func TestMetricsEndpointExposesRequests(t *testing.T) {
	router := newTestRouter(t, nil)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `profitboard_http_requests_total{code="200",route="/auth/login"} 1`)
}
