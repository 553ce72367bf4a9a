package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/profitboard/internal/analytics"
	jobmetrics "github.com/odyssey-erp/profitboard/internal/jobs"
	"github.com/odyssey-erp/profitboard/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// WarmupService is the slice of the analytics service a warm-up drives. Every
// call populates the result cache as a side effect.
type WarmupService interface {
	ListMarketplaces(ctx context.Context) ([]analytics.Marketplace, error)
	GetDateBounds(ctx context.Context) (analytics.DateBounds, error)
	DailyKPIs(ctx context.Context, filter analytics.Filter) ([]analytics.DailyKPI, error)
	TopSKUs(ctx context.Context, filter analytics.Filter, limit int) ([]analytics.SKUPerformance, error)
	OrderLinePage(ctx context.Context, filter analytics.Filter, page, perPage int) ([]analytics.OrderLine, shared.Pagination, error)
}

// CacheWarmupJob computes the dashboard's default view ahead of the first visitor.
type CacheWarmupJob struct {
	Analytics WarmupService
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Timeout   time.Duration
}

// NewCacheWarmupJob wires dependencies for the warm-up handler.
func NewCacheWarmupJob(svc WarmupService, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheWarmupJob {
	return &CacheWarmupJob{Analytics: svc, Logger: logger, Metrics: metrics, Timeout: 2 * time.Minute}
}

// Handle processes analytics warm-up tasks.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Analytics == nil {
		return errors.New("cache warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("cache warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	payload = payload.withDefaults()

	tracker := j.metrics().Track(TaskAnalyticsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	logger := j.logger()
	start := time.Now()

	markets, err := j.Analytics.ListMarketplaces(ctx)
	if err != nil {
		logger.Error("load marketplaces", slog.Any("error", err))
		return err
	}
	bounds, err := j.Analytics.GetDateBounds(ctx)
	if err != nil {
		logger.Error("load date bounds", slog.Any("error", err))
		return err
	}
	rng, ok := analytics.DefaultRange(bounds, payload.WindowDays)
	if !ok {
		logger.Info("no orders stored, nothing to warm")
		return nil
	}

	filters := []analytics.Filter{{Range: rng}}
	if payload.PerMarketplace {
		for _, m := range markets {
			filters = append(filters, analytics.Filter{Range: rng, MarketplaceCodes: []string{m.Code}})
		}
	}
	for _, f := range filters {
		if err := j.warmFilter(ctx, f.Normalize(), payload); err != nil {
			logger.Error("warm filter", slog.Any("marketplaces", f.MarketplaceCodes), slog.Any("error", err))
			return err
		}
	}

	logger.Info("completed cache warmup",
		slog.Int("filters", len(filters)),
		slog.String("start", rng.Start.Format(analytics.DateLayout)),
		slog.String("end", rng.End.Format(analytics.DateLayout)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *CacheWarmupJob) warmFilter(ctx context.Context, filter analytics.Filter, payload WarmupPayload) error {
	if _, err := j.Analytics.DailyKPIs(ctx, filter); err != nil {
		return err
	}
	if _, err := j.Analytics.TopSKUs(ctx, filter, payload.TopSKULimit); err != nil {
		return err
	}
	if _, _, err := j.Analytics.OrderLinePage(ctx, filter, 1, payload.PageSize); err != nil {
		return err
	}
	m := j.metrics()
	m.AddWarmed("daily_kpis", 1)
	m.AddWarmed("top_skus", 1)
	m.AddWarmed("order_lines", 1)
	return nil
}

func (j *CacheWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnalyticsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAnalyticsWarmup))
}

func (j *CacheWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
