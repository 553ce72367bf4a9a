package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAnalyticsWarmup pre-computes the dashboard default view into the result cache.
	TaskAnalyticsWarmup = "analytics:warmup"
)

// WarmupPayload tunes which dashboard views a warm-up computes.
type WarmupPayload struct {
	WindowDays     int  `json:"window_days"`
	TopSKULimit    int  `json:"top_sku_limit"`
	PageSize       int  `json:"page_size"`
	PerMarketplace bool `json:"per_marketplace"`
}

func (p WarmupPayload) withDefaults() WarmupPayload {
	if p.WindowDays <= 0 {
		p.WindowDays = 30
	}
	if p.TopSKULimit == 0 {
		p.TopSKULimit = 25
	}
	if p.PageSize <= 0 {
		p.PageSize = 50
	}
	return p
}

// NewWarmupTask constructs an analytics warm-up task.
func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsWarmup, data), nil
}
