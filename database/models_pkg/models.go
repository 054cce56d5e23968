package models

import "time"

// ForecastSnapshot is one forecasted value for a (model, metric, perception
// date, target date) tuple, written by the backtest runner.
//
// Key Fields:
//   - Model: forecasting model identifier (e.g. seasonal_naive, pickup_postcovid)
//   - MetricCode: demand metric the forecast targets (rooms_sold, revenue, ...)
//   - PerceptionDate: the date the forecast was generated from
//   - TargetDate: the stay date being forecast
//   - LeadDays: TargetDate - PerceptionDate in days
//   - Forecast: forecasted metric value
//   - Actual: realized value, nil until the actuals backfill fills it
//
// A snapshot is written once by the runner, mutated once by the backfill when
// the target date has passed, and immutable afterward. The identifying tuple
// carries a unique index so re-running a backtest over the same grid upserts
// instead of duplicating.
type ForecastSnapshot struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Model          string    `gorm:"size:50;index;not null" json:"model"`
	MetricCode     string    `gorm:"size:30;index;not null" json:"metric_code"`
	PerceptionDate time.Time `gorm:"type:date;index;not null" json:"perception_date"`
	TargetDate     time.Time `gorm:"type:date;index;not null" json:"target_date"`
	LeadDays       int       `gorm:"not null" json:"lead_days"`
	Forecast       float64   `gorm:"type:decimal(15,4);not null" json:"forecast"`
	Actual         *float64  `gorm:"type:decimal(15,4)" json:"actual,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for ForecastSnapshot
func (ForecastSnapshot) TableName() string {
	return "forecast_snapshots"
}

// ActualValue is the realized outcome for a metric on a stay date, the ground
// truth the actuals backfill joins into snapshots.
type ActualValue struct {
	MetricCode string    `gorm:"size:30;primaryKey" json:"metric_code"`
	StayDate   time.Time `gorm:"type:date;primaryKey" json:"stay_date"`
	Value      float64   `gorm:"type:decimal(15,4);not null" json:"value"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for ActualValue
func (ActualValue) TableName() string {
	return "actual_values"
}

// Backtest job lifecycle states.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// BacktestJob tracks one asynchronous backtest run over a grid of perception
// dates. The triggering request gets the job ID back immediately; progress is
// observable by polling or via the SSE/WebSocket streams.
type BacktestJob struct {
	ID               string     `gorm:"size:36;primaryKey" json:"id"`
	Model            string     `gorm:"size:50;index;not null" json:"model"`
	MetricCode       string     `gorm:"size:30;index;not null" json:"metric_code"`
	StartDate        time.Time  `gorm:"type:date;not null" json:"start_date"`
	EndDate          time.Time  `gorm:"type:date;not null" json:"end_date"`
	ForecastDays     int        `gorm:"not null" json:"forecast_days"`
	ExcludeCovid     bool       `json:"exclude_covid"`
	Status           string     `gorm:"size:20;index;not null" json:"status"`
	TotalDates       int        `json:"total_dates"`
	CompletedDates   int        `json:"completed_dates"`
	SnapshotsWritten int64      `json:"snapshots_written"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// TableName specifies the table name for BacktestJob
func (BacktestJob) TableName() string {
	return "backtest_jobs"
}

// ModelWebhook is a registered HTTP callback fired when a backtest run
// finishes. Model/metric filters are comma-separated allowlists; empty
// matches everything.
type ModelWebhook struct {
	ID            int       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"size:100;not null" json:"name"`
	URL           string    `gorm:"size:500;not null" json:"url"`
	Enabled       bool      `gorm:"default:true" json:"enabled"`
	ModelFilter   string    `gorm:"size:200" json:"model_filter"`
	MetricFilter  string    `gorm:"size:200" json:"metric_filter"`
	OnFailureOnly bool      `json:"on_failure_only"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name for ModelWebhook
func (ModelWebhook) TableName() string {
	return "model_webhooks"
}

// ModelWebhookLog records one delivery attempt.
type ModelWebhookLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WebhookID  int       `gorm:"index;not null" json:"webhook_id"`
	JobID      string    `gorm:"size:36;index" json:"job_id"`
	StatusCode int       `json:"status_code"`
	Success    bool      `json:"success"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// TableName specifies the table name for ModelWebhookLog
func (ModelWebhookLog) TableName() string {
	return "model_webhook_logs"
}
