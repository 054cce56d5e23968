package notifications

import (
	"testing"

	models "forecast-backtest/database/models_pkg"

	"github.com/stretchr/testify/assert"
)

func TestMatchesFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		value  string
		want   bool
	}{
		{"empty filter matches everything", "", "seasonal_naive", true},
		{"single entry match", "seasonal_naive", "seasonal_naive", true},
		{"single entry mismatch", "seasonal_naive", "pickup", false},
		{"list match", "seasonal_naive,pickup", "pickup", true},
		{"list with spaces", "seasonal_naive, pickup", "pickup", true},
		{"list mismatch", "seasonal_naive,pickup", "blended", false},
		{"whitespace-only filter matches everything", "  ", "blended", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesFilter(tt.filter, tt.value))
		})
	}
}

func TestShouldSend(t *testing.T) {
	wm := NewWebhookManager(nil, nil)

	completed := &models.BacktestJob{
		Model:      "seasonal_naive",
		MetricCode: "rooms_sold",
		Status:     models.JobStatusCompleted,
	}
	failed := &models.BacktestJob{
		Model:      "seasonal_naive",
		MetricCode: "rooms_sold",
		Status:     models.JobStatusFailed,
	}

	tests := []struct {
		name string
		hook models.ModelWebhook
		job  *models.BacktestJob
		want bool
	}{
		{"no filters sends everything", models.ModelWebhook{}, completed, true},
		{"failure-only skips completed", models.ModelWebhook{OnFailureOnly: true}, completed, false},
		{"failure-only sends failed", models.ModelWebhook{OnFailureOnly: true}, failed, true},
		{"model filter match", models.ModelWebhook{ModelFilter: "seasonal_naive"}, completed, true},
		{"model filter mismatch", models.ModelWebhook{ModelFilter: "pickup"}, completed, false},
		{"metric filter mismatch", models.ModelWebhook{MetricFilter: "adr"}, completed, false},
		{"both filters match", models.ModelWebhook{ModelFilter: "seasonal_naive", MetricFilter: "rooms_sold,adr"}, completed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wm.shouldSend(tt.hook, tt.job))
		})
	}
}

func TestCreatePayloadMessages(t *testing.T) {
	wm := NewWebhookManager(nil, nil)

	job := &models.BacktestJob{
		ID:               "job-1",
		Model:            "moving_average",
		MetricCode:       "occupancy",
		Status:           models.JobStatusCompleted,
		SnapshotsWritten: 90,
	}
	payload := wm.CreatePayload(job)
	assert.Equal(t, "job-1", payload.JobID)
	assert.Contains(t, payload.Message, "finished: 90 snapshots")
	assert.Empty(t, payload.Error)

	job.Status = models.JobStatusFailed
	job.ErrorMessage = "no history available"
	payload = wm.CreatePayload(job)
	assert.Contains(t, payload.Message, "failed: no history available")
	assert.Equal(t, "no history available", payload.Error)
}
