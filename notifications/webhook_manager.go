package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"forecast-backtest/cache"
	models "forecast-backtest/database/models_pkg"
	"forecast-backtest/database/webhooks"
)

const activeHooksCacheKey = "webhooks:active"

// WebhookManager delivers run-completion notifications to registered
// callbacks.
type WebhookManager struct {
	repo   *webhooks.Repository
	redis  *cache.RedisClient
	client *http.Client

	mu     sync.RWMutex
	active []models.ModelWebhook
}

// RunPayload is the JSON body sent to webhooks when a backtest run finishes.
type RunPayload struct {
	JobID            string     `json:"job_id"`
	Model            string     `json:"model"`
	MetricCode       string     `json:"metric_code"`
	Status           string     `json:"status"`
	SnapshotsWritten int64      `json:"snapshots_written"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	Error            string     `json:"error,omitempty"`
	Message          string     `json:"message"`
}

// NewWebhookManager creates a new webhook manager
func NewWebhookManager(repo *webhooks.Repository, redis *cache.RedisClient) *WebhookManager {
	return &WebhookManager{
		repo:  repo,
		redis: redis,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyRunFinished fans the job result out to every matching webhook.
func (wm *WebhookManager) NotifyRunFinished(job *models.BacktestJob) {
	hooks, err := wm.getActiveWebhooks()
	if err != nil {
		log.Printf("⚠️  Failed to load webhooks: %v", err)
		return
	}
	if len(hooks) == 0 {
		return
	}

	payload := wm.CreatePayload(job)
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		log.Printf("⚠️  Failed to marshal webhook payload: %v", err)
		return
	}

	for _, hook := range hooks {
		if wm.shouldSend(hook, job) {
			go wm.deliver(hook, job.ID, payloadBytes)
		}
	}
}

// CreatePayload builds the notification body for a finished job.
func (wm *WebhookManager) CreatePayload(job *models.BacktestJob) RunPayload {
	message := fmt.Sprintf("Backtest %s for %s/%s finished: %d snapshots",
		job.ID, job.Model, job.MetricCode, job.SnapshotsWritten)
	if job.Status == models.JobStatusFailed {
		message = fmt.Sprintf("Backtest %s for %s/%s failed: %s",
			job.ID, job.Model, job.MetricCode, job.ErrorMessage)
	}

	return RunPayload{
		JobID:            job.ID,
		Model:            job.Model,
		MetricCode:       job.MetricCode,
		Status:           job.Status,
		SnapshotsWritten: job.SnapshotsWritten,
		StartedAt:        job.StartedAt,
		FinishedAt:       job.FinishedAt,
		Error:            job.ErrorMessage,
		Message:          message,
	}
}

// shouldSend applies the webhook's filters to a finished job.
func (wm *WebhookManager) shouldSend(hook models.ModelWebhook, job *models.BacktestJob) bool {
	if hook.OnFailureOnly && job.Status != models.JobStatusFailed {
		return false
	}
	if !matchesFilter(hook.ModelFilter, job.Model) {
		return false
	}
	return matchesFilter(hook.MetricFilter, job.MetricCode)
}

// matchesFilter checks a comma-separated allowlist; empty matches everything.
func matchesFilter(filter, value string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	for _, entry := range strings.Split(filter, ",") {
		if strings.TrimSpace(entry) == value {
			return true
		}
	}
	return false
}

func (wm *WebhookManager) deliver(hook models.ModelWebhook, jobID string, payload []byte) {
	entry := &models.ModelWebhookLog{
		WebhookID: hook.ID,
		JobID:     jobID,
		SentAt:    time.Now(),
	}

	resp, err := wm.client.Post(hook.URL, "application/json", bytes.NewReader(payload))
	if err != nil {
		entry.Error = err.Error()
		log.Printf("⚠️  Webhook %s delivery failed: %v", hook.Name, err)
	} else {
		defer resp.Body.Close()
		entry.StatusCode = resp.StatusCode
		entry.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
		if !entry.Success {
			entry.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
	}

	if err := wm.repo.SaveLog(entry); err != nil {
		log.Printf("⚠️  Failed to log webhook delivery: %v", err)
	}
}

// getActiveWebhooks reads the enabled hooks, preferring the in-memory copy,
// then Redis, then the database.
func (wm *WebhookManager) getActiveWebhooks() ([]models.ModelWebhook, error) {
	wm.mu.RLock()
	if wm.active != nil {
		defer wm.mu.RUnlock()
		return wm.active, nil
	}
	wm.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var hooks []models.ModelWebhook
	if wm.redis != nil {
		if err := wm.redis.Get(ctx, activeHooksCacheKey, &hooks); err == nil {
			wm.store(hooks)
			return hooks, nil
		}
	}

	hooks, err := wm.repo.GetActive()
	if err != nil {
		return nil, err
	}
	if wm.redis != nil {
		_ = wm.redis.Set(ctx, activeHooksCacheKey, hooks, 5*time.Minute)
	}
	wm.store(hooks)
	return hooks, nil
}

// RefreshCache drops the cached hook list; called after webhook CRUD.
func (wm *WebhookManager) RefreshCache() {
	wm.mu.Lock()
	wm.active = nil
	wm.mu.Unlock()

	if wm.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = wm.redis.Delete(ctx, activeHooksCacheKey)
	}
}

func (wm *WebhookManager) store(hooks []models.ModelWebhook) {
	wm.mu.Lock()
	wm.active = hooks
	wm.mu.Unlock()
}
