package backtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	models "forecast-backtest/database/models_pkg"
	"forecast-backtest/forecaster"
	"forecast-backtest/metrics"

	"github.com/google/uuid"
)

// Sentinel errors the API layer maps to status codes.
var (
	// ErrRunInFlight means a run for the same (model, metric) pair is
	// already executing.
	ErrRunInFlight = errors.New("backtest already running for this model and metric")
	// ErrInvalidRun wraps request-validation failures.
	ErrInvalidRun = errors.New("invalid backtest request")
)

// SnapshotWriter persists forecast snapshots.
type SnapshotWriter interface {
	UpsertBatch(snaps []models.ForecastSnapshot) error
}

// JobStore persists backtest job state.
type JobStore interface {
	Save(job *models.BacktestJob) error
	Update(job *models.BacktestJob) error
}

// HistorySource supplies realized history for model training.
type HistorySource interface {
	GetSeries(metricCode string, before time.Time) ([]models.ActualValue, error)
}

// Broadcaster pushes progress events to connected clients.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// Notifier delivers run-completion callbacks.
type Notifier interface {
	NotifyRunFinished(job *models.BacktestJob)
}

// WeightSource supplies the production weight set the blended model consumes.
type WeightSource interface {
	ProductionWeightMap(metricCode string) (map[string]float64, error)
}

// RunRequest carries the parameters of one backtest run.
type RunRequest struct {
	Model        string    `json:"model"`
	MetricCode   string    `json:"metric"`
	StartDate    time.Time `json:"-"`
	EndDate      time.Time `json:"-"`
	ForecastDays int       `json:"forecast_days"`
	ExcludeCovid bool      `json:"exclude_covid"`
}

// ProgressEvent is the payload broadcast while a run executes.
type ProgressEvent struct {
	JobID            string `json:"job_id"`
	Model            string `json:"model"`
	MetricCode       string `json:"metric_code"`
	Status           string `json:"status"`
	CompletedDates   int    `json:"completed_dates"`
	TotalDates       int    `json:"total_dates"`
	SnapshotsWritten int64  `json:"snapshots_written"`
}

// BacktestRunner executes backtest runs asynchronously: the triggering
// request gets the job back immediately and the perception-date grid runs in
// a goroutine. One run per (model, metric) pair at a time.
type BacktestRunner struct {
	snapshots SnapshotWriter
	jobs      JobStore
	history   HistorySource
	weights   WeightSource
	broker    Broadcaster
	notifier  Notifier
	onChange  func() // invoked after snapshot data changed (cache invalidation)

	covidStart time.Time
	covidEnd   time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]string // "model|metric" -> job ID
}

// NewBacktestRunner creates a runner. notifier, broker, weights and onChange
// may be nil; the runner degrades gracefully without them.
func NewBacktestRunner(snapshots SnapshotWriter, jobs JobStore, history HistorySource,
	weights WeightSource, broker Broadcaster, notifier Notifier,
	covidStart, covidEnd time.Time, onChange func()) *BacktestRunner {

	ctx, cancel := context.WithCancel(context.Background())
	return &BacktestRunner{
		snapshots:  snapshots,
		jobs:       jobs,
		history:    history,
		weights:    weights,
		broker:     broker,
		notifier:   notifier,
		onChange:   onChange,
		covidStart: covidStart,
		covidEnd:   covidEnd,
		ctx:        ctx,
		cancel:     cancel,
		active:     make(map[string]string),
	}
}

// StartRun validates the request, records the job, and launches the grid in
// the background. Returns the accepted job, or a validation error.
func (r *BacktestRunner) StartRun(req RunRequest) (*models.BacktestJob, error) {
	metric, err := forecaster.MetricByCode(req.MetricCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	spec, err := forecaster.Resolve(req.Model, metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() || req.EndDate.Before(req.StartDate) {
		return nil, fmt.Errorf("%w: perception range %s..%s is not valid",
			ErrInvalidRun, req.StartDate.Format("2006-01-02"), req.EndDate.Format("2006-01-02"))
	}
	if req.ForecastDays < 1 || req.ForecastDays > 400 {
		return nil, fmt.Errorf("%w: forecast_days %d out of range 1..400", ErrInvalidRun, req.ForecastDays)
	}

	job := &models.BacktestJob{
		ID:           uuid.NewString(),
		Model:        req.Model,
		MetricCode:   req.MetricCode,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		ForecastDays: req.ForecastDays,
		ExcludeCovid: req.ExcludeCovid,
		Status:       models.JobStatusPending,
		TotalDates:   countWeeklyDates(req.StartDate, req.EndDate),
		CreatedAt:    time.Now(),
	}

	key := pairKey(req.Model, req.MetricCode)
	r.mu.Lock()
	if _, busy := r.active[key]; busy {
		r.mu.Unlock()
		return nil, ErrRunInFlight
	}
	r.active[key] = job.ID
	r.mu.Unlock()

	if err := r.jobs.Save(job); err != nil {
		r.release(key)
		return nil, fmt.Errorf("failed to record job: %w", err)
	}

	// The goroutine mutates job as the grid progresses; the caller gets a
	// detached copy so it can serialize the accepted state safely.
	accepted := *job

	r.wg.Add(1)
	go r.run(job, spec, metric, req.ExcludeCovid)

	log.Printf("🚀 Backtest %s accepted: %s/%s %s..%s horizon=%dd",
		accepted.ID, accepted.Model, accepted.MetricCode,
		accepted.StartDate.Format("2006-01-02"), accepted.EndDate.Format("2006-01-02"), accepted.ForecastDays)
	return &accepted, nil
}

// IsRunning reports whether a run for the pair is in flight. Snapshot
// deletion refuses to race a live run.
func (r *BacktestRunner) IsRunning(model, metricCode string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.active[pairKey(model, metricCode)]
	return busy
}

// Shutdown cancels in-flight runs and waits for them up to the context
// deadline.
func (r *BacktestRunner) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("backtest runner shutdown: %w", ctx.Err())
	}
}

func (r *BacktestRunner) run(job *models.BacktestJob, spec forecaster.Spec, metric forecaster.Metric, excludeCovid bool) {
	key := pairKey(job.Model, job.MetricCode)
	defer r.wg.Done()
	defer r.release(key)

	metrics.JobsRunning.Inc()
	defer metrics.JobsRunning.Dec()

	now := time.Now()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	r.updateJob(job)
	r.broadcast("backtest_started", job)

	fc, err := r.buildForecaster(spec, metric)
	if err != nil {
		r.fail(job, err)
		return
	}

	trimCovid := excludeCovid || spec.PostCovid

	for perception := job.StartDate; !perception.After(job.EndDate); perception = perception.AddDate(0, 0, 7) {
		if r.ctx.Err() != nil {
			r.fail(job, fmt.Errorf("run canceled during shutdown"))
			return
		}

		history, err := r.loadHistory(metric.Code, perception, trimCovid)
		if err != nil {
			r.fail(job, err)
			return
		}

		targets := make([]time.Time, job.ForecastDays)
		for i := range targets {
			targets[i] = perception.AddDate(0, 0, i+1)
		}

		values, err := fc.Forecast(history, perception, targets)
		if err != nil {
			r.fail(job, fmt.Errorf("forecast at %s: %w", perception.Format("2006-01-02"), err))
			return
		}

		snaps := make([]models.ForecastSnapshot, len(targets))
		for i, target := range targets {
			snaps[i] = models.ForecastSnapshot{
				Model:          job.Model,
				MetricCode:     job.MetricCode,
				PerceptionDate: perception,
				TargetDate:     target,
				LeadDays:       i + 1,
				Forecast:       values[i],
			}
		}
		if err := r.snapshots.UpsertBatch(snaps); err != nil {
			r.fail(job, err)
			return
		}

		job.CompletedDates++
		job.SnapshotsWritten += int64(len(snaps))
		metrics.SnapshotsWritten.WithLabelValues(job.Model, job.MetricCode).Add(float64(len(snaps)))
		r.updateJob(job)
		r.broadcastProgress(job)
	}

	finished := time.Now()
	job.Status = models.JobStatusCompleted
	job.FinishedAt = &finished
	r.updateJob(job)
	metrics.JobsFinished.WithLabelValues(models.JobStatusCompleted).Inc()

	log.Printf("✅ Backtest %s completed: %d snapshots over %d perception dates",
		job.ID, job.SnapshotsWritten, job.CompletedDates)

	r.broadcast("backtest_completed", job)
	if r.notifier != nil {
		r.notifier.NotifyRunFinished(job)
	}
	if r.onChange != nil {
		r.onChange()
	}
}

// buildForecaster resolves the production weight set for blended models.
func (r *BacktestRunner) buildForecaster(spec forecaster.Spec, metric forecaster.Metric) (forecaster.Forecaster, error) {
	var weightsByModel map[string]float64
	if spec.Base == "blended" && r.weights != nil {
		var err error
		weightsByModel, err = r.weights.ProductionWeightMap(metric.Code)
		if err != nil {
			// A blend with no weight history falls back to equal weights
			log.Printf("⚠️  No production weights for %s, blending equally: %v", metric.Code, err)
		}
	}
	return forecaster.New(spec, metric, weightsByModel)
}

// loadHistory fetches realized values before the perception date, optionally
// dropping the covid window so distorted demand never trains a model.
func (r *BacktestRunner) loadHistory(metricCode string, perception time.Time, trimCovid bool) ([]forecaster.Point, error) {
	series, err := r.history.GetSeries(metricCode, perception)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	points := make([]forecaster.Point, 0, len(series))
	for _, v := range series {
		if trimCovid && !v.StayDate.Before(r.covidStart) && !v.StayDate.After(r.covidEnd) {
			continue
		}
		points = append(points, forecaster.Point{Date: v.StayDate, Value: v.Value})
	}
	return points, nil
}

func (r *BacktestRunner) fail(job *models.BacktestJob, cause error) {
	finished := time.Now()
	job.Status = models.JobStatusFailed
	job.ErrorMessage = cause.Error()
	job.FinishedAt = &finished
	r.updateJob(job)
	metrics.JobsFinished.WithLabelValues(models.JobStatusFailed).Inc()

	log.Printf("❌ Backtest %s failed: %v", job.ID, cause)

	r.broadcast("backtest_failed", job)
	if r.notifier != nil {
		r.notifier.NotifyRunFinished(job)
	}
	if r.onChange != nil && job.SnapshotsWritten > 0 {
		r.onChange()
	}
}

func (r *BacktestRunner) updateJob(job *models.BacktestJob) {
	if err := r.jobs.Update(job); err != nil {
		log.Printf("⚠️  Failed to persist job %s: %v", job.ID, err)
	}
}

func (r *BacktestRunner) broadcast(event string, job *models.BacktestJob) {
	if r.broker != nil {
		r.broker.Broadcast(event, job)
	}
}

func (r *BacktestRunner) broadcastProgress(job *models.BacktestJob) {
	if r.broker == nil {
		return
	}
	r.broker.Broadcast("backtest_progress", ProgressEvent{
		JobID:            job.ID,
		Model:            job.Model,
		MetricCode:       job.MetricCode,
		Status:           job.Status,
		CompletedDates:   job.CompletedDates,
		TotalDates:       job.TotalDates,
		SnapshotsWritten: job.SnapshotsWritten,
	})
}

func (r *BacktestRunner) release(key string) {
	r.mu.Lock()
	delete(r.active, key)
	r.mu.Unlock()
}

func pairKey(model, metricCode string) string {
	return model + "|" + metricCode
}

// countWeeklyDates counts the perception dates of a weekly grid over an
// inclusive range.
func countWeeklyDates(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/(24*7)) + 1
}
