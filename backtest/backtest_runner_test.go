package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	models "forecast-backtest/database/models_pkg"
)

type fakeSnapshotWriter struct {
	mu    sync.Mutex
	delay time.Duration
	snaps []models.ForecastSnapshot
}

func (f *fakeSnapshotWriter) UpsertBatch(snaps []models.ForecastSnapshot) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, snaps...)
	return nil
}

func (f *fakeSnapshotWriter) all() []models.ForecastSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ForecastSnapshot(nil), f.snaps...)
}

func (f *fakeSnapshotWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snaps)
}

type fakeJobStore struct {
	mu   sync.Mutex
	last models.BacktestJob
}

func (f *fakeJobStore) Save(job *models.BacktestJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = *job
	return nil
}

func (f *fakeJobStore) Update(job *models.BacktestJob) error {
	return f.Save(job)
}

func (f *fakeJobStore) status() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last.Status
}

func (f *fakeJobStore) snapshot() models.BacktestJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeHistory struct{}

func (fakeHistory) GetSeries(metricCode string, before time.Time) ([]models.ActualValue, error) {
	var series []models.ActualValue
	start := before.AddDate(-2, 0, 0)
	for d := start; d.Before(before); d = d.AddDate(0, 0, 1) {
		series = append(series, models.ActualValue{
			MetricCode: metricCode,
			StayDate:   d,
			Value:      100,
		})
	}
	return series, nil
}

func newTestRunner(snaps *fakeSnapshotWriter, jobs *fakeJobStore) *BacktestRunner {
	covidStart := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	covidEnd := time.Date(2021, 8, 31, 0, 0, 0, 0, time.UTC)
	return NewBacktestRunner(snaps, jobs, fakeHistory{}, nil, nil, nil, covidStart, covidEnd, nil)
}

func waitForStatus(t *testing.T, jobs *fakeJobStore, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if jobs.status() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job never reached status %s, stuck at %s", want, jobs.status())
}

func TestStartRunProducesWeeklyGrid(t *testing.T) {
	snaps := &fakeSnapshotWriter{}
	jobs := &fakeJobStore{}
	runner := newTestRunner(snaps, jobs)

	// 15 inclusive days at weekly cadence: 3 perception dates
	req := RunRequest{
		Model:        "seasonal_naive",
		MetricCode:   "rooms_sold",
		StartDate:    time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		ForecastDays: 30,
	}

	job, err := runner.StartRun(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.ID == "" {
		t.Error("expected a job ID")
	}
	if job.TotalDates != 3 {
		t.Errorf("expected 3 perception dates, got %d", job.TotalDates)
	}

	waitForStatus(t, jobs, models.JobStatusCompleted)

	if got, want := snaps.count(), 3*30; got != want {
		t.Errorf("expected %d snapshots, got %d", want, got)
	}

	final := jobs.snapshot()
	if final.SnapshotsWritten != int64(3*30) {
		t.Errorf("expected snapshots_written %d, got %d", 3*30, final.SnapshotsWritten)
	}
	if final.CompletedDates != 3 {
		t.Errorf("expected completed_dates 3, got %d", final.CompletedDates)
	}

	// Lead days must equal target minus perception
	for _, s := range snaps.all() {
		leadDays := int(s.TargetDate.Sub(s.PerceptionDate).Hours() / 24)
		if s.LeadDays != leadDays {
			t.Fatalf("lead days %d inconsistent with dates (%s -> %s)",
				s.LeadDays, s.PerceptionDate.Format("2006-01-02"), s.TargetDate.Format("2006-01-02"))
		}
		if s.Actual != nil {
			t.Fatal("runner must never write actuals")
		}
	}
}

func TestStartRunReturnsDetachedJob(t *testing.T) {
	snaps := &fakeSnapshotWriter{delay: 5 * time.Millisecond}
	jobs := &fakeJobStore{}
	runner := newTestRunner(snaps, jobs)

	req := RunRequest{
		Model:        "seasonal_naive",
		MetricCode:   "rooms_sold",
		StartDate:    time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 1, 27, 0, 0, 0, 0, time.UTC),
		ForecastDays: 14,
	}

	job, err := runner.StartRun(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The API layer serializes the accepted job while the grid executes;
	// the race detector flags it if the goroutine shares the pointer.
	for i := 0; i < 20; i++ {
		if _, err := json.Marshal(job); err != nil {
			t.Fatalf("marshal accepted job: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	waitForStatus(t, jobs, models.JobStatusCompleted)

	// The returned copy keeps the accepted state
	if job.Status != models.JobStatusPending {
		t.Errorf("accepted job mutated to status %s", job.Status)
	}
	if job.CompletedDates != 0 || job.SnapshotsWritten != 0 {
		t.Errorf("accepted job carries progress %d/%d", job.CompletedDates, job.SnapshotsWritten)
	}
	if final := jobs.snapshot(); final.SnapshotsWritten == 0 {
		t.Error("persisted job never recorded progress")
	}
}

func TestStartRunValidation(t *testing.T) {
	runner := newTestRunner(&fakeSnapshotWriter{}, &fakeJobStore{})
	base := RunRequest{
		Model:        "seasonal_naive",
		MetricCode:   "rooms_sold",
		StartDate:    time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC),
		ForecastDays: 30,
	}

	tests := []struct {
		name   string
		mutate func(*RunRequest)
	}{
		{"unknown model", func(r *RunRequest) { r.Model = "prophet" }},
		{"unknown metric", func(r *RunRequest) { r.MetricCode = "nights" }},
		{"pickup on non-pace metric", func(r *RunRequest) { r.Model = "pickup"; r.MetricCode = "adr" }},
		{"reversed range", func(r *RunRequest) { r.StartDate, r.EndDate = r.EndDate, r.StartDate }},
		{"zero horizon", func(r *RunRequest) { r.ForecastDays = 0 }},
		{"huge horizon", func(r *RunRequest) { r.ForecastDays = 5000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := runner.StartRun(req)
			if !errors.Is(err, ErrInvalidRun) {
				t.Errorf("expected ErrInvalidRun, got %v", err)
			}
		})
	}
}

func TestStartRunRejectsConcurrentPair(t *testing.T) {
	snaps := &fakeSnapshotWriter{delay: 20 * time.Millisecond}
	jobs := &fakeJobStore{}
	runner := newTestRunner(snaps, jobs)

	req := RunRequest{
		Model:        "moving_average",
		MetricCode:   "rooms_sold",
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ForecastDays: 90,
	}

	if _, err := runner.StartRun(req); err != nil {
		t.Fatalf("first run rejected: %v", err)
	}

	// Same pair while running: rejected. Different pair: accepted.
	if _, err := runner.StartRun(req); !errors.Is(err, ErrRunInFlight) {
		t.Errorf("expected ErrRunInFlight for same pair, got %v", err)
	}

	other := req
	other.MetricCode = "room_revenue"
	if _, err := runner.StartRun(other); err != nil {
		t.Errorf("different pair should be accepted, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runner.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	// After shutdown the pair is free again
	if runner.IsRunning("moving_average", "rooms_sold") {
		t.Error("pair still marked running after shutdown")
	}
}

func TestPostCovidVariantRuns(t *testing.T) {
	snaps := &fakeSnapshotWriter{}
	jobs := &fakeJobStore{}
	runner := newTestRunner(snaps, jobs)

	req := RunRequest{
		Model:        "seasonal_naive_postcovid",
		MetricCode:   "rooms_sold",
		StartDate:    time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
		ForecastDays: 7,
	}

	job, err := runner.StartRun(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitForStatus(t, jobs, models.JobStatusCompleted)

	if snaps.count() != 7 {
		t.Errorf("expected 7 snapshots, got %d", snaps.count())
	}
	for _, s := range snaps.all() {
		if s.Model != job.Model {
			t.Errorf("snapshot model %s, want the suffixed identifier %s", s.Model, job.Model)
		}
	}
}

func TestCountWeeklyDates(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		days int
		want int
	}{
		{0, 1},
		{6, 1},
		{7, 2},
		{27, 4},
		{28, 5},
	}
	for _, tt := range tests {
		end := start.AddDate(0, 0, tt.days)
		if got := countWeeklyDates(start, end); got != tt.want {
			t.Errorf("countWeeklyDates(+%dd) = %d, want %d", tt.days, got, tt.want)
		}
	}
}
