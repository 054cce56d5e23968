package backtest

import (
	"log"
	"time"

	"forecast-backtest/metrics"
)

// BackfillStore joins realized values into snapshots whose target date has
// passed. Re-running is a no-op because only missing actuals are touched.
type BackfillStore interface {
	BackfillActuals(asOf time.Time) (int64, error)
}

// ActualsBackfiller periodically annotates snapshots with realized values.
// It also runs on demand when the API triggers it.
type ActualsBackfiller struct {
	store    BackfillStore
	broker   Broadcaster
	onChange func()
	interval time.Duration
	done     chan bool
}

// NewActualsBackfiller creates a new backfill worker
func NewActualsBackfiller(store BackfillStore, broker Broadcaster, interval time.Duration, onChange func()) *ActualsBackfiller {
	return &ActualsBackfiller{
		store:    store,
		broker:   broker,
		onChange: onChange,
		interval: interval,
		done:     make(chan bool),
	}
}

// Start begins the backfill loop
func (b *ActualsBackfiller) Start() {
	log.Printf("🔄 Actuals backfiller started (every %s)", b.interval)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	// Initial run
	if _, err := b.RunOnce(); err != nil {
		log.Printf("⚠️  Initial backfill failed: %v", err)
	}

	for {
		select {
		case <-ticker.C:
			if _, err := b.RunOnce(); err != nil {
				log.Printf("⚠️  Backfill failed: %v", err)
			}
		case <-b.done:
			log.Println("🔄 Actuals backfiller stopped")
			return
		}
	}
}

// Stop stops the backfill loop
func (b *ActualsBackfiller) Stop() {
	b.done <- true
}

// RunOnce performs a single backfill pass and returns the number of
// snapshots filled.
func (b *ActualsBackfiller) RunOnce() (int64, error) {
	rows, err := b.store.BackfillActuals(time.Now())
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		return 0, nil
	}

	metrics.BackfillRows.Add(float64(rows))
	log.Printf("✅ Backfilled actuals into %d snapshots", rows)

	if b.broker != nil {
		b.broker.Broadcast("actuals_backfilled", map[string]int64{"snapshots_filled": rows})
	}
	if b.onChange != nil {
		b.onChange()
	}
	return rows, nil
}
