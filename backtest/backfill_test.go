package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackfillStore struct {
	// pending drains on the first pass, modeling the idempotent UPDATE:
	// only missing actuals are matched, so a second pass fills nothing
	pending int64
	calls   int
}

func (f *fakeBackfillStore) BackfillActuals(asOf time.Time) (int64, error) {
	f.calls++
	filled := f.pending
	f.pending = 0
	return filled, nil
}

type recordingBroker struct {
	events []string
}

func (r *recordingBroker) Broadcast(event string, payload interface{}) {
	r.events = append(r.events, event)
}

func TestBackfillRunOnceIdempotent(t *testing.T) {
	store := &fakeBackfillStore{pending: 42}
	broker := &recordingBroker{}
	invalidations := 0

	b := NewActualsBackfiller(store, broker, time.Hour, func() { invalidations++ })

	first, err := b.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, int64(42), first)

	second, err := b.RunOnce()
	require.NoError(t, err)
	assert.Zero(t, second, "second consecutive run must fill nothing")

	// Only the pass that changed rows broadcasts and invalidates
	assert.Equal(t, []string{"actuals_backfilled"}, broker.events)
	assert.Equal(t, 1, invalidations)
	assert.Equal(t, 2, store.calls)
}
