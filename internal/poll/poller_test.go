package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchRecorder struct {
	mu    sync.Mutex
	calls []bool // silent flag per call
	err   error
}

func (f *fetchRecorder) fetch(ctx context.Context, silent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, silent)
	return f.err
}

func (f *fetchRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestFirstFetchIsLoudRestSilent(t *testing.T) {
	rec := &fetchRecorder{}
	p := New(Config{Interval: 10 * time.Millisecond})
	require.NoError(t, p.Start(context.Background(), rec.fetch))
	defer p.Stop()

	require.Eventually(t, func() bool { return rec.count() >= 3 }, time.Second, time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.False(t, rec.calls[0])
	for _, silent := range rec.calls[1:] {
		assert.True(t, silent)
	}
}

func TestStopHaltsPolling(t *testing.T) {
	rec := &fetchRecorder{}
	p := New(Config{Interval: 5 * time.Millisecond})
	require.NoError(t, p.Start(context.Background(), rec.fetch))
	require.Eventually(t, func() bool { return rec.count() >= 2 }, time.Second, time.Millisecond)

	p.Stop()
	n := rec.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, rec.count())
}

func TestStopIsIdempotent(t *testing.T) {
	p := New(Config{Interval: 5 * time.Millisecond})
	require.NoError(t, p.Start(context.Background(), (&fetchRecorder{}).fetch))
	p.Stop()
	p.Stop()
}

func TestErrorsSkipTickWithoutStopping(t *testing.T) {
	rec := &fetchRecorder{err: errors.New("boom")}
	p := New(Config{Interval: 5 * time.Millisecond})
	require.NoError(t, p.Start(context.Background(), rec.fetch))
	defer p.Stop()

	// Fixed-interval retry: failures never stop the loop.
	require.Eventually(t, func() bool { return rec.count() >= 4 }, time.Second, time.Millisecond)
}

func TestContextCancelStopsLoop(t *testing.T) {
	rec := &fetchRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	p := New(Config{Interval: 5 * time.Millisecond})
	require.NoError(t, p.Start(ctx, rec.fetch))

	cancel()
	time.Sleep(20 * time.Millisecond)
	n := rec.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, rec.count())
	p.Stop()
}

func TestStartTwiceIsNoOp(t *testing.T) {
	rec := &fetchRecorder{}
	p := New(Config{Interval: 5 * time.Millisecond})
	require.NoError(t, p.Start(context.Background(), rec.fetch))
	require.NoError(t, p.Start(context.Background(), rec.fetch))
	defer p.Stop()

	require.Eventually(t, func() bool { return rec.count() >= 2 }, time.Second, time.Millisecond)
	// Only one loud initial fetch despite the second Start.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	loud := 0
	for _, silent := range rec.calls {
		if !silent {
			loud++
		}
	}
	assert.Equal(t, 1, loud)
}
