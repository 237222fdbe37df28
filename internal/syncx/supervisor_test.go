package syncx_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuel-warrie/go-realtime-stock/internal/catalog"
	"github.com/samuel-warrie/go-realtime-stock/internal/syncx"
)

type listenFunc func(ctx context.Context, ready func(), h func(catalog.ChangeEvent)) error

// fakeListener runs one scripted func per Listen call; past the script
// it blocks until the context ends.
type fakeListener struct {
	mu   sync.Mutex
	runs []listenFunc
	n    int
}

func (f *fakeListener) Listen(ctx context.Context, ready func(), h func(catalog.ChangeEvent)) error {
	f.mu.Lock()
	i := f.n
	f.n++
	f.mu.Unlock()
	if i < len(f.runs) {
		return f.runs[i](ctx, ready, h)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeListener) sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

func testConfig() syncx.SupervisorConfig {
	return syncx.SupervisorConfig{
		PollInterval:      5 * time.Millisecond,
		ReconnectBase:     time.Millisecond,
		ReconnectMax:      2 * time.Millisecond,
		ReconnectAttempts: 3,
	}
}

func TestSupervisorConnectsAndDeliversEvents(t *testing.T) {
	f := &fakeFetcher{}
	e := newEngine(f)
	fl := &fakeListener{runs: []listenFunc{
		func(ctx context.Context, ready func(), h func(catalog.ChangeEvent)) error {
			ready()
			h(insert(prod("B", "candles", 2)))
			<-ctx.Done()
			return ctx.Err()
		},
	}}
	sup := syncx.NewSupervisor(e, fl, testConfig(), zerolog.Nop())
	require.Equal(t, syncx.StateDisconnected, sup.State())

	sup.Start(context.Background())
	defer sup.Stop()

	assert.Eventually(t, sup.Connected, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool {
		_, err := e.ByID("B")
		return err == nil
	}, time.Second, time.Millisecond)
}

func TestSupervisorReconnectsAfterChannelError(t *testing.T) {
	f := &fakeFetcher{}
	e := newEngine(f)
	fl := &fakeListener{runs: []listenFunc{
		func(ctx context.Context, ready func(), h func(catalog.ChangeEvent)) error {
			ready()
			return errors.New("channel_error")
		},
		func(ctx context.Context, ready func(), h func(catalog.ChangeEvent)) error {
			ready()
			<-ctx.Done()
			return ctx.Err()
		},
	}}
	sup := syncx.NewSupervisor(e, fl, testConfig(), zerolog.Nop())
	sup.Start(context.Background())
	defer sup.Stop()

	assert.Eventually(t, func() bool {
		return fl.sessions() >= 2 && sup.Connected()
	}, time.Second, time.Millisecond)
}

func TestSupervisorStaysDegradedOnPollingAfterMaxAttempts(t *testing.T) {
	f := &fakeFetcher{items: []catalog.Product{prod("a", "candles", 1)}}
	e := newEngine(f)
	failing := &fakeListener{}
	failing.runs = []listenFunc{}
	for i := 0; i < 10; i++ {
		failing.runs = append(failing.runs, func(ctx context.Context, ready func(), h func(catalog.ChangeEvent)) error {
			return errors.New("channel_error")
		})
	}
	cfg := testConfig()
	cfg.ReconnectAttempts = 2
	sup := syncx.NewSupervisor(e, failing, cfg, zerolog.Nop())
	sup.Start(context.Background())
	defer sup.Stop()

	assert.Eventually(t, func() bool { return sup.State() == syncx.StateDegraded }, time.Second, time.Millisecond)
	// attempt cap: initial session plus ReconnectAttempts reconnects, no more
	assert.Eventually(t, func() bool { return f.callCount() >= 2 }, time.Second, time.Millisecond,
		"polling fallback must keep the snapshot fresh while degraded")
	assert.LessOrEqual(t, failing.sessions(), cfg.ReconnectAttempts+1)
	assert.False(t, sup.Connected())
}

func TestSupervisorIgnoresStaleSessionEvents(t *testing.T) {
	f := &fakeFetcher{}
	e := newEngine(f)
	staleCh := make(chan func(catalog.ChangeEvent), 1)
	fl := &fakeListener{runs: []listenFunc{
		func(ctx context.Context, ready func(), h func(catalog.ChangeEvent)) error {
			ready()
			staleCh <- h
			return errors.New("channel_error")
		},
		func(ctx context.Context, ready func(), h func(catalog.ChangeEvent)) error {
			ready()
			<-ctx.Done()
			return ctx.Err()
		},
	}}
	sup := syncx.NewSupervisor(e, fl, testConfig(), zerolog.Nop())
	sup.Start(context.Background())
	defer sup.Stop()

	require.Eventually(t, func() bool {
		return fl.sessions() >= 2 && sup.Connected()
	}, time.Second, time.Millisecond)

	stale := <-staleCh
	stale(insert(prod("X", "candles", 1)))

	_, err := e.ByID("X")
	assert.ErrorIs(t, err, catalog.ErrNotFound, "a torn-down session must not mutate the snapshot")
}

// Scripted outage: connected, channel drops, two pushes are missed,
// reconnect succeeds. The next refresh converges the snapshot to the
// ledger exactly; missed events are delayed, never lost.
func TestReconnectConvergence(t *testing.T) {
	f := &fakeFetcher{items: []catalog.Product{prod("A", "candles", 5)}}
	e := newEngine(f)
	require.NoError(t, e.LoadAll(context.Background()))

	drop := make(chan struct{})
	fl := &fakeListener{runs: []listenFunc{
		func(ctx context.Context, ready func(), h func(catalog.ChangeEvent)) error {
			ready()
			<-drop
			return errors.New("channel_error")
		},
		func(ctx context.Context, ready func(), h func(catalog.ChangeEvent)) error {
			ready()
			<-ctx.Done()
			return ctx.Err()
		},
	}}
	sup := syncx.NewSupervisor(e, fl, testConfig(), zerolog.Nop())
	sup.Start(context.Background())
	defer sup.Stop()

	require.Eventually(t, sup.Connected, time.Second, time.Millisecond)

	// ledger moves on while the channel is down: A decremented, B inserted
	want := []catalog.Product{prod("B", "soaps", 3), prod("A", "candles", 1)}
	f.set(want, nil)
	close(drop)

	require.Eventually(t, func() bool {
		return fl.sessions() >= 2 && sup.Connected()
	}, time.Second, time.Millisecond)

	require.NoError(t, e.Refresh(context.Background()))
	assert.Equal(t, want, e.ByCategory("all"))
}

func TestStopIsIdempotent(t *testing.T) {
	e := newEngine(&fakeFetcher{})
	fl := &fakeListener{}
	sup := syncx.NewSupervisor(e, fl, testConfig(), zerolog.Nop())

	sup.Stop() // never started

	sup.Start(context.Background())
	sup.Stop()
	sup.Stop()
	assert.Equal(t, syncx.StateDisconnected, sup.State())
	assert.False(t, sup.Connected())
}
