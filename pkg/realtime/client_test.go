package realtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comanda-pos/comanda-go/pkg/resource"
)

// clientFixture bundles a client with its collaborators.
type clientFixture struct {
	client  *Client
	channel *fakeChannel
	env     *fakeEnv
	store   *fakeStore
	sink    *fakeSink
	healthy atomic.Bool
}

func newClientFixture(t *testing.T) *clientFixture {
	t.Helper()

	f := &clientFixture{
		channel: &fakeChannel{},
		env:     newFakeEnv(true),
		store:   newFakeStore(),
		sink:    newFakeSink(),
	}
	f.healthy.Store(true)

	registry := testRegistry(t, f.store, f.sink, "!orders", "menu")

	client, err := NewClient(ClientOptions{
		Channel:  f.channel,
		Registry: registry,
		HealthCheck: func(ctx context.Context) error {
			if f.healthy.Load() {
				return nil
			}
			return context.DeadlineExceeded
		},
		Environment: f.env,
		Config:      fastConfig(),
	})
	require.NoError(t, err)

	f.client = client
	t.Cleanup(client.Close)
	return f
}

func TestNewClientValidation(t *testing.T) {
	store := newFakeStore()
	sink := newFakeSink()
	registry := testRegistry(t, store, sink, "orders")
	channel := &fakeChannel{}

	_, err := NewClient(ClientOptions{Registry: registry, HealthCheck: healthOK})
	assert.Error(t, err, "missing channel")

	_, err = NewClient(ClientOptions{Channel: channel, HealthCheck: healthOK})
	assert.Error(t, err, "missing registry")

	_, err = NewClient(ClientOptions{
		Channel:     channel,
		Registry:    resource.NewRegistry(),
		HealthCheck: healthOK,
	})
	assert.Error(t, err, "empty registry")

	_, err = NewClient(ClientOptions{Channel: channel, Registry: registry})
	assert.Error(t, err, "missing health check")
}

func TestNewClientFreezesRegistry(t *testing.T) {
	store := newFakeStore()
	sink := newFakeSink()
	registry := testRegistry(t, store, sink, "orders")

	client, err := NewClient(ClientOptions{
		Channel:     &fakeChannel{},
		Registry:    registry,
		HealthCheck: healthOK,
		Config:      fastConfig(),
	})
	require.NoError(t, err)
	defer client.Close()

	err = registry.Register(resource.Resource{
		Name:    "late",
		Refetch: func(ctx context.Context) (resource.Snapshot, error) { return nil, nil },
		Apply:   func(resource.Snapshot) {},
	})
	assert.Error(t, err, "registry must be frozen after NewClient")
}

func TestClientStartHappyPath(t *testing.T) {
	f := newClientFixture(t)

	require.NoError(t, f.client.Start(context.Background()))

	assert.Equal(t, LoadLoaded, f.client.LoadState())
	assert.Equal(t, 1, f.sink.appliedCount("orders"))
	assert.Equal(t, 1, f.sink.appliedCount("menu"))

	require.Equal(t, StateConnecting, f.client.ChannelState())
	f.channel.emit(StatusActive)
	assert.Equal(t, StateActive, f.client.ChannelState())
}

func TestClientStartTwice(t *testing.T) {
	f := newClientFixture(t)

	require.NoError(t, f.client.Start(context.Background()))
	assert.ErrorIs(t, f.client.Start(context.Background()), ErrAlreadyStarted)
	assert.Equal(t, 1, f.channel.openCount(), "second Start must not reopen the channel")
}

func TestClientStartUnreachableBackend(t *testing.T) {
	f := newClientFixture(t)
	f.healthy.Store(false)

	err := f.client.Start(context.Background())
	require.ErrorIs(t, err, ErrBackendUnreachable)

	assert.Equal(t, LoadFailed, f.client.LoadState())
	assert.ErrorIs(t, f.client.LoadErr(), ErrBackendUnreachable)
	assert.Equal(t, StateIdle, f.client.ChannelState(), "channel must not open without a load")
	assert.Zero(t, f.channel.openCount())
}

func TestClientRetryInitialLoad(t *testing.T) {
	f := newClientFixture(t)
	f.healthy.Store(false)

	require.Error(t, f.client.Start(context.Background()))

	// Still down: retry fails the same way.
	require.ErrorIs(t, f.client.RetryInitialLoad(context.Background()), ErrBackendUnreachable)
	assert.Zero(t, f.channel.openCount())

	// Backend recovers: retry completes the startup sequence.
	f.healthy.Store(true)
	require.NoError(t, f.client.RetryInitialLoad(context.Background()))

	assert.Equal(t, LoadLoaded, f.client.LoadState())
	require.Equal(t, 1, f.channel.openCount())
	f.channel.emit(StatusActive)
	assert.Equal(t, StateActive, f.client.ChannelState())
}

func TestClientRetryWhileSyncedIsNoop(t *testing.T) {
	f := newClientFixture(t)

	require.NoError(t, f.client.Start(context.Background()))
	f.channel.emit(StatusActive)

	require.NoError(t, f.client.RetryInitialLoad(context.Background()))

	assert.Equal(t, 1, f.channel.openCount(), "retry while synced must not reopen")
	assert.Equal(t, 1, f.store.fetchCount("orders"), "retry while synced must not refetch")
}

func TestClientCloseTearsEverythingDown(t *testing.T) {
	f := newClientFixture(t)

	require.NoError(t, f.client.Start(context.Background()))
	f.channel.emit(StatusActive)

	// Leave a debounce window open at close time.
	f.channel.notify("menu")
	fetchesAtClose := f.store.fetchCount("menu")

	f.client.Close()

	assert.Equal(t, StateIdle, f.client.ChannelState())
	assert.Zero(t, f.channel.liveCount())
	assert.False(t, f.client.PollerActive())

	// The open debounce window must not fire after close.
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, fetchesAtClose, f.store.fetchCount("menu"))
}

func TestClientCloseIdempotent(t *testing.T) {
	f := newClientFixture(t)

	require.NoError(t, f.client.Start(context.Background()))
	f.client.Close()
	f.client.Close()

	assert.ErrorIs(t, f.client.Start(context.Background()), ErrClientClosed)
	assert.ErrorIs(t, f.client.RetryInitialLoad(context.Background()), ErrClientClosed)
}

func TestClientFullRecoveryScenario(t *testing.T) {
	f := newClientFixture(t)

	require.NoError(t, f.client.Start(context.Background()))
	f.channel.emit(StatusActive)

	// A change arrives and is synced.
	f.channel.notify("orders")
	waitFor(t, func() bool { return f.sink.appliedCount("orders") >= 2 }, "notification-driven refetch")

	// The channel dies; reconnection brings up a fresh one.
	f.channel.emit(StatusChannelError)
	require.Equal(t, StateDisconnected, f.client.ChannelState())
	assert.Equal(t, 1, f.client.ReconnectAttempts())

	waitFor(t, func() bool { return f.channel.openCount() == 2 }, "reconnect")
	f.channel.emit(StatusActive)
	assert.Equal(t, StateActive, f.client.ChannelState())
	assert.Zero(t, f.client.ReconnectAttempts())

	// Notifications flow again on the new channel.
	f.channel.notify("orders")
	waitFor(t, func() bool { return f.sink.appliedCount("orders") >= 3 }, "refetch on new channel")
}

func TestClientIDStable(t *testing.T) {
	f := newClientFixture(t)

	id := f.client.ID()
	require.NotEmpty(t, id)
	assert.Equal(t, id, f.client.ID())
}
