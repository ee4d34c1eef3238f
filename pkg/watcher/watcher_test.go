package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"teamwallets/pkg/config"
	"teamwallets/pkg/models"
	"teamwallets/pkg/roster"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) FetchBalances(ctx context.Context, chain config.ChainConfig, r []models.WalletRecord) (models.BalanceData, error) {
	args := m.Called(ctx, chain, r)
	return args.Get(0).(models.BalanceData), args.Error(1)
}

// funcSource lets a test control each fetch individually.
type funcSource func(ctx context.Context) (models.BalanceData, error)

func (f funcSource) FetchBalances(ctx context.Context, _ config.ChainConfig, _ []models.WalletRecord) (models.BalanceData, error) {
	return f(ctx)
}

func newTestWatcher(globalCfg config.GlobalConfig) *Watcher {
	return NewWatcher(roster.Teams(), config.DefaultChain(), globalCfg, zerolog.Nop())
}

func TestNewWatcher(t *testing.T) {
	w := newTestWatcher(config.DefaultGlobal())

	assert.Equal(t, models.BalanceTable{0}, w.Balances())
	wallets := w.Wallets()
	require.Len(t, wallets, 4)
	for _, wl := range wallets {
		assert.Equal(t, 0.0, wl.Balance)
	}
	assert.Empty(t, w.History())
	assert.Equal(t, "BSC", w.Chain().Name)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	w := newTestWatcher(config.DefaultGlobal())
	sub := w.Subscribe()
	assert.NotNil(t, sub)

	w.mu.RLock()
	assert.Equal(t, 1, len(w.subscribers))
	w.mu.RUnlock()

	w.Unsubscribe(sub)
	w.mu.RLock()
	assert.Equal(t, 0, len(w.subscribers))
	w.mu.RUnlock()
}

func TestRefresh_Success(t *testing.T) {
	mockDS := new(MockDataSource)
	w := newTestWatcher(config.DefaultGlobal())
	w.SetDataSource(mockDS)

	mockDS.On("FetchBalances", mock.Anything, mock.Anything, mock.Anything).Return(models.BalanceData{
		ChainName: "BSC",
		Balances:  models.BalanceTable{1, 2, 3, 4},
	}, nil).Once()

	sub := w.Subscribe()
	require.NoError(t, w.Refresh(context.Background()))
	mockDS.AssertExpectations(t)

	assert.Equal(t, models.BalanceTable{1, 2, 3, 4}, w.Balances())
	hist := w.History()
	require.Len(t, hist, 1)
	assert.Equal(t, 10.0, hist[0].Total)

	snap := w.Snapshot()
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)
	assert.False(t, snap.UpdatedAt.IsZero())

	var types []EventType
	for len(sub) > 0 {
		types = append(types, (<-sub).Type)
	}
	assert.Equal(t, []EventType{EventRefreshStarted, EventBalancesUpdated}, types)
}

func TestRefresh_FailureKeepsPreviousBalances(t *testing.T) {
	mockDS := new(MockDataSource)
	w := newTestWatcher(config.DefaultGlobal())
	w.SetDataSource(mockDS)

	// First fetch fails: the zero table stays.
	mockDS.On("FetchBalances", mock.Anything, mock.Anything, mock.Anything).
		Return(models.BalanceData{FailedRPCs: []string{"http://down"}}, errors.New("rpc down")).Once()
	err := w.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.BalanceTable{0}, w.Balances())
	assert.Equal(t, "rpc down", w.Snapshot().Error)
	assert.Equal(t, []string{"http://down"}, w.Snapshot().FailedRPCs)

	mockDS.On("FetchBalances", mock.Anything, mock.Anything, mock.Anything).
		Return(models.BalanceData{Balances: models.BalanceTable{5, 6, 7, 8}}, nil).Once()
	require.NoError(t, w.Refresh(context.Background()))
	assert.Equal(t, models.BalanceTable{5, 6, 7, 8}, w.Balances())

	mockDS.On("FetchBalances", mock.Anything, mock.Anything, mock.Anything).
		Return(models.BalanceData{}, errors.New("again")).Once()
	require.Error(t, w.Refresh(context.Background()))
	assert.Equal(t, models.BalanceTable{5, 6, 7, 8}, w.Balances())
	assert.Len(t, w.History(), 1)
	mockDS.AssertExpectations(t)
}

func TestRefresh_SupersededResultIsDiscarded(t *testing.T) {
	w := newTestWatcher(config.DefaultGlobal())

	started := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	w.SetDataSource(funcSource(func(ctx context.Context) (models.BalanceData, error) {
		calls++
		if calls == 1 {
			close(started)
			<-release
			// Late result arrives after a newer refresh has completed.
			return models.BalanceData{Balances: models.BalanceTable{100, 100, 100, 100}}, nil
		}
		return models.BalanceData{Balances: models.BalanceTable{1, 1, 1, 1}}, nil
	}))

	firstErr := make(chan error, 1)
	go func() { firstErr <- w.Refresh(context.Background()) }()
	<-started

	require.NoError(t, w.Refresh(context.Background()))
	close(release)

	assert.ErrorIs(t, <-firstErr, ErrSuperseded)
	assert.Equal(t, models.BalanceTable{1, 1, 1, 1}, w.Balances())
	assert.Len(t, w.History(), 1)
}

func TestRefresh_CancelsInflightFetch(t *testing.T) {
	w := newTestWatcher(config.DefaultGlobal())

	started := make(chan struct{})
	canceled := make(chan struct{})
	calls := 0
	w.SetDataSource(funcSource(func(ctx context.Context) (models.BalanceData, error) {
		calls++
		if calls == 1 {
			close(started)
			<-ctx.Done()
			close(canceled)
			return models.BalanceData{}, ctx.Err()
		}
		return models.BalanceData{Balances: models.BalanceTable{2, 2, 2, 2}}, nil
	}))

	firstErr := make(chan error, 1)
	go func() { firstErr <- w.Refresh(context.Background()) }()
	<-started

	require.NoError(t, w.Refresh(context.Background()))

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("first fetch was not cancelled")
	}
	assert.ErrorIs(t, <-firstErr, ErrSuperseded)
	assert.Empty(t, w.Snapshot().Error)
}

func TestPollingLoop(t *testing.T) {
	mockDS := new(MockDataSource)
	globalCfg := config.DefaultGlobal()
	globalCfg.RefreshIntervalSeconds = 0
	w := newTestWatcher(globalCfg)
	w.SetDataSource(mockDS)

	mockDS.On("FetchBalances", mock.Anything, mock.Anything, mock.Anything).
		Return(models.BalanceData{Balances: models.BalanceTable{1, 2, 3, 4}}, nil).Once()

	sub := w.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-sub:
			if ev.Type == EventBalancesUpdated {
				assert.Equal(t, models.BalanceTable{1, 2, 3, 4}, ev.Data.Balances)
				w.Stop()
				w.Stop()
				mockDS.AssertExpectations(t)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for initial fetch")
		}
	}
}

func TestStop_CancelsFetchQuietly(t *testing.T) {
	w := newTestWatcher(config.DefaultGlobal())

	started := make(chan struct{})
	w.SetDataSource(funcSource(func(ctx context.Context) (models.BalanceData, error) {
		close(started)
		<-ctx.Done()
		return models.BalanceData{}, ctx.Err()
	}))

	sub := w.Subscribe()
	done := make(chan error, 1)
	go func() { done <- w.Refresh(context.Background()) }()
	<-started
	w.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("fetch was not cancelled by Stop")
	}

	snap := w.Snapshot()
	assert.Empty(t, snap.Error)
	assert.False(t, snap.Loading)
	assert.Equal(t, models.BalanceTable{0}, snap.Balances)
	for len(sub) > 0 {
		assert.NotEqual(t, EventFetchFailed, (<-sub).Type)
	}
}

func TestPollingLoop_Ticker(t *testing.T) {
	globalCfg := config.DefaultGlobal()
	globalCfg.RefreshIntervalSeconds = 1
	w := newTestWatcher(globalCfg)

	var calls atomic.Int32
	w.SetDataSource(funcSource(func(ctx context.Context) (models.BalanceData, error) {
		n := float64(calls.Add(1))
		return models.BalanceData{Balances: models.BalanceTable{n, n, n, n}}, nil
	}))

	sub := w.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	updates := 0
	deadline := time.After(3 * time.Second)
	for updates < 2 {
		select {
		case ev := <-sub:
			if ev.Type == EventBalancesUpdated {
				updates++
			}
		case <-deadline:
			t.Fatalf("saw %d refreshes, want 2", updates)
		}
	}
	w.Stop()
	assert.Equal(t, models.BalanceTable{2, 2, 2, 2}, w.Balances())
	assert.Len(t, w.History(), 2)

	stoppedAt := calls.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, stoppedAt, calls.Load(), "no refresh after Stop")
}

// newDecimalsRPC answers decimals() with 6 and every balanceOf with 2.5 units,
// counting decimals() calls.
func newDecimalsRPC(t *testing.T, decimalsCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		var input string
		if len(req.Params) > 0 {
			var call map[string]any
			_ = json.Unmarshal(req.Params[0], &call)
			input, _ = call["input"].(string)
			if input == "" {
				input, _ = call["data"].(string)
			}
		}
		result := "0x"
		switch {
		case strings.HasPrefix(input, "0x313ce567"):
			decimalsCalls.Add(1)
			result = "0x0000000000000000000000000000000000000000000000000000000000000006"
		case strings.HasPrefix(input, "0x70a08231"):
			result = "0x00000000000000000000000000000000000000000000000000000000002625a0"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRealDataSource_ResolvesMissingDecimalsOnce(t *testing.T) {
	var decimalsCalls atomic.Int32
	server := newDecimalsRPC(t, &decimalsCalls)

	chain := config.ChainConfig{
		Name:    "MockChain",
		RPCURLs: []string{server.URL},
		Token:   config.TokenConfig{Symbol: "USDC", Address: "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d"},
	}
	ds := &RealDataSource{}

	for i := 0; i < 2; i++ {
		data, err := ds.FetchBalances(context.Background(), chain, roster.Teams())
		require.NoError(t, err)
		assert.Equal(t, models.BalanceTable{2.5, 2.5, 2.5, 2.5}, data.Balances)
	}
	assert.Equal(t, int32(1), decimalsCalls.Load())
}
