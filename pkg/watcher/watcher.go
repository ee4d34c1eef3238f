package watcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"teamwallets/pkg/config"
	"teamwallets/pkg/models"
	"teamwallets/pkg/rpc"

	"github.com/rs/zerolog"
)

// maxHistory is the number of balance totals kept for the history graph.
const maxHistory = 120

// ErrSuperseded is returned by Refresh when a newer refresh started before
// this one completed. Its result was discarded.
var ErrSuperseded = errors.New("refresh superseded")

// DataSource defines the interface for fetching balances.
type DataSource interface {
	FetchBalances(ctx context.Context, chain config.ChainConfig, roster []models.WalletRecord) (models.BalanceData, error)
}

// RealDataSource implements DataSource using the rpc package. Decimals of a
// token configured without them are looked up once and reused.
type RealDataSource struct {
	mu       sync.Mutex
	decimals map[string]int
}

func (d *RealDataSource) FetchBalances(ctx context.Context, chain config.ChainConfig, roster []models.WalletRecord) (models.BalanceData, error) {
	chain, err := d.resolveDecimals(ctx, chain)
	if err != nil {
		return models.BalanceData{ChainName: chain.Name}, err
	}
	return rpc.FetchBalances(ctx, chain, roster)
}

func (d *RealDataSource) resolveDecimals(ctx context.Context, chain config.ChainConfig) (config.ChainConfig, error) {
	if chain.Token.Address == "" || chain.Token.Decimals != 0 {
		return chain, nil
	}
	key := strings.ToLower(chain.Token.Address)

	d.mu.Lock()
	dec, ok := d.decimals[key]
	d.mu.Unlock()
	if !ok {
		resolved, err := rpc.ResolveTokenDecimals(ctx, chain)
		if err != nil {
			return chain, err
		}
		dec = resolved.Token.Decimals
		d.mu.Lock()
		if d.decimals == nil {
			d.decimals = make(map[string]int)
		}
		d.decimals[key] = dec
		d.mu.Unlock()
	}
	chain.Token.Decimals = dec
	return chain, nil
}

// HistoryPoint is the roster total after a successful refresh.
type HistoryPoint struct {
	At    time.Time `json:"at"`
	Total float64   `json:"total"`
}

// Snapshot is a consistent copy of the watcher state.
type Snapshot struct {
	ChainName  string              `json:"chain"`
	Symbol     string              `json:"symbol"`
	Balances   models.BalanceTable `json:"balances"`
	Wallets    []models.Wallet     `json:"wallets"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Loading    bool                `json:"loading"`
	Error      string              `json:"error,omitempty"`
	FailedRPCs []string            `json:"failed_rpcs,omitempty"`
}

// Watcher owns the balance table and keeps it fresh.
//
// The table starts as [0] so every wallet shows zero until the first fetch
// lands. A failed fetch leaves the table untouched. Each Refresh takes a new
// generation and cancels the one in flight; only the latest generation may
// write.
type Watcher struct {
	config config.GlobalConfig
	chain  config.ChainConfig
	roster []models.WalletRecord

	balances    models.BalanceTable
	updatedAt   time.Time
	lastErr     error
	failedRPCs  []string
	loading     bool
	history     []HistoryPoint
	generation  uint64
	cancelFetch context.CancelFunc

	subscribers []Subscriber
	mu          sync.RWMutex
	stopChan    chan struct{}
	stopOnce    sync.Once
	dataSource  DataSource
	logger      zerolog.Logger
}

// NewWatcher creates a new Watcher instance.
func NewWatcher(roster []models.WalletRecord, chain config.ChainConfig, globalCfg config.GlobalConfig, logger zerolog.Logger) *Watcher {
	r := make([]models.WalletRecord, len(roster))
	copy(r, roster)
	return &Watcher{
		config:     globalCfg,
		chain:      chain,
		roster:     r,
		balances:   models.BalanceTable{0},
		stopChan:   make(chan struct{}),
		dataSource: &RealDataSource{},
		logger:     logger.With().Str("component", "watcher").Str("chain", chain.Name).Logger(),
	}
}

// SetDataSource allows overriding the data source (useful for testing).
func (w *Watcher) SetDataSource(ds DataSource) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dataSource = ds
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (w *Watcher) Subscribe() Subscriber {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(Subscriber, 100)
	w.subscribers = append(w.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (w *Watcher) Unsubscribe(ch Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, sub := range w.subscribers {
		if sub == ch {
			w.subscribers = append(w.subscribers[:i], w.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (w *Watcher) notify(event Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, sub := range w.subscribers {
		select {
		case sub <- event:
		default:
			w.logger.Debug().Str("event", string(event.Type)).Msg("subscriber full, event dropped")
		}
	}
}

// Start performs the initial fetch and, if a refresh interval is set, keeps
// refreshing until Stop or ctx cancellation.
func (w *Watcher) Start(ctx context.Context) {
	go w.pollingLoop(ctx)
}

// Stop stops the polling loop and cancels any fetch in flight.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.mu.Lock()
		if w.cancelFetch != nil {
			w.cancelFetch()
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) stopped() bool {
	select {
	case <-w.stopChan:
		return true
	default:
		return false
	}
}

func (w *Watcher) pollingLoop(ctx context.Context) {
	_ = w.Refresh(ctx)

	interval := w.config.RefreshInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = w.Refresh(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Refresh fetches balances for the whole roster and blocks until done.
//
// On success the table is replaced wholesale. On failure it is kept and the
// error is returned. If another Refresh starts meanwhile, this one is
// cancelled and returns ErrSuperseded without touching state.
func (w *Watcher) Refresh(ctx context.Context) error {
	var (
		fetchCtx context.Context
		cancel   context.CancelFunc
	)
	if timeout := w.config.FetchTimeout(); timeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		fetchCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	w.mu.Lock()
	w.generation++
	gen := w.generation
	if w.cancelFetch != nil {
		w.cancelFetch()
	}
	w.cancelFetch = cancel
	w.loading = true
	ds := w.dataSource
	w.mu.Unlock()

	w.notify(Event{Type: EventRefreshStarted, Data: w.Snapshot()})
	w.logger.Debug().Uint64("generation", gen).Int("wallets", len(w.roster)).Msg("refreshing balances")

	start := time.Now()
	data, err := ds.FetchBalances(fetchCtx, w.chain, w.roster)

	w.mu.Lock()
	if gen != w.generation {
		w.mu.Unlock()
		w.logger.Debug().Uint64("generation", gen).Msg("discarding superseded result")
		return ErrSuperseded
	}
	w.loading = false
	w.cancelFetch = nil
	if err != nil && errors.Is(err, context.Canceled) && (w.stopped() || ctx.Err() != nil) {
		// Shutdown, not a fetch failure.
		w.mu.Unlock()
		w.logger.Debug().Uint64("generation", gen).Msg("refresh cancelled")
		return err
	}
	w.failedRPCs = data.FailedRPCs
	if err != nil {
		w.lastErr = err
		w.mu.Unlock()
		w.logger.Warn().Err(err).Strs("failed_rpcs", data.FailedRPCs).Msg("balance fetch failed, keeping previous balances")
		w.notify(Event{Type: EventFetchFailed, Data: w.Snapshot()})
		return err
	}
	w.balances = data.Balances.Clone()
	w.updatedAt = time.Now()
	w.lastErr = nil
	w.history = append(w.history, HistoryPoint{At: w.updatedAt, Total: w.balances.Total()})
	if len(w.history) > maxHistory {
		w.history = w.history[len(w.history)-maxHistory:]
	}
	w.mu.Unlock()

	w.logger.Info().
		Int("wallets", len(data.Balances)).
		Dur("took", time.Since(start)).
		Strs("failed_rpcs", data.FailedRPCs).
		Msg("balances updated")
	w.notify(Event{Type: EventBalancesUpdated, Data: w.Snapshot()})
	return nil
}

// Snapshot returns a copy of the current state.
func (w *Watcher) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := Snapshot{
		ChainName:  w.chain.Name,
		Symbol:     w.chain.Token.Symbol,
		Balances:   w.balances.Clone(),
		Wallets:    models.JoinBalances(w.roster, w.balances),
		UpdatedAt:  w.updatedAt,
		Loading:    w.loading,
		FailedRPCs: append([]string(nil), w.failedRPCs...),
	}
	if w.lastErr != nil {
		s.Error = w.lastErr.Error()
	}
	return s
}

// Balances returns a copy of the balance table.
func (w *Watcher) Balances() models.BalanceTable {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balances.Clone()
}

// Wallets returns the roster joined with the current balances.
func (w *Watcher) Wallets() []models.Wallet {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return models.JoinBalances(w.roster, w.balances)
}

// Roster returns a copy of the wallet roster.
func (w *Watcher) Roster() []models.WalletRecord {
	out := make([]models.WalletRecord, len(w.roster))
	copy(out, w.roster)
	return out
}

// History returns the recorded totals, oldest first.
func (w *Watcher) History() []HistoryPoint {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]HistoryPoint, len(w.history))
	copy(out, w.history)
	return out
}

// Chain returns the chain balances are read from.
func (w *Watcher) Chain() config.ChainConfig {
	return w.chain
}
