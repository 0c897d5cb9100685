package swaps

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wallet-swap/pkg/gas"
	"wallet-swap/pkg/router"
	"wallet-swap/pkg/storage"
	"wallet-swap/pkg/txn"
	"wallet-swap/pkg/types"
)

// BackgroundStateKey is where the swap flow's background state is persisted
const BackgroundStateKey = "swaps-state"

// ErrMissingDependency is returned when the controller is built without a
// collaborator it cannot work without
var ErrMissingDependency = errors.New("missing swaps dependency")

// LivenessChecker reports whether the swaps service is enabled
type LivenessChecker interface {
	FetchLiveness(ctx context.Context) (bool, error)
}

// QuoteFetcher prices a swap request across aggregators
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context, params types.SwapRequestParams) (types.QuoteResult, error)
}

// GasPriceProvider serves gas price estimates through the TTL cache
type GasPriceProvider interface {
	GetGasPriceEstimates(ctx context.Context) (gas.Snapshot, error)
}

// TradeGasEstimator simulates a trade to estimate its gas use
type TradeGasEstimator interface {
	EstimateTradeGas(ctx context.Context, quote types.Quote) (string, error)
}

// Transactions is the wallet's transaction subsystem
type Transactions interface {
	AddUnapprovedTransaction(ctx context.Context, params types.TxParams, origin string) (*txn.TxMeta, error)
	UpdateTransaction(ctx context.Context, meta txn.TxMeta) (*txn.TxMeta, error)
	UpdateAndApproveTx(ctx context.Context, meta txn.TxMeta) error
	Get(id string) (*txn.TxMeta, bool)
}

// TokenRegistry is the wallet's tracked-token list
type TokenRegistry interface {
	HasExchangeRate(address string) bool
	SetExchangeRate(ctx context.Context, address string, rate decimal.Decimal) error
	AddToken(ctx context.Context, address, symbol string, decimals int, iconURL string, isSwapToken bool) error
	SwapsTokens() []types.Token
}

// AccountReader serves the selected account and refreshes wallet state
type AccountReader interface {
	SelectedAccount(ctx context.Context) (types.Account, error)
	ForceUpdate(ctx context.Context) error
}

// Telemetry receives swaps events
type Telemetry interface {
	Emit(name string, properties map[string]any)
}

// DepositNotifier is told which transaction funded an intent deposit address
type DepositNotifier interface {
	SubmitDepositTx(ctx context.Context, depositAddress, txHash string) error
}

// Dependencies are the collaborators of the swap flow. Estimator and
// Deposits are optional.
type Dependencies struct {
	Liveness     LivenessChecker
	Quotes       QuoteFetcher
	GasPrices    GasPriceProvider
	Estimator    TradeGasEstimator
	Transactions Transactions
	Tokens       TokenRegistry
	Accounts     AccountReader
	Store        storage.Store
	Telemetry    Telemetry
	Navigator    router.Navigator
	Deposits     DepositNotifier
}

func (d Dependencies) validate() error {
	switch {
	case d.Liveness == nil:
		return fmt.Errorf("%w: liveness", ErrMissingDependency)
	case d.Quotes == nil:
		return fmt.Errorf("%w: quotes", ErrMissingDependency)
	case d.GasPrices == nil:
		return fmt.Errorf("%w: gas prices", ErrMissingDependency)
	case d.Transactions == nil:
		return fmt.Errorf("%w: transactions", ErrMissingDependency)
	case d.Tokens == nil:
		return fmt.Errorf("%w: tokens", ErrMissingDependency)
	case d.Accounts == nil:
		return fmt.Errorf("%w: accounts", ErrMissingDependency)
	case d.Store == nil:
		return fmt.Errorf("%w: store", ErrMissingDependency)
	case d.Telemetry == nil:
		return fmt.Errorf("%w: telemetry", ErrMissingDependency)
	case d.Navigator == nil:
		return fmt.Errorf("%w: navigator", ErrMissingDependency)
	}
	return nil
}

// Controller runs the swap flow: liveness gating, quote fetch cycles, the
// approval and trade sequence, and the resets between them. All state
// changes go through Reduce; cycle results from a superseded cycle are
// discarded.
type Controller struct {
	deps           Dependencies
	logger         *zap.Logger
	now            func() time.Time
	nativeSymbol   string
	conversionRate decimal.Decimal
	pollInterval   time.Duration

	mu    sync.Mutex
	state State
	gen   uint64

	poller *Poller
	bg     sync.WaitGroup
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the controller logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger.Named("swaps")
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithNativeSymbol sets the symbol of the chain's native asset
func WithNativeSymbol(symbol string) Option {
	return func(c *Controller) {
		c.nativeSymbol = symbol
	}
}

// WithConversionRate sets the native asset's fiat price used for fee display
func WithConversionRate(rate decimal.Decimal) Option {
	return func(c *Controller) {
		c.conversionRate = rate
	}
}

// WithPollInterval sets how often quotes are refreshed while polling
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.pollInterval = d
	}
}

// NewController creates a controller over deps
func NewController(deps Dependencies, opts ...Option) (*Controller, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		deps:         deps,
		logger:       zap.NewNop(),
		now:          time.Now,
		nativeSymbol: "ETH",
		pollInterval: DefaultPollInterval,
		state:        InitialState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.poller = NewPoller(c.pollInterval, c.logger)

	return c, nil
}

// State returns a snapshot of the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// dispatch applies ev unless it belongs to a superseded cycle. It reports
// whether the event was applied.
func (c *Controller) dispatch(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ce, ok := ev.(cycleEvent); ok && ce.generation() != c.gen {
		c.logger.Debug("discarding stale cycle event",
			zap.String("event", fmt.Sprintf("%T", ev)),
			zap.Uint64("event_generation", ce.generation()),
			zap.Uint64("generation", c.gen),
		)
		return false
	}
	c.state = Reduce(c.state, ev)
	return true
}

// beginCycle supersedes any cycle in flight and returns the new generation
func (c *Controller) beginCycle() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.gen
}

// current reports whether gen is still the live cycle
func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// SelectFromToken records the user's source token choice
func (c *Controller) SelectFromToken(token types.Token) {
	c.dispatch(FromTokenSelected{Token: token})
}

// SelectToToken records the user's destination token choice
func (c *Controller) SelectToToken(token types.Token) {
	c.dispatch(ToTokenSelected{Token: token})
}

// SetBalanceError records whether the source balance is short of the input
func (c *Controller) SetBalanceError(balanceError bool) {
	c.dispatch(BalanceErrorSet{BalanceError: balanceError})
}

// SelectQuote chooses a quote other than the top one. Unknown ids are ignored.
func (c *Controller) SelectQuote(aggID string) bool {
	c.dispatch(QuoteSelected{AggID: aggID})
	return aggID != "" && c.State().QuoteSet.SelectedAggID == aggID
}

// SetCustomGasPrice sets the gas price override as hex WEI
func (c *Controller) SetCustomGasPrice(price string) {
	c.dispatch(CustomGasPriceSet{Price: price})
}

// SetCustomGasLimit sets the gas limit override as hex
func (c *Controller) SetCustomGasLimit(limit string) {
	c.dispatch(CustomGasLimitSet{Limit: limit})
}

// Restore loads the persisted background state into the controller
func (c *Controller) Restore(ctx context.Context) (bool, error) {
	bg, found, err := LoadBackgroundState(ctx, c.deps.Store)
	if err != nil || !found {
		return false, err
	}
	c.dispatch(BackgroundRestored{Background: bg})
	return true, nil
}

// Wait blocks until background token registrations have finished
func (c *Controller) Wait() {
	c.bg.Wait()
}

// Close stops polling and waits for background work
func (c *Controller) Close() {
	c.poller.Stop()
	c.bg.Wait()
}

func (c *Controller) persistBackground(ctx context.Context) {
	if err := c.deps.Store.Save(ctx, BackgroundStateKey, backgroundOf(c.State())); err != nil {
		c.logger.Warn("failed to persist swaps state", zap.Error(err))
	}
}

// LoadBackgroundState reads the persisted background state from store
func LoadBackgroundState(ctx context.Context, store storage.Store) (BackgroundState, bool, error) {
	var bg BackgroundState
	found, err := store.Load(ctx, BackgroundStateKey, &bg)
	if err != nil {
		return BackgroundState{}, false, fmt.Errorf("failed to load swaps state: %w", err)
	}
	return bg, found, nil
}
