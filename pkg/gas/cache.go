package gas

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"wallet-swap/pkg/storage"
	"wallet-swap/pkg/types"
)

const (
	// EstimatesKey holds the last fetched estimates
	EstimatesKey = "gas-price-estimates"
	// LastRetrievedKey holds the unix millisecond time of the last live fetch
	LastRetrievedKey = "gas-price-estimates-last-retrieved"

	// CacheTTL is how long a live fetch is trusted
	CacheTTL = 30 * time.Second
)

var (
	cacheHitsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swaps_gas_price_cache_hits_total",
			Help: "Total number of gas price estimates served from the persisted snapshot",
		},
	)
	cacheMissesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swaps_gas_price_cache_misses_total",
			Help: "Total number of gas price lookups that went to the network",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(cacheHitsCounter)
	prometheus.MustRegister(cacheMissesCounter)
}

// PriceSource fetches live gas price estimates
type PriceSource interface {
	FetchGasPrices(ctx context.Context) (types.PriceEstimates, error)
}

// Snapshot is the result of a cache read
type Snapshot struct {
	Estimates types.PriceEstimates
	// RetrievedAt is the unix millisecond time of the live fetch the estimates came from
	RetrievedAt int64
	// Fetched is true when this read went to the network
	Fetched bool
}

// Cache serves gas price estimates, going to the network at most once per
// CacheTTL. The timestamp lives in memory and in the store so a restarted
// process keeps honouring the window.
type Cache struct {
	store  storage.Store
	source PriceSource
	now    func() time.Time
	logger *zap.Logger

	mu            sync.Mutex
	lastRetrieved int64
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithClock overrides the time source
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the cache logger
func WithLogger(logger *zap.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger.Named("gas-cache")
	}
}

// NewCache creates a cache over store and source
func NewCache(store storage.Store, source PriceSource, opts ...CacheOption) *Cache {
	c := &Cache{
		store:  store,
		source: source,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetGasPriceEstimates returns cached estimates while they are fresh and
// fetches live ones otherwise. The TTL is checked once against the best known
// retrieval time; the persisted snapshot is only a fallback within the window.
func (c *Cache) GetGasPriceEstimates(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, err := c.lastRetrievedLocked(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	nowMs := c.now().UnixMilli()
	if nowMs-last > CacheTTL.Milliseconds() {
		cacheMissesCounter.WithLabelValues("expired").Inc()
		return c.fetchLocked(ctx)
	}

	var estimates types.PriceEstimates
	found, err := c.store.Load(ctx, EstimatesKey, &estimates)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load cached gas prices: %w", err)
	}
	if !found {
		cacheMissesCounter.WithLabelValues("absent").Inc()
		return c.fetchLocked(ctx)
	}

	cacheHitsCounter.Inc()
	c.logger.Debug("serving cached gas prices", zap.Int64("age_ms", nowMs-last))
	return Snapshot{Estimates: estimates, RetrievedAt: last}, nil
}

// LastRetrieved returns the in-memory retrieval time, zero if this process
// has not fetched yet
func (c *Cache) LastRetrieved() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRetrieved
}

func (c *Cache) lastRetrievedLocked(ctx context.Context) (int64, error) {
	if c.lastRetrieved != 0 {
		return c.lastRetrieved, nil
	}
	var persisted int64
	if _, err := c.store.Load(ctx, LastRetrievedKey, &persisted); err != nil {
		return 0, fmt.Errorf("failed to load gas price timestamp: %w", err)
	}
	return persisted, nil
}

func (c *Cache) fetchLocked(ctx context.Context) (Snapshot, error) {
	estimates, err := c.source.FetchGasPrices(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to fetch gas prices: %w", err)
	}

	retrieved := c.now().UnixMilli()
	if err := c.store.Save(ctx, EstimatesKey, estimates); err != nil {
		return Snapshot{}, fmt.Errorf("failed to save gas prices: %w", err)
	}
	if err := c.store.Save(ctx, LastRetrievedKey, retrieved); err != nil {
		return Snapshot{}, fmt.Errorf("failed to save gas price timestamp: %w", err)
	}
	c.lastRetrieved = retrieved

	c.logger.Debug("fetched gas prices",
		zap.String("safe_low", estimates.SafeLow),
		zap.String("average", estimates.Average),
		zap.String("fast", estimates.Fast),
	)
	return Snapshot{Estimates: estimates, RetrievedAt: retrieved, Fetched: true}, nil
}
