package gas

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/storage"
	"wallet-swap/pkg/types"
)

type fakeSource struct {
	calls     int
	estimates types.PriceEstimates
	err       error
}

func (f *fakeSource) FetchGasPrices(context.Context) (types.PriceEstimates, error) {
	f.calls++
	return f.estimates, f.err
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	return store
}

func TestCacheHonoursTTL(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	source := &fakeSource{estimates: types.PriceEstimates{SafeLow: "10", Average: "15", Fast: "20"}}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cache := NewCache(store, source, WithClock(clock.Now))

	snap, err := cache.GetGasPriceEstimates(ctx)
	require.NoError(t, err)
	require.True(t, snap.Fetched)
	require.Equal(t, 1, source.calls)
	require.Equal(t, "20", snap.Estimates.Fast)
	require.Equal(t, clock.t.UnixMilli(), cache.LastRetrieved())

	clock.Advance(29 * time.Second)
	snap, err = cache.GetGasPriceEstimates(ctx)
	require.NoError(t, err)
	require.False(t, snap.Fetched)
	require.Equal(t, 1, source.calls, "read inside the window must not fetch")

	clock.Advance(2 * time.Second)
	snap, err = cache.GetGasPriceEstimates(ctx)
	require.NoError(t, err)
	require.True(t, snap.Fetched)
	require.Equal(t, 2, source.calls, "read after the window must fetch")
}

func TestCacheFallsBackToPersistedTimestamp(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	source := &fakeSource{estimates: types.PriceEstimates{Fast: "20"}}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}

	first := NewCache(store, source, WithClock(clock.Now))
	_, err := first.GetGasPriceEstimates(ctx)
	require.NoError(t, err)
	fetchedAt := clock.t.UnixMilli()

	// a fresh process has no in-memory timestamp
	clock.Advance(10 * time.Second)
	restarted := NewCache(store, source, WithClock(clock.Now))
	require.Zero(t, restarted.LastRetrieved())

	snap, err := restarted.GetGasPriceEstimates(ctx)
	require.NoError(t, err)
	require.False(t, snap.Fetched)
	require.Equal(t, 1, source.calls)
	require.Equal(t, fetchedAt, snap.RetrievedAt)
	require.Equal(t, "20", snap.Estimates.Fast)
}

func TestCacheFetchesWhenSnapshotMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	source := &fakeSource{estimates: types.PriceEstimates{Fast: "20"}}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cache := NewCache(store, source, WithClock(clock.Now))

	_, err := cache.GetGasPriceEstimates(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, EstimatesKey))

	clock.Advance(5 * time.Second)
	snap, err := cache.GetGasPriceEstimates(ctx)
	require.NoError(t, err)
	require.True(t, snap.Fetched)
	require.Equal(t, 2, source.calls)
}

func TestCacheSourceError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	source := &fakeSource{err: errors.New("gas api down")}
	cache := NewCache(store, source)

	_, err := cache.GetGasPriceEstimates(ctx)
	require.ErrorContains(t, err, "gas api down")

	var last int64
	found, err := store.Load(ctx, LastRetrievedKey, &last)
	require.NoError(t, err)
	require.False(t, found)
	require.Zero(t, cache.LastRetrieved())
}

func TestCalculateGasLimit(t *testing.T) {
	quote := types.Quote{MaxGas: 21000, GasEstimate: "0x5208"}

	p, err := Calculate(quote, Overrides{}, "")
	require.NoError(t, err)
	// 21000 * 1.4 = 29400
	require.Equal(t, "0x72d8", p.EstimateWithMultiplier)
	require.Equal(t, "0x72d8", p.Limit)
	require.Equal(t, int64(21000), p.Estimate.Int64())

	p, err = Calculate(quote, Overrides{Limit: "0x9c40"}, "")
	require.NoError(t, err)
	require.Equal(t, "0x9c40", p.Limit)

	p, err = Calculate(types.Quote{MaxGas: 500000, GasEstimate: "0x5208"}, Overrides{}, "")
	require.NoError(t, err)
	require.Equal(t, "0x7a120", p.Limit, "max gas wins when larger")

	p, err = Calculate(types.Quote{AverageGas: 100000}, Overrides{}, "")
	require.NoError(t, err)
	require.Equal(t, "0x222e0", p.Limit, "average gas is the fallback estimate")

	p, err = Calculate(types.Quote{}, Overrides{}, "")
	require.NoError(t, err)
	require.Equal(t, "0x0", p.Limit)
}

func TestCalculateRoundsToNearestUnit(t *testing.T) {
	tests := []struct {
		average uint64
		want    string
	}{
		{1, "0x1"},
		{3, "0x4"},
		{4, "0x6"},
		{5, "0x7"},
	}
	for _, tt := range tests {
		p, err := Calculate(types.Quote{AverageGas: tt.average}, Overrides{}, "")
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.EstimateWithMultiplier, "average %d", tt.average)
	}
}

func TestCalculateGasPrice(t *testing.T) {
	quote := types.Quote{Trade: types.TxParams{GasPrice: "0x3b9aca00"}}

	p, err := Calculate(quote, Overrides{Price: "0x4a817c800"}, "0x1")
	require.NoError(t, err)
	require.Equal(t, "0x4a817c800", p.Price)

	p, err = Calculate(quote, Overrides{}, "0x1")
	require.NoError(t, err)
	require.Equal(t, "0x3b9aca00", p.Price)

	p, err = Calculate(types.Quote{}, Overrides{}, "0x1")
	require.NoError(t, err)
	require.Equal(t, "0x1", p.Price)
}

func TestUnitConversions(t *testing.T) {
	hexWei, err := DecGWEIToHexWEI("20")
	require.NoError(t, err)
	require.Equal(t, "0x4a817c800", hexWei)

	gwei, err := HexWEIToDecGWEI("0x4a817c800")
	require.NoError(t, err)
	require.Equal(t, "20", gwei.String())

	require.Equal(t, "1.5", WeiToGwei(big.NewInt(1_500_000_000)))
	require.Equal(t, "0x4a817c800", FastPriceHexWEI(types.PriceEstimates{Fast: "20"}))
	require.Empty(t, FastPriceHexWEI(types.PriceEstimates{}))
}

func TestIsCustomPriceSafe(t *testing.T) {
	estimates := types.PriceEstimates{Average: "15"}

	require.True(t, IsCustomPriceSafe("", estimates))
	require.False(t, IsCustomPriceSafe("0x4a817c800", types.PriceEstimates{}))
	require.True(t, IsCustomPriceSafe("0x4a817c800", estimates))
	require.False(t, IsCustomPriceSafe("0x4a817c800", types.PriceEstimates{Average: "20"}))
}

func TestFeeInFiat(t *testing.T) {
	fee, err := FeeInFiat(big.NewInt(21000), "0x4a817c800", decimal.NewFromInt(2000))
	require.NoError(t, err)
	require.Equal(t, "0.84", fee.String())

	quote := types.Quote{
		AverageGas:            90000,
		GasEstimateWithRefund: "0x186a0",
		ApprovalNeeded:        &types.TxParams{Gas: "0xea60"},
	}
	total, err := RefundedGasEstimate(quote)
	require.NoError(t, err)
	require.Equal(t, int64(160000), total.Int64())
}

type fakeChain struct {
	suggested *big.Int
	tip       *big.Int
	baseFee   *big.Int
	estimate  uint64
	lastMsg   ethereum.CallMsg
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) { return f.suggested, nil }

func (f *fakeChain) SuggestGasTipCap(context.Context) (*big.Int, error) { return f.tip, nil }

func (f *fakeChain) HeaderByNumber(context.Context, *big.Int) (*ethtypes.Header, error) {
	return &ethtypes.Header{BaseFee: f.baseFee}, nil
}

func (f *fakeChain) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.lastMsg = msg
	return f.estimate, nil
}

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func TestNodeSource(t *testing.T) {
	chain := &fakeChain{suggested: gwei(15), tip: gwei(2), baseFee: gwei(10)}

	estimates, err := NewNodeSource(chain).FetchGasPrices(context.Background())
	require.NoError(t, err)
	require.Equal(t, types.PriceEstimates{SafeLow: "12", Average: "15", Fast: "22"}, estimates)

	legacy := &fakeChain{suggested: gwei(20)}
	estimates, err = NewNodeSource(legacy).FetchGasPrices(context.Background())
	require.NoError(t, err)
	require.Equal(t, types.PriceEstimates{SafeLow: "20", Average: "20", Fast: "25"}, estimates)
}

func TestNodeEstimator(t *testing.T) {
	chain := &fakeChain{estimate: 50000}
	quote := types.Quote{Trade: types.TxParams{
		From:  "0x00000000000000000000000000000000000000aa",
		To:    "0x00000000000000000000000000000000000000bb",
		Data:  "0xa9059cbb",
		Value: "0x10",
	}}

	estimate, err := NewNodeEstimator(chain).EstimateTradeGas(context.Background(), quote)
	require.NoError(t, err)
	require.Equal(t, "0xc350", estimate)
	require.Equal(t, int64(16), chain.lastMsg.Value.Int64())
	require.Len(t, chain.lastMsg.Data, 4)

	_, err = NewNodeEstimator(chain).EstimateTradeGas(context.Background(), types.Quote{})
	require.Error(t, err)
}
