package swaps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/types"
)

func quoteSetState(selected, top string) State {
	s := InitialState()
	s.QuoteSet = QuoteSet{
		Quotes: map[string]types.Quote{
			"agg1": {Aggregator: "agg1", Trade: types.TxParams{To: routerAddress, GasPrice: "0x1"}},
			"agg2": {Aggregator: "agg2", Trade: types.TxParams{To: routerAddress}, ApprovalNeeded: &types.TxParams{To: daiAddress, Value: "0x5", GasPrice: "0x2"}},
		},
		SelectedAggID: selected,
		TopAggID:      top,
	}
	return s
}

func TestUsedQuote(t *testing.T) {
	tests := []struct {
		name     string
		selected string
		top      string
		want     string
		found    bool
	}{
		{name: "selection wins", selected: "agg2", top: "agg1", want: "agg2", found: true},
		{name: "unknown selection falls back to top", selected: "agg9", top: "agg1", want: "agg1", found: true},
		{name: "top only", top: "agg2", want: "agg2", found: true},
		{name: "neither", selected: "agg9", top: "agg8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, ok := UsedQuote(quoteSetState(tt.selected, tt.top))
			require.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, q.Aggregator)
		})
	}

	_, ok := UsedQuote(InitialState())
	assert.False(t, ok)
}

func TestTradeTxParams(t *testing.T) {
	s := quoteSetState("", "agg1")
	require.Equal(t, "0x1", TradeTxParams(s).GasPrice)

	s.CustomGas.Price = "0x77359400"
	s.CustomGas.Limit = "0x9c40"
	trade := TradeTxParams(s)
	assert.Equal(t, "0x77359400", trade.GasPrice)
	assert.Equal(t, "0x9c40", trade.Gas)
	assert.Empty(t, s.QuoteSet.Quotes["agg1"].Trade.Gas, "selector must not mutate the quote")

	assert.Nil(t, TradeTxParams(InitialState()))
}

func TestApproveTxParams(t *testing.T) {
	assert.Nil(t, ApproveTxParams(quoteSetState("", "agg1")))

	s := quoteSetState("agg2", "agg1")
	approval := ApproveTxParams(s)
	require.NotNil(t, approval)
	assert.Equal(t, "0x0", approval.Value)
	assert.Equal(t, "0x2", approval.GasPrice)

	s.CustomGas.Price = "0x9"
	assert.Equal(t, "0x9", ApproveTxParams(s).GasPrice)
	assert.Equal(t, "0x5", s.QuoteSet.Quotes["agg2"].ApprovalNeeded.Value)
}

func TestIsCustomGasPriceSafe(t *testing.T) {
	s := InitialState()
	assert.True(t, IsCustomGasPriceSafe(s))

	s.CustomGas.Price = "0x4a817c800" // 20 gwei
	assert.False(t, IsCustomGasPriceSafe(s))

	s.CustomGas.PriceEstimates = types.PriceEstimates{Average: "15"}
	assert.True(t, IsCustomGasPriceSafe(s))

	s.CustomGas.PriceEstimates.Average = "20"
	assert.False(t, IsCustomGasPriceSafe(s))
}

func TestReduceResetsClearOnlyCycleFields(t *testing.T) {
	for _, ev := range []Event{NavigatedBackToBuildQuote{}, RetriedGetQuotes{}} {
		s := quoteSetState("agg2", "agg1")
		s.ApproveTxID = "approve"
		s.TradeTxID = "trade"
		s.BalanceError = true
		s.FetchingQuotes = true
		s.ErrorKey = types.SwapFailedError
		s.CustomGas.Price = "0x1"

		got := Reduce(s, ev)
		assert.Empty(t, got.ApproveTxID)
		assert.False(t, got.BalanceError)
		assert.False(t, got.FetchingQuotes)

		assert.Equal(t, "trade", got.TradeTxID)
		assert.Equal(t, types.SwapFailedError, got.ErrorKey)
		assert.Equal(t, "0x1", got.CustomGas.Price)
		assert.Len(t, got.QuoteSet.Quotes, 2)
	}
}

func TestReduceLeaveClearsEverything(t *testing.T) {
	s := quoteSetState("agg2", "agg1")
	s.CustomGas = CustomGas{Price: "0x1", Limit: "0x2", Loading: true}
	s.SwapsFeatureIsLive = true

	once := Reduce(Reduce(s, CustomGasReset{}), SwapsStateCleared{})
	twice := Reduce(Reduce(once, CustomGasReset{}), SwapsStateCleared{})

	assert.Equal(t, InitialState(), once)
	assert.Equal(t, once, twice)
}

func TestReduceQuoteSelection(t *testing.T) {
	s := quoteSetState("", "agg1")

	s = Reduce(s, QuoteSelected{AggID: "agg9"})
	assert.Empty(t, s.QuoteSet.SelectedAggID)

	s = Reduce(s, QuoteSelected{AggID: "agg2"})
	assert.Equal(t, "agg2", s.QuoteSet.SelectedAggID)

	// a new fetch keeps the selection only while the aggregator still quotes
	s = Reduce(s, QuotesReceived{Result: types.QuoteResult{
		Quotes:   map[string]types.Quote{"agg2": {Aggregator: "agg2"}},
		TopAggID: "agg2",
	}})
	assert.Equal(t, "agg2", s.QuoteSet.SelectedAggID)

	s = Reduce(s, QuotesReceived{Result: types.QuoteResult{
		Quotes:   map[string]types.Quote{"agg1": {Aggregator: "agg1"}},
		TopAggID: "agg1",
	}})
	assert.Empty(t, s.QuoteSet.SelectedAggID)
}

func TestReduceDoesNotShareQuoteMaps(t *testing.T) {
	before := quoteSetState("", "agg1")

	after := Reduce(before, GasParamsApplied{AggID: "agg1", Gas: "0x7530", GasPrice: "0x3"})
	assert.Equal(t, "0x7530", after.QuoteSet.Quotes["agg1"].Trade.Gas)
	assert.Empty(t, before.QuoteSet.Quotes["agg1"].Trade.Gas)

	after = Reduce(before, InitialGasEstimated{AggID: "agg1", GasEstimate: "0x6000"})
	assert.Equal(t, "0x6000", after.QuoteSet.Quotes["agg1"].GasEstimate)
	assert.Equal(t, "0x6000", after.QuoteSet.Quotes["agg1"].GasEstimateWithRefund)
	assert.Empty(t, before.QuoteSet.Quotes["agg1"].GasEstimate)
}

func TestReduceGasEstimatesLoading(t *testing.T) {
	s := Reduce(InitialState(), GasEstimatesLoading{})
	assert.True(t, s.CustomGas.Loading)

	s = Reduce(s, GasEstimatesCommitted{Estimates: types.PriceEstimates{Fast: "30"}, LastRetrieved: 42})
	assert.False(t, s.CustomGas.Loading)
	assert.Equal(t, "30", s.CustomGas.PriceEstimates.Fast)
	assert.EqualValues(t, 42, s.CustomGas.PriceEstimatesLastRetrieved)
}
