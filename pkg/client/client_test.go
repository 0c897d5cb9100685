package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/types"
)

const (
	daiAddress    = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	walletAddress = "0x00000000000000000000000000000000000000aa"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *SwapsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSwapsClient(srv.URL, srv.URL+"/gasPrices", 5*time.Second, nil)
}

func TestFetchLiveness(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/featureFlag", r.URL.Path)
		_, _ = w.Write([]byte(`{"active":true}`))
	})
	live, err := c.FetchLiveness(context.Background())
	require.NoError(t, err)
	require.True(t, live)

	down := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})
	live, err = down.FetchLiveness(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	require.False(t, live)

	garbage := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err = garbage.FetchLiveness(context.Background())
	require.Error(t, err)
}

func TestFetchQuotes(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trades", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1500000000000000000", q.Get("sourceAmount"))
		assert.Equal(t, "2", q.Get("slippage"))
		assert.Equal(t, walletAddress, q.Get("walletAddress"))
		assert.Equal(t, daiAddress, q.Get("destinationToken"))
		_, _ = w.Write([]byte(`[
			{"aggregator":"agg1","trade":{"to":"0x1111111111111111111111111111111111111111","data":"0x","value":"0x0"},"destinationAmount":"100","maxGas":250000},
			{"aggregator":"agg2","error":{"message":"no liquidity"},"trade":{"to":"0x2222222222222222222222222222222222222222"}},
			{"aggregator":"agg3","trade":{"to":"0x3333333333333333333333333333333333333333"},"destinationAmount":"120","approvalNeeded":{"to":"0x4444444444444444444444444444444444444444","gas":"0xea60"}}
		]`))
	})

	quotes, err := c.FetchQuotes(context.Background(), types.SwapRequestParams{
		Slippage:         2,
		SourceToken:      "0x0000000000000000000000000000000000000000",
		DestinationToken: daiAddress,
		Value:            "1.5",
		FromAddress:      walletAddress,
		SourceDecimals:   18,
	})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	require.Contains(t, quotes, "agg1")
	require.Contains(t, quotes, "agg3")
	require.Equal(t, uint64(250000), quotes["agg1"].MaxGas)
	require.Equal(t, walletAddress, quotes["agg1"].Trade.From)
	require.NotNil(t, quotes["agg3"].ApprovalNeeded)
}

func TestFetchGasPrices(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gasPrices", r.URL.Path)
		_, _ = w.Write([]byte(`{"SafeGasPrice":"10","ProposeGasPrice":"15","FastGasPrice":"20"}`))
	})
	estimates, err := c.FetchGasPrices(context.Background())
	require.NoError(t, err)
	require.Equal(t, types.PriceEstimates{SafeLow: "10", Average: "15", Fast: "20"}, estimates)

	noGas := NewSwapsClient("http://localhost", "", time.Second, nil)
	_, err = noGas.FetchGasPrices(context.Background())
	require.Error(t, err)
}

func TestFetchTokensSkipsMalformed(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"address":"` + daiAddress + `","symbol":"DAI","decimals":18},
			{"address":"nope","symbol":"BAD","decimals":18}
		]`))
	})
	list, err := c.FetchTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "DAI", list[0].Symbol)
}

type staticSource struct {
	name   string
	quotes map[string]types.Quote
	err    error
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) FetchQuotes(context.Context, types.SwapRequestParams) (map[string]types.Quote, error) {
	return s.quotes, s.err
}

func TestAggregatorMergesAndRanks(t *testing.T) {
	primary := &staticSource{name: "api", quotes: map[string]types.Quote{
		"agg1": {Aggregator: "agg1", DestinationAmount: "100"},
		"agg2": {Aggregator: "agg2", DestinationAmount: "150"},
	}}
	extra := &staticSource{name: "oneclick", quotes: map[string]types.Quote{
		"oneclick": {Aggregator: "oneclick", DestinationAmount: "140"},
	}}
	broken := &staticSource{name: "broken", err: errors.New("boom")}

	result, err := NewAggregator(nil, primary, extra, broken).FetchQuotes(context.Background(), types.SwapRequestParams{})
	require.NoError(t, err)
	require.Len(t, result.Quotes, 3)
	require.Equal(t, "agg2", result.TopAggID)
	require.True(t, result.Quotes["agg2"].IsBestQuote)
	require.False(t, result.Quotes["agg1"].IsBestQuote)
}

func TestAggregatorPrimaryFailure(t *testing.T) {
	primary := &staticSource{name: "api", err: errors.New("timeout")}
	_, err := NewAggregator(nil, primary).FetchQuotes(context.Background(), types.SwapRequestParams{})
	require.ErrorContains(t, err, "timeout")
}

func TestAggregatorEmpty(t *testing.T) {
	primary := &staticSource{name: "api", quotes: map[string]types.Quote{}}
	result, err := NewAggregator(nil, primary).FetchQuotes(context.Background(), types.SwapRequestParams{})
	require.NoError(t, err)
	require.Empty(t, result.Quotes)
	require.Empty(t, result.TopAggID)
}

func TestTopAggregator(t *testing.T) {
	require.Equal(t, "b", TopAggregator(map[string]types.Quote{
		"a": {DestinationAmount: "500"},
		"b": {DestinationAmount: "100", IsBestQuote: true},
	}), "source flag wins")

	require.Equal(t, "a", TopAggregator(map[string]types.Quote{
		"a": {DestinationAmount: "100"},
		"b": {DestinationAmount: "100"},
	}), "ties go to the smallest id")

	require.Equal(t, "c", TopAggregator(map[string]types.Quote{
		"a": {DestinationAmount: "0x10"},
		"c": {DestinationAmount: "17"},
	}))
}
