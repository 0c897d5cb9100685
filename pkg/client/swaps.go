package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"wallet-swap/pkg/tokens"
	"wallet-swap/pkg/types"
)

// quoteTimeoutMs is how long the swaps API waits on aggregators per request
const quoteTimeoutMs = 10000

// ErrUnexpectedStatus is wrapped by every non-2xx response
var ErrUnexpectedStatus = errors.New("unexpected status code")

// SwapsClient talks to the swaps REST API: feature liveness, the swappable
// token list, aggregator trades and gas prices
type SwapsClient struct {
	baseURL    string
	gasURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSwapsClient creates a client for the API at baseURL. gasURL may be
// empty when gas prices come from elsewhere.
func NewSwapsClient(baseURL, gasURL string, timeout time.Duration, logger *zap.Logger) *SwapsClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SwapsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		gasURL:     gasURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("swaps-api"),
	}
}

// FetchLiveness reports whether the swaps feature is switched on
func (c *SwapsClient) FetchLiveness(ctx context.Context) (bool, error) {
	var resp struct {
		Active bool `json:"active"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/featureFlag", &resp); err != nil {
		return false, fmt.Errorf("failed to fetch liveness: %w", err)
	}
	return resp.Active, nil
}

// FetchTokens returns the swappable token list
func (c *SwapsClient) FetchTokens(ctx context.Context) ([]types.Token, error) {
	var list []types.Token
	if err := c.getJSON(ctx, c.baseURL+"/tokens", &list); err != nil {
		return nil, fmt.Errorf("failed to fetch tokens: %w", err)
	}

	valid := list[:0]
	for _, t := range list {
		if !common.IsHexAddress(t.Address) || t.Symbol == "" {
			c.logger.Debug("skipping malformed token", zap.String("address", t.Address))
			continue
		}
		valid = append(valid, t)
	}
	return valid, nil
}

// tradeResponse is one aggregator entry of the /trades response
type tradeResponse struct {
	types.Quote
	Error json.RawMessage `json:"error,omitempty"`
}

// Name identifies this source in logs
func (c *SwapsClient) Name() string { return "swaps-api" }

// FetchQuotes requests aggregator trades for params, keyed by aggregator.
// Aggregators that answered with an error are left out.
func (c *SwapsClient) FetchQuotes(ctx context.Context, params types.SwapRequestParams) (map[string]types.Quote, error) {
	sourceAmount, err := tokens.CalcTokenValue(params.Value, params.SourceDecimals)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("destinationToken", params.DestinationToken)
	q.Set("sourceToken", params.SourceToken)
	q.Set("sourceAmount", sourceAmount.String())
	q.Set("slippage", strconv.FormatFloat(params.Slippage, 'f', -1, 64))
	q.Set("timeout", strconv.Itoa(quoteTimeoutMs))
	q.Set("walletAddress", params.FromAddress)
	if params.BalanceError {
		q.Set("balanceError", "true")
	}

	var trades []tradeResponse
	if err := c.getJSON(ctx, c.baseURL+"/trades?"+q.Encode(), &trades); err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}

	quotes := make(map[string]types.Quote, len(trades))
	for _, t := range trades {
		if len(t.Error) > 0 && string(t.Error) != "null" {
			c.logger.Debug("aggregator returned an error",
				zap.String("aggregator", t.Aggregator),
				zap.ByteString("error", t.Error),
			)
			continue
		}
		if t.Aggregator == "" || t.Trade.To == "" {
			continue
		}
		quote := t.Quote
		quote.Trade.From = params.FromAddress
		if quote.SourceAmount == "" {
			quote.SourceAmount = sourceAmount.String()
		}
		quotes[quote.Aggregator] = quote
	}

	return quotes, nil
}

// gasPriceResponse is the gas API's payload, all values in GWEI
type gasPriceResponse struct {
	SafeGasPrice    string `json:"SafeGasPrice"`
	ProposeGasPrice string `json:"ProposeGasPrice"`
	FastGasPrice    string `json:"FastGasPrice"`
}

// FetchGasPrices returns the gas API's estimates in decimal GWEI
func (c *SwapsClient) FetchGasPrices(ctx context.Context) (types.PriceEstimates, error) {
	if c.gasURL == "" {
		return types.PriceEstimates{}, fmt.Errorf("gas API URL not configured")
	}

	var resp gasPriceResponse
	if err := c.getJSON(ctx, c.gasURL, &resp); err != nil {
		return types.PriceEstimates{}, fmt.Errorf("failed to fetch gas prices: %w", err)
	}
	if resp.FastGasPrice == "" {
		return types.PriceEstimates{}, fmt.Errorf("gas API response missing fast price")
	}

	return types.PriceEstimates{
		SafeLow: resp.SafeGasPrice,
		Average: resp.ProposeGasPrice,
		Fast:    resp.FastGasPrice,
	}, nil
}

func (c *SwapsClient) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
