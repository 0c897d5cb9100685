package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"wallet-swap/pkg/tokens"
	"wallet-swap/pkg/types"
)

const (
	// OneClickAggregator is the quote key of deposit-address quotes
	OneClickAggregator = "oneclick"

	oneClickChain = "eth"
	nativeSymbol  = "ETH"

	nativeTransferGas = 21000
	erc20TransferGas  = 100000
)

// ERC20 transfer function ABI
const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

// OneClickClient prices swaps through the 1Click intents API. Its quotes are
// deposits: the trade transaction sends the source asset to a one-off
// deposit address and the solver delivers the destination asset.
type OneClickClient struct {
	client   *oneclick.APIClient
	jwtToken string
	logger   *zap.Logger
	transfer abi.ABI
}

// NewOneClickClient creates a new 1Click API client
func NewOneClickClient(jwtToken, baseURL string, logger *zap.Logger) (*OneClickClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config := oneclick.NewConfiguration()
	if baseURL != "" {
		config.Servers = oneclick.ServerConfigurations{{URL: baseURL}}
	}

	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	return &OneClickClient{
		client:   oneclick.NewAPIClient(config),
		jwtToken: jwtToken,
		logger:   logger.Named("oneclick"),
		transfer: parsed,
	}, nil
}

// Name identifies this source in logs
func (c *OneClickClient) Name() string { return OneClickAggregator }

func (c *OneClickClient) authContext(ctx context.Context) context.Context {
	if c.jwtToken == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.jwtToken)
}

// GetSupportedTokens retrieves all supported tokens
func (c *OneClickClient) GetSupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.authContext(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return resp, nil
}

// findToken matches an EVM token on the 1Click list by contract address, or
// the chain's native asset by symbol when address is the zero address
func findToken(list []oneclick.TokenResponse, address, symbol string) (*oneclick.TokenResponse, error) {
	native := address == "" || common.HexToAddress(address) == (common.Address{})
	for i := range list {
		token := list[i]
		if !strings.EqualFold(token.GetBlockchain(), oneClickChain) {
			continue
		}
		contract := token.GetContractAddress()
		if native && contract == "" && strings.EqualFold(token.GetSymbol(), symbol) {
			return &token, nil
		}
		if !native && strings.EqualFold(contract, address) {
			return &token, nil
		}
	}
	return nil, fmt.Errorf("token '%s' not found on chain '%s'", symbol, oneClickChain)
}

// FetchQuotes asks 1Click for a deposit quote and shapes it like an
// aggregator trade. A pair 1Click does not support yields no quotes.
func (c *OneClickClient) FetchQuotes(ctx context.Context, params types.SwapRequestParams) (map[string]types.Quote, error) {
	list, err := c.GetSupportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	sourceToken, err := findToken(list, params.SourceToken, nativeSymbol)
	if err != nil {
		c.logger.Debug("source token unsupported", zap.String("token", params.SourceToken))
		return map[string]types.Quote{}, nil
	}
	destToken, err := findToken(list, params.DestinationToken, nativeSymbol)
	if err != nil {
		c.logger.Debug("destination token unsupported", zap.String("token", params.DestinationToken))
		return map[string]types.Quote{}, nil
	}

	amount, err := tokens.CalcTokenValue(params.Value, int(sourceToken.GetDecimals()))
	if err != nil {
		return nil, err
	}

	quote, err := c.getQuote(ctx, sourceToken, destToken, amount, params.FromAddress)
	if err != nil {
		return nil, err
	}

	details := quote.GetQuote()
	trade, gasLimit, err := c.depositTrade(params, details.GetDepositAddress(), amount)
	if err != nil {
		return nil, err
	}

	destDecimals := int(destToken.GetDecimals())
	destAmount, err := tokens.CalcTokenValue(details.GetAmountOutFormatted(), destDecimals)
	if err != nil {
		return nil, fmt.Errorf("invalid quoted amount: %w", err)
	}

	c.logger.Debug("received 1click quote",
		zap.String("deposit_address", details.GetDepositAddress()),
		zap.String("amount_out", details.GetAmountOutFormatted()),
	)

	return map[string]types.Quote{
		OneClickAggregator: {
			Aggregator:        OneClickAggregator,
			Trade:             trade,
			SourceAmount:      amount.String(),
			DestinationAmount: destAmount.String(),
			Decimals:          destDecimals,
			DepositAddress:    details.GetDepositAddress(),
			AverageGas:        gasLimit,
			MaxGas:            gasLimit,
		},
	}, nil
}

// depositTrade builds the transaction that funds the deposit address
func (c *OneClickClient) depositTrade(params types.SwapRequestParams, depositAddress string, amount *big.Int) (types.TxParams, uint64, error) {
	if !common.IsHexAddress(depositAddress) {
		return types.TxParams{}, 0, fmt.Errorf("invalid deposit address: %s", depositAddress)
	}

	if params.SourceToken == "" || common.HexToAddress(params.SourceToken) == (common.Address{}) {
		return types.TxParams{
			From:  params.FromAddress,
			To:    depositAddress,
			Value: hexutil.EncodeBig(amount),
		}, nativeTransferGas, nil
	}

	data, err := c.transfer.Pack("transfer", common.HexToAddress(depositAddress), amount)
	if err != nil {
		return types.TxParams{}, 0, fmt.Errorf("failed to pack transfer data: %w", err)
	}
	return types.TxParams{
		From:  params.FromAddress,
		To:    params.SourceToken,
		Data:  hexutil.Encode(data),
		Value: "0x0",
	}, erc20TransferGas, nil
}

// getQuote generates a swap quote
func (c *OneClickClient) getQuote(ctx context.Context, sourceToken, destToken *oneclick.TokenResponse, amount *big.Int, recipient string) (*oneclick.QuoteResponse, error) {
	if recipient == "" {
		return nil, fmt.Errorf("recipient address is required")
	}

	// Deposits not made within a day are refunded
	deadline := time.Now().Add(24 * time.Hour)

	quoteReq := oneclick.NewQuoteRequest(
		false,                    // dry - false to get a real deposit address
		"EXACT_INPUT",            // swapType
		100,                      // slippageTolerance (1%)
		sourceToken.GetAssetId(), // originAsset
		"ORIGIN_CHAIN",           // depositType
		destToken.GetAssetId(),   // destinationAsset
		amount.String(),          // amount in smallest unit
		recipient,                // refundTo
		"ORIGIN_CHAIN",           // refundType
		recipient,                // recipient
		"DESTINATION_CHAIN",      // recipientType
		deadline,                 // deadline
	)

	resp, httpResp, err := c.client.OneClickAPI.GetQuote(c.authContext(ctx)).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		if httpResp != nil {
			defer httpResp.Body.Close()
			return nil, apiError(httpResp.StatusCode, httpResp.Body, err)
		}
		return nil, fmt.Errorf("failed to get quote from API: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}

	return resp, nil
}

// apiError extracts the API's message from an error body
func apiError(status int, body io.Reader, cause error) error {
	bodyBytes, err := io.ReadAll(body)
	if err != nil || len(bodyBytes) == 0 {
		return fmt.Errorf("failed to get quote from API (status: %d): %w", status, cause)
	}

	var errorResp map[string]interface{}
	if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
		if message, ok := errorResp["message"].(string); ok {
			return fmt.Errorf("API error (status %d): %s", status, message)
		}
		if errs, ok := errorResp["errors"]; ok {
			return fmt.Errorf("API error (status %d): %v", status, errs)
		}
	}
	return fmt.Errorf("API error (status %d): %s", status, string(bodyBytes))
}

// SubmitDepositTx tells 1Click which transaction funded a deposit address
func (c *OneClickClient) SubmitDepositTx(ctx context.Context, depositAddress, txHash string) error {
	req := oneclick.NewSubmitDepositTxRequest(depositAddress, txHash)

	_, httpResp, err := c.client.OneClickAPI.SubmitDepositTx(c.authContext(ctx)).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return fmt.Errorf("failed to submit deposit: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 && httpResp.StatusCode != 201 {
		return fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return nil
}

// GetSwapStatus checks the execution status of a deposit-address swap
func (c *OneClickClient) GetSwapStatus(ctx context.Context, depositAddress string) (*oneclick.GetExecutionStatusResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetExecutionStatus(c.authContext(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return resp, nil
}
