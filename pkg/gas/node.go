package gas

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"wallet-swap/pkg/tokens"
	"wallet-swap/pkg/types"
)

// ChainReader is the part of ethclient.Client gas estimation needs
type ChainReader interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// NodeSource derives gas price estimates from an RPC node when no gas
// price API is configured
type NodeSource struct {
	client ChainReader
}

// NewNodeSource creates a price source backed by client
func NewNodeSource(client ChainReader) *NodeSource {
	return &NodeSource{client: client}
}

// FetchGasPrices returns safeLow, average and fast estimates in GWEI
func (s *NodeSource) FetchGasPrices(ctx context.Context) (types.PriceEstimates, error) {
	suggested, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return types.PriceEstimates{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	header, err := s.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return types.PriceEstimates{}, fmt.Errorf("failed to get latest header: %w", err)
	}

	// Pre-London chains have no base fee
	if header.BaseFee == nil {
		fast := new(big.Int).Mul(suggested, big.NewInt(5))
		fast.Quo(fast, big.NewInt(4))
		return types.PriceEstimates{
			SafeLow: WeiToGwei(suggested),
			Average: WeiToGwei(suggested),
			Fast:    WeiToGwei(fast),
		}, nil
	}

	tip, err := s.client.SuggestGasTipCap(ctx)
	if err != nil {
		return types.PriceEstimates{}, fmt.Errorf("failed to get gas tip cap: %w", err)
	}

	safeLow := new(big.Int).Add(header.BaseFee, tip)
	fast := new(big.Int).Mul(header.BaseFee, big.NewInt(2))
	fast.Add(fast, tip)
	if fast.Cmp(suggested) < 0 {
		fast = suggested
	}

	return types.PriceEstimates{
		SafeLow: WeiToGwei(safeLow),
		Average: WeiToGwei(suggested),
		Fast:    WeiToGwei(fast),
	}, nil
}

// NodeEstimator estimates the gas a trade will use by simulating it
type NodeEstimator struct {
	client ChainReader
}

// NewNodeEstimator creates an estimator backed by client
func NewNodeEstimator(client ChainReader) *NodeEstimator {
	return &NodeEstimator{client: client}
}

// EstimateTradeGas returns the simulated gas use of the quote's trade as hex
func (e *NodeEstimator) EstimateTradeGas(ctx context.Context, quote types.Quote) (string, error) {
	trade := quote.Trade
	if !common.IsHexAddress(trade.To) {
		return "", fmt.Errorf("invalid trade recipient: %s", trade.To)
	}
	to := common.HexToAddress(trade.To)

	msg := ethereum.CallMsg{
		From: common.HexToAddress(trade.From),
		To:   &to,
	}
	if trade.Data != "" {
		data, err := hexutil.Decode(trade.Data)
		if err != nil {
			return "", fmt.Errorf("invalid trade data: %w", err)
		}
		msg.Data = data
	}
	if trade.Value != "" {
		value, err := tokens.ParseQuantity(trade.Value)
		if err != nil {
			return "", fmt.Errorf("invalid trade value: %w", err)
		}
		msg.Value = value
	}

	estimate, err := e.client.EstimateGas(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("failed to estimate trade gas: %w", err)
	}
	return hexutil.EncodeUint64(estimate), nil
}
