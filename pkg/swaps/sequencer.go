package swaps

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wallet-swap/pkg/gas"
	"wallet-swap/pkg/router"
	"wallet-swap/pkg/telemetry"
	"wallet-swap/pkg/tokens"
	"wallet-swap/pkg/txn"
	"wallet-swap/pkg/types"
)

// ErrNoQuote is returned by ExecuteSwap when no quote has been fetched
var ErrNoQuote = errors.New("no quote to swap with")

// ExecuteSwap submits the used quote: the approval transaction first when
// the quote needs one, then the trade. A failed approval stops the sequence
// before the trade is created. Transaction failures end in the SWAP_FAILED
// error key and the error screen.
func (c *Controller) ExecuteSwap(ctx context.Context) error {
	if !c.gate(ctx) {
		return nil
	}

	state := c.State()
	aggID := usedAggID(state)
	usedQuote, ok := UsedQuote(state)
	if !ok || state.FetchParams == nil {
		return ErrNoQuote
	}

	gen := c.beginCycle()
	log := c.logger.With(zap.Uint64("generation", gen), zap.String("aggregator", aggID))

	c.dispatch(RouteStateSet{Cycle: Cycle{gen}, RouteState: types.RouteStateAwaiting})
	c.poller.Stop()
	c.deps.Navigator.Navigate(router.AwaitingSwap)

	fastPrice := gas.FastPriceHexWEI(state.CustomGas.PriceEstimates)
	params, err := gas.Calculate(usedQuote, gas.Overrides{
		Price: state.CustomGas.Price,
		Limit: state.CustomGas.Limit,
	}, fastPrice)
	if err != nil {
		log.Warn("failed to calculate gas parameters", zap.Error(err))
		c.failSwap(ctx, gen)
		return nil
	}
	c.dispatch(GasParamsApplied{Cycle: Cycle{gen}, AggID: aggID, Gas: params.Limit, GasPrice: params.Price})

	tradeParams := usedQuote.Trade
	tradeParams.Gas = params.Limit
	tradeParams.GasPrice = params.Price

	fetchParams := *state.FetchParams
	sourceTokenInfo := fetchParams.MetaData.SourceTokenInfo
	destinationTokenInfo := fetchParams.MetaData.DestinationTokenInfo

	swapMetaData, err := c.swapMetaData(state, usedQuote, params, fastPrice)
	if err != nil {
		log.Warn("failed to build swap summary", zap.Error(err))
		c.failSwap(ctx, gen)
		return nil
	}
	c.deps.Telemetry.Emit(telemetry.EventSwapStarted, swapMetaData)

	var approvalTxID string
	if approveParams := ApproveTxParams(state); approveParams != nil {
		meta, err := c.deps.Transactions.AddUnapprovedTransaction(ctx, *approveParams, txn.OriginWallet)
		if err != nil {
			log.Warn("failed to add approval transaction", zap.Error(err))
			c.failSwap(ctx, gen)
			return nil
		}
		c.dispatch(ApproveTxIDSet{Cycle: Cycle{gen}, ID: meta.ID})

		meta.TransactionCategory = txn.CategorySwapApproval
		meta.SourceTokenSymbol = sourceTokenInfo.Symbol
		final, err := c.deps.Transactions.UpdateTransaction(ctx, *meta)
		if err != nil {
			log.Warn("failed to annotate approval transaction", zap.Error(err))
			c.failSwap(ctx, gen)
			return nil
		}
		if err := c.deps.Transactions.UpdateAndApproveTx(ctx, *final); err != nil {
			log.Warn("approval transaction failed", zap.String("tx_id", final.ID), zap.Error(err))
			c.failSwap(ctx, gen)
			return nil
		}
		approvalTxID = final.ID
	}

	meta, err := c.deps.Transactions.AddUnapprovedTransaction(ctx, tradeParams, txn.OriginWallet)
	if err != nil {
		log.Warn("failed to add trade transaction", zap.Error(err))
		c.failSwap(ctx, gen)
		return nil
	}
	c.dispatch(TradeTxIDSet{Cycle: Cycle{gen}, ID: meta.ID})

	meta.SourceTokenSymbol = sourceTokenInfo.Symbol
	meta.DestinationTokenSymbol = destinationTokenInfo.Symbol
	meta.TransactionCategory = txn.CategorySwap
	meta.DestinationTokenDecimals = destinationTokenInfo.Decimals
	meta.DestinationTokenAddress = destinationTokenInfo.Address
	meta.SwapMetaData = swapMetaData
	meta.SwapTokenValue = fetchParams.Value
	meta.ApprovalTxID = approvalTxID
	final, err := c.deps.Transactions.UpdateTransaction(ctx, *meta)
	if err != nil {
		log.Warn("failed to annotate trade transaction", zap.Error(err))
		c.failSwap(ctx, gen)
		return nil
	}
	if err := c.deps.Transactions.UpdateAndApproveTx(ctx, *final); err != nil {
		log.Warn("trade transaction failed", zap.String("tx_id", final.ID), zap.Error(err))
		c.failSwap(ctx, gen)
		return nil
	}

	if err := c.deps.Accounts.ForceUpdate(ctx); err != nil {
		log.Warn("failed to refresh wallet state", zap.Error(err))
	}
	c.notifyDeposit(ctx, usedQuote, final.ID)

	if c.current(gen) {
		c.deps.Navigator.Navigate(router.SwapComplete)
		c.finishSwap(ctx)
	}
	log.Info("swap completed", zap.String("trade_tx_id", final.ID), zap.String("approval_tx_id", approvalTxID))
	return nil
}

// swapMetaData is the Swap Started property set, also stored on the trade
// transaction
func (c *Controller) swapMetaData(s State, used types.Quote, params gas.Params, fastPrice string) (map[string]any, error) {
	fetchParams := s.FetchParams
	destinationTokenInfo := fetchParams.MetaData.DestinationTokenInfo

	destinationValue, err := tokens.CalcTokenAmount(used.DestinationAmount, destinationTokenInfo.Decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid destination amount: %w", err)
	}

	totalGas, err := gas.RefundedGasEstimate(used)
	if err != nil {
		return nil, err
	}
	gasFees, err := gas.FeeInFiat(totalGas, params.Price, c.conversionRate)
	if err != nil {
		return nil, err
	}

	usedPrice, err := gas.HexWEIToDecGWEI(params.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid used gas price: %w", err)
	}
	suggestedPrice := decimal.Zero
	if fastPrice != "" {
		if suggestedPrice, err = gas.HexWEIToDecGWEI(fastPrice); err != nil {
			return nil, fmt.Errorf("invalid suggested gas price: %w", err)
		}
	}

	var bestSource string
	if top, ok := TopQuote(s); ok {
		bestSource = top.Aggregator
	}
	otherSelected := used.Aggregator != bestSource
	otherSource := ""
	if otherSelected {
		otherSource = used.Aggregator
	}

	var averageSavings any
	if used.IsBestQuote && used.Savings != nil && used.Savings.Total != "" {
		total, err := decimal.NewFromString(used.Savings.Total)
		if err != nil {
			return nil, fmt.Errorf("invalid savings total: %w", err)
		}
		averageSavings = total.Mul(c.conversionRate).StringFixed(2)
	}

	return map[string]any{
		"token_from":                  fetchParams.MetaData.SourceTokenInfo.Symbol,
		"token_from_amount":           fetchParams.Value,
		"token_to":                    destinationTokenInfo.Symbol,
		"token_to_amount":             tokens.ToPrecision(destinationValue, 8),
		"slippage":                    fetchParams.Slippage,
		"custom_slippage":             fetchParams.Slippage != DefaultSlippage,
		"best_quote_source":           bestSource,
		"available_quotes":            len(s.QuoteSet.Quotes),
		"other_quote_selected":        otherSelected,
		"other_quote_selected_source": otherSource,
		"gas_fees":                    gasFees.StringFixed(2),
		"estimated_gas":               params.Estimate.String(),
		"suggested_gas_price":         suggestedPrice.String(),
		"used_gas_price":              usedPrice.String(),
		"average_savings":             averageSavings,
	}, nil
}

// notifyDeposit tells the intent service which transaction funded a
// deposit-address quote
func (c *Controller) notifyDeposit(ctx context.Context, quote types.Quote, tradeTxID string) {
	if c.deps.Deposits == nil || quote.DepositAddress == "" {
		return
	}
	meta, ok := c.deps.Transactions.Get(tradeTxID)
	if !ok || meta.Hash == "" {
		return
	}
	if err := c.deps.Deposits.SubmitDepositTx(ctx, quote.DepositAddress, meta.Hash); err != nil {
		c.logger.Warn("failed to submit deposit transaction",
			zap.String("deposit_address", quote.DepositAddress),
			zap.String("tx_hash", meta.Hash),
			zap.Error(err),
		)
	}
}

func (c *Controller) failSwap(ctx context.Context, gen uint64) {
	c.dispatch(ErrorKeySet{Cycle: Cycle{gen}, Key: types.SwapFailedError})
	if c.current(gen) {
		c.deps.Navigator.Navigate(router.SwapsError)
		c.finishSwap(ctx)
	}
}

// finishSwap ends the swap session once the sequence has an outcome. The
// quotes and transaction ids stay in memory for the caller to report, but
// custom gas is dropped and nothing is left on disk for the next session.
func (c *Controller) finishSwap(ctx context.Context) {
	c.dispatch(CustomGasReset{})
	if err := c.deps.Store.Delete(ctx, BackgroundStateKey); err != nil {
		c.logger.Warn("failed to clear swaps state", zap.Error(err))
	}
}
