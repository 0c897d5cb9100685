package swaps

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wallet-swap/pkg/gas"
	"wallet-swap/pkg/router"
	"wallet-swap/pkg/telemetry"
	"wallet-swap/pkg/tokens"
	"wallet-swap/pkg/types"
)

// NativeTokenAddress stands for the chain's native asset in swap requests
const NativeTokenAddress = "0x0000000000000000000000000000000000000000"

// NativeToken describes the native asset with the selected account's balance
func (c *Controller) NativeToken(ctx context.Context) (types.Token, error) {
	account, err := c.deps.Accounts.SelectedAccount(ctx)
	if err != nil {
		return types.Token{}, err
	}
	return c.nativeTokenFor(account)
}

func (c *Controller) nativeTokenFor(account types.Account) (types.Token, error) {
	balance, err := tokens.ParseQuantity(account.Balance)
	if err != nil {
		return types.Token{}, fmt.Errorf("invalid account balance: %w", err)
	}
	display, err := tokens.CalcTokenAmount(account.Balance, tokens.DefaultDecimals)
	if err != nil {
		return types.Token{}, err
	}
	return types.Token{
		Address:  NativeTokenAddress,
		Symbol:   c.nativeSymbol,
		Decimals: tokens.DefaultDecimals,
		Balance:  balance.String(),
		String:   display.StringFixed(4),
	}, nil
}

func (c *Controller) isNative(symbol string) bool {
	return strings.EqualFold(symbol, c.nativeSymbol)
}

// FetchQuotes runs one quote fetch cycle for inputValue whole source tokens.
// Collaborator failures end up in the state's error key; the returned error
// is reserved for misuse.
func (c *Controller) FetchQuotes(ctx context.Context, inputValue string, maxSlippage float64) error {
	if !c.gate(ctx) {
		return nil
	}

	gen := c.beginCycle()
	log := c.logger.With(zap.Uint64("generation", gen))
	state := c.State()

	account, err := c.deps.Accounts.SelectedAccount(ctx)
	if err != nil {
		log.Warn("failed to read selected account", zap.Error(err))
		c.failFetch(ctx, gen)
		return nil
	}

	fromToken, toToken, err := c.resolveTokens(state, account)
	if err != nil {
		log.Warn("failed to resolve swap tokens", zap.Error(err))
		c.failFetch(ctx, gen)
		return nil
	}

	c.dispatch(RouteStateSet{Cycle: Cycle{gen}, RouteState: types.RouteStateLoading})
	c.deps.Navigator.Navigate(router.LoadingQuotes)
	c.dispatch(FetchStarted{Cycle: Cycle{gen}, FromToken: fromToken})

	destinationTokenAddedForSwap := false
	if !c.isNative(toToken.Symbol) && !c.deps.Tokens.HasExchangeRate(toToken.Address) {
		destinationTokenAddedForSwap = true
		if err := c.deps.Tokens.AddToken(ctx, toToken.Address, toToken.Symbol, toToken.Decimals, toToken.IconURL, true); err != nil {
			log.Warn("failed to register destination token", zap.Error(err))
			c.failFetch(ctx, gen)
			return nil
		}
	}
	if !c.isNative(fromToken.Symbol) && !c.deps.Tokens.HasExchangeRate(fromToken.Address) && hasPositiveBalance(fromToken) {
		c.registerInBackground(fromToken)
	}

	swapsTokens := c.deps.Tokens.SwapsTokens()
	sourceTokenInfo, ok := tokens.FindByAddress(swapsTokens, fromToken.Address)
	if !ok {
		sourceTokenInfo = fromToken
	}
	destinationTokenInfo, ok := tokens.FindByAddress(swapsTokens, toToken.Address)
	if !ok {
		destinationTokenInfo = toToken
	}

	props := requestProperties(fromToken.Symbol, inputValue, toToken.Symbol, state.BalanceError, maxSlippage)
	props["anonymizedData"] = true
	c.deps.Telemetry.Emit(telemetry.EventQuotesRequested, props)

	fetchStart := c.now().UnixMilli()
	c.dispatch(FetchStartTimeRecorded{Cycle: Cycle{gen}, At: fetchStart})

	request := types.SwapRequestParams{
		Slippage:                     maxSlippage,
		SourceToken:                  fromToken.Address,
		DestinationToken:             toToken.Address,
		Value:                        inputValue,
		FromAddress:                  account.Address,
		DestinationTokenAddedForSwap: destinationTokenAddedForSwap,
		BalanceError:                 state.BalanceError,
		SourceDecimals:               fromToken.Decimals,
	}
	fetchParams := types.FetchParams{
		SwapRequestParams: request,
		MetaData: types.FetchMetadata{
			SourceTokenInfo:      sourceTokenInfo,
			DestinationTokenInfo: destinationTokenInfo,
			AccountBalance:       account.Balance,
		},
	}

	var result types.QuoteResult
	var g errgroup.Group
	g.Go(func() error {
		res, err := c.deps.Quotes.FetchQuotes(ctx, request)
		if err != nil {
			return fmt.Errorf("quotes: %w", err)
		}
		result = res
		c.dispatch(QuotesReceived{Cycle: Cycle{gen}, Result: res, FetchParams: fetchParams, At: c.now().UnixMilli()})
		return nil
	})
	g.Go(func() error {
		if err := c.refreshGasPrice(ctx, gen); err != nil {
			return fmt.Errorf("gas prices: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Warn("quote fetch cycle failed", zap.Error(err))
		c.failFetch(ctx, gen)
		return nil
	}
	if !c.current(gen) {
		log.Debug("fetch cycle superseded")
		return nil
	}

	if len(result.Quotes) == 0 {
		c.dispatch(ErrorKeySet{Cycle: Cycle{gen}, Key: types.QuotesNotAvailableError})
		c.deps.Telemetry.Emit(telemetry.EventNoQuotesAvailable,
			requestProperties(fromToken.Symbol, inputValue, toToken.Symbol, state.BalanceError, maxSlippage))
	} else {
		selected, ok := result.Quotes[result.TopAggID]
		if !ok {
			log.Warn("fetch result has no top quote", zap.String("top_agg_id", result.TopAggID))
			c.failFetch(ctx, gen)
			return nil
		}

		tokenToAmount, err := tokens.CalcTokenAmount(selected.DestinationAmount, selected.Decimals)
		if err != nil {
			log.Warn("invalid destination amount", zap.Error(err))
			c.failFetch(ctx, gen)
			return nil
		}

		props := requestProperties(fromToken.Symbol, inputValue, toToken.Symbol, state.BalanceError, maxSlippage)
		props["token_to_amount"] = tokenToAmount.String()
		props["response_time"] = c.now().UnixMilli() - fetchStart
		props["best_quote_source"] = selected.Aggregator
		props["available_quotes"] = len(result.Quotes)
		props["anonymizedData"] = true
		c.deps.Telemetry.Emit(telemetry.EventQuotesReceived, props)

		c.recordExchangeRate(ctx, fromToken, toToken, inputValue, tokenToAmount)

		c.setInitialGasEstimate(ctx, gen, result.TopAggID, selected)
	}

	c.dispatch(FetchFinished{Cycle: Cycle{gen}})
	if c.current(gen) {
		if c.State().ErrorKey == "" {
			c.deps.Navigator.Navigate(router.ViewQuote)
		} else {
			c.deps.Navigator.Navigate(router.SwapsError)
		}
		c.persistBackground(ctx)
	}
	return nil
}

// resolveTokens picks the from and to tokens of a cycle: explicit selections
// first, then the previous cycle's tokens. A native source token is rebuilt
// so its balance is current.
func (c *Controller) resolveTokens(s State, account types.Account) (types.Token, types.Token, error) {
	var fromFallback, toFallback *types.Token
	if s.FetchParams != nil {
		src := s.FetchParams.MetaData.SourceTokenInfo
		if c.isNative(src.Symbol) {
			native, err := c.nativeTokenFor(account)
			if err != nil {
				return types.Token{}, types.Token{}, err
			}
			src = native
		}
		if !src.IsZero() {
			fromFallback = &src
		}
		dst := s.FetchParams.MetaData.DestinationTokenInfo
		if !dst.IsZero() {
			toFallback = &dst
		}
	}

	from := s.FromToken
	if from == nil {
		from = fromFallback
	}
	to := s.ToToken
	if to == nil {
		to = toFallback
	}
	if from == nil || to == nil {
		return types.Token{}, types.Token{}, fmt.Errorf("source and destination tokens must be selected")
	}
	return *from, *to, nil
}

// refreshGasPrice reads gas estimates through the cache and pushes the fast
// price into the custom gas price
func (c *Controller) refreshGasPrice(ctx context.Context, gen uint64) error {
	c.dispatch(GasEstimatesLoading{})

	snap, err := c.deps.GasPrices.GetGasPriceEstimates(ctx)
	if err != nil {
		return err
	}
	c.dispatch(GasEstimatesCommitted{Estimates: snap.Estimates, LastRetrieved: snap.RetrievedAt})

	fast, err := gas.DecGWEIToHexWEI(snap.Estimates.Fast)
	if err != nil {
		return err
	}
	c.dispatch(TxGasPriceSet{Cycle: Cycle{gen}, Price: fast})
	return nil
}

// setInitialGasEstimate simulates the top quote's trade. A failed simulation
// leaves the quote's own estimate in place.
func (c *Controller) setInitialGasEstimate(ctx context.Context, gen uint64, aggID string, quote types.Quote) {
	if c.deps.Estimator == nil {
		return
	}
	estimate, err := c.deps.Estimator.EstimateTradeGas(ctx, quote)
	if err != nil {
		c.logger.Debug("trade gas simulation failed", zap.String("aggregator", aggID), zap.Error(err))
		return
	}
	c.dispatch(InitialGasEstimated{Cycle: Cycle{gen}, AggID: aggID, GasEstimate: estimate})
}

// recordExchangeRate prices the non-native side of the pair in the native
// asset from the top quote, so the token counts as known on later fetches
func (c *Controller) recordExchangeRate(ctx context.Context, from, to types.Token, inputValue string, toAmount decimal.Decimal) {
	fromAmount, err := decimal.NewFromString(inputValue)
	if err != nil || fromAmount.IsZero() || toAmount.IsZero() {
		return
	}

	var address string
	var rate decimal.Decimal
	switch {
	case c.isNative(from.Symbol) && !c.isNative(to.Symbol):
		address, rate = to.Address, fromAmount.Div(toAmount)
	case c.isNative(to.Symbol) && !c.isNative(from.Symbol):
		address, rate = from.Address, toAmount.Div(fromAmount)
	default:
		return
	}

	if err := c.deps.Tokens.SetExchangeRate(ctx, address, rate); err != nil {
		c.logger.Warn("failed to record exchange rate", zap.String("address", address), zap.Error(err))
	}
}

func (c *Controller) registerInBackground(token types.Token) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		err := c.deps.Tokens.AddToken(context.Background(), token.Address, token.Symbol, token.Decimals, token.IconURL, true)
		if err != nil {
			c.logger.Warn("failed to register source token", zap.String("address", token.Address), zap.Error(err))
		}
	}()
}

func (c *Controller) failFetch(ctx context.Context, gen uint64) {
	c.dispatch(ErrorKeySet{Cycle: Cycle{gen}, Key: types.ErrorFetchingQuotes})
	c.dispatch(FetchFinished{Cycle: Cycle{gen}})
	if c.current(gen) {
		c.deps.Navigator.Navigate(router.SwapsError)
		c.persistBackground(ctx)
	}
}

func hasPositiveBalance(token types.Token) bool {
	balance, err := tokens.ParseQuantity(token.Balance)
	return err == nil && balance.Sign() > 0
}

func requestProperties(fromSymbol, inputValue, toSymbol string, balanceError bool, slippage float64) map[string]any {
	requestType := "Order"
	if balanceError {
		requestType = "Quote"
	}
	return map[string]any{
		"token_from":        fromSymbol,
		"token_from_amount": inputValue,
		"token_to":          toSymbol,
		"request_type":      requestType,
		"slippage":          slippage,
		"custom_slippage":   slippage != DefaultSlippage,
	}
}
