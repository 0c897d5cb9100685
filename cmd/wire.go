package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wallet-swap/config"
	"wallet-swap/pkg/client"
	"wallet-swap/pkg/gas"
	"wallet-swap/pkg/logging"
	"wallet-swap/pkg/router"
	"wallet-swap/pkg/storage"
	"wallet-swap/pkg/swaps"
	"wallet-swap/pkg/telemetry"
	"wallet-swap/pkg/tokens"
	"wallet-swap/pkg/txn"
	"wallet-swap/pkg/types"
	"wallet-swap/pkg/wallet"
)

var errNoSigner = errors.New("no private key configured, set SWAPS_PRIVATE_KEY to send transactions")

// readOnlySender refuses to send, for commands that only read quotes
type readOnlySender struct{}

func (readOnlySender) Send(context.Context, types.TxParams) (string, error) {
	return "", errNoSigner
}

// app is the wired swap flow shared by the commands
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  storage.Store
	eth    *ethclient.Client

	swapsAPI *client.SwapsClient
	oneClick *client.OneClickClient
	gasCache *gas.Cache
	registry *tokens.Registry
	txs      *txn.Controller
	account  *wallet.NodeAccount
	router   *router.CLIRouter

	controller *swaps.Controller
}

// newApp builds every collaborator from configuration. signing requires a
// private key; otherwise the account address is enough.
func newApp(ctx context.Context, cmd *cobra.Command, signing bool) (*app, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireChain(signing); err != nil {
		return nil, err
	}

	logger, err := logging.New(verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(ctx, jsonOutput); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, quiet bool) error {
	cfg := a.cfg

	store, err := storage.Open(cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	a.store = store

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC: %w", err)
	}
	a.eth = eth

	a.swapsAPI = client.NewSwapsClient(cfg.APIBaseURL, cfg.GasAPIURL, cfg.RequestTimeout, a.logger)

	var priceSource gas.PriceSource = a.swapsAPI
	if cfg.GasAPIURL == "" {
		priceSource = gas.NewNodeSource(eth)
	}
	a.gasCache = gas.NewCache(store, priceSource, gas.WithLogger(a.logger))

	var extras []client.QuoteSource
	if cfg.OneClickJWTToken != "" {
		oneClick, err := client.NewOneClickClient(cfg.OneClickJWTToken, cfg.OneClickBaseURL, a.logger)
		if err != nil {
			return err
		}
		a.oneClick = oneClick
		extras = append(extras, oneClick)
	}
	quotes := client.NewAggregator(a.logger, a.swapsAPI, extras...)

	var sender txn.Sender = readOnlySender{}
	address := cfg.AccountAddress
	if cfg.PrivateKey != "" {
		evm, err := txn.NewEVMSender(eth, cfg.ChainID, cfg.PrivateKey, a.logger)
		if err != nil {
			return err
		}
		sender = evm
		address = evm.Address().Hex()
	}
	a.txs = txn.NewController(sender, store, a.logger)

	a.account, err = wallet.NewNodeAccount(eth, address, a.logger)
	if err != nil {
		return err
	}

	a.registry, err = tokens.NewRegistry(ctx, store, a.logger)
	if err != nil {
		return err
	}

	sinks := []telemetry.Sink{telemetry.NewLogSink(a.logger)}
	if promSink, err := telemetry.NewPrometheusSink(prometheus.DefaultRegisterer); err == nil {
		sinks = append(sinks, promSink)
	} else {
		a.logger.Debug("telemetry counters unavailable", zap.Error(err))
	}

	a.router = router.NewCLIRouter(os.Stdout, quiet)

	deps := swaps.Dependencies{
		Liveness:     a.swapsAPI,
		Quotes:       quotes,
		GasPrices:    a.gasCache,
		Estimator:    gas.NewNodeEstimator(eth),
		Transactions: a.txs,
		Tokens:       a.registry,
		Accounts:     a.account,
		Store:        store,
		Telemetry:    telemetry.NewEmitter(a.logger, sinks...),
		Navigator:    a.router,
	}
	if a.oneClick != nil {
		deps.Deposits = a.oneClick
	}

	a.controller, err = swaps.NewController(deps,
		swaps.WithLogger(a.logger),
		swaps.WithNativeSymbol(cfg.NativeSymbol),
		swaps.WithConversionRate(cfg.FiatConversionRate),
		swaps.WithPollInterval(cfg.QuotePollInterval),
	)
	if err != nil {
		return err
	}

	if _, err := a.controller.Restore(ctx); err != nil {
		a.logger.Warn("failed to restore swaps state", zap.Error(err))
	}
	return nil
}

// loadSwapsTokens refreshes the reference token list from the swaps API
func (a *app) loadSwapsTokens(ctx context.Context) error {
	list, err := a.swapsAPI.FetchTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch swaps tokens: %w", err)
	}
	a.registry.SetSwapsTokens(list)
	return nil
}

// resolveToken finds a token by symbol, the native asset included
func (a *app) resolveToken(ctx context.Context, symbol string) (types.Token, error) {
	if strings.EqualFold(symbol, a.cfg.NativeSymbol) {
		return a.controller.NativeToken(ctx)
	}
	token, ok := a.registry.FindSwapsTokenBySymbol(symbol)
	if !ok {
		return types.Token{}, fmt.Errorf("token %s is not swappable (try: wallet-swap tokens --symbol %s)", symbol, symbol)
	}
	return token, nil
}

// selectPair resolves both tokens of a swap command and records them along
// with the balance error flag
func (a *app) selectPair(ctx context.Context, swapReq *types.SwapCommand) error {
	from, err := a.resolveToken(ctx, swapReq.SourceToken)
	if err != nil {
		return err
	}
	to, err := a.resolveToken(ctx, swapReq.DestToken)
	if err != nil {
		return err
	}

	a.controller.SelectFromToken(from)
	a.controller.SelectToToken(to)

	balanceError := false
	if from.Balance != "" {
		want, err := tokens.CalcTokenValue(swapReq.Amount, from.Decimals)
		if err != nil {
			return err
		}
		have, err := tokens.ParseQuantity(from.Balance)
		if err != nil {
			return err
		}
		balanceError = want.Cmp(have) > 0
	}
	a.controller.SetBalanceError(balanceError)
	return nil
}

// Close releases everything newApp opened
func (a *app) Close() {
	if a.controller != nil {
		a.controller.Close()
	}
	if a.router != nil {
		a.router.Close()
	}
	if a.eth != nil {
		a.eth.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
