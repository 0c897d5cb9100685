package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/gas"
	"wallet-swap/pkg/parser"
	"wallet-swap/pkg/swaps"
	"wallet-swap/pkg/tokens"
	"wallet-swap/pkg/types"
)

var (
	swapSlippage   float64
	aggregatorID   string
	customGasPrice string
	customGasLimit uint64
	noConfirm      bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Swap tokens using the best available quote",
	Long: `Fetch quotes, pick one and send the swap from your account.

Tokens that need an allowance get an approval transaction first; the trade
is only sent once the approval is confirmed.

Examples:
  wallet-swap swap 1 ETH to DAI
  wallet-swap swap 100 USDC to ETH --slippage 1
  wallet-swap swap 1 ETH to DAI --aggregator oneclick
  wallet-swap swap 1 ETH to DAI --gas-price 35 --gas-limit 300000 --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().Float64Var(&swapSlippage, "slippage", 0, "Maximum slippage in percent (default from config)")
	swapCmd.Flags().StringVar(&aggregatorID, "aggregator", "", "Use this aggregator's quote instead of the best one")
	swapCmd.Flags().StringVar(&customGasPrice, "gas-price", "", "Gas price in gwei")
	swapCmd.Flags().Uint64Var(&customGasLimit, "gas-limit", 0, "Gas limit")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runSwap(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	swapReq, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	slippage := swapSlippage
	if slippage == 0 {
		slippage = a.cfg.DefaultSlippage
	}

	if err := fetchForCommand(ctx, a, swapReq, slippage); err != nil {
		printError(err)
		os.Exit(1)
	}
	if a.controller.State().BalanceError {
		printError(fmt.Errorf("insufficient %s balance for %s %s", swapReq.SourceToken, swapReq.Amount, swapReq.SourceToken))
		os.Exit(1)
	}

	if aggregatorID != "" && !a.controller.SelectQuote(aggregatorID) {
		printError(fmt.Errorf("no quote from aggregator %q", aggregatorID))
		os.Exit(1)
	}
	if err := applyGasFlags(a.controller); err != nil {
		printError(err)
		os.Exit(1)
	}

	s := a.controller.State()
	if lowGasPriceWarning(customGasPrice, s) {
		color.Yellow("Warning: gas price %s gwei is below the network average, the swap may be slow to confirm.", customGasPrice)
	}
	if !jsonOutput {
		printQuotes(s, swapReq, false)
		displaySwap(s, swapReq)
	}

	// Ask for confirmation
	if !noConfirm && !jsonOutput {
		if !confirmSwap() {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	if err := a.controller.ExecuteSwap(ctx); err != nil {
		printError(err)
		os.Exit(1)
	}

	s = a.controller.State()
	if jsonOutput {
		output := map[string]interface{}{
			"approval_tx_id": s.ApproveTxID,
			"trade_tx_id":    s.TradeTxID,
			"error":          s.ErrorKey,
		}
		if meta, ok := a.txs.Get(s.TradeTxID); ok {
			output["trade_tx_hash"] = meta.Hash
			output["status"] = meta.Status
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayResult(a, s)
	}

	if s.ErrorKey != "" {
		os.Exit(1)
	}
}

func applyGasFlags(c *swaps.Controller) error {
	if customGasPrice != "" {
		price, err := gas.DecGWEIToHexWEI(customGasPrice)
		if err != nil {
			return err
		}
		c.SetCustomGasPrice(price)
	}
	if customGasLimit > 0 {
		c.SetCustomGasLimit(hexutil.EncodeUint64(customGasLimit))
	}
	return nil
}

func displaySwap(s swaps.State, swapReq *types.SwapCommand) {
	used, ok := swaps.UsedQuote(s)
	if !ok {
		return
	}
	trade := swaps.TradeTxParams(s)

	fmt.Println(strings.Repeat("=", 70))
	color.Green("                              SWAP")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("\n  Aggregator:   %s\n", color.CyanString(used.Aggregator))
	fmt.Printf("  From:         %s %s\n", swapReq.Amount, color.YellowString(swapReq.SourceToken))
	if s.FetchParams != nil {
		amount, err := tokens.CalcTokenAmount(used.DestinationAmount, s.FetchParams.MetaData.DestinationTokenInfo.Decimals)
		if err == nil {
			fmt.Printf("  To:           ~%s %s\n", tokens.ToPrecision(amount, 8), color.YellowString(swapReq.DestToken))
		}
	}
	if used.ApprovalNeeded != nil {
		fmt.Printf("  Approval:     %s\n", color.MagentaString("required, sent before the trade"))
	}
	if used.DepositAddress != "" {
		fmt.Printf("  Deposit To:   %s\n", color.CyanString(used.DepositAddress))
	}
	if trade != nil && trade.GasPrice != "" {
		if gwei, err := gas.HexWEIToDecGWEI(trade.GasPrice); err == nil {
			fmt.Printf("  Gas Price:    %s gwei\n", gwei.String())
		}
	}
	fmt.Println("\n" + strings.Repeat("=", 70))
}

func displayResult(a *app, s swaps.State) {
	if s.ErrorKey != "" {
		color.Red("\nSwap failed (%s).", s.ErrorKey)
		if s.ApproveTxID != "" && s.TradeTxID == "" {
			color.Yellow("The approval transaction %s did not complete; no trade was sent.", s.ApproveTxID)
		} else if s.ApproveTxID != "" {
			color.Yellow("The token allowance from approval %s is still in place.", s.ApproveTxID)
		}
		return
	}

	if approval, ok := a.txs.Get(s.ApproveTxID); ok {
		fmt.Printf("  Approval Tx:  %s\n", color.HiBlackString(approval.Hash))
	}
	if trade, ok := a.txs.Get(s.TradeTxID); ok {
		fmt.Printf("  Trade Tx:     %s\n", color.HiBlackString(trade.Hash))
	}
	printSuccess(color.GreenString("Swap complete."))

	if used, ok := swaps.UsedQuote(s); ok && used.DepositAddress != "" {
		fmt.Println("You can monitor the swap status using:")
		color.Cyan("  wallet-swap status %s\n", used.DepositAddress)
	}
}

func confirmSwap() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with swap? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// lowGasPriceWarning reports whether a --gas-price was given that does not
// beat the network average
func lowGasPriceWarning(flagPrice string, s swaps.State) bool {
	return flagPrice != "" && !swaps.IsCustomGasPriceSafe(s)
}
