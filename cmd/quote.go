package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/parser"
	"wallet-swap/pkg/swaps"
	"wallet-swap/pkg/tokens"
	"wallet-swap/pkg/types"
)

var (
	quoteSlippage float64
	watchQuotes   bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Fetch swap quotes without trading",
	Long: `Fetch quotes from every aggregator for a swap and show the best one.

Examples:
  wallet-swap quote 1 ETH to DAI
  wallet-swap quote 250 USDC to ETH --slippage 0.5
  wallet-swap quote 1 ETH to DAI --watch`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().Float64Var(&quoteSlippage, "slippage", 0, "Maximum slippage in percent (default from config)")
	quoteCmd.Flags().BoolVarP(&watchQuotes, "watch", "w", false, "Keep refreshing quotes until interrupted")
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	swapReq, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	slippage := quoteSlippage
	if slippage == 0 {
		slippage = a.cfg.DefaultSlippage
	}

	if err := fetchForCommand(ctx, a, swapReq, slippage); err != nil {
		printError(err)
		return
	}
	printQuotes(a.controller.State(), swapReq, jsonOutput)

	if !watchQuotes {
		return
	}
	if err := a.controller.StartPollingForQuotes(ctx, swapReq.Amount, slippage); err != nil {
		printError(err)
		return
	}
	color.HiBlack("Refreshing every %s, press Ctrl+C to stop.", a.cfg.QuotePollInterval)

	<-ctx.Done()
	a.controller.StopPollingForQuotes()
	printQuotes(a.controller.State(), swapReq, jsonOutput)
}

// fetchForCommand runs one fetch cycle for swapReq and turns the state's
// error key into an error
func fetchForCommand(ctx context.Context, a *app, swapReq *types.SwapCommand, slippage float64) error {
	if err := a.loadSwapsTokens(ctx); err != nil {
		return err
	}
	if err := a.selectPair(ctx, swapReq); err != nil {
		return err
	}
	if err := a.controller.FetchQuotes(ctx, swapReq.Amount, slippage); err != nil {
		return err
	}
	a.controller.Wait()

	s := a.controller.State()
	if !s.SwapsFeatureIsLive {
		return fmt.Errorf("swaps are currently unavailable")
	}
	switch s.ErrorKey {
	case "":
		return nil
	case types.QuotesNotAvailableError:
		return fmt.Errorf("no quotes available for %s %s to %s", swapReq.Amount, swapReq.SourceToken, swapReq.DestToken)
	default:
		return fmt.Errorf("failed to fetch quotes (%s), run with --verbose for details", s.ErrorKey)
	}
}

type quoteRow struct {
	Aggregator        string `json:"aggregator"`
	DestinationAmount string `json:"destination_amount"`
	NeedsApproval     bool   `json:"needs_approval"`
	DepositAddress    string `json:"deposit_address,omitempty"`
	Best              bool   `json:"best"`
	Selected          bool   `json:"selected"`
}

func quoteRows(s swaps.State) []quoteRow {
	decimals := 0
	if s.FetchParams != nil {
		decimals = s.FetchParams.MetaData.DestinationTokenInfo.Decimals
	}
	used, hasUsed := swaps.UsedQuote(s)

	rows := make([]quoteRow, 0, len(s.QuoteSet.Quotes))
	for id, q := range s.QuoteSet.Quotes {
		amount, err := tokens.CalcTokenAmount(q.DestinationAmount, decimals)
		display := q.DestinationAmount
		if err == nil {
			display = tokens.ToPrecision(amount, 8)
		}
		rows = append(rows, quoteRow{
			Aggregator:        id,
			DestinationAmount: display,
			NeedsApproval:     q.ApprovalNeeded != nil,
			DepositAddress:    q.DepositAddress,
			Best:              id == s.QuoteSet.TopAggID,
			Selected:          hasUsed && id == used.Aggregator,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Best != rows[j].Best {
			return rows[i].Best
		}
		return rows[i].Aggregator < rows[j].Aggregator
	})
	return rows
}

func printQuotes(s swaps.State, swapReq *types.SwapCommand, jsonOutput bool) {
	rows := quoteRows(s)

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                             SWAP QUOTES")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("\n  Selling: %s %s\n\n", swapReq.Amount, color.YellowString(swapReq.SourceToken))

	for _, row := range rows {
		marker := " "
		if row.Selected {
			marker = color.GreenString("*")
		}
		notes := ""
		if row.Best {
			notes += color.GreenString(" best")
		}
		if row.NeedsApproval {
			notes += color.MagentaString(" approval")
		}
		if row.DepositAddress != "" {
			notes += color.CyanString(" deposit")
		}
		fmt.Printf("  %s %-16s ~%s %s%s\n", marker, row.Aggregator, row.DestinationAmount, color.YellowString(swapReq.DestToken), notes)
	}

	if s.CustomGas.PriceEstimates.Fast != "" {
		fmt.Printf("\n  Gas (gwei):  safe %s  average %s  fast %s\n",
			s.CustomGas.PriceEstimates.SafeLow,
			s.CustomGas.PriceEstimates.Average,
			s.CustomGas.PriceEstimates.Fast)
	}
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
