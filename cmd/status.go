package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/config"
	"wallet-swap/pkg/client"
	"wallet-swap/pkg/logging"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status [deposit-address]",
	Short: "Check whether swaps are live, or the status of a deposit swap",
	Long: `Without arguments, check whether the swaps service is live.

With a deposit address, check the execution status of a 1Click deposit swap
(requires SWAPS_ONECLICK_JWT_TOKEN).

Examples:
  wallet-swap status
  wallet-swap status 0x1234...abcd
  wallet-swap status 0x1234...abcd --watch --interval 10`,
	Args: cobra.MaximumNArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	logger, err := logging.New(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	if len(args) == 0 {
		checkLiveness(ctx, client.NewSwapsClient(cfg.APIBaseURL, cfg.GasAPIURL, cfg.RequestTimeout, logger), jsonOutput)
		return
	}

	if cfg.OneClickJWTToken == "" {
		printError(fmt.Errorf("JWT token not found. Please set SWAPS_ONECLICK_JWT_TOKEN to check deposit swaps"))
		os.Exit(1)
	}
	apiClient, err := client.NewOneClickClient(cfg.OneClickJWTToken, cfg.OneClickBaseURL, logger)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	depositAddress := args[0]
	if watchStatus {
		watchSwapStatus(ctx, apiClient, depositAddress, jsonOutput)
	} else {
		checkSwapStatus(ctx, apiClient, depositAddress, jsonOutput)
	}
}

func checkLiveness(ctx context.Context, swapsAPI *client.SwapsClient, jsonOutput bool) {
	live, err := swapsAPI.FetchLiveness(ctx)
	if err != nil {
		// an unreachable service counts as down
		live = false
	}

	if jsonOutput {
		output := map[string]interface{}{"live": live}
		if err != nil {
			output["error"] = err.Error()
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if live {
		color.Green("\nSwaps are live.\n")
		return
	}
	color.Yellow("\nSwaps are under maintenance, try again later.")
	if err != nil {
		fmt.Printf("  %s\n", color.HiBlackString(err.Error()))
	}
	fmt.Println()
}

func checkSwapStatus(ctx context.Context, apiClient *client.OneClickClient, depositAddress string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking swap status..."
		s.Start()
	}

	status, err := apiClient.GetSwapStatus(ctx, depositAddress)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayStatus(status, depositAddress)
	}
}

func watchSwapStatus(ctx context.Context, apiClient *client.OneClickClient, depositAddress string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching swap status (Deposit Address: %s)\n", color.CyanString(depositAddress))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	checkAndDisplayStatus(ctx, apiClient, depositAddress)
	for range ticker.C {
		checkAndDisplayStatus(ctx, apiClient, depositAddress)
	}
}

func checkAndDisplayStatus(ctx context.Context, apiClient *client.OneClickClient, depositAddress string) {
	status, err := apiClient.GetSwapStatus(ctx, depositAddress)
	if err != nil {
		color.Red("Error: %v", err)
		return
	}

	displayStatus(status, depositAddress)
}

func displayStatus(status *oneclick.GetExecutionStatusResponse, depositAddress string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Deposit Address: %s\n", color.CyanString(depositAddress))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.GetStatus()))
	fmt.Printf("  Last Updated:    %s\n", status.GetUpdatedAt().Format("2006-01-02 15:04:05"))

	swapDetails := status.GetSwapDetails()
	for _, tx := range swapDetails.GetOriginChainTxHashes() {
		if hash := tx.GetHash(); hash != "" {
			fmt.Printf("  Deposit Tx:      %s\n", color.HiBlackString(hash))
		}
	}
	for _, tx := range swapDetails.GetDestinationChainTxHashes() {
		if hash := tx.GetHash(); hash != "" {
			fmt.Printf("  Withdrawal Tx:   %s\n", color.HiBlackString(hash))
		}
	}

	if swapDetails.HasAmountInFormatted() {
		fmt.Printf("  Amount In:       %s\n", swapDetails.GetAmountInFormatted())
	}
	if swapDetails.HasAmountOutFormatted() {
		fmt.Printf("  Amount Out:      %s\n", swapDetails.GetAmountOutFormatted())
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "SUCCESS", "COMPLETED":
		return color.GreenString(status)
	case "PENDING_DEPOSIT", "PENDING", "PROCESSING":
		return color.YellowString(status)
	case "FAILED", "REFUNDED":
		return color.RedString(status)
	case "INCOMPLETE_DEPOSIT":
		return color.MagentaString(status)
	default:
		return status
	}
}
