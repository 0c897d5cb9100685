package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/config"
	"wallet-swap/pkg/client"
	"wallet-swap/pkg/gas"
	"wallet-swap/pkg/logging"
	"wallet-swap/pkg/storage"
)

var gasCmd = &cobra.Command{
	Use:   "gas",
	Short: "Show current gas price estimates",
	Long: `Show the safe low, average and fast gas prices used for swaps.

Estimates are cached for 30 seconds, so repeated calls inside that window do
not hit the network.

Examples:
  wallet-swap gas
  wallet-swap gas --json`,
	Args: cobra.NoArgs,
	Run:  runGas,
}

func init() {
	rootCmd.AddCommand(gasCmd)
}

func runGas(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")

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

	store, err := storage.Open(cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		printError(fmt.Errorf("failed to open store: %w", err))
		os.Exit(1)
	}
	defer store.Close()

	var source gas.PriceSource = client.NewSwapsClient(cfg.APIBaseURL, cfg.GasAPIURL, cfg.RequestTimeout, logger)
	if cfg.GasAPIURL == "" {
		if cfg.RPCURL == "" {
			printError(fmt.Errorf("set SWAPS_GAS_API_URL or SWAPS_RPC_URL to read gas prices"))
			os.Exit(1)
		}
		eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			printError(fmt.Errorf("failed to connect to RPC: %w", err))
			os.Exit(1)
		}
		defer eth.Close()
		source = gas.NewNodeSource(eth)
	}
	cache := gas.NewCache(store, source, gas.WithLogger(logger))

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching gas prices..."
		s.Start()
	}

	snapshot, err := cache.GetGasPriceEstimates(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"safeLow":      snapshot.Estimates.SafeLow,
			"average":      snapshot.Estimates.Average,
			"fast":         snapshot.Estimates.Fast,
			"retrieved_at": snapshot.RetrievedAt,
			"cached":       !snapshot.Fetched,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayGas(snapshot)
}

func displayGas(snapshot gas.Snapshot) {
	fmt.Println("\n" + strings.Repeat("=", 50))
	color.Green("               GAS PRICES (GWEI)")
	fmt.Println(strings.Repeat("=", 50))

	fmt.Printf("\n  Safe Low:  %s\n", snapshot.Estimates.SafeLow)
	fmt.Printf("  Average:   %s\n", snapshot.Estimates.Average)
	fmt.Printf("  Fast:      %s\n", color.CyanString(snapshot.Estimates.Fast))

	source := "network"
	if !snapshot.Fetched {
		source = "cache"
	}
	retrieved := time.UnixMilli(snapshot.RetrievedAt).Format("2006-01-02 15:04:05")
	fmt.Printf("\n  Retrieved: %s %s\n", retrieved, color.HiBlackString("(from %s)", source))

	fmt.Println("\n" + strings.Repeat("=", 50) + "\n")
}
