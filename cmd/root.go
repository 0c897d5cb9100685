package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wallet-swap",
	Short: "A CLI for token swaps through the wallet swaps aggregator",
	Long: `wallet-swap is a command-line tool that fetches quotes from the swaps
aggregator, picks the best one and sends the approval and trade transactions
from your account.

Examples:
  wallet-swap quote 1 ETH to DAI
  wallet-swap swap 100 USDC to ETH --slippage 1
  wallet-swap gas
  wallet-swap tokens --symbol USD
  wallet-swap status`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
