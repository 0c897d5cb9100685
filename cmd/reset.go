package cmd

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear saved swap state",
	Long: `Clear the quotes, selections and custom gas settings kept from the last
swap session, and delete the saved background state.`,
	Args: cobra.NoArgs,
	Run:  runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	a, err := newApp(ctx, cmd, false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.controller.PrepareToLeaveSwaps(ctx); err != nil {
		printError(err)
		os.Exit(1)
	}
	printSuccess(color.GreenString("Swap state cleared."))
}
