package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/config"
	"wallet-swap/pkg/client"
	"wallet-swap/pkg/logging"
	"wallet-swap/pkg/types"
)

var (
	filterChain  string
	filterSymbol string
	listOneClick bool
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List all swappable tokens",
	Long: `List the tokens the swaps API can trade.

With --oneclick, list the tokens of the 1Click deposit route instead
(requires SWAPS_ONECLICK_JWT_TOKEN); those can be filtered by blockchain.

Examples:
  wallet-swap list-tokens
  wallet-swap list-tokens --symbol USD
  wallet-swap list-tokens --oneclick --chain eth`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by blockchain (with --oneclick)")
	tokensCmd.Flags().BoolVar(&listOneClick, "oneclick", false, "List 1Click deposit route tokens")
}

func runListTokens(cmd *cobra.Command, args []string) {
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

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching supported tokens..."
		s.Start()
	}

	if listOneClick {
		if cfg.OneClickJWTToken == "" {
			s.Stop()
			printError(fmt.Errorf("JWT token not found. Please set SWAPS_ONECLICK_JWT_TOKEN"))
			os.Exit(1)
		}
		apiClient, err := client.NewOneClickClient(cfg.OneClickJWTToken, cfg.OneClickBaseURL, logger)
		if err != nil {
			s.Stop()
			printError(err)
			os.Exit(1)
		}
		list, err := apiClient.GetSupportedTokens(ctx)
		if !jsonOutput {
			s.Stop()
		}
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		filtered := filterOneClickTokens(list, filterChain, filterSymbol)
		if jsonOutput {
			jsonData, _ := json.MarshalIndent(filtered, "", "  ")
			fmt.Println(string(jsonData))
		} else {
			displayOneClickTokens(filtered)
		}
		return
	}

	list, err := client.NewSwapsClient(cfg.APIBaseURL, cfg.GasAPIURL, cfg.RequestTimeout, logger).FetchTokens(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	filtered := filterSwapsTokens(list, filterSymbol)
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTokens(filtered)
	}
}

func filterSwapsTokens(list []types.Token, symbol string) []types.Token {
	if symbol == "" {
		return list
	}
	var filtered []types.Token
	for _, token := range list {
		if strings.Contains(strings.ToUpper(token.Symbol), strings.ToUpper(symbol)) {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func filterOneClickTokens(list []oneclick.TokenResponse, chain, symbol string) []oneclick.TokenResponse {
	filtered := list
	if chain != "" {
		var temp []oneclick.TokenResponse
		for _, token := range filtered {
			if strings.EqualFold(token.GetBlockchain(), chain) {
				temp = append(temp, token)
			}
		}
		filtered = temp
	}

	if symbol != "" {
		var temp []oneclick.TokenResponse
		for _, token := range filtered {
			if strings.Contains(strings.ToUpper(token.GetSymbol()), strings.ToUpper(symbol)) {
				temp = append(temp, token)
			}
		}
		filtered = temp
	}
	return filtered
}

func displayTokens(list []types.Token) {
	if len(list) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	sorted := make([]types.Token, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToUpper(sorted[i].Symbol) < strings.ToUpper(sorted[j].Symbol)
	})

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SWAPPABLE TOKENS")
	fmt.Println(strings.Repeat("=", 90) + "\n")

	for _, token := range sorted {
		fmt.Printf("  %-10s  %2d decimals  %s\n",
			color.YellowString(token.Symbol),
			token.Decimals,
			color.HiBlackString(token.Address))
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens\n\n", len(sorted))
}

func displayOneClickTokens(list []oneclick.TokenResponse) {
	if len(list) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                          1CLICK DEPOSIT TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	tokensByChain := make(map[string][]oneclick.TokenResponse)
	for _, token := range list {
		chain := token.GetBlockchain()
		tokensByChain[chain] = append(tokensByChain[chain], token)
	}

	chains := make([]string, 0, len(tokensByChain))
	for chain := range tokensByChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range tokensByChain[chain] {
			address := token.GetContractAddress()
			if len(address) > 40 {
				address = address[:37] + "..."
			}

			fmt.Printf("  %-10s  %2.0f decimals  %s\n",
				color.YellowString(token.GetSymbol()),
				token.GetDecimals(),
				color.HiBlackString(address))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(list), len(chains))
}
