package parser

import (
	"fmt"
	"regexp"
	"strings"

	"wallet-swap/pkg/types"
)

var swapPattern = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9]+)\s+TO\s+([A-Z0-9]+)$`)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 ETH to DAI"
//   - "1.5 ETH to USDC"
//   - "100 USDC to ETH"
func ParseSwapCommand(command string) (*types.SwapCommand, error) {
	command = strings.TrimSpace(strings.ToUpper(command))
	command = strings.TrimPrefix(command, "SWAP ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> to <token>' (e.g., 'swap 1 ETH to DAI')")
	}

	cmd := &types.SwapCommand{
		Amount:      matches[1],
		SourceToken: NormalizeTokenSymbol(matches[2]),
		DestToken:   NormalizeTokenSymbol(matches[3]),
	}
	if cmd.SourceToken == cmd.DestToken {
		return nil, fmt.Errorf("source and destination token must differ")
	}
	return cmd, nil
}

// NormalizeTokenSymbol normalizes token symbols to the swaps token list format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	// Wrapped symbols stay distinct from their native asset on EVM chains,
	// only spelling aliases are folded.
	aliases := map[string]string{
		"ETHER": "ETH",
		"XDAI":  "DAI",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
