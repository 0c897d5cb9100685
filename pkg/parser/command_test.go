package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSwapCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		amount   string
		from, to string
		wantErr  bool
	}{
		{name: "with swap prefix", input: "swap 1 ETH to DAI", amount: "1", from: "ETH", to: "DAI"},
		{name: "lowercase decimals", input: "1.5 eth to usdc", amount: "1.5", from: "ETH", to: "USDC"},
		{name: "alias folded", input: "2 ether to dai", amount: "2", from: "ETH", to: "DAI"},
		{name: "missing to", input: "1 ETH DAI", wantErr: true},
		{name: "same token", input: "1 ETH to ETH", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseSwapCommand(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.amount, cmd.Amount)
			require.Equal(t, tt.from, cmd.SourceToken)
			require.Equal(t, tt.to, cmd.DestToken)
		})
	}
}
