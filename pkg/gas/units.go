package gas

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"wallet-swap/pkg/tokens"
)

var weiPerGwei = decimal.New(1, 9)

// DecGWEIToHexWEI converts a decimal GWEI amount into a hex WEI quantity
func DecGWEIToHexWEI(gwei string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(gwei))
	if err != nil {
		return "", fmt.Errorf("invalid gwei amount %q: %w", gwei, err)
	}
	return hexutil.EncodeBig(d.Mul(weiPerGwei).Round(0).BigInt()), nil
}

// HexWEIToDecGWEI converts a hex WEI quantity into decimal GWEI
func HexWEIToDecGWEI(hexWei string) (decimal.Decimal, error) {
	v, err := tokens.ParseQuantity(hexWei)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(v, 0).Div(weiPerGwei), nil
}

// WeiToGwei formats a WEI amount as decimal GWEI
func WeiToGwei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -9).String()
}
