package gas

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"wallet-swap/pkg/tokens"
	"wallet-swap/pkg/types"
)

// Multiplier numerator and denominator for the 1.4 safety margin on gas estimates
const (
	multiplierNum   = 14
	multiplierDenom = 10
)

// Overrides are user-entered gas values as hex quantities. Empty means unset.
type Overrides struct {
	Price string
	Limit string
}

// Params are the gas values a trade is submitted with
type Params struct {
	// Estimate is the quote's gas estimate before the safety margin
	Estimate *big.Int
	// EstimateWithMultiplier is Estimate scaled by 1.4 as hex
	EstimateWithMultiplier string
	Limit                  string
	Price                  string
}

// Calculate derives the final gas limit and price for quote. Overrides win
// over quote values; the fast estimate is the last resort for the price.
func Calculate(quote types.Quote, overrides Overrides, fastPriceHexWEI string) (Params, error) {
	estimate, err := QuoteGasEstimate(quote)
	if err != nil {
		return Params{}, err
	}

	withMultiplier := new(big.Int).Mul(estimate, big.NewInt(multiplierNum))
	// round half up to the nearest whole unit
	withMultiplier.Add(withMultiplier, big.NewInt(multiplierDenom/2))
	withMultiplier.Quo(withMultiplier, big.NewInt(multiplierDenom))

	p := Params{
		Estimate:               estimate,
		EstimateWithMultiplier: hexutil.EncodeBig(withMultiplier),
	}

	if overrides.Limit != "" {
		p.Limit = overrides.Limit
	} else {
		limit := new(big.Int).SetUint64(quote.MaxGas)
		if withMultiplier.Cmp(limit) > 0 {
			limit = withMultiplier
		}
		p.Limit = hexutil.EncodeBig(limit)
	}

	switch {
	case overrides.Price != "":
		p.Price = overrides.Price
	case quote.Trade.GasPrice != "":
		p.Price = quote.Trade.GasPrice
	default:
		p.Price = fastPriceHexWEI
	}

	return p, nil
}

// QuoteGasEstimate returns the quote's gas estimate, falling back to its
// average gas usage
func QuoteGasEstimate(quote types.Quote) (*big.Int, error) {
	if quote.GasEstimate != "" {
		v, err := tokens.ParseQuantity(hexPrefixed(quote.GasEstimate))
		if err != nil {
			return nil, fmt.Errorf("invalid gas estimate: %w", err)
		}
		return v, nil
	}
	return new(big.Int).SetUint64(quote.AverageGas), nil
}

// RefundedGasEstimate is the expected gas use of the trade plus its approval,
// used for fee display
func RefundedGasEstimate(quote types.Quote) (*big.Int, error) {
	total := new(big.Int).SetUint64(quote.AverageGas)
	if quote.GasEstimateWithRefund != "" {
		v, err := tokens.ParseQuantity(hexPrefixed(quote.GasEstimateWithRefund))
		if err != nil {
			return nil, fmt.Errorf("invalid refunded gas estimate: %w", err)
		}
		total = v
	}
	if quote.ApprovalNeeded != nil && quote.ApprovalNeeded.Gas != "" {
		v, err := tokens.ParseQuantity(quote.ApprovalNeeded.Gas)
		if err != nil {
			return nil, fmt.Errorf("invalid approval gas: %w", err)
		}
		total = new(big.Int).Add(total, v)
	}
	return total, nil
}

// FeeInFiat prices gasLimit units at gasPriceHexWEI, converted with the
// native asset's fiat rate
func FeeInFiat(gasLimit *big.Int, gasPriceHexWEI string, conversionRate decimal.Decimal) (decimal.Decimal, error) {
	price, err := tokens.ParseQuantity(gasPriceHexWEI)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid gas price: %w", err)
	}
	wei := new(big.Int).Mul(gasLimit, price)
	eth := decimal.NewFromBigInt(wei, -18)
	return eth.Mul(conversionRate).Round(6), nil
}

// FastPriceHexWEI returns the fast estimate as hex WEI, empty when unknown
func FastPriceHexWEI(estimates types.PriceEstimates) string {
	if estimates.Fast == "" {
		return ""
	}
	v, err := DecGWEIToHexWEI(estimates.Fast)
	if err != nil {
		return ""
	}
	return v
}

// IsCustomPriceSafe reports whether a custom price beats the average estimate.
// No custom price is always safe; an unknown average never is.
func IsCustomPriceSafe(customPriceHexWEI string, estimates types.PriceEstimates) bool {
	if customPriceHexWEI == "" {
		return true
	}
	if estimates.Average == "" {
		return false
	}
	custom, err := HexWEIToDecGWEI(customPriceHexWEI)
	if err != nil {
		return false
	}
	average, err := decimal.NewFromString(estimates.Average)
	if err != nil {
		return false
	}
	return custom.GreaterThan(average)
}

// hexPrefixed treats bare quantities from the quote service as hex
func hexPrefixed(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}
