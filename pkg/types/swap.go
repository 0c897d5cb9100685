package types

// SwapCommand represents a user's swap command as typed on the command line
type SwapCommand struct {
	Amount      string
	SourceToken string
	DestToken   string
}

// ErrorKey is the user-visible error kind written into the orchestration state
type ErrorKey string

const (
	QuotesNotAvailableError ErrorKey = "quotes-not-available"
	ErrorFetchingQuotes     ErrorKey = "error-fetching-quotes"
	SwapFailedError         ErrorKey = "swap-failed"
)

// RouteState mirrors which part of the swap flow the background is serving
type RouteState string

const (
	RouteStateIdle     RouteState = "idle"
	RouteStateLoading  RouteState = "loading"
	RouteStateAwaiting RouteState = "awaiting"
)

// Token describes an asset taking part in a swap
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	IconURL  string `json:"iconUrl,omitempty"`
	Balance  string `json:"balance,omitempty"` // base units
	String   string `json:"string,omitempty"`  // display balance
}

// IsZero reports whether the token descriptor was never populated
func (t Token) IsZero() bool {
	return t.Address == "" && t.Symbol == ""
}

// Account is the wallet account swaps are sent from
type Account struct {
	Address string `json:"address"`
	Balance string `json:"balance"` // hex wei
}

// TxParams are the transaction parameters handed to the transaction subsystem.
// Quantities are 0x-prefixed hex strings.
type TxParams struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to"`
	Data     string `json:"data,omitempty"`
	Value    string `json:"value,omitempty"`
	Gas      string `json:"gas,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
}

// Savings is the aggregator-reported saving of a quote against the others, in ETH
type Savings struct {
	Total       string `json:"total"`
	Performance string `json:"performance,omitempty"`
	Fee         string `json:"fee,omitempty"`
}

// Quote is one aggregator's priced trade proposal
type Quote struct {
	Aggregator            string    `json:"aggregator"`
	Trade                 TxParams  `json:"trade"`
	ApprovalNeeded        *TxParams `json:"approvalNeeded,omitempty"`
	SourceAmount          string    `json:"sourceAmount,omitempty"`
	DestinationAmount     string    `json:"destinationAmount"`
	Decimals              int       `json:"decimals,omitempty"`
	AverageGas            uint64    `json:"averageGas,omitempty"`
	MaxGas                uint64    `json:"maxGas,omitempty"`
	GasEstimate           string    `json:"gasEstimate,omitempty"`
	GasEstimateWithRefund string    `json:"gasEstimateWithRefund,omitempty"`
	Savings               *Savings  `json:"savings,omitempty"`
	IsBestQuote           bool      `json:"isBestQuote,omitempty"`

	// DepositAddress is set on intent quotes settled by funding an address
	DepositAddress string `json:"depositAddress,omitempty"`
}

// SwapRequestParams is the immutable request of one fetch cycle
type SwapRequestParams struct {
	Slippage                     float64 `json:"slippage"`
	SourceToken                  string  `json:"sourceToken"`
	DestinationToken             string  `json:"destinationToken"`
	Value                        string  `json:"value"`
	FromAddress                  string  `json:"fromAddress"`
	DestinationTokenAddedForSwap bool    `json:"destinationTokenAddedForSwap"`
	BalanceError                 bool    `json:"balanceError"`
	SourceDecimals               int     `json:"sourceDecimals"`
}

// FetchMetadata carries the resolved token descriptors alongside a request
type FetchMetadata struct {
	SourceTokenInfo      Token  `json:"sourceTokenInfo"`
	DestinationTokenInfo Token  `json:"destinationTokenInfo"`
	AccountBalance       string `json:"accountBalance"`
}

// FetchParams is what the last fetch cycle asked for
type FetchParams struct {
	SwapRequestParams
	MetaData FetchMetadata `json:"metaData"`
}

// QuoteResult is the quote service's answer to one request
type QuoteResult struct {
	Quotes   map[string]Quote
	TopAggID string
}

// PriceEstimates are network gas price estimates in decimal GWEI
type PriceEstimates struct {
	SafeLow string `json:"safeLow"`
	Average string `json:"average"`
	Fast    string `json:"fast"`
}
