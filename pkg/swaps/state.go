package swaps

import (
	"wallet-swap/pkg/gas"
	"wallet-swap/pkg/types"
)

// DefaultSlippage is the slippage percentage users get unless they change it
const DefaultSlippage = 2

// QuoteSet is the quotes of the last fetch cycle. SelectedAggID, when set,
// is always a key of Quotes.
type QuoteSet struct {
	Quotes            map[string]types.Quote `json:"quotes"`
	SelectedAggID     string                 `json:"selectedAggId,omitempty"`
	TopAggID          string                 `json:"topAggId,omitempty"`
	QuotesLastFetched int64                  `json:"quotesLastFetched,omitempty"`
}

// CustomGas holds user gas overrides and the cached network estimates
type CustomGas struct {
	Price                       string               `json:"price,omitempty"`
	Limit                       string               `json:"limit,omitempty"`
	Loading                     bool                 `json:"loading"`
	PriceEstimates              types.PriceEstimates `json:"priceEstimates"`
	PriceEstimatesLastRetrieved int64                `json:"priceEstimatesLastRetrieved"`
}

// State is everything the swap flow knows. It only changes through Reduce.
type State struct {
	QuoteSet    QuoteSet           `json:"quoteSet"`
	FetchParams *types.FetchParams `json:"fetchParams,omitempty"`

	FetchingQuotes       bool             `json:"fetchingQuotes"`
	QuotesFetchStartTime int64            `json:"quotesFetchStartTime,omitempty"`
	ApproveTxID          string           `json:"approveTxId,omitempty"`
	TradeTxID            string           `json:"tradeTxId,omitempty"`
	ErrorKey             types.ErrorKey   `json:"errorKey,omitempty"`
	RouteState           types.RouteState `json:"routeState"`
	SwapsFeatureIsLive   bool             `json:"swapsFeatureIsLive"`
	BalanceError         bool             `json:"balanceError"`

	// FromToken and ToToken are the user's explicit selections
	FromToken *types.Token `json:"fromToken,omitempty"`
	ToToken   *types.Token `json:"toToken,omitempty"`

	CustomGas CustomGas `json:"customGas"`
}

// InitialState is the state of a swap flow nobody has started
func InitialState() State {
	return State{
		QuoteSet:   QuoteSet{Quotes: map[string]types.Quote{}},
		RouteState: types.RouteStateIdle,
	}
}

// SelectedQuote is the user's chosen quote
func SelectedQuote(s State) (types.Quote, bool) {
	if s.QuoteSet.SelectedAggID == "" {
		return types.Quote{}, false
	}
	q, ok := s.QuoteSet.Quotes[s.QuoteSet.SelectedAggID]
	return q, ok
}

// TopQuote is the best-ranked quote of the last fetch
func TopQuote(s State) (types.Quote, bool) {
	if s.QuoteSet.TopAggID == "" {
		return types.Quote{}, false
	}
	q, ok := s.QuoteSet.Quotes[s.QuoteSet.TopAggID]
	return q, ok
}

// UsedQuote is the quote a swap acts on: the selected one, else the top one
func UsedQuote(s State) (types.Quote, bool) {
	if q, ok := SelectedQuote(s); ok {
		return q, true
	}
	return TopQuote(s)
}

// usedAggID returns the key of the used quote
func usedAggID(s State) string {
	if _, ok := SelectedQuote(s); ok {
		return s.QuoteSet.SelectedAggID
	}
	if _, ok := TopQuote(s); ok {
		return s.QuoteSet.TopAggID
	}
	return ""
}

// TradeTxParams is the used quote's trade with gas overrides applied, nil
// when there is no used quote
func TradeTxParams(s State) *types.TxParams {
	q, ok := UsedQuote(s)
	if !ok {
		return nil
	}
	trade := q.Trade
	if s.CustomGas.Limit != "" {
		trade.Gas = s.CustomGas.Limit
	}
	if s.CustomGas.Price != "" {
		trade.GasPrice = s.CustomGas.Price
	}
	return &trade
}

// ApproveTxParams is the used quote's approval transaction, nil when the
// quote needs none. It never moves value.
func ApproveTxParams(s State) *types.TxParams {
	q, ok := UsedQuote(s)
	if !ok || q.ApprovalNeeded == nil {
		return nil
	}
	approval := *q.ApprovalNeeded
	if s.CustomGas.Price != "" {
		approval.GasPrice = s.CustomGas.Price
	}
	approval.Value = "0x0"
	return &approval
}

// IsCustomGasPriceSafe reports whether the custom gas price beats the
// network's average estimate
func IsCustomGasPriceSafe(s State) bool {
	return gas.IsCustomPriceSafe(s.CustomGas.Price, s.CustomGas.PriceEstimates)
}

// BackgroundState is the part of State kept across process restarts. User
// choices (quote selection, custom gas) are not part of it.
type BackgroundState struct {
	QuoteSet           QuoteSet           `json:"quoteSet"`
	FetchParams        *types.FetchParams `json:"fetchParams,omitempty"`
	ApproveTxID        string             `json:"approveTxId,omitempty"`
	TradeTxID          string             `json:"tradeTxId,omitempty"`
	ErrorKey           types.ErrorKey     `json:"errorKey,omitempty"`
	RouteState         types.RouteState   `json:"routeState"`
	SwapsFeatureIsLive bool               `json:"swapsFeatureIsLive"`
}

func backgroundOf(s State) BackgroundState {
	return BackgroundState{
		QuoteSet:           s.QuoteSet,
		FetchParams:        s.FetchParams,
		ApproveTxID:        s.ApproveTxID,
		TradeTxID:          s.TradeTxID,
		ErrorKey:           s.ErrorKey,
		RouteState:         s.RouteState,
		SwapsFeatureIsLive: s.SwapsFeatureIsLive,
	}
}
