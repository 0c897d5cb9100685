package swaps

import (
	"wallet-swap/pkg/types"
)

// Event is a state transition. Every event the flow understands is listed
// in Reduce.
type Event interface {
	isEvent()
}

// cycleEvent is an event produced by a fetch or swap cycle. It is dropped
// when its cycle has been superseded.
type cycleEvent interface {
	Event
	generation() uint64
}

// Cycle carries the generation of the cycle that produced an event
type Cycle struct {
	Gen uint64
}

func (c Cycle) generation() uint64 { return c.Gen }

// LivenessChecked records the result of a liveness check
type LivenessChecked struct{ Live bool }

// RouteStateSet tells the background which part of the flow is active
type RouteStateSet struct {
	Cycle
	RouteState types.RouteState
}

type BalanceErrorSet struct{ BalanceError bool }

type FromTokenSelected struct{ Token types.Token }

type ToTokenSelected struct{ Token types.Token }

// FetchStarted marks a fetch cycle in flight
type FetchStarted struct {
	Cycle
	FromToken types.Token
}

type FetchStartTimeRecorded struct {
	Cycle
	At int64
}

// QuotesReceived replaces the quote set with a fetch result
type QuotesReceived struct {
	Cycle
	Result      types.QuoteResult
	FetchParams types.FetchParams
	At          int64
}

// InitialGasEstimated stores a simulated gas estimate on one quote
type InitialGasEstimated struct {
	Cycle
	AggID       string
	GasEstimate string
}

type FetchFinished struct{ Cycle }

type GasEstimatesLoading struct{}

type GasEstimatesCommitted struct {
	Estimates     types.PriceEstimates
	LastRetrieved int64
}

// TxGasPriceSet pushes the fetched fast price into the custom gas price
type TxGasPriceSet struct {
	Cycle
	Price string
}

type QuoteSelected struct{ AggID string }

type CustomGasPriceSet struct{ Price string }

type CustomGasLimitSet struct{ Limit string }

// GasParamsApplied writes final gas values onto one quote's trade
type GasParamsApplied struct {
	Cycle
	AggID    string
	Gas      string
	GasPrice string
}

type ApproveTxIDSet struct {
	Cycle
	ID string
}

type TradeTxIDSet struct {
	Cycle
	ID string
}

type ErrorKeySet struct {
	Cycle
	Key types.ErrorKey
}

type BackgroundRestored struct{ Background BackgroundState }

type NavigatedBackToBuildQuote struct{}

type RetriedGetQuotes struct{}

type CustomGasReset struct{}

type SwapsStateCleared struct{}

func (LivenessChecked) isEvent()           {}
func (RouteStateSet) isEvent()             {}
func (BalanceErrorSet) isEvent()           {}
func (FromTokenSelected) isEvent()         {}
func (ToTokenSelected) isEvent()           {}
func (FetchStarted) isEvent()              {}
func (FetchStartTimeRecorded) isEvent()    {}
func (QuotesReceived) isEvent()            {}
func (InitialGasEstimated) isEvent()       {}
func (FetchFinished) isEvent()             {}
func (GasEstimatesLoading) isEvent()       {}
func (GasEstimatesCommitted) isEvent()     {}
func (TxGasPriceSet) isEvent()             {}
func (QuoteSelected) isEvent()             {}
func (CustomGasPriceSet) isEvent()         {}
func (CustomGasLimitSet) isEvent()         {}
func (GasParamsApplied) isEvent()          {}
func (ApproveTxIDSet) isEvent()            {}
func (TradeTxIDSet) isEvent()              {}
func (ErrorKeySet) isEvent()               {}
func (BackgroundRestored) isEvent()        {}
func (NavigatedBackToBuildQuote) isEvent() {}
func (RetriedGetQuotes) isEvent()          {}
func (CustomGasReset) isEvent()            {}
func (SwapsStateCleared) isEvent()         {}

// Reduce applies ev to s and returns the new state. It never mutates s.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case LivenessChecked:
		s.SwapsFeatureIsLive = e.Live
	case RouteStateSet:
		s.RouteState = e.RouteState
	case BalanceErrorSet:
		s.BalanceError = e.BalanceError
	case FromTokenSelected:
		tok := e.Token
		s.FromToken = &tok
	case ToTokenSelected:
		tok := e.Token
		s.ToToken = &tok

	case FetchStarted:
		tok := e.FromToken
		s.FromToken = &tok
		s.FetchingQuotes = true
		s.ErrorKey = ""
	case FetchStartTimeRecorded:
		s.QuotesFetchStartTime = e.At
	case QuotesReceived:
		quotes := e.Result.Quotes
		if quotes == nil {
			quotes = map[string]types.Quote{}
		}
		selected := s.QuoteSet.SelectedAggID
		if _, ok := quotes[selected]; !ok {
			selected = ""
		}
		params := e.FetchParams
		s.QuoteSet = QuoteSet{
			Quotes:            quotes,
			SelectedAggID:     selected,
			TopAggID:          e.Result.TopAggID,
			QuotesLastFetched: e.At,
		}
		s.FetchParams = &params
	case InitialGasEstimated:
		if q, ok := s.QuoteSet.Quotes[e.AggID]; ok {
			q.GasEstimate = e.GasEstimate
			if q.GasEstimateWithRefund == "" {
				q.GasEstimateWithRefund = e.GasEstimate
			}
			s.QuoteSet.Quotes = withQuote(s.QuoteSet.Quotes, e.AggID, q)
		}
	case FetchFinished:
		s.FetchingQuotes = false

	case GasEstimatesLoading:
		s.CustomGas.Loading = true
	case GasEstimatesCommitted:
		s.CustomGas.PriceEstimates = e.Estimates
		s.CustomGas.PriceEstimatesLastRetrieved = e.LastRetrieved
		s.CustomGas.Loading = false
	case TxGasPriceSet:
		s.CustomGas.Price = e.Price

	case QuoteSelected:
		if _, ok := s.QuoteSet.Quotes[e.AggID]; ok {
			s.QuoteSet.SelectedAggID = e.AggID
		}
	case CustomGasPriceSet:
		s.CustomGas.Price = e.Price
	case CustomGasLimitSet:
		s.CustomGas.Limit = e.Limit
	case GasParamsApplied:
		if q, ok := s.QuoteSet.Quotes[e.AggID]; ok {
			q.Trade.Gas = e.Gas
			q.Trade.GasPrice = e.GasPrice
			s.QuoteSet.Quotes = withQuote(s.QuoteSet.Quotes, e.AggID, q)
		}
	case ApproveTxIDSet:
		s.ApproveTxID = e.ID
	case TradeTxIDSet:
		s.TradeTxID = e.ID
	case ErrorKeySet:
		s.ErrorKey = e.Key

	case BackgroundRestored:
		b := e.Background
		if b.QuoteSet.Quotes == nil {
			b.QuoteSet.Quotes = map[string]types.Quote{}
		}
		b.QuoteSet.SelectedAggID = ""
		s.QuoteSet = b.QuoteSet
		s.FetchParams = b.FetchParams
		s.ApproveTxID = b.ApproveTxID
		s.TradeTxID = b.TradeTxID
		s.ErrorKey = b.ErrorKey
		s.RouteState = b.RouteState
		s.SwapsFeatureIsLive = b.SwapsFeatureIsLive
	case NavigatedBackToBuildQuote, RetriedGetQuotes:
		s.ApproveTxID = ""
		s.BalanceError = false
		s.FetchingQuotes = false
	case CustomGasReset:
		s.CustomGas = CustomGas{}
	case SwapsStateCleared:
		s = InitialState()
	}
	return s
}

// withQuote returns a copy of quotes with id replaced
func withQuote(quotes map[string]types.Quote, id string, q types.Quote) map[string]types.Quote {
	out := make(map[string]types.Quote, len(quotes))
	for k, v := range quotes {
		out[k] = v
	}
	out[id] = q
	return out
}
