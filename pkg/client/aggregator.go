package client

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wallet-swap/pkg/tokens"
	"wallet-swap/pkg/types"
)

// QuoteSource is anything that can price a swap request
type QuoteSource interface {
	Name() string
	FetchQuotes(ctx context.Context, params types.SwapRequestParams) (map[string]types.Quote, error)
}

// Aggregator merges the quotes of a primary source with optional extra
// sources and ranks them. Only a primary failure fails the request.
type Aggregator struct {
	primary QuoteSource
	extras  []QuoteSource
	logger  *zap.Logger
}

// NewAggregator creates an aggregator over primary and extras
func NewAggregator(logger *zap.Logger, primary QuoteSource, extras ...QuoteSource) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		primary: primary,
		extras:  extras,
		logger:  logger.Named("quotes"),
	}
}

// FetchQuotes queries every source concurrently and returns the merged set
// with the top quote marked best
func (a *Aggregator) FetchQuotes(ctx context.Context, params types.SwapRequestParams) (types.QuoteResult, error) {
	var (
		mu     sync.Mutex
		merged = make(map[string]types.Quote)
	)
	add := func(quotes map[string]types.Quote) {
		mu.Lock()
		defer mu.Unlock()
		for id, q := range quotes {
			if _, exists := merged[id]; !exists {
				merged[id] = q
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		quotes, err := a.primary.FetchQuotes(gctx, params)
		if err != nil {
			return fmt.Errorf("%s: %w", a.primary.Name(), err)
		}
		add(quotes)
		return nil
	})
	for _, src := range a.extras {
		src := src
		g.Go(func() error {
			quotes, err := src.FetchQuotes(gctx, params)
			if err != nil {
				a.logger.Warn("quote source failed", zap.String("source", src.Name()), zap.Error(err))
				return nil
			}
			add(quotes)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.QuoteResult{}, err
	}

	top := TopAggregator(merged)
	if top != "" {
		q := merged[top]
		q.IsBestQuote = true
		merged[top] = q
	}
	for id, q := range merged {
		if id != top && q.IsBestQuote {
			q.IsBestQuote = false
			merged[id] = q
		}
	}

	return types.QuoteResult{Quotes: merged, TopAggID: top}, nil
}

// TopAggregator picks the best quote: one already flagged best by its source,
// otherwise the largest destination amount. Ties go to the smallest id.
func TopAggregator(quotes map[string]types.Quote) string {
	ids := make([]string, 0, len(quotes))
	for id := range quotes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if quotes[id].IsBestQuote {
			return id
		}
	}

	var best string
	for _, id := range ids {
		if best == "" {
			best = id
			continue
		}
		cur, err := tokens.ParseQuantity(quotes[id].DestinationAmount)
		if err != nil {
			continue
		}
		prev, err := tokens.ParseQuantity(quotes[best].DestinationAmount)
		if err != nil || cur.Cmp(prev) > 0 {
			best = id
		}
	}
	return best
}
