package tokens

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wallet-swap/pkg/storage"
	"wallet-swap/pkg/types"
)

const (
	trackedTokensKey = "tracked-tokens"
	exchangeRatesKey = "token-exchange-rates"
)

// TrackedToken is a token the wallet shows balances and prices for
type TrackedToken struct {
	types.Token
	IsSwapToken bool `json:"isSwapToken"`
}

// Registry holds the wallet's tracked tokens, their exchange rates and the
// reference list of swappable tokens
type Registry struct {
	store  storage.Store
	logger *zap.Logger

	// saveMu orders snapshots with their writes so an older snapshot never
	// lands last
	saveMu sync.Mutex

	mu          sync.RWMutex
	tracked     map[string]TrackedToken
	rates       map[string]decimal.Decimal
	swapsTokens []types.Token
}

// NewRegistry loads the persisted registry from store
func NewRegistry(ctx context.Context, store storage.Store, logger *zap.Logger) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("storage required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		store:   store,
		logger:  logger.Named("tokens"),
		tracked: make(map[string]TrackedToken),
		rates:   make(map[string]decimal.Decimal),
	}

	var tracked []TrackedToken
	if _, err := store.Load(ctx, trackedTokensKey, &tracked); err != nil {
		return nil, fmt.Errorf("failed to load tracked tokens: %w", err)
	}
	for _, t := range tracked {
		r.tracked[normalize(t.Address)] = t
	}

	var rates map[string]string
	if _, err := store.Load(ctx, exchangeRatesKey, &rates); err != nil {
		return nil, fmt.Errorf("failed to load exchange rates: %w", err)
	}
	for addr, raw := range rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			r.logger.Warn("dropping invalid exchange rate", zap.String("address", addr), zap.Error(err))
			continue
		}
		r.rates[normalize(addr)] = rate
	}

	return r, nil
}

// AddToken starts tracking a token. Re-adding a tracked token updates it.
func (r *Registry) AddToken(ctx context.Context, address, symbol string, decimals int, iconURL string, isSwapToken bool) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid token address: %s", address)
	}

	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	r.tracked[normalize(address)] = TrackedToken{
		Token: types.Token{
			Address:  common.HexToAddress(address).Hex(),
			Symbol:   symbol,
			Decimals: decimals,
			IconURL:  iconURL,
		},
		IsSwapToken: isSwapToken,
	}
	snapshot := r.trackedLocked()
	r.mu.Unlock()

	r.logger.Debug("token added", zap.String("address", address), zap.String("symbol", symbol))
	return r.store.Save(ctx, trackedTokensKey, snapshot)
}

func (r *Registry) trackedLocked() []TrackedToken {
	out := make([]TrackedToken, 0, len(r.tracked))
	for _, t := range r.tracked {
		out = append(out, t)
	}
	return out
}

// HasExchangeRate reports whether a price is known for the token
func (r *Registry) HasExchangeRate(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rates[normalize(address)]
	return ok
}

// SetExchangeRate records the token's price in the native asset
func (r *Registry) SetExchangeRate(ctx context.Context, address string, rate decimal.Decimal) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	r.rates[normalize(address)] = rate
	raw := make(map[string]string, len(r.rates))
	for addr, v := range r.rates {
		raw[addr] = v.String()
	}
	r.mu.Unlock()

	return r.store.Save(ctx, exchangeRatesKey, raw)
}

// SetSwapsTokens replaces the reference list of swappable tokens
func (r *Registry) SetSwapsTokens(list []types.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swapsTokens = append([]types.Token(nil), list...)
}

// SwapsTokens returns the reference list of swappable tokens
func (r *Registry) SwapsTokens() []types.Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.Token(nil), r.swapsTokens...)
}

// FindSwapsTokenBySymbol looks a token up in the swappable list by symbol
func (r *Registry) FindSwapsTokenBySymbol(symbol string) (types.Token, bool) {
	for _, t := range r.SwapsTokens() {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return types.Token{}, false
}

// FindByAddress returns the token in list with the given address
func FindByAddress(list []types.Token, address string) (types.Token, bool) {
	if address == "" {
		return types.Token{}, false
	}
	for _, t := range list {
		if strings.EqualFold(t.Address, address) {
			return t, true
		}
	}
	return types.Token{}, false
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
