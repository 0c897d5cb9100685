package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"wallet-swap/pkg/types"
)

// BalanceReader is the part of ethclient.Client the account reader needs
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// NodeAccount serves the selected account and its native balance from an
// RPC node. The balance is cached until the next ForceUpdate.
type NodeAccount struct {
	client  BalanceReader
	address common.Address
	logger  *zap.Logger

	mu      sync.Mutex
	balance *big.Int
}

// NewNodeAccount creates an account reader for address
func NewNodeAccount(client BalanceReader, address string, logger *zap.Logger) (*NodeAccount, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid account address: %s", address)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NodeAccount{
		client:  client,
		address: common.HexToAddress(address),
		logger:  logger.Named("account"),
	}, nil
}

// SelectedAccount returns the account with its balance as hex wei
func (a *NodeAccount) SelectedAccount(ctx context.Context) (types.Account, error) {
	a.mu.Lock()
	cached := a.balance
	a.mu.Unlock()

	if cached == nil {
		if err := a.ForceUpdate(ctx); err != nil {
			return types.Account{}, err
		}
		a.mu.Lock()
		cached = a.balance
		a.mu.Unlock()
	}

	return types.Account{
		Address: a.address.Hex(),
		Balance: hexutil.EncodeBig(cached),
	}, nil
}

// ForceUpdate re-reads the account state from the node
func (a *NodeAccount) ForceUpdate(ctx context.Context) error {
	balance, err := a.client.BalanceAt(ctx, a.address, nil)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}

	a.mu.Lock()
	a.balance = balance
	a.mu.Unlock()

	a.logger.Debug("account state refreshed", zap.String("address", a.address.Hex()), zap.String("balance", balance.String()))
	return nil
}

// AddressFromPrivateKey derives the account address of a hex private key
func AddressFromPrivateKey(privateKeyHex string) (string, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	return crypto.PubkeyToAddress(privateKey.PublicKey).Hex(), nil
}
