package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type fakeBalances struct {
	balance *big.Int
	calls   int
	err     error
}

func (f *fakeBalances) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	f.calls++
	return f.balance, f.err
}

func TestNodeAccount(t *testing.T) {
	ctx := context.Background()
	client := &fakeBalances{balance: big.NewInt(1_000_000_000_000_000_000)}

	acct, err := NewNodeAccount(client, "0x00000000000000000000000000000000000000aa", nil)
	require.NoError(t, err)

	got, err := acct.SelectedAccount(ctx)
	require.NoError(t, err)
	require.Equal(t, "0xde0b6b3a7640000", got.Balance)
	require.Equal(t, common.HexToAddress("0xaa").Hex(), got.Address)

	_, err = acct.SelectedAccount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, client.calls, "balance is cached between refreshes")

	client.balance = big.NewInt(5)
	require.NoError(t, acct.ForceUpdate(ctx))
	got, err = acct.SelectedAccount(ctx)
	require.NoError(t, err)
	require.Equal(t, "0x5", got.Balance)

	client.err = errors.New("rpc down")
	require.Error(t, acct.ForceUpdate(ctx))

	_, err = NewNodeAccount(client, "bad", nil)
	require.Error(t, err)
}

func TestAddressFromPrivateKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	addr, err := AddressFromPrivateKey(hexutil.Encode(crypto.FromECDSA(key)))
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), addr)

	_, err = AddressFromPrivateKey("zz")
	require.Error(t, err)
}
