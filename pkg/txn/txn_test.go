package txn

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/storage"
	"wallet-swap/pkg/types"
)

const routerAddress = "0x1111111111111111111111111111111111111111"

type recordingSender struct {
	sent []types.TxParams
	err  error
}

func (s *recordingSender) Send(_ context.Context, params types.TxParams) (string, error) {
	s.sent = append(s.sent, params)
	if s.err != nil {
		return "", s.err
	}
	return "0xabc", nil
}

func TestControllerLifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	sender := &recordingSender{}
	c := NewController(sender, store, nil)

	meta, err := c.AddUnapprovedTransaction(ctx, types.TxParams{To: routerAddress, Value: "0x0"}, OriginWallet)
	require.NoError(t, err)
	require.NotEmpty(t, meta.ID)
	require.Equal(t, StatusUnapproved, meta.Status)

	meta.TransactionCategory = CategorySwap
	meta.SourceTokenSymbol = "ETH"
	updated, err := c.UpdateTransaction(ctx, *meta)
	require.NoError(t, err)
	require.Equal(t, CategorySwap, updated.TransactionCategory)

	require.NoError(t, c.UpdateAndApproveTx(ctx, *updated))
	require.Len(t, sender.sent, 1)

	got, ok := c.Get(meta.ID)
	require.True(t, ok)
	require.Equal(t, StatusConfirmed, got.Status)
	require.Equal(t, "0xabc", got.Hash)
	require.Equal(t, "ETH", got.SourceTokenSymbol)

	_, err = c.UpdateTransaction(ctx, *got)
	require.ErrorIs(t, err, ErrNotUnapproved)

	var persisted []TxMeta
	found, err := store.Load(ctx, transactionsKey, &persisted)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, persisted, 1)
	require.Equal(t, StatusConfirmed, persisted[0].Status)
}

func TestControllerSubmissionError(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{err: errors.New("insufficient funds")}
	c := NewController(sender, nil, nil)

	meta, err := c.AddUnapprovedTransaction(ctx, types.TxParams{To: routerAddress}, OriginWallet)
	require.NoError(t, err)

	err = c.UpdateAndApproveTx(ctx, *meta)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	require.Equal(t, meta.ID, subErr.TxID)

	got, _ := c.Get(meta.ID)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, "insufficient funds", got.Err)
}

func TestControllerRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	c := NewController(&recordingSender{}, nil, nil)

	_, err := c.AddUnapprovedTransaction(ctx, types.TxParams{To: "nowhere"}, OriginWallet)
	require.Error(t, err)

	_, err = c.UpdateTransaction(ctx, TxMeta{ID: "missing"})
	require.ErrorIs(t, err, ErrTxNotFound)
}

type fakeEVM struct {
	nonce    uint64
	gasPrice *big.Int
	sent     *ethtypes.Transaction
	status   uint64
}

func (f *fakeEVM) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeEVM) SuggestGasPrice(context.Context) (*big.Int, error) { return f.gasPrice, nil }

func (f *fakeEVM) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	f.sent = tx
	return nil
}

func (f *fakeEVM) TransactionReceipt(context.Context, common.Hash) (*ethtypes.Receipt, error) {
	return &ethtypes.Receipt{Status: f.status, BlockNumber: big.NewInt(1)}, nil
}

func (f *fakeEVM) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, nil
}

func TestEVMSenderSignsAndWaits(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hexutil.Encode(crypto.FromECDSA(key))

	client := &fakeEVM{nonce: 7, gasPrice: big.NewInt(1_000_000_000), status: ethtypes.ReceiptStatusSuccessful}
	sender, err := NewEVMSender(client, 1, keyHex, nil)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), sender.Address())

	hash, err := sender.Send(context.Background(), types.TxParams{
		From:     sender.Address().Hex(),
		To:       routerAddress,
		Data:     "0xa9059cbb",
		Value:    "0x10",
		Gas:      "0x7530",
		GasPrice: "0x4a817c800",
	})
	require.NoError(t, err)
	require.Equal(t, client.sent.Hash().Hex(), hash)

	tx := client.sent
	require.Equal(t, uint64(7), tx.Nonce())
	require.Equal(t, uint64(30000), tx.Gas())
	require.Equal(t, int64(20_000_000_000), tx.GasPrice().Int64())
	require.Equal(t, int64(16), tx.Value().Int64())
	require.Equal(t, common.HexToAddress(routerAddress), *tx.To())

	from, err := ethtypes.Sender(ethtypes.NewEIP155Signer(big.NewInt(1)), tx)
	require.NoError(t, err)
	require.Equal(t, sender.Address(), from)
}

func TestEVMSenderFallbacksAndRevert(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	client := &fakeEVM{gasPrice: big.NewInt(3), status: ethtypes.ReceiptStatusFailed}
	sender, err := NewEVMSender(client, 1, hexutil.Encode(crypto.FromECDSA(key)), nil)
	require.NoError(t, err)

	_, err = sender.Send(context.Background(), types.TxParams{To: routerAddress})
	require.ErrorContains(t, err, "reverted")
	require.Equal(t, defaultGasLimit, client.sent.Gas())
	require.Equal(t, int64(3), client.sent.GasPrice().Int64())

	_, err = sender.Send(context.Background(), types.TxParams{From: routerAddress, To: routerAddress})
	require.ErrorContains(t, err, "does not match")

	_, err = NewEVMSender(client, 1, "", nil)
	require.Error(t, err)
}
