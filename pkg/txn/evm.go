package txn

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"wallet-swap/pkg/tokens"
	"wallet-swap/pkg/types"
)

// defaultGasLimit is used when a transaction carries no gas limit
const defaultGasLimit = uint64(21000)

// EVMClient is the part of ethclient.Client the sender needs
type EVMClient interface {
	bind.DeployBackend
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

// EVMSender signs transactions with a local key and waits for them to be mined
type EVMSender struct {
	client     EVMClient
	chainID    *big.Int
	privateKey *ecdsa.PrivateKey
	from       common.Address
	logger     *zap.Logger
}

// NewEVMSender creates a sender for chainID signing with privateKeyHex
func NewEVMSender(client EVMClient, chainID int64, privateKeyHex string, logger *zap.Logger) (*EVMSender, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &EVMSender{
		client:     client,
		chainID:    big.NewInt(chainID),
		privateKey: privateKey,
		from:       crypto.PubkeyToAddress(privateKey.PublicKey),
		logger:     logger.Named("evm"),
	}, nil
}

// Address is the account transactions are sent from
func (e *EVMSender) Address() common.Address {
	return e.from
}

// Send signs and broadcasts params, then blocks until the transaction is mined
func (e *EVMSender) Send(ctx context.Context, params types.TxParams) (string, error) {
	if params.From != "" && !strings.EqualFold(common.HexToAddress(params.From).Hex(), e.from.Hex()) {
		return "", fmt.Errorf("sender %s does not match signing key %s", params.From, e.from.Hex())
	}
	if !common.IsHexAddress(params.To) {
		return "", fmt.Errorf("invalid recipient address: %s", params.To)
	}

	tx, err := e.buildTx(ctx, params)
	if err != nil {
		return "", err
	}

	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(e.chainID), e.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := e.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	hash := signedTx.Hash().Hex()
	e.logger.Info("transaction broadcast", zap.String("hash", hash), zap.Uint64("nonce", signedTx.Nonce()))

	receipt, err := bind.WaitMined(ctx, e.client, signedTx)
	if err != nil {
		return hash, fmt.Errorf("failed waiting for transaction %s: %w", hash, err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return hash, fmt.Errorf("transaction %s reverted", hash)
	}

	return hash, nil
}

func (e *EVMSender) buildTx(ctx context.Context, params types.TxParams) (*ethtypes.Transaction, error) {
	nonce, err := e.client.PendingNonceAt(ctx, e.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := tokens.ParseQuantity(params.GasPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid gas price: %w", err)
	}
	if gasPrice.Sign() == 0 {
		gasPrice, err = e.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
	}

	gasLimit := defaultGasLimit
	if params.Gas != "" {
		limit, err := tokens.ParseQuantity(params.Gas)
		if err != nil {
			return nil, fmt.Errorf("invalid gas limit: %w", err)
		}
		if !limit.IsUint64() {
			return nil, fmt.Errorf("gas limit out of range: %s", params.Gas)
		}
		gasLimit = limit.Uint64()
	}

	value, err := tokens.ParseQuantity(params.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %w", err)
	}

	var data []byte
	if params.Data != "" && params.Data != "0x" {
		data, err = hexutil.Decode(params.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid data: %w", err)
		}
	}

	to := common.HexToAddress(params.To)
	return ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	}), nil
}
