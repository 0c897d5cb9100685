package txn

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wallet-swap/pkg/storage"
	"wallet-swap/pkg/types"
)

// Transaction categories of swap transactions
const (
	CategorySwap         = "swap"
	CategorySwapApproval = "swapApproval"
)

// OriginWallet marks transactions created by the wallet itself
const OriginWallet = "wallet"

const transactionsKey = "transactions"

// Status is where a transaction is in its lifecycle
type Status string

const (
	StatusUnapproved Status = "unapproved"
	StatusApproved   Status = "approved"
	StatusSubmitted  Status = "submitted"
	StatusConfirmed  Status = "confirmed"
	StatusFailed     Status = "failed"
)

var (
	// ErrTxNotFound is returned for an unknown transaction id
	ErrTxNotFound = errors.New("transaction not found")
	// ErrNotUnapproved is returned when approving a transaction twice
	ErrNotUnapproved = errors.New("transaction is not awaiting approval")
)

// SubmissionError is returned when an approved transaction could not be
// signed, broadcast or confirmed
type SubmissionError struct {
	TxID string
	Err  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.TxID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// TxMeta is a transaction record with the swap annotations the wallet keeps
// alongside it
type TxMeta struct {
	ID       string         `json:"id"`
	Origin   string         `json:"origin"`
	Time     int64          `json:"time"`
	Status   Status         `json:"status"`
	TxParams types.TxParams `json:"txParams"`
	Hash     string         `json:"hash,omitempty"`
	Err      string         `json:"err,omitempty"`

	TransactionCategory      string         `json:"transactionCategory,omitempty"`
	SourceTokenSymbol        string         `json:"sourceTokenSymbol,omitempty"`
	DestinationTokenSymbol   string         `json:"destinationTokenSymbol,omitempty"`
	DestinationTokenDecimals int            `json:"destinationTokenDecimals,omitempty"`
	DestinationTokenAddress  string         `json:"destinationTokenAddress,omitempty"`
	SwapMetaData             map[string]any `json:"swapMetaData,omitempty"`
	SwapTokenValue           string         `json:"swapTokenValue,omitempty"`
	ApprovalTxID             string         `json:"approvalTxId,omitempty"`
}

// Sender signs, broadcasts and waits for a transaction. It returns the
// transaction hash once the transaction is confirmed successfully.
type Sender interface {
	Send(ctx context.Context, params types.TxParams) (string, error)
}

// Controller keeps the wallet's transaction records and drives approved
// transactions through a Sender
type Controller struct {
	sender Sender
	store  storage.Store
	logger *zap.Logger
	now    func() time.Time

	mu  sync.RWMutex
	txs map[string]*TxMeta
}

// NewController creates a controller. store may be nil to keep records in
// memory only.
func NewController(sender Sender, store storage.Store, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		sender: sender,
		store:  store,
		logger: logger.Named("txn"),
		now:    time.Now,
		txs:    make(map[string]*TxMeta),
	}
}

// AddUnapprovedTransaction records a new transaction awaiting approval
func (c *Controller) AddUnapprovedTransaction(ctx context.Context, params types.TxParams, origin string) (*TxMeta, error) {
	if !common.IsHexAddress(params.To) {
		return nil, fmt.Errorf("invalid recipient address: %s", params.To)
	}
	if params.From != "" && !common.IsHexAddress(params.From) {
		return nil, fmt.Errorf("invalid sender address: %s", params.From)
	}

	meta := &TxMeta{
		ID:       uuid.New().String(),
		Origin:   origin,
		Time:     c.now().UnixMilli(),
		Status:   StatusUnapproved,
		TxParams: params,
	}

	c.mu.Lock()
	c.txs[meta.ID] = meta
	c.mu.Unlock()

	c.logger.Debug("transaction added", zap.String("id", meta.ID), zap.String("origin", origin))
	if err := c.persist(ctx); err != nil {
		return nil, err
	}
	out := *meta
	return &out, nil
}

// UpdateTransaction replaces a transaction's record. Only unapproved
// transactions can be updated.
func (c *Controller) UpdateTransaction(ctx context.Context, meta TxMeta) (*TxMeta, error) {
	c.mu.Lock()
	existing, ok := c.txs[meta.ID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, meta.ID)
	}
	if existing.Status != StatusUnapproved {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotUnapproved, meta.ID)
	}
	meta.Status = existing.Status
	meta.Time = existing.Time
	stored := meta
	c.txs[meta.ID] = &stored
	c.mu.Unlock()

	if err := c.persist(ctx); err != nil {
		return nil, err
	}
	return &meta, nil
}

// UpdateAndApproveTx records meta, approves it and sends it. Any failure
// after approval is returned as a *SubmissionError.
func (c *Controller) UpdateAndApproveTx(ctx context.Context, meta TxMeta) error {
	if _, err := c.UpdateTransaction(ctx, meta); err != nil {
		return err
	}
	c.setStatus(meta.ID, StatusApproved, "", "")

	c.setStatus(meta.ID, StatusSubmitted, "", "")
	hash, err := c.sender.Send(ctx, meta.TxParams)
	if err != nil {
		c.setStatus(meta.ID, StatusFailed, "", err.Error())
		c.logger.Warn("transaction failed", zap.String("id", meta.ID), zap.Error(err))
		_ = c.persist(ctx)
		return &SubmissionError{TxID: meta.ID, Err: err}
	}

	c.setStatus(meta.ID, StatusConfirmed, hash, "")
	c.logger.Info("transaction confirmed",
		zap.String("id", meta.ID),
		zap.String("hash", hash),
		zap.String("category", meta.TransactionCategory),
	)
	return c.persist(ctx)
}

// Get returns a copy of a transaction's record
func (c *Controller) Get(id string) (*TxMeta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.txs[id]
	if !ok {
		return nil, false
	}
	out := *meta
	return &out, true
}

// List returns all records, oldest first
func (c *Controller) List() []TxMeta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]TxMeta, 0, len(c.txs))
	for _, meta := range c.txs {
		out = append(out, *meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func (c *Controller) setStatus(id string, status Status, hash, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	meta, ok := c.txs[id]
	if !ok {
		return
	}
	meta.Status = status
	if hash != "" {
		meta.Hash = hash
	}
	meta.Err = errMsg
}

func (c *Controller) persist(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Save(ctx, transactionsKey, c.List()); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}
	return nil
}
