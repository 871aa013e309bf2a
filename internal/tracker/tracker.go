package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trustbond/api/internal/chain"
	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/validator"
)

const (
	DefaultPollInterval = 3 * time.Second
	receiptTimeout      = 10 * time.Second
)

var (
	ErrAlreadyTracked = errors.New("transaction is already being tracked for this account")
	ErrInvalidHash    = errors.New("transaction hash must be 0x followed by 64 hex characters")
	ErrInvalidAccount = errors.New("account must be a valid ethereum address")
	ErrShutdown       = errors.New("tracker has been shut down")
)

// Repository is the storage the tracker writes to.
type Repository interface {
	Insert(transaction *models.BlockchainTransaction) (*models.BlockchainTransaction, error)
	GetPending() ([]models.BlockchainTransaction, error)
	Settle(hash, account, status string, blockNumber int64) (bool, error)
}

// SettledHook runs once for every transaction the tracker settles.
type SettledHook func(transaction models.BlockchainTransaction)

// Tracker records submitted transactions as pending and polls the node for
// their receipts until each one settles. There is one poller per
// (hash, account); pollers retry without limit and stop only when the row
// settles or the tracker shuts down.
type Tracker struct {
	repo     Repository
	fetcher  chain.ReceiptFetcher
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	watching map[string]struct{}
	hooks    []SettledHook
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(repo Repository, fetcher chain.ReceiptFetcher, interval time.Duration, logger *slog.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Tracker{
		repo:     repo,
		fetcher:  fetcher,
		interval: interval,
		logger:   logger,
		watching: make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (t *Tracker) OnSettled(hook SettledHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, hook)
}

// Submit stores the transaction as pending and starts polling for its receipt.
// It returns as soon as the row is written.
func (t *Tracker) Submit(transaction *models.BlockchainTransaction) (*models.BlockchainTransaction, error) {
	if !validator.IsTxHash(transaction.Hash) {
		return nil, ErrInvalidHash
	}
	if !validator.IsEthAddress(transaction.Account) {
		return nil, ErrInvalidAccount
	}

	if t.isClosed() {
		return nil, ErrShutdown
	}

	transaction.Status = models.TransactionStatusPending

	created, err := t.repo.Insert(transaction)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateRecord) {
			return nil, ErrAlreadyTracked
		}
		return nil, err
	}

	t.Watch(*created)
	return created, nil
}

// Watch starts a poller for a pending transaction. It reports false when the
// transaction is settled, already watched, or the tracker is shut down.
func (t *Tracker) Watch(transaction models.BlockchainTransaction) bool {
	if transaction.IsSettled() {
		return false
	}

	key := transaction.WatchKey()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	if _, ok := t.watching[key]; ok {
		t.mu.Unlock()
		return false
	}
	t.watching[key] = struct{}{}
	t.wg.Add(1)
	t.mu.Unlock()

	go t.poll(transaction)
	return true
}

// ResumePending re-watches every pending row, for example after a restart.
// It returns how many new pollers were started.
func (t *Tracker) ResumePending() (int, error) {
	pending, err := t.repo.GetPending()
	if err != nil {
		return 0, fmt.Errorf("load pending transactions: %w", err)
	}

	started := 0
	for _, transaction := range pending {
		if t.Watch(transaction) {
			started++
		}
	}

	if started > 0 {
		t.logger.Info("resumed pending transactions", "count", started)
	}

	return started, nil
}

func (t *Tracker) IsWatching(hash, account string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.watching[models.WatchKey(hash, account)]
	return ok
}

func (t *Tracker) Watching() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.watching)
}

// Shutdown stops every poller and waits for them to return. Pending rows stay
// pending and are picked up by ResumePending on the next start.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
}

func (t *Tracker) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Tracker) poll(transaction models.BlockchainTransaction) {
	key := transaction.WatchKey()

	defer func() {
		if err := recover(); err != nil {
			t.logger.Error("transaction poller panicked", "hash", transaction.Hash, "error", err)
		}

		t.mu.Lock()
		delete(t.watching, key)
		t.mu.Unlock()

		t.wg.Done()
	}()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			if t.check(&transaction) {
				return
			}
		}
	}
}

// check asks the node for a receipt once. It reports true when polling for
// this transaction is finished.
func (t *Tracker) check(transaction *models.BlockchainTransaction) bool {
	ctx, cancel := context.WithTimeout(t.ctx, receiptTimeout)
	defer cancel()

	receipt, err := t.fetcher.TransactionReceipt(ctx, common.HexToHash(transaction.Hash))
	if err != nil {
		if !chain.IsNotFound(err) && t.ctx.Err() == nil {
			t.logger.Warn("receipt lookup failed", "hash", transaction.Hash, "error", err)
		}
		return false
	}

	status := models.StatusFromReceipt(receipt.Status)

	var blockNumber int64
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Int64()
	}

	settled, err := t.repo.Settle(transaction.Hash, transaction.Account, status, blockNumber)
	if err != nil {
		t.logger.Error("failed to settle transaction", "hash", transaction.Hash, "error", err)
		return false
	}

	if !settled {
		// another instance or an earlier poller got there first
		return true
	}

	transaction.Status = status
	transaction.BlockNumber.Int64 = blockNumber
	transaction.BlockNumber.Valid = true
	transaction.SettledAt.Time = time.Now()
	transaction.SettledAt.Valid = true

	t.logger.Info("transaction settled", "hash", transaction.Hash, "account", transaction.Account, "status", status, "block", blockNumber)

	t.mu.Lock()
	hooks := make([]SettledHook, len(t.hooks))
	copy(hooks, t.hooks)
	t.mu.Unlock()

	for _, hook := range hooks {
		hook(*transaction)
	}

	return true
}
