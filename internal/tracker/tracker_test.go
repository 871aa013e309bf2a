package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/repository"
)

const (
	testHash    = "0x8a1f5f4f1f4e1c3a2b9d7e6f5a4b3c2d1e0f9a8b7c6d5e4f3a2b1c0d9e8f7a6b"
	testAccount = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

type fakeRepo struct {
	mu   sync.Mutex
	rows map[string]*models.BlockchainTransaction

	settleCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]*models.BlockchainTransaction{}}
}

func (r *fakeRepo) Insert(tx *models.BlockchainTransaction) (*models.BlockchainTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := tx.WatchKey()
	if _, ok := r.rows[key]; ok {
		return nil, repository.ErrDuplicateRecord
	}

	row := *tx
	row.ID = "id-" + tx.Hash[:6]
	row.Timestamp = time.Now()
	r.rows[key] = &row

	created := row
	return &created, nil
}

func (r *fakeRepo) GetPending() ([]models.BlockchainTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []models.BlockchainTransaction
	for _, row := range r.rows {
		if row.Status == models.TransactionStatusPending {
			pending = append(pending, *row)
		}
	}
	return pending, nil
}

func (r *fakeRepo) Settle(hash, account, status string, blockNumber int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settleCalls++
	row, ok := r.rows[models.WatchKey(hash, account)]
	if !ok || row.Status != models.TransactionStatusPending {
		return false, nil
	}

	row.Status = status
	row.BlockNumber.Int64 = blockNumber
	row.BlockNumber.Valid = true
	return true, nil
}

func (r *fakeRepo) status(hash, account string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[models.WatchKey(hash, account)].Status
}

// fakeFetcher reports not found for the first `misses` lookups of each hash.
type fakeFetcher struct {
	misses  int32
	status  uint64
	failing atomic.Bool
	calls   atomic.Int32
}

func (f *fakeFetcher) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	n := f.calls.Add(1)
	if f.failing.Load() {
		return nil, errors.New("connection refused")
	}
	if n <= f.misses {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: f.status, TxHash: hash, BlockNumber: big.NewInt(42)}, nil
}

func newTestTracker(repo Repository, fetcher *fakeFetcher) *Tracker {
	return New(repo, fetcher, 5*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func pendingTx(hash string) *models.BlockchainTransaction {
	return &models.BlockchainTransaction{
		Hash:    hash,
		Account: testAccount,
		Type:    "transfer",
		Network: "Sepolia",
	}
}

func TestTracker_SubmitConfirms(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{misses: 2, status: types.ReceiptStatusSuccessful}
	tr := newTestTracker(repo, fetcher)
	defer tr.Shutdown()

	settled := make(chan models.BlockchainTransaction, 1)
	tr.OnSettled(func(tx models.BlockchainTransaction) { settled <- tx })

	created, err := tr.Submit(pendingTx(testHash))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, created.Status)

	select {
	case tx := <-settled:
		assert.Equal(t, models.TransactionStatusConfirmed, tx.Status)
		assert.EqualValues(t, 42, tx.BlockNumber.Int64)
	case <-time.After(2 * time.Second):
		t.Fatal("transaction was not settled")
	}

	assert.Equal(t, models.TransactionStatusConfirmed, repo.status(testHash, testAccount))
	assert.GreaterOrEqual(t, fetcher.calls.Load(), int32(3))

	require.Eventually(t, func() bool { return tr.Watching() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTracker_FailedReceipt(t *testing.T) {
	repo := newFakeRepo()
	tr := newTestTracker(repo, &fakeFetcher{status: types.ReceiptStatusFailed})
	defer tr.Shutdown()

	_, err := tr.Submit(pendingTx(testHash))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return repo.status(testHash, testAccount) == models.TransactionStatusFailed
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTracker_SubmitValidation(t *testing.T) {
	tr := newTestTracker(newFakeRepo(), &fakeFetcher{})
	defer tr.Shutdown()

	_, err := tr.Submit(pendingTx("0x1234"))
	assert.ErrorIs(t, err, ErrInvalidHash)

	tx := pendingTx(testHash)
	tx.Account = "nope"
	_, err = tr.Submit(tx)
	assert.ErrorIs(t, err, ErrInvalidAccount)
}

func TestTracker_DuplicateSubmit(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.failing.Store(true)
	tr := newTestTracker(newFakeRepo(), fetcher)
	defer tr.Shutdown()

	_, err := tr.Submit(pendingTx(testHash))
	require.NoError(t, err)

	_, err = tr.Submit(pendingTx(testHash))
	assert.ErrorIs(t, err, ErrAlreadyTracked)

	// the same hash may be tracked for another account
	other := pendingTx(testHash)
	other.Account = "0x0000000000000000000000000000000000000001"
	_, err = tr.Submit(other)
	require.NoError(t, err)

	assert.Equal(t, 2, tr.Watching())
}

func TestTracker_KeepsPollingThroughErrors(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{status: types.ReceiptStatusSuccessful}
	fetcher.failing.Store(true)
	tr := newTestTracker(repo, fetcher)
	defer tr.Shutdown()

	_, err := tr.Submit(pendingTx(testHash))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fetcher.calls.Load() > 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.TransactionStatusPending, repo.status(testHash, testAccount))
	assert.True(t, tr.IsWatching(testHash, testAccount))

	fetcher.failing.Store(false)

	require.Eventually(t, func() bool {
		return repo.status(testHash, testAccount) == models.TransactionStatusConfirmed
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTracker_ShutdownLeavesPending(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{}
	fetcher.failing.Store(true)
	tr := newTestTracker(repo, fetcher)

	_, err := tr.Submit(pendingTx(testHash))
	require.NoError(t, err)

	tr.Shutdown()

	assert.Equal(t, 0, tr.Watching())
	assert.Equal(t, models.TransactionStatusPending, repo.status(testHash, testAccount))

	_, err = tr.Submit(pendingTx(strings.Replace(testHash, "8a", "8b", 1)))
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestTracker_ResumePending(t *testing.T) {
	repo := newFakeRepo()
	_, err := repo.Insert(&models.BlockchainTransaction{Hash: testHash, Account: testAccount, Status: models.TransactionStatusPending})
	require.NoError(t, err)
	_, err = repo.Insert(&models.BlockchainTransaction{
		Hash:    strings.Replace(testHash, "8a", "8b", 1),
		Account: testAccount,
		Status:  models.TransactionStatusConfirmed,
	})
	require.NoError(t, err)

	fetcher := &fakeFetcher{}
	fetcher.failing.Store(true)
	tr := newTestTracker(repo, fetcher)
	defer tr.Shutdown()

	started, err := tr.ResumePending()
	require.NoError(t, err)
	assert.Equal(t, 1, started)

	// already watched rows are not doubled up
	started, err = tr.ResumePending()
	require.NoError(t, err)
	assert.Equal(t, 0, started)
}

func TestTracker_SettledElsewhereStopsPolling(t *testing.T) {
	repo := newFakeRepo()
	tr := newTestTracker(repo, &fakeFetcher{status: types.ReceiptStatusSuccessful})
	defer tr.Shutdown()

	var hooks atomic.Int32
	tr.OnSettled(func(models.BlockchainTransaction) { hooks.Add(1) })

	row := pendingTx(testHash)
	row.Status = models.TransactionStatusPending
	_, err := repo.Insert(row)
	require.NoError(t, err)
	_, err = repo.Settle(testHash, testAccount, models.TransactionStatusFailed, 1)
	require.NoError(t, err)

	// a stale pending copy must not overwrite the settled row
	stale := *row
	stale.Status = models.TransactionStatusPending
	require.True(t, tr.Watch(stale))

	require.Eventually(t, func() bool { return tr.Watching() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.TransactionStatusFailed, repo.status(testHash, testAccount))
	assert.EqualValues(t, 0, hooks.Load())
}
