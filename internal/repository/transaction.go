package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/trustbond/api/internal/models"
)

type TransactionRepository interface {
	Insert(transaction *models.BlockchainTransaction) (*models.BlockchainTransaction, error)
	GetByHash(hash, account, userID string) (*models.BlockchainTransaction, bool, error)
	GetAllByAccount(account, userID string, limit, offset int) ([]models.BlockchainTransaction, error)
	GetPending() ([]models.BlockchainTransaction, error)
	Settle(hash, account, status string, blockNumber int64) (bool, error)
	DeleteAllByAccount(account, userID string) (int64, error)
}

const transactionColumns = `id, hash, account, user_id, type, description, network, status, block_number, metadata, submitted_at, settled_at`

type TransactionRepositoryImpl struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &TransactionRepositoryImpl{db: db}
}

// Insert records a newly submitted transaction as pending. A second insert for
// the same (hash, account) returns ErrDuplicateRecord.
func (repo *TransactionRepositoryImpl) Insert(transaction *models.BlockchainTransaction) (*models.BlockchainTransaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var created models.BlockchainTransaction

	query := `
		INSERT INTO blockchain_transactions (hash, account, user_id, type, description, network, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + transactionColumns

	// types.JSONText refuses to encode an empty value, NULL it instead
	var metadata any
	if len(transaction.Metadata) > 0 {
		metadata = transaction.Metadata
	}

	err := repo.db.GetContext(ctx, &created, query,
		transaction.Hash,
		transaction.Account,
		transaction.UserID,
		transaction.Type,
		transaction.Description,
		transaction.Network,
		models.TransactionStatusPending,
		metadata,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRecord
		}
		return nil, err
	}

	return &created, nil
}

// GetByHash, GetAllByAccount and DeleteAllByAccount only see rows recorded by
// the given profile, so an address rebound to another profile does not expose
// or lose the previous owner's history.
func (repo *TransactionRepositoryImpl) GetByHash(hash, account, userID string) (*models.BlockchainTransaction, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var transaction models.BlockchainTransaction

	query := `SELECT ` + transactionColumns + ` FROM blockchain_transactions WHERE hash = $1 AND account = $2 AND user_id = $3`

	err := repo.db.GetContext(ctx, &transaction, query, hash, account, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &transaction, true, nil
}

func (repo *TransactionRepositoryImpl) GetAllByAccount(account, userID string, limit, offset int) ([]models.BlockchainTransaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	transactions := []models.BlockchainTransaction{}

	query := `
		SELECT ` + transactionColumns + `
		FROM blockchain_transactions
		WHERE account = $1 AND user_id = $2
		ORDER BY submitted_at DESC
		LIMIT $3 OFFSET $4`

	err := repo.db.SelectContext(ctx, &transactions, query, account, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	return transactions, nil
}

func (repo *TransactionRepositoryImpl) GetPending() ([]models.BlockchainTransaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	transactions := []models.BlockchainTransaction{}

	query := `
		SELECT ` + transactionColumns + `
		FROM blockchain_transactions
		WHERE status = $1
		ORDER BY submitted_at ASC`

	err := repo.db.SelectContext(ctx, &transactions, query, models.TransactionStatusPending)
	if err != nil {
		return nil, err
	}

	return transactions, nil
}

// Settle moves a pending transaction to confirmed or failed. The status guard
// in the WHERE clause means a settled row is never rewritten; false is
// returned when nothing was pending.
func (repo *TransactionRepositoryImpl) Settle(hash, account, status string, blockNumber int64) (bool, error) {
	if !models.CanTransitionTransaction(models.TransactionStatusPending, status) {
		return false, errors.New("transactions can only settle as confirmed or failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE blockchain_transactions
		SET status = $1, block_number = $2, settled_at = $3
		WHERE hash = $4 AND account = $5 AND status = $6`

	result, err := repo.db.ExecContext(ctx, query,
		status,
		blockNumber,
		time.Now(),
		hash,
		account,
		models.TransactionStatusPending,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

// DeleteAllByAccount is the explicit history clear; it is the only way rows leave the table.
func (repo *TransactionRepositoryImpl) DeleteAllByAccount(account, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	result, err := repo.db.ExecContext(ctx, `DELETE FROM blockchain_transactions WHERE account = $1 AND user_id = $2`, account, userID)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
