package models

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// BlockchainTransaction is a transaction the client signed and broadcast from
// its wallet. The row is created pending and settled once from the receipt.
type BlockchainTransaction struct {
	ID          string         `db:"id"`
	Hash        string         `db:"hash"`
	Account     string         `db:"account"`
	UserID      sql.NullString `db:"user_id"`
	Type        string         `db:"type"`
	Description string         `db:"description"`
	Network     string         `db:"network"`
	Status      string         `db:"status"`
	BlockNumber sql.NullInt64  `db:"block_number"`
	Metadata    types.JSONText `db:"metadata"`
	Timestamp   time.Time      `db:"submitted_at"`
	SettledAt   sql.NullTime   `db:"settled_at"`
}

const (
	TransactionStatusPending   = "pending"
	TransactionStatusConfirmed = "confirmed"
	TransactionStatusFailed    = "failed"
)

var TransactionTypes = []string{
	"kyc_verification",
	"trust_score_update",
	"loan_application",
	"loan_funding",
	"loan_repayment",
	"transfer",
	"other",
}

// CanTransitionTransaction reports whether a tracked transaction may move from
// one status to another. Only pending rows move, and never back to pending.
func CanTransitionTransaction(from, to string) bool {
	return from == TransactionStatusPending &&
		(to == TransactionStatusConfirmed || to == TransactionStatusFailed)
}

// StatusFromReceipt maps the receipt status byte onto a tracked status.
func StatusFromReceipt(receiptStatus uint64) string {
	if receiptStatus == 1 {
		return TransactionStatusConfirmed
	}
	return TransactionStatusFailed
}

func (t *BlockchainTransaction) IsSettled() bool {
	return t.Status != TransactionStatusPending
}

// WatchKey identifies a tracked transaction; the same hash may be recorded
// once per account.
func (t *BlockchainTransaction) WatchKey() string {
	return WatchKey(t.Hash, t.Account)
}

func WatchKey(hash, account string) string {
	return hash + ":" + account
}
