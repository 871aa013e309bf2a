package stream

import (
	"time"

	"github.com/trustbond/api/internal/models"
)

// Topics carried on the event stream.
const (
	// TransactionSubmittedTopic receives a message whenever a client hands over a newly broadcast transaction
	TransactionSubmittedTopic = "blockchain.transaction.submitted"

	// TransactionSettledTopic receives a message once a tracked transaction is confirmed or failed
	TransactionSettledTopic = "blockchain.transaction.settled"

	// KYCReviewedTopic receives a message when a bank verifier approves or rejects a KYC submission
	KYCReviewedTopic = "kyc.submission.reviewed"

	// LoanStatusTopic receives a message on every loan status change
	LoanStatusTopic = "loan.status.changed"
)

type TransactionEvent struct {
	ID          string    `json:"id"`
	Hash        string    `json:"hash"`
	Account     string    `json:"account"`
	UserID      string    `json:"user_id,omitempty"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Network     string    `json:"network"`
	Status      string    `json:"status"`
	BlockNumber int64     `json:"block_number,omitempty"`
	At          time.Time `json:"at"`
}

type KYCReviewedEvent struct {
	SubmissionID string `json:"submission_id"`
	UserID       string `json:"user_id"`
	ReviewerID   string `json:"reviewer_id"`
	DocumentType string `json:"document_type"`
	DocumentHash string `json:"document_hash"`
	Status       string `json:"status"`
	Notes        string `json:"notes,omitempty"`
}

type LoanStatusEvent struct {
	LoanID            string     `json:"loan_id"`
	BorrowerID        string     `json:"borrower_id"`
	ActorID           string     `json:"actor_id,omitempty"`
	Status            string     `json:"status"`
	Amount            string     `json:"amount"`
	InterestRate      string     `json:"interest_rate"`
	TermMonths        int        `json:"term_months"`
	AmountRepaid      string     `json:"amount_repaid"`
	RepaymentDeadline *time.Time `json:"repayment_deadline,omitempty"`
}

func NewTransactionEvent(transaction models.BlockchainTransaction) TransactionEvent {
	event := TransactionEvent{
		ID:          transaction.ID,
		Hash:        transaction.Hash,
		Account:     transaction.Account,
		UserID:      transaction.UserID.String,
		Type:        transaction.Type,
		Description: transaction.Description,
		Network:     transaction.Network,
		Status:      transaction.Status,
		BlockNumber: transaction.BlockNumber.Int64,
		At:          transaction.Timestamp,
	}

	if transaction.SettledAt.Valid {
		event.At = transaction.SettledAt.Time
	}

	return event
}

func NewLoanStatusEvent(loan models.Loan, actorID string) LoanStatusEvent {
	event := LoanStatusEvent{
		LoanID:       loan.ID,
		BorrowerID:   loan.BorrowerID,
		ActorID:      actorID,
		Status:       loan.Status,
		Amount:       loan.Amount.StringFixed(2),
		InterestRate: loan.InterestRate.StringFixed(2),
		TermMonths:   loan.TermMonths,
		AmountRepaid: loan.AmountRepaid.StringFixed(2),
	}

	if loan.RepaymentDeadline.Valid {
		deadline := loan.RepaymentDeadline.Time
		event.RepaymentDeadline = &deadline
	}

	return event
}
