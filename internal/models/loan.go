package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidLoanTransition = errors.New("loan cannot move to the requested status")
	ErrLoanNotFunded         = errors.New("only funded loans accept repayments")
	ErrInvalidRepayment      = errors.New("repayment amount must be greater than zero")
	ErrRepaymentPrecision    = errors.New("repayment amount must have at most 2 decimal places")
	ErrRepaymentExceedsDue   = errors.New("repayment amount exceeds the outstanding balance")
)

const (
	LoanStatusApplied   = "applied"
	LoanStatusApproved  = "approved"
	LoanStatusRejected  = "rejected"
	LoanStatusFunded    = "funded"
	LoanStatusRepaid    = "repaid"
	LoanStatusDefaulted = "defaulted"
)

var LoanStatuses = []string{
	LoanStatusApplied,
	LoanStatusApproved,
	LoanStatusRejected,
	LoanStatusFunded,
	LoanStatusRepaid,
	LoanStatusDefaulted,
}

// loanTransitions lists the statuses reachable from each status. Rejected,
// repaid and defaulted are terminal.
var loanTransitions = map[string][]string{
	LoanStatusApplied:  {LoanStatusApproved, LoanStatusRejected},
	LoanStatusApproved: {LoanStatusFunded, LoanStatusRejected},
	LoanStatusFunded:   {LoanStatusRepaid, LoanStatusDefaulted},
}

type Loan struct {
	ID                string          `db:"id"`
	BorrowerID        string          `db:"borrower_id"`
	Amount            decimal.Decimal `db:"amount"`
	InterestRate      decimal.Decimal `db:"interest_rate"`
	TermMonths        int             `db:"term_months"`
	Status            string          `db:"status"`
	AppliedDate       time.Time       `db:"applied_date"`
	ApprovalDate      sql.NullTime    `db:"approval_date"`
	FundingDate       sql.NullTime    `db:"funding_date"`
	RepaymentDeadline sql.NullTime    `db:"repayment_deadline"`
	AmountRepaid      decimal.Decimal `db:"amount_repaid"`
	ReviewedBy        sql.NullString  `db:"reviewed_by"`
	UpdatedAt         sql.NullTime    `db:"updated_at"`
}

func CanTransitionLoan(from, to string) bool {
	for _, next := range loanTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the loan to status and stamps the matching dates.
func (l *Loan) Transition(to string, at time.Time) error {
	if !CanTransitionLoan(l.Status, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidLoanTransition, l.Status, to)
	}

	switch to {
	case LoanStatusApproved:
		l.ApprovalDate = sql.NullTime{Time: at, Valid: true}
	case LoanStatusFunded:
		l.FundingDate = sql.NullTime{Time: at, Valid: true}
		l.RepaymentDeadline = sql.NullTime{Time: at.AddDate(0, l.TermMonths, 0), Valid: true}
	}

	l.Status = to
	l.UpdatedAt = sql.NullTime{Time: at, Valid: true}
	return nil
}

// TotalDue is principal plus simple interest for the whole term.
func (l *Loan) TotalDue() decimal.Decimal {
	interest := l.Amount.Mul(l.InterestRate).Div(decimal.NewFromInt(100))
	return l.Amount.Add(interest).Round(2)
}

func (l *Loan) Outstanding() decimal.Decimal {
	outstanding := l.TotalDue().Sub(l.AmountRepaid)
	if outstanding.IsNegative() {
		return decimal.Zero
	}
	return outstanding
}

// ApplyRepayment adds amount to the repaid total and closes the loan once the
// total due is covered. It reports whether the loan became repaid. Amounts
// finer than a cent or above the outstanding balance are refused.
func (l *Loan) ApplyRepayment(amount decimal.Decimal, at time.Time) (bool, error) {
	if l.Status != LoanStatusFunded {
		return false, ErrLoanNotFunded
	}

	if !amount.IsPositive() {
		return false, ErrInvalidRepayment
	}

	if !amount.Equal(amount.Round(2)) {
		return false, ErrRepaymentPrecision
	}

	if amount.GreaterThan(l.Outstanding()) {
		return false, ErrRepaymentExceedsDue
	}

	l.AmountRepaid = l.AmountRepaid.Add(amount)
	l.UpdatedAt = sql.NullTime{Time: at, Valid: true}

	if l.AmountRepaid.GreaterThanOrEqual(l.TotalDue()) {
		return true, l.Transition(LoanStatusRepaid, at)
	}

	return false, nil
}

func (l *Loan) IsOverdue(now time.Time) bool {
	return l.Status == LoanStatusFunded && l.RepaymentDeadline.Valid && now.After(l.RepaymentDeadline.Time)
}
