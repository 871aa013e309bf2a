package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/trustbond/api/internal/models"
)

type LoanRepository interface {
	Insert(loan *models.Loan) (*models.Loan, error)
	GetOne(id string) (*models.Loan, bool, error)
	GetAllByBorrower(borrowerID string, limit, offset int) ([]models.Loan, error)
	GetAll(status string, limit, offset int) ([]models.Loan, error)
	GetOverdue(now time.Time) ([]models.Loan, error)
	CountByStatus(borrowerID string) (map[string]int, error)
	Update(loan *models.Loan, expectedStatus string) (bool, error)
	Repay(id, borrowerID string, amount decimal.Decimal) (*models.Loan, bool, error)
}

const loanColumns = `id, borrower_id, amount, interest_rate, term_months, status, applied_date, approval_date, funding_date, repayment_deadline, amount_repaid, reviewed_by, updated_at`

type LoanRepositoryImpl struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &LoanRepositoryImpl{db: db}
}

func (repo *LoanRepositoryImpl) Insert(loan *models.Loan) (*models.Loan, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var created models.Loan

	query := `
		INSERT INTO loans (borrower_id, amount, interest_rate, term_months)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + loanColumns

	err := repo.db.GetContext(ctx, &created, query,
		loan.BorrowerID,
		loan.Amount,
		loan.InterestRate,
		loan.TermMonths,
	)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (repo *LoanRepositoryImpl) GetOne(id string) (*models.Loan, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var loan models.Loan

	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	err := repo.db.GetContext(ctx, &loan, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &loan, true, nil
}

func (repo *LoanRepositoryImpl) GetAllByBorrower(borrowerID string, limit, offset int) ([]models.Loan, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	loans := []models.Loan{}

	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE borrower_id = $1
		ORDER BY applied_date DESC
		LIMIT $2 OFFSET $3`

	err := repo.db.SelectContext(ctx, &loans, query, borrowerID, limit, offset)
	if err != nil {
		return nil, err
	}

	return loans, nil
}

// GetAll lists every loan, optionally narrowed to one status.
func (repo *LoanRepositoryImpl) GetAll(status string, limit, offset int) ([]models.Loan, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	loans := []models.Loan{}

	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE ($1 = '' OR status = $1)
		ORDER BY applied_date DESC
		LIMIT $2 OFFSET $3`

	err := repo.db.SelectContext(ctx, &loans, query, status, limit, offset)
	if err != nil {
		return nil, err
	}

	return loans, nil
}

func (repo *LoanRepositoryImpl) GetOverdue(now time.Time) ([]models.Loan, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	loans := []models.Loan{}

	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE status = $1 AND repayment_deadline < $2`

	err := repo.db.SelectContext(ctx, &loans, query, models.LoanStatusFunded, now)
	if err != nil {
		return nil, err
	}

	return loans, nil
}

func (repo *LoanRepositoryImpl) CountByStatus(borrowerID string) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `SELECT status, COUNT(*) FROM loans WHERE borrower_id = $1 GROUP BY status`

	rows, err := repo.db.QueryContext(ctx, query, borrowerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

// Update writes the loan's mutable fields only if the stored status still
// equals expectedStatus. False means someone else moved the loan first.
func (repo *LoanRepositoryImpl) Update(loan *models.Loan, expectedStatus string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE loans
		SET status = $1, 
		    approval_date = $2, 
		    funding_date = $3, 
		    repayment_deadline = $4, 
		    amount_repaid = $5, 
		    reviewed_by = $6, 
		    updated_at = $7
		WHERE id = $8 AND status = $9`

	result, err := repo.db.ExecContext(ctx, query,
		loan.Status,
		loan.ApprovalDate,
		loan.FundingDate,
		loan.RepaymentDeadline,
		loan.AmountRepaid,
		loan.ReviewedBy,
		time.Now(),
		loan.ID,
		expectedStatus,
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

// Repay adds amount to a funded loan's amount_repaid in a single statement and
// closes the loan once the total due is covered. Concurrent repayments each
// add to the stored value. False means the loan is no longer funded or the
// amount would overshoot the total due.
func (repo *LoanRepositoryImpl) Repay(id, borrowerID string, amount decimal.Decimal) (*models.Loan, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var loan models.Loan

	// total due mirrors models.Loan.TotalDue
	query := `
		UPDATE loans
		SET amount_repaid = amount_repaid + $1,
		    status = CASE
		        WHEN amount_repaid + $1 >= ROUND(amount + amount * interest_rate / 100, 2) THEN $2
		        ELSE status
		    END,
		    updated_at = $3
		WHERE id = $4
		  AND borrower_id = $5
		  AND status = $6
		  AND amount_repaid + $1 <= ROUND(amount + amount * interest_rate / 100, 2)
		RETURNING ` + loanColumns

	err := repo.db.GetContext(ctx, &loan, query,
		amount,
		models.LoanStatusRepaid,
		time.Now(),
		id,
		borrowerID,
		models.LoanStatusFunded,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &loan, true, nil
}
