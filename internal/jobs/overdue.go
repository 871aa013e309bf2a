package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/trustbond/api/internal/models"
)

type LoanStore interface {
	GetOverdue(now time.Time) ([]models.Loan, error)
	Update(loan *models.Loan, expectedStatus string) (bool, error)
}

// OverdueSweeper marks funded loans past their repayment deadline as defaulted.
type OverdueSweeper struct {
	Loans       LoanStore
	Logger      *slog.Logger
	OnDefaulted func(loan models.Loan)
	Now         func() time.Time
}

// Run returns the number of loans it moved to defaulted. A loan that changed
// status concurrently is skipped.
func (s *OverdueSweeper) Run() (int, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	loans, err := s.Loans.GetOverdue(now)
	if err != nil {
		return 0, fmt.Errorf("load overdue loans: %w", err)
	}

	count := 0
	for i := range loans {
		loan := loans[i]
		if !loan.IsOverdue(now) {
			continue
		}

		if err := loan.Transition(models.LoanStatusDefaulted, now); err != nil {
			s.Logger.Warn("skipping overdue loan", "loan_id", loan.ID, "error", err)
			continue
		}

		updated, err := s.Loans.Update(&loan, models.LoanStatusFunded)
		if err != nil {
			return count, fmt.Errorf("default loan %s: %w", loan.ID, err)
		}
		if !updated {
			continue
		}

		count++
		if s.OnDefaulted != nil {
			s.OnDefaulted(loan)
		}
	}

	return count, nil
}
