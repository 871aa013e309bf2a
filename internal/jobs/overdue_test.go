package jobs

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trustbond/api/internal/models"
)

type mockLoanStore struct {
	mock.Mock
}

func (m *mockLoanStore) GetOverdue(now time.Time) ([]models.Loan, error) {
	args := m.Called(now)
	return args.Get(0).([]models.Loan), args.Error(1)
}

func (m *mockLoanStore) Update(loan *models.Loan, expectedStatus string) (bool, error) {
	args := m.Called(loan, expectedStatus)
	return args.Bool(0), args.Error(1)
}

func fundedLoan(id string, deadline time.Time) models.Loan {
	return models.Loan{
		ID:                id,
		Amount:            decimal.NewFromInt(1000),
		Status:            models.LoanStatusFunded,
		RepaymentDeadline: sql.NullTime{Time: deadline, Valid: true},
	}
}

func TestOverdueSweeper_Run(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 5, 0, 0, time.UTC)
	store := new(mockLoanStore)

	store.On("GetOverdue", now).Return([]models.Loan{
		fundedLoan("a", now.AddDate(0, 0, -1)),
		fundedLoan("b", now.AddDate(0, 0, -3)),
	}, nil)
	store.On("Update", mock.MatchedBy(func(l *models.Loan) bool { return l.ID == "a" }), models.LoanStatusFunded).Return(true, nil)
	// b was repaid between the read and the update
	store.On("Update", mock.MatchedBy(func(l *models.Loan) bool { return l.ID == "b" }), models.LoanStatusFunded).Return(false, nil)

	var defaulted []string
	sweeper := &OverdueSweeper{
		Loans:       store,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnDefaulted: func(l models.Loan) { defaulted = append(defaulted, l.ID) },
		Now:         func() time.Time { return now },
	}

	count, err := sweeper.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"a"}, defaulted)

	store.AssertExpectations(t)
}

func TestOverdueSweeper_SkipsLoansNotYetDue(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store := new(mockLoanStore)
	store.On("GetOverdue", now).Return([]models.Loan{fundedLoan("a", now.AddDate(0, 0, 2))}, nil)

	sweeper := &OverdueSweeper{
		Loans:  store,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return now },
	}

	count, err := sweeper.Run()
	require.NoError(t, err)
	assert.Zero(t, count)
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

type countingResumer struct{ calls int }

func (c *countingResumer) ResumePending() (int, error) {
	c.calls++
	return 0, nil
}

func TestSchedulerRegistersJobs(t *testing.T) {
	scheduler, err := NewScheduler()
	require.NoError(t, err)
	defer scheduler.Shutdown()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err = OverdueLoansJob(scheduler, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0)), &OverdueSweeper{Loans: new(mockLoanStore), Logger: logger}, logger)
	require.NoError(t, err)

	_, err = ResumePendingJob(scheduler, time.Minute, &countingResumer{}, logger)
	require.NoError(t, err)

	assert.Len(t, scheduler.Jobs(), 2)
}
