package mocks

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/trustbond/api/internal/models"
)

type MockLoanRepo struct {
	mock.Mock
}

func (m *MockLoanRepo) Insert(loan *models.Loan) (*models.Loan, error) {
	args := m.Called(loan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanRepo) GetOne(id string) (*models.Loan, bool, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Loan), args.Bool(1), args.Error(2)
}

func (m *MockLoanRepo) GetAllByBorrower(borrowerID string, limit, offset int) ([]models.Loan, error) {
	args := m.Called(borrowerID, limit, offset)
	return args.Get(0).([]models.Loan), args.Error(1)
}

func (m *MockLoanRepo) GetAll(status string, limit, offset int) ([]models.Loan, error) {
	args := m.Called(status, limit, offset)
	return args.Get(0).([]models.Loan), args.Error(1)
}

func (m *MockLoanRepo) GetOverdue(now time.Time) ([]models.Loan, error) {
	args := m.Called(now)
	return args.Get(0).([]models.Loan), args.Error(1)
}

func (m *MockLoanRepo) CountByStatus(borrowerID string) (map[string]int, error) {
	args := m.Called(borrowerID)
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockLoanRepo) Update(loan *models.Loan, expectedStatus string) (bool, error) {
	args := m.Called(loan, expectedStatus)
	return args.Bool(0), args.Error(1)
}

func (m *MockLoanRepo) Repay(id, borrowerID string, amount decimal.Decimal) (*models.Loan, bool, error) {
	args := m.Called(id, borrowerID, amount)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Loan), args.Bool(1), args.Error(2)
}
