package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/trustbond/api/internal/models"
)

type MockTransactionRepo struct {
	mock.Mock
}

func (m *MockTransactionRepo) Insert(transaction *models.BlockchainTransaction) (*models.BlockchainTransaction, error) {
	args := m.Called(transaction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BlockchainTransaction), args.Error(1)
}

func (m *MockTransactionRepo) GetByHash(hash, account, userID string) (*models.BlockchainTransaction, bool, error) {
	args := m.Called(hash, account, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.BlockchainTransaction), args.Bool(1), args.Error(2)
}

func (m *MockTransactionRepo) GetAllByAccount(account, userID string, limit, offset int) ([]models.BlockchainTransaction, error) {
	args := m.Called(account, userID, limit, offset)
	return args.Get(0).([]models.BlockchainTransaction), args.Error(1)
}

func (m *MockTransactionRepo) GetPending() ([]models.BlockchainTransaction, error) {
	args := m.Called()
	return args.Get(0).([]models.BlockchainTransaction), args.Error(1)
}

func (m *MockTransactionRepo) Settle(hash, account, status string, blockNumber int64) (bool, error) {
	args := m.Called(hash, account, status, blockNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepo) DeleteAllByAccount(account, userID string) (int64, error) {
	args := m.Called(account, userID)
	return args.Get(0).(int64), args.Error(1)
}
