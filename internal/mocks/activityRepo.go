package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/trustbond/api/internal/models"
)

type MockActivityRepo struct {
	mock.Mock
}

func (m *MockActivityRepo) CountConsecutiveFailedLoginAttempts(userID, action_desc string) int {
	args := m.Called(userID, action_desc)
	return args.Int(0)
}

func (m *MockActivityRepo) Insert(log *models.ActivityLog) (*models.ActivityLog, error) {
	args := m.Called(log)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ActivityLog), args.Error(1)
}

func (m *MockActivityRepo) GetAllByUser(userID string, limit, offset int) ([]models.ActivityLog, error) {
	args := m.Called(userID, limit, offset)
	return args.Get(0).([]models.ActivityLog), args.Error(1)
}
