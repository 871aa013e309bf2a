package mocks

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/trustbond/api/internal/models"
)

type MockKYCSubmissionRepo struct {
	mock.Mock
}

func (m *MockKYCSubmissionRepo) Insert(submission *models.KYCSubmission, tx *sqlx.Tx) (*models.KYCSubmission, error) {
	args := m.Called(submission, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.KYCSubmission), args.Error(1)
}

func (m *MockKYCSubmissionRepo) GetOne(id string) (*models.KYCSubmission, bool, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.KYCSubmission), args.Bool(1), args.Error(2)
}

func (m *MockKYCSubmissionRepo) GetAllByUser(userID string) ([]models.KYCSubmission, error) {
	args := m.Called(userID)
	return args.Get(0).([]models.KYCSubmission), args.Error(1)
}

func (m *MockKYCSubmissionRepo) GetPending(limit, offset int) ([]models.KYCSubmission, error) {
	args := m.Called(limit, offset)
	return args.Get(0).([]models.KYCSubmission), args.Error(1)
}

func (m *MockKYCSubmissionRepo) HasOpenSubmission(userID string) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockKYCSubmissionRepo) Review(id, status, reviewerID string, notes sql.NullString, tx *sqlx.Tx) (bool, error) {
	args := m.Called(id, status, reviewerID, notes, tx)
	return args.Bool(0), args.Error(1)
}
