package mocks

import (
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/trustbond/api/internal/models"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Insert(user *models.User, tx *sqlx.Tx) (string, error) {
	args := m.Called(user, tx)
	return args.String(0), args.Error(1)
}

func (m *MockUserRepo) GetOne(id string) (*models.User, bool, error) {
	args := m.Called(id)
	return userArg(args.Get(0)), args.Bool(1), args.Error(2)
}

func (m *MockUserRepo) GetByEmail(email string) (*models.User, bool, error) {
	args := m.Called(email)
	return userArg(args.Get(0)), args.Bool(1), args.Error(2)
}

func (m *MockUserRepo) GetByWalletAddress(address string) (*models.User, bool, error) {
	args := m.Called(address)
	return userArg(args.Get(0)), args.Bool(1), args.Error(2)
}

func (m *MockUserRepo) GetAll(role string, limit, offset int) ([]models.User, error) {
	args := m.Called(role, limit, offset)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepo) UpdateProfile(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepo) UpdateKYCStatus(id, status string, tx *sqlx.Tx) error {
	args := m.Called(id, status, tx)
	return args.Error(0)
}

func (m *MockUserRepo) Lock(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func userArg(v any) *models.User {
	if v == nil {
		return nil
	}
	return v.(*models.User)
}
