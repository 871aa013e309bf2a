package mocks

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/trustbond/api/internal/models"
)

type MockRoleAssignmentRepo struct {
	mock.Mock
}

func (m *MockRoleAssignmentRepo) Insert(userID, role string, assignedBy sql.NullString, tx *sqlx.Tx) error {
	args := m.Called(userID, role, assignedBy, tx)
	return args.Error(0)
}

func (m *MockRoleAssignmentRepo) GetAll(limit, offset int) ([]models.RoleAssignment, error) {
	args := m.Called(limit, offset)
	return args.Get(0).([]models.RoleAssignment), args.Error(1)
}
