package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/trustbond/api/internal/models"
)

// Role assignments are an append-only audit of which role each profile was
// created with and by whom. The profile's role column remains the source of truth.
type RoleAssignmentRepository interface {
	Insert(userID, role string, assignedBy sql.NullString, tx *sqlx.Tx) error
	GetAll(limit, offset int) ([]models.RoleAssignment, error)
}

type RoleAssignmentRepositoryImpl struct {
	db *sqlx.DB
}

func NewRoleAssignmentRepository(db *sqlx.DB) RoleAssignmentRepository {
	return &RoleAssignmentRepositoryImpl{db: db}
}

func (repo *RoleAssignmentRepositoryImpl) Insert(userID, role string, assignedBy sql.NullString, tx *sqlx.Tx) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO user_role_assignments (user_id, role, assigned_by)
		VALUES ($1, $2, $3)`

	_, err := pick(repo.db, tx).ExecContext(ctx, query, userID, role, assignedBy)
	return err
}

func (repo *RoleAssignmentRepositoryImpl) GetAll(limit, offset int) ([]models.RoleAssignment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	assignments := []models.RoleAssignment{}

	query := `
		SELECT 
			ura.id, 
			ura.user_id, 
			ura.role, 
			ura.assigned_by, 
			ura.created_at,
			p.email
		FROM 
			user_role_assignments ura
		JOIN 
			profiles p ON p.id = ura.user_id
		ORDER BY 
			ura.created_at DESC
		LIMIT $1 OFFSET $2`

	err := repo.db.SelectContext(ctx, &assignments, query, limit, offset)
	if err != nil {
		return nil, err
	}

	return assignments, nil
}
