package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/trustbond/api/internal/models"
)

type UserRepository interface {
	Insert(user *models.User, tx *sqlx.Tx) (string, error)
	GetOne(id string) (*models.User, bool, error)
	GetByEmail(email string) (*models.User, bool, error)
	GetByWalletAddress(address string) (*models.User, bool, error)
	GetAll(role string, limit, offset int) ([]models.User, error)
	UpdateProfile(user *models.User) error
	UpdateKYCStatus(id, status string, tx *sqlx.Tx) error
	Lock(id string) error
}

const (
	// UserAccountActiveStatus indicates that the user's account is active and fully functional.
	UserAccountActiveStatus = "active"

	// UserAccountLockedStatus indicates that the user's account has been locked,
	// typically after repeated failed sign-in attempts. A locked account cannot be accessed until unlocked.
	UserAccountLockedStatus = "locked"
)

const userColumns = `id, email, name, role, wallet_address, mfa_enabled, kyc_status, status, hashed_password, created_at, updated_at`

type UserRepositoryImpl struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &UserRepositoryImpl{db: db}
}

func (repo *UserRepositoryImpl) Insert(user *models.User, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string
	query := `
		INSERT INTO profiles (email, name, role, wallet_address, hashed_password, kyc_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := pick(repo.db, tx).GetContext(ctx, &id, query,
		user.Email,
		user.Name,
		user.Role,
		user.WalletAddress,
		user.HashedPassword,
		models.KYCStatusNotSubmitted,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicateRecord
		}
		return "", err
	}

	return id, nil
}

func (repo *UserRepositoryImpl) GetOne(id string) (*models.User, bool, error) {
	return repo.getOne(`SELECT `+userColumns+` FROM profiles WHERE id = $1`, id)
}

// Emails are stored lower-cased at registration.
func (repo *UserRepositoryImpl) GetByEmail(email string) (*models.User, bool, error) {
	return repo.getOne(`SELECT `+userColumns+` FROM profiles WHERE email = LOWER($1)`, email)
}

func (repo *UserRepositoryImpl) GetByWalletAddress(address string) (*models.User, bool, error) {
	return repo.getOne(`SELECT `+userColumns+` FROM profiles WHERE LOWER(wallet_address) = LOWER($1)`, address)
}

func (repo *UserRepositoryImpl) getOne(query string, args ...any) (*models.User, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var user models.User

	err := repo.db.GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &user, true, nil
}

func (repo *UserRepositoryImpl) GetAll(role string, limit, offset int) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	users := []models.User{}

	query := `
		SELECT ` + userColumns + `
		FROM profiles
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	err := repo.db.SelectContext(ctx, &users, query, role, limit, offset)
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (repo *UserRepositoryImpl) UpdateProfile(user *models.User) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE profiles
		SET name = $1, wallet_address = $2, mfa_enabled = $3, updated_at = $4
		WHERE id = $5`

	_, err := repo.db.ExecContext(ctx, query,
		user.Name,
		user.WalletAddress,
		user.MFAEnabled,
		time.Now(),
		user.ID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateRecord
	}

	return err
}

func (repo *UserRepositoryImpl) UpdateKYCStatus(id, status string, tx *sqlx.Tx) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE profiles SET kyc_status = $1, updated_at = $2 WHERE id = $3`

	_, err := pick(repo.db, tx).ExecContext(ctx, query, status, time.Now(), id)
	return err
}

func (repo *UserRepositoryImpl) Lock(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE profiles SET status = $1, updated_at = $2 WHERE id = $3`

	_, err := repo.db.ExecContext(ctx, query, UserAccountLockedStatus, time.Now(), id)
	return err
}
