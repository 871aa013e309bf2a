package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/trustbond/api/internal/models"
)

type KYCSubmissionRepository interface {
	Insert(submission *models.KYCSubmission, tx *sqlx.Tx) (*models.KYCSubmission, error)
	GetOne(id string) (*models.KYCSubmission, bool, error)
	GetAllByUser(userID string) ([]models.KYCSubmission, error)
	GetPending(limit, offset int) ([]models.KYCSubmission, error)
	HasOpenSubmission(userID string) (bool, error)
	Review(id, status, reviewerID string, notes sql.NullString, tx *sqlx.Tx) (bool, error)
}

const kycColumns = `id, user_id, document_type, document_number, document_hash, document_url, verification_status, notes, verified_by, submitted_at, verified_at`

type KYCSubmissionRepositoryImpl struct {
	db *sqlx.DB
}

func NewKYCSubmissionRepository(db *sqlx.DB) KYCSubmissionRepository {
	return &KYCSubmissionRepositoryImpl{db: db}
}

func (repo *KYCSubmissionRepositoryImpl) Insert(submission *models.KYCSubmission, tx *sqlx.Tx) (*models.KYCSubmission, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var created models.KYCSubmission

	query := `
		INSERT INTO kyc_document_submissions (user_id, document_type, document_number, document_hash, document_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + kycColumns

	err := pick(repo.db, tx).GetContext(ctx, &created, query,
		submission.UserID,
		submission.DocumentType,
		submission.DocumentNumber,
		submission.DocumentHash,
		submission.DocumentURL,
	)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (repo *KYCSubmissionRepositoryImpl) GetOne(id string) (*models.KYCSubmission, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var submission models.KYCSubmission

	query := `SELECT ` + kycColumns + ` FROM kyc_document_submissions WHERE id = $1`

	err := repo.db.GetContext(ctx, &submission, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &submission, true, nil
}

func (repo *KYCSubmissionRepositoryImpl) GetAllByUser(userID string) ([]models.KYCSubmission, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	submissions := []models.KYCSubmission{}

	query := `
		SELECT ` + kycColumns + `
		FROM kyc_document_submissions
		WHERE user_id = $1
		ORDER BY submitted_at DESC`

	err := repo.db.SelectContext(ctx, &submissions, query, userID)
	if err != nil {
		return nil, err
	}

	return submissions, nil
}

// GetPending returns the verifier queue, oldest first.
func (repo *KYCSubmissionRepositoryImpl) GetPending(limit, offset int) ([]models.KYCSubmission, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	submissions := []models.KYCSubmission{}

	query := `
		SELECT ` + kycColumns + `
		FROM kyc_document_submissions
		WHERE verification_status = $1
		ORDER BY submitted_at ASC
		LIMIT $2 OFFSET $3`

	err := repo.db.SelectContext(ctx, &submissions, query, models.VerificationStatusPending, limit, offset)
	if err != nil {
		return nil, err
	}

	return submissions, nil
}

// HasOpenSubmission reports whether the user already has a submission that is
// pending or verified. Only rejected submissions may be followed by a new one.
func (repo *KYCSubmissionRepositoryImpl) HasOpenSubmission(userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var exists bool

	query := `
		SELECT EXISTS(
			SELECT 1 FROM kyc_document_submissions 
			WHERE user_id = $1 AND verification_status IN ($2, $3)
		)`

	err := repo.db.GetContext(ctx, &exists, query, userID, models.VerificationStatusPending, models.VerificationStatusVerified)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// Review settles a pending submission. It reports false when the submission
// was not pending any more, so two verifiers cannot both review it.
func (repo *KYCSubmissionRepositoryImpl) Review(id, status, reviewerID string, notes sql.NullString, tx *sqlx.Tx) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE kyc_document_submissions
		SET verification_status = $1, verified_by = $2, notes = $3, verified_at = $4
		WHERE id = $5 AND verification_status = $6`

	result, err := pick(repo.db, tx).ExecContext(ctx, query,
		status,
		reviewerID,
		notes,
		time.Now(),
		id,
		models.VerificationStatusPending,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}
