// Every action (synchronous or asynchronous) that changes a profile, a KYC
// submission, a loan or a tracked transaction is logged here for audit.
// entity and entity_id are polymorphic so one table serves every part of the application.
package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/trustbond/api/internal/models"
)

type ActivityRepository interface {
	CountConsecutiveFailedLoginAttempts(userID, action_desc string) int
	Insert(log *models.ActivityLog) (*models.ActivityLog, error)
	GetAllByUser(userID string, limit, offset int) ([]models.ActivityLog, error)
}

const (
	// ActivityLogTransactionEntity is used for tracked blockchain transactions
	ActivityLogTransactionEntity = "blockchain_transaction"

	// ActivityLogKYCEntity is used for KYC document submissions and reviews
	ActivityLogKYCEntity = "kyc_submission"

	// ActivityLogLoanEntity is used for loan applications and their lifecycle
	ActivityLogLoanEntity = "loan"

	// ActivityLogUserEntity is used in activites that has to do with the profile itself
	ActivityLogUserEntity = "user"

	// ActivityLogWalletEntity is used for wallet connection changes
	ActivityLogWalletEntity = "wallet"
)

type ActivityRepositoryImpl struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &ActivityRepositoryImpl{db: db}
}

func (repo *ActivityRepositoryImpl) Insert(log *models.ActivityLog) (*models.ActivityLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var created models.ActivityLog

	query := `
		INSERT INTO activity_logs (user_id, entity, entity_id, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, entity, entity_id, description, created_at`

	err := repo.db.GetContext(ctx, &created, query,
		log.UserID,
		log.Entity,
		log.EntityId,
		log.Description,
	)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (repo *ActivityRepositoryImpl) GetAllByUser(userID string, limit, offset int) ([]models.ActivityLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	logs := []models.ActivityLog{}

	query := `
		SELECT id, user_id, entity, entity_id, description, created_at
		FROM activity_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	err := repo.db.SelectContext(ctx, &logs, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	return logs, nil
}

// CountConsecutiveFailedLoginAttempts counts the number of consecutive failed login attempts for a user.
// This function is used to determine if a user’s account should be temporarily locked after 3 consecutive failures.
// It checks the most recent login attempts in descending order and counts failures until a successful login or the limit is reached.
func (repo *ActivityRepositoryImpl) CountConsecutiveFailedLoginAttempts(userID, action_desc string) int {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var descriptions []string

	query := `
		SELECT description 
		FROM activity_logs 
		WHERE user_id = $1 AND entity = $2 
		ORDER BY created_at DESC 
		LIMIT 3
	`
	err := repo.db.SelectContext(ctx, &descriptions, query, userID, ActivityLogUserEntity)
	if err != nil {
		return 0
	}

	count := 0
	for _, desc := range descriptions {
		if desc == action_desc {
			count++
		} else {
			break
		}
	}

	return count
}
