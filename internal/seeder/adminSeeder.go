package seeders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cradoe/gopass"
	"github.com/trustbond/api/internal/models"
)

var ErrAdminNotConfigured = errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set to seed an admin")

type AdminAccount struct {
	Email    string
	Password string
	Name     string
}

// seedAdmin creates the admin profile and its role assignment. Admins cannot
// sign up, so this is the only way one comes to exist. An existing profile
// with the same email is left alone.
func (seeder *Seeder) seedAdmin() error {
	admin := seeder.Admin
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))

	if admin.Email == "" || admin.Password == "" {
		return ErrAdminNotConfigured
	}

	_, found, err := seeder.DB.User().GetByEmail(admin.Email)
	if err != nil {
		return err
	}

	if found {
		log.Printf("Admin %s already exists, skipping", admin.Email)
		return nil
	}

	if _, errs := gopass.Validate(admin.Password); errs != nil {
		return fmt.Errorf("admin password does not meet the password policy: %v", errs)
	}

	hashedPassword, err := gopass.Hash(admin.Password)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	tx, err := seeder.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	userID, err := seeder.DB.User().Insert(&models.User{
		Email:          admin.Email,
		Name:           admin.Name,
		Role:           models.RoleAdmin,
		HashedPassword: hashedPassword,
	}, tx)
	if err != nil {
		return fmt.Errorf("failed to insert admin: %w", err)
	}

	err = seeder.DB.RoleAssignment().Insert(userID, models.RoleAdmin, sql.NullString{}, tx)
	if err != nil {
		return fmt.Errorf("failed to assign admin role: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("Admin %s seeded", admin.Email)
	return nil
}
