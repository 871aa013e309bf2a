package models

import (
	"database/sql"
	"time"
)

type User struct {
	ID             string         `db:"id"`
	Email          string         `db:"email"`
	Name           string         `db:"name"`
	Role           string         `db:"role"`
	WalletAddress  sql.NullString `db:"wallet_address"`
	MFAEnabled     bool           `db:"mfa_enabled"`
	KYCStatus      string         `db:"kyc_status"`
	Status         string         `db:"status"`
	HashedPassword string         `db:"hashed_password"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      sql.NullTime   `db:"updated_at"`
}

// Roles are fixed when the profile is created.
const (
	RoleUser  = "user"
	RoleBank  = "bank"
	RoleAdmin = "admin"
)

// KYC status mirrored on the profile so role guards and loan checks don't need
// to look at submissions.
const (
	KYCStatusNotSubmitted = "not_submitted"
	KYCStatusPending      = "pending"
	KYCStatusVerified     = "verified"
	KYCStatusRejected     = "rejected"
)

// SelfRegistrableRoles lists the roles a visitor may pick at sign-up. Admins
// are only created by the seeder.
var SelfRegistrableRoles = []string{RoleUser, RoleBank}

// DashboardPath is where a signed-in client lands for the given role.
func DashboardPath(role string) string {
	switch role {
	case RoleUser:
		return "/dashboard"
	case RoleBank:
		return "/bank/dashboard"
	case RoleAdmin:
		return "/admin/dashboard"
	default:
		return "/login"
	}
}

func (u *User) HasRole(roles ...string) bool {
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

func (u *User) IsKYCVerified() bool {
	return u.KYCStatus == KYCStatusVerified
}

type RoleAssignment struct {
	ID         string         `db:"id"`
	UserID     string         `db:"user_id"`
	Role       string         `db:"role"`
	AssignedBy sql.NullString `db:"assigned_by"`
	CreatedAt  time.Time      `db:"created_at"`

	Email string `db:"email"`
}
