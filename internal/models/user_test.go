package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDashboardPath(t *testing.T) {
	assert.Equal(t, "/dashboard", DashboardPath(RoleUser))
	assert.Equal(t, "/bank/dashboard", DashboardPath(RoleBank))
	assert.Equal(t, "/admin/dashboard", DashboardPath(RoleAdmin))
	assert.Equal(t, "/login", DashboardPath(""))
	assert.Equal(t, "/login", DashboardPath("auditor"))
}

func TestUser_HasRole(t *testing.T) {
	u := &User{Role: RoleBank}

	assert.True(t, u.HasRole(RoleBank, RoleAdmin))
	assert.False(t, u.HasRole(RoleAdmin))
}

func TestDocumentHash(t *testing.T) {
	content := []byte("scan")

	a := DocumentHash("passport", "a12 345", content)
	b := DocumentHash("passport", " A12345 ", content)
	c := DocumentHash("national_id", "A12345", content)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 66)
}

func TestProfileKYCStatus(t *testing.T) {
	assert.Equal(t, KYCStatusVerified, ProfileKYCStatus(VerificationStatusVerified))
	assert.Equal(t, KYCStatusRejected, ProfileKYCStatus(VerificationStatusRejected))
	assert.Equal(t, KYCStatusPending, ProfileKYCStatus(VerificationStatusPending))
}
