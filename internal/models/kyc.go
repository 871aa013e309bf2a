package models

import (
	"database/sql"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

type KYCSubmission struct {
	ID                 string         `db:"id"`
	UserID             string         `db:"user_id"`
	DocumentType       string         `db:"document_type"`
	DocumentNumber     string         `db:"document_number"`
	DocumentHash       string         `db:"document_hash"`
	DocumentURL        sql.NullString `db:"document_url"`
	VerificationStatus string         `db:"verification_status"`
	Notes              sql.NullString `db:"notes"`
	VerifiedBy         sql.NullString `db:"verified_by"`
	SubmittedAt        time.Time      `db:"submitted_at"`
	VerifiedAt         sql.NullTime   `db:"verified_at"`
}

const (
	VerificationStatusPending  = "pending"
	VerificationStatusVerified = "verified"
	VerificationStatusRejected = "rejected"
)

var DocumentTypes = []string{"passport", "national_id", "drivers_license", "residence_permit"}

// DocumentHash fingerprints a document the same way the KYC verifier contract
// stores it: keccak256 over type, normalised number and the raw file bytes.
func DocumentHash(documentType, documentNumber string, content []byte) string {
	number := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(documentNumber), " ", ""))

	hash := crypto.Keccak256(
		[]byte(documentType),
		[]byte{0},
		[]byte(number),
		[]byte{0},
		content,
	)

	return "0x" + hex.EncodeToString(hash)
}

// ProfileKYCStatus maps a reviewed submission's outcome onto the profile.
func ProfileKYCStatus(verificationStatus string) string {
	switch verificationStatus {
	case VerificationStatusVerified:
		return KYCStatusVerified
	case VerificationStatusRejected:
		return KYCStatusRejected
	default:
		return KYCStatusPending
	}
}
