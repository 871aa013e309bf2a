package models

import "time"

// ActivityLog is one audit entry. Entity names the kind of record touched
// (profile, wallet, KYC submission, loan, tracked transaction) and EntityId its id.
type ActivityLog struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"-"`
	Entity      string    `db:"entity" json:"entity"`
	EntityId    string    `db:"entity_id" json:"entity_id"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
