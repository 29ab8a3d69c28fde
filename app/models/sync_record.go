package models

import "time"

// Sync outcome values recorded in the ledger.
const (
	SyncOutcomeSuccess = "success"
	SyncOutcomeFailed  = "failed"
)

// SyncRecord is one entry in the append-only sync ledger: one row per sync
// attempt, never updated or deleted. The invoice's sync_status always matches
// the outcome of its most recent record.
type SyncRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	InvoiceID uint      `gorm:"not null;index" json:"invoice_id"`
	Status    string    `gorm:"type:varchar(20);not null" json:"status"`
	Message   string    `gorm:"type:text" json:"message"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	Invoice *Invoice `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
}
