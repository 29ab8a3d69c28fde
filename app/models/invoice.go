package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Sync status values for invoices. The sync engine is the only component
// allowed to move an invoice between these states.
const (
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusFailed  = "failed"
)

// Invoice is owned by the invoicing domain. The integration core reads it and
// transitions sync_status; no other field is ever touched by the core.
type Invoice struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UUID          string     `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	InvoiceNumber string     `gorm:"type:varchar(50);not null;index" json:"invoice_number"`
	CustomerName  string     `gorm:"type:varchar(200);not null" json:"customer_name" validate:"required,max=200"`
	Total         float64    `gorm:"type:decimal(12,2);not null" json:"total" validate:"gte=0"`
	DueAt         *time.Time `gorm:"type:timestamp;default:null" json:"due_at,omitempty"`
	SyncStatus    string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"sync_status"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Invoice) Validate() error {
	v := validator.New()

	return v.Struct(i)
}

// NewInvoice builds an unsaved invoice with a generated public UUID and
// document number, starting in the pending sync state.
func NewInvoice(userID uint, customerName string, total float64, dueAt *time.Time) *Invoice {
	return &Invoice{
		UUID:          uuid.New().String(),
		UserID:        userID,
		InvoiceNumber: fmt.Sprintf("INV-%d", time.Now().UnixMilli()),
		CustomerName:  customerName,
		Total:         total,
		DueAt:         dueAt,
		SyncStatus:    SyncStatusPending,
	}
}
