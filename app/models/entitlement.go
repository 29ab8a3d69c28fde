package models

import (
	"time"

	"gorm.io/gorm"
)

// Entitlement is the local, authoritative record of a user's feature tier.
// Mutated exclusively by the payment-event reconciler; everything else only
// reads it for feature gating.
type Entitlement struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	Plan        string     `gorm:"type:varchar(20);not null;default:'free'" json:"plan"`
	RenewalDate *time.Time `gorm:"type:timestamp;default:null" json:"renewal_date,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetOrCreateEntitlement returns the user's entitlement row, creating the
// default free-tier row on first access.
func GetOrCreateEntitlement(db *gorm.DB, userID uint) (*Entitlement, error) {
	var e Entitlement
	err := db.Where("user_id = ?", userID).First(&e).Error
	if err == nil {
		return &e, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	e = Entitlement{UserID: userID, Plan: "free"}
	if err := db.Create(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}
