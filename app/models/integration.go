package models

import "time"

// Integration provider names.
const (
	IntegrationQuickBooks = "quickbooks"
)

// Integration stores a user's credential for an external provider: one row
// per (user, provider). expires_at is the authoritative freshness bound for
// the access token; nothing else inspects token contents.
type Integration struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index:ux_integrations_user_name,unique,priority:1" json:"user_id"`
	IntegrationName string    `gorm:"type:varchar(50);not null;index:ux_integrations_user_name,unique,priority:2" json:"integration_name"`
	AccessToken     string    `gorm:"type:text" json:"-"`
	RefreshToken    string    `gorm:"type:text" json:"-"`
	ExpiresAt       time.Time `gorm:"type:timestamp;not null" json:"expires_at"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsExpired reports whether the stored access token is past its freshness bound.
func (i *Integration) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
