package models

import "time"

// Payment provider constants.
const (
	PaymentProviderStripe = "stripe"
)

// SubscriptionMapping links a payment-provider customer to a local user so
// that asynchronous webhook events, which only carry provider ids, can be
// resolved. Written on checkout completion, read by every later event.
type SubscriptionMapping struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	UserID                 uint      `gorm:"not null;index" json:"user_id"`
	Provider               string    `gorm:"type:varchar(20);not null;index:ux_subscription_mappings_provider_customer,unique,priority:1" json:"provider"`
	ProviderCustomerID     string    `gorm:"type:varchar(191);not null;index:ux_subscription_mappings_provider_customer,unique,priority:2" json:"provider_customer_id"`
	ProviderSubscriptionID string    `gorm:"type:varchar(191);not null;default:''" json:"provider_subscription_id"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
