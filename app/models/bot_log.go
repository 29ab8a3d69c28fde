package models

import "time"

// Bot log types written by the integration core.
const (
	BotLogPaymentFailed = "payment_failed"
	BotLogWhatsAppSend  = "whatsapp_send"
)

// BotLog is an append-only audit entry for side effects that have no other
// durable trace (failed payments, outbound messages).
type BotLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	LogType   string    `gorm:"type:varchar(50);not null;index" json:"log_type"`
	Message   string    `gorm:"type:text" json:"message"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
