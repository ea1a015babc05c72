package models

import "time"

// WebhookEvent records a gateway event that changed local state.
type WebhookEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventID    string    `gorm:"size:255;uniqueIndex;not null" json:"event_id"`
	Type       string    `gorm:"size:100;not null" json:"type"`
	GatewayRef string    `gorm:"size:255;index" json:"payment_intent_id"`
	Outcome    string    `gorm:"size:32" json:"outcome"`
	CreatedAt  time.Time `json:"created_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
