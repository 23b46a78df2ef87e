package model

import (
	"time"
)

const (
	PlanFree    = "free"
	PlanBasic   = "basic"
	PlanPro     = "pro"
	PlanPremium = "premium"
)

const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
)

// Subscriber 订阅记录，按 email 或 cloud_id 匹配
type Subscriber struct {
	ID        int64      `gorm:"primaryKey" json:"id"`
	Email     string     `gorm:"size:100;index" json:"email"`
	CloudID   string     `gorm:"column:cloud_id;size:50;index" json:"cloud_id"`
	Plan      string     `gorm:"size:20;not null;default:free" json:"plan"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	Status    string     `gorm:"size:20;default:active;index" json:"status"` // active, cancelled
	TxnID     string     `gorm:"column:txn_id;size:100" json:"txn_id,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
	Version   int64      `gorm:"not null;default:0" json:"-"`
}

func (Subscriber) TableName() string {
	return "subscribers"
}
