package model

import (
	"time"
)

// VerificationCode 邮箱验证码，每个邮箱同时最多一条
type VerificationCode struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:100;not null;index" json:"email"`
	CodeHash  string    `gorm:"size:100;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CloudID   string    `gorm:"column:cloud_id;size:50" json:"cloud_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (VerificationCode) TableName() string {
	return "verification_codes"
}

func (v *VerificationCode) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
