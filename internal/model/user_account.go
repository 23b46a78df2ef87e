package model

import (
	"time"
)

// UserAccount 邮箱与 Cloud ID 的绑定关系
type UserAccount struct {
	ID       int64     `gorm:"primaryKey" json:"id"`
	Email    string    `gorm:"size:100;not null;index" json:"email"`
	CloudID  string    `gorm:"column:cloud_id;size:50;not null;index" json:"cloud_id"`
	LinkedAt time.Time `gorm:"not null" json:"linked_at"`
}

func (UserAccount) TableName() string {
	return "user_accounts"
}
