package model

import (
	"time"
)

// MaxEventPayloadLength 日志 payload 最大长度（字符）
const MaxEventPayloadLength = 50000

// EventLog webhook 审计日志，只追加
type EventLog struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	EventType string    `gorm:"size:100;index" json:"event_type"`
	Payload   string    `gorm:"type:mediumtext" json:"payload"`
}

func (EventLog) TableName() string {
	return "event_logs"
}
