package dto

// 字段使用 camelCase，与 App 客户端保持兼容

// Entitlement 订阅权益
type Entitlement struct {
	Plan      string  `json:"plan"`
	MaxPets   int     `json:"maxPets"`
	IsActive  bool    `json:"isActive"`
	ExpiresAt *string `json:"expiresAt"`
	Email     *string `json:"email"`
	CloudID   *string `json:"cloudId"`
}

// CheckSubscriptionRequest 查询订阅
type CheckSubscriptionRequest struct {
	Email   string `form:"email" json:"email"`
	CloudID string `form:"cloudId" json:"cloudId"`
}

// RegisterSubscriptionRequest 手动登记订阅
type RegisterSubscriptionRequest struct {
	Email   string `form:"email" json:"email"`
	CloudID string `form:"cloudId" json:"cloudId"`
	Plan    string `form:"plan" json:"plan"`
	TxnID   string `form:"txnId" json:"txnId"`
}

// RegisterSubscriptionResponse 登记结果
type RegisterSubscriptionResponse struct {
	CloudID   string `json:"cloudId"`
	ExpiresAt string `json:"expiresAt"`
}

// SubscriberInfo 订阅者（列表与管理同步）
type SubscriberInfo struct {
	Email     string `json:"email"`
	CloudID   string `json:"cloudId"`
	Plan      string `json:"plan"`
	CreatedAt string `json:"createdAt"`
	ExpiresAt string `json:"expiresAt"`
	Status    string `json:"status"`
	TxnID     string `json:"txnId"`
	UpdatedAt string `json:"updatedAt"`
}

// BulkSyncRequest 管理端全量同步
type BulkSyncRequest struct {
	Subscribers []SubscriberInfo `json:"subscribers"`
}
