package dto

import (
	"encoding/json"
)

// PayPalWebhookEvent PayPal webhook 事件
type PayPalWebhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

// PayPalSubscriptionResource BILLING.SUBSCRIPTION.* 事件的 resource
type PayPalSubscriptionResource struct {
	ID         string `json:"id"`
	PlanID     string `json:"plan_id"`
	Subscriber *struct {
		EmailAddress string `json:"email_address"`
	} `json:"subscriber"`
}

// PayPalPaymentResource PAYMENT.* 事件的 resource
type PayPalPaymentResource struct {
	ID    string `json:"id"`
	Payer *struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
	Amount *struct {
		Total string `json:"total"`
		Value string `json:"value"`
	} `json:"amount"`
}

// LegacyPaymentNotification 旧版 IPN 表单字段
type LegacyPaymentNotification struct {
	PaymentStatus string `form:"payment_status" json:"payment_status"`
	TxnType       string `form:"txn_type" json:"txn_type"`
	PayerEmail    string `form:"payer_email" json:"payer_email"`
	Gross         string `form:"mc_gross" json:"mc_gross"`
	TxnID         string `form:"txn_id" json:"txn_id"`
}

// WebhookResult 对账结果
type WebhookResult struct {
	EventType string `json:"eventType"`
	Action    string `json:"action"` // activated, cancelled, extended, ignored, duplicate
	Plan      string `json:"plan,omitempty"`
	Message   string `json:"-"`
}
