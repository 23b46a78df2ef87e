package dto

import (
	"bytes"
	"encoding/json"
)

// ActionRequest /exec 单入口请求体，字段按 action 取用
type ActionRequest struct {
	Action      string           `json:"action"`
	Email       string           `json:"email"`
	CloudID     string           `json:"cloudId"`
	Code        FlexString       `json:"code"`
	Plan        string           `json:"plan"`
	TxnID       string           `json:"txnId"`
	Subscribers []SubscriberInfo `json:"subscribers"`
}

// FlexString 客户端可能以数字传验证码
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}
