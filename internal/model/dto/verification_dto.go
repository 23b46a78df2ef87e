package dto

// SendVerificationCodeRequest 发送验证码
type SendVerificationCodeRequest struct {
	Email   string `form:"email" json:"email"`
	CloudID string `form:"cloudId" json:"cloudId"`
}

// SendVerificationCodeResponse 发送结果
type SendVerificationCodeResponse struct {
	ExpiresAt string `json:"expiresAt"`
}

// VerifyCodeRequest 校验验证码
type VerifyCodeRequest struct {
	Email   string     `form:"email" json:"email"`
	Code    FlexString `form:"code" json:"code"`
	CloudID string     `form:"cloudId" json:"cloudId"`
}

// VerifyCodeResponse 校验结果
type VerifyCodeResponse struct {
	Verified bool    `json:"verified"`
	CloudID  *string `json:"cloudId"`
	Linked   bool    `json:"linked"`
}

// LinkEmailRequest 绑定邮箱
type LinkEmailRequest struct {
	Email   string `form:"email" json:"email"`
	CloudID string `form:"cloudId" json:"cloudId"`
}

const (
	LinkCreated   = "created"
	LinkRefreshed = "refreshed"
	LinkRepointed = "repointed"
)

// LinkResult 绑定结果
type LinkResult struct {
	CloudID string `json:"cloudId"`
	Outcome string `json:"outcome"`
}

// RecoverAccountRequest 找回账号
type RecoverAccountRequest struct {
	Email string `form:"email" json:"email"`
}

// AccountInfo 绑定信息
type AccountInfo struct {
	Email    string `json:"email"`
	CloudID  string `json:"cloudId"`
	LinkedAt string `json:"linkedAt"`
}
