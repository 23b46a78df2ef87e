package email

import (
	"context"
	"fmt"
	"html"
)

const (
	verificationSubject = "🐾 Your verification code - MHM Pets"
	recoverySubject     = "🐾 Account recovery - MHM Pets"
)

// Service 模板化邮件
type Service struct {
	sender     Sender
	codeTTLMin int
}

func NewService(sender Sender, codeTTLMinutes int) *Service {
	return &Service{sender: sender, codeTTLMin: codeTTLMinutes}
}

// SendVerificationCode 发送邮箱验证码
func (s *Service) SendVerificationCode(ctx context.Context, to, code string) error {
	body := fmt.Sprintf(layout, "Mi Historia Médica - Mascota", fmt.Sprintf(`
            <h2>Verification code</h2>
            <p>Use this code to verify your account:</p>
            <div class="code">%s</div>
            <p class="note">⏰ This code expires in %d minutes.</p>
            <p class="note">If you did not request this code, ignore this email.</p>`,
		html.EscapeString(code), s.codeTTLMin))

	return s.sender.Send(ctx, to, verificationSubject, body)
}

// SendAccountRecovery 发送 Cloud ID 找回邮件
func (s *Service) SendAccountRecovery(ctx context.Context, to, cloudID string) error {
	body := fmt.Sprintf(layout, "Account recovery", fmt.Sprintf(`
            <h2>We found your account!</h2>
            <p>Your Cloud ID is:</p>
            <div class="code mono">%s</div>
            <p class="note">📋 Use this ID to restore your data in the app.</p>
            <p class="note">🔒 Keep this ID somewhere safe.</p>`,
		html.EscapeString(cloudID)))

	return s.sender.Send(ctx, to, recoverySubject, body)
}

const layout = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; background: #f5f5f5; padding: 20px; }
        .container { max-width: 500px; margin: 0 auto; background: white; border-radius: 15px; overflow: hidden; }
        .header { background: linear-gradient(135deg, #1b5e20, #4caf50); color: white; padding: 30px; text-align: center; }
        .body { padding: 30px; text-align: center; }
        .code { font-size: 34px; font-weight: bold; color: #1b5e20; letter-spacing: 6px; padding: 20px; background: #e8f5e9; border-radius: 10px; margin: 20px 0; }
        .mono { font-family: monospace; }
        .note { color: #666; font-size: 14px; margin-top: 20px; }
        .footer { padding: 20px; text-align: center; color: #999; font-size: 12px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>🐾 MHM Pets</h1>
            <p>%s</p>
        </div>
        <div class="body">%s
        </div>
        <div class="footer">
            <p>MHM Pets</p>
        </div>
    </div>
</body>
</html>
`
