package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/mhmpets/mhm_server/config"
)

const (
	ProviderSMTP = "smtp"
	ProviderSES  = "ses"
)

// Sender 投递一封 HTML 邮件
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// NewSender 按 provider 选择 SMTP 或 SES
func NewSender(ctx context.Context, cfg *config.EmailConfig) (Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderSES:
		return NewSESSender(ctx, cfg)
	case ProviderSMTP, "":
		return NewSMTPSender(cfg), nil
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}
}

type SMTPSender struct {
	cfg      *config.EmailConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg *config.EmailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}
}

// Send 发送 HTML 邮件
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	return s.sendMail(addr, auth, s.cfg.From, []string{to}, buildMessage(fromHeader(s.cfg), to, subject, htmlBody))
}

func buildMessage(from, to, subject, body string) []byte {
	headers := [][2]string{
		{"From", from},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var msg strings.Builder
	for _, h := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}

func fromHeader(cfg *config.EmailConfig) string {
	if cfg.FromName == "" {
		return cfg.From
	}
	return fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
}

// sesAPI SES v2 客户端中用到的方法
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type SESSender struct {
	client sesAPI
	from   string
}

// NewSESSender 配置了 access key 时使用静态凭证，否则走默认凭证链
func NewSESSender(ctx context.Context, cfg *config.EmailConfig) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SES.Region),
	}
	if cfg.SES.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.SES.AccessKeyID, cfg.SES.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESSender{client: sesv2.NewFromConfig(awsCfg), from: fromHeader(cfg)}, nil
}

func (s *SESSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
