package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/mhmpets/mhm_server/internal/model"
)

// TestSubscriber 创建测试订阅者
func TestSubscriber(t *testing.T, db *gorm.DB, opts ...func(*model.Subscriber)) *model.Subscriber {
	t.Helper()

	now := time.Now().UTC()
	expiresAt := now.AddDate(1, 0, 0)
	sub := &model.Subscriber{
		Email:     fmt.Sprintf("sub_%d@example.com", now.UnixNano()),
		CloudID:   fmt.Sprintf("MHM-%04d", now.UnixNano()%10000),
		Plan:      model.PlanBasic,
		ExpiresAt: &expiresAt,
		Status:    model.SubscriptionActive,
	}

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscriber: %v", err)
	}

	return sub
}

// WithSubscriberEmail 设置邮箱
func WithSubscriberEmail(email string) func(*model.Subscriber) {
	return func(s *model.Subscriber) {
		s.Email = email
	}
}

// WithCloudID 设置 Cloud ID
func WithCloudID(cloudID string) func(*model.Subscriber) {
	return func(s *model.Subscriber) {
		s.CloudID = cloudID
	}
}

// WithPlan 设置套餐
func WithPlan(plan string) func(*model.Subscriber) {
	return func(s *model.Subscriber) {
		s.Plan = plan
	}
}

// WithExpiresAt 设置到期时间
func WithExpiresAt(expiresAt time.Time) func(*model.Subscriber) {
	return func(s *model.Subscriber) {
		s.ExpiresAt = &expiresAt
	}
}

// WithStatus 设置状态
func WithStatus(status string) func(*model.Subscriber) {
	return func(s *model.Subscriber) {
		s.Status = status
	}
}

// TestAccount 创建测试绑定
func TestAccount(t *testing.T, db *gorm.DB, email, cloudID string) *model.UserAccount {
	t.Helper()

	account := &model.UserAccount{
		Email:    email,
		CloudID:  cloudID,
		LinkedAt: time.Now().UTC().Add(-time.Hour),
	}

	if err := db.Create(account).Error; err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}

	return account
}

// TestVerificationCode 直接写入验证码记录（codeHash 需调用方准备）
func TestVerificationCode(t *testing.T, db *gorm.DB, email, codeHash string, expiresAt time.Time) *model.VerificationCode {
	t.Helper()

	code := &model.VerificationCode{
		Email:     email,
		CodeHash:  codeHash,
		ExpiresAt: expiresAt,
	}

	if err := db.Create(code).Error; err != nil {
		t.Fatalf("Failed to create test verification code: %v", err)
	}

	return code
}
