package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mhmpets/mhm_server/internal/model"
	"github.com/mhmpets/mhm_server/internal/model/dto"
	"github.com/mhmpets/mhm_server/internal/pkg/email"
	"github.com/mhmpets/mhm_server/internal/repository"
)

// Mailer 验证码与找回邮件
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, code string) error
	SendAccountRecovery(ctx context.Context, to, cloudID string) error
}

type VerificationService struct {
	codeRepo       *repository.VerificationRepository
	accountRepo    *repository.AccountRepository
	subscriberRepo *repository.SubscriberRepository
	mailer         Mailer
	codeTTL        time.Duration
	hashCost       int
	now            func() time.Time
}

func NewVerificationService(
	codeRepo *repository.VerificationRepository,
	accountRepo *repository.AccountRepository,
	subscriberRepo *repository.SubscriberRepository,
	mailer Mailer,
	codeTTL time.Duration,
	hashCost int,
) *VerificationService {
	if codeTTL <= 0 {
		codeTTL = 10 * time.Minute
	}
	if hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
		hashCost = bcrypt.DefaultCost
	}

	return &VerificationService{
		codeRepo:       codeRepo,
		accountRepo:    accountRepo,
		subscriberRepo: subscriberRepo,
		mailer:         mailer,
		codeTTL:        codeTTL,
		hashCost:       hashCost,
		now:            time.Now,
	}
}

// IssueCode 生成 6 位验证码，替换该邮箱的旧验证码后发送
// 发送失败时验证码仍然保留，返回结果的同时返回 ErrNotification
func (s *VerificationService) IssueCode(ctx context.Context, addr, cloudID string) (*dto.SendVerificationCodeResponse, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, ErrEmailRequired
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().UTC().Add(s.codeTTL)
	row := &model.VerificationCode{
		Email:     addr,
		CodeHash:  string(hash),
		ExpiresAt: expiresAt,
		CloudID:   strings.TrimSpace(cloudID),
		CreatedAt: s.now().UTC(),
	}
	if err := s.codeRepo.ReplaceForEmail(ctx, row); err != nil {
		return nil, storeError(err)
	}

	resp := &dto.SendVerificationCodeResponse{ExpiresAt: formatTime(expiresAt)}

	if err := s.mailer.SendVerificationCode(ctx, addr, code); err != nil {
		log.Printf("Failed to send verification code to %s: %v", email.RedactEmail(addr), err)
		return resp, fmt.Errorf("%w: %w", ErrNotification, err)
	}

	return resp, nil
}

// VerifyCode 校验验证码，成功或过期都会删除记录
func (s *VerificationService) VerifyCode(ctx context.Context, addr, code, cloudID string) (*dto.VerifyCodeResponse, error) {
	addr = strings.TrimSpace(addr)
	code = strings.TrimSpace(code)
	cloudID = strings.TrimSpace(cloudID)
	if addr == "" {
		return nil, ErrEmailRequired
	}
	if code == "" {
		return nil, ErrCodeRequired
	}

	rows, err := s.codeRepo.ListByEmail(ctx, addr)
	if err != nil {
		return nil, storeError(err)
	}

	var matched *model.VerificationCode
	for i := range rows {
		if bcrypt.CompareHashAndPassword([]byte(rows[i].CodeHash), []byte(code)) == nil {
			matched = &rows[i]
			break
		}
	}
	if matched == nil {
		return nil, ErrInvalidCode
	}

	deleted, err := s.codeRepo.Delete(ctx, matched.ID)
	if err != nil {
		return nil, storeError(err)
	}
	if deleted == 0 {
		return nil, ErrInvalidCode
	}
	if matched.Expired(s.now()) {
		return nil, ErrExpiredCode
	}

	resp := &dto.VerifyCodeResponse{Verified: true}
	if cloudID != "" {
		if _, err := s.LinkEmail(ctx, addr, cloudID); err != nil {
			// 验证码已消费，绑定失败不影响验证结果
			log.Printf("Link after verification failed for %s: %v", email.RedactEmail(addr), err)
		} else {
			resp.Linked = true
		}
	}

	switch {
	case matched.CloudID != "":
		resp.CloudID = &matched.CloudID
	case cloudID != "":
		resp.CloudID = &cloudID
	}

	return resp, nil
}

// LinkEmail 绑定邮箱与 Cloud ID
// 先分别找出邮箱和 Cloud ID 的已有绑定，再统一判定，不依赖扫描顺序
func (s *VerificationService) LinkEmail(ctx context.Context, addr, cloudID string) (*dto.LinkResult, error) {
	addr = strings.TrimSpace(addr)
	cloudID = strings.TrimSpace(cloudID)
	if addr == "" {
		return nil, ErrEmailRequired
	}
	if cloudID == "" {
		return nil, ErrCloudIDRequired
	}

	accounts, err := s.accountRepo.ListByEmailOrCloudID(ctx, addr, cloudID)
	if err != nil {
		return nil, storeError(err)
	}

	var emailRow, cloudRow *model.UserAccount
	for i := range accounts {
		if emailRow == nil && accounts[i].Email == addr {
			emailRow = &accounts[i]
		}
		if cloudRow == nil && accounts[i].CloudID == cloudID {
			cloudRow = &accounts[i]
		}
	}

	now := s.now().UTC()
	switch {
	case emailRow != nil && emailRow.CloudID != cloudID:
		return nil, ErrAlreadyLinked

	case emailRow != nil:
		if err := s.accountRepo.UpdateFields(ctx, emailRow.ID, map[string]interface{}{"linked_at": now}); err != nil {
			return nil, storeError(err)
		}
		return &dto.LinkResult{CloudID: cloudID, Outcome: dto.LinkRefreshed}, nil

	case cloudRow != nil:
		fields := map[string]interface{}{"email": addr, "linked_at": now}
		if err := s.accountRepo.UpdateFields(ctx, cloudRow.ID, fields); err != nil {
			return nil, storeError(err)
		}
		log.Printf("Cloud ID %s re-pointed to %s", cloudID, email.RedactEmail(addr))
		return &dto.LinkResult{CloudID: cloudID, Outcome: dto.LinkRepointed}, nil
	}

	account := &model.UserAccount{Email: addr, CloudID: cloudID, LinkedAt: now}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, storeError(err)
	}
	return &dto.LinkResult{CloudID: cloudID, Outcome: dto.LinkCreated}, nil
}

// RecoverAccount 按邮箱找到 Cloud ID 并发送邮件，先查绑定表再查订阅表
func (s *VerificationService) RecoverAccount(ctx context.Context, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ErrEmailRequired
	}

	cloudID, err := s.findCloudID(ctx, addr)
	if err != nil {
		return err
	}

	if err := s.mailer.SendAccountRecovery(ctx, addr, cloudID); err != nil {
		log.Printf("Failed to send recovery email to %s: %v", email.RedactEmail(addr), err)
		return fmt.Errorf("%w: %w", ErrNotification, err)
	}
	return nil
}

func (s *VerificationService) findCloudID(ctx context.Context, addr string) (string, error) {
	account, err := s.accountRepo.GetByEmail(ctx, addr)
	if err == nil && account.CloudID != "" {
		return account.CloudID, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", storeError(err)
	}

	sub, err := s.subscriberRepo.FindByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAccountNotFound
		}
		return "", storeError(err)
	}
	if sub.CloudID == "" {
		return "", ErrAccountNotFound
	}
	return sub.CloudID, nil
}

// GetAccountByEmail 查询绑定
func (s *VerificationService) GetAccountByEmail(ctx context.Context, addr string) (*dto.AccountInfo, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, ErrEmailRequired
	}
	return toAccountInfo(s.accountRepo.GetByEmail(ctx, addr))
}

// GetAccountByCloudID 查询绑定
func (s *VerificationService) GetAccountByCloudID(ctx context.Context, cloudID string) (*dto.AccountInfo, error) {
	cloudID = strings.TrimSpace(cloudID)
	if cloudID == "" {
		return nil, ErrCloudIDRequired
	}
	return toAccountInfo(s.accountRepo.GetByCloudID(ctx, cloudID))
}

// SweepExpired 清理过期验证码
func (s *VerificationService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.codeRepo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, storeError(err)
	}
	return n, nil
}

func toAccountInfo(account *model.UserAccount, err error) (*dto.AccountInfo, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storeError(err)
	}
	return &dto.AccountInfo{
		Email:    account.Email,
		CloudID:  account.CloudID,
		LinkedAt: formatTime(account.LinkedAt),
	}, nil
}

// generateCode 均匀分布的 6 位数字，允许前导 0
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
