package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mhmpets/mhm_server/internal/model"
	"github.com/mhmpets/mhm_server/internal/model/dto"
	"github.com/mhmpets/mhm_server/internal/repository"
)

const (
	cloudIDPrefix   = "MHM-"
	cloudIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	cloudIDLength   = 4

	// 乐观锁冲突时的最大重试次数
	maxUpdateAttempts  = 3
	maxCloudIDAttempts = 5
)

// RegisterParams 登记订阅参数
type RegisterParams struct {
	Email   string
	CloudID string
	Plan    string
	TxnID   string
}

type EntitlementService struct {
	subscriberRepo *repository.SubscriberRepository
	catalog        *PlanCatalog
	now            func() time.Time
}

func NewEntitlementService(subscriberRepo *repository.SubscriberRepository, catalog *PlanCatalog) *EntitlementService {
	return &EntitlementService{
		subscriberRepo: subscriberRepo,
		catalog:        catalog,
		now:            time.Now,
	}
}

// Lookup 查询权益，没有订阅记录时返回 free
func (s *EntitlementService) Lookup(ctx context.Context, email, cloudID string) (*dto.Entitlement, error) {
	sub, err := s.subscriberRepo.FindByEmailOrCloudID(ctx, email, cloudID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return freeEntitlement(email, cloudID), nil
		}
		return nil, storeError(err)
	}

	return s.buildEntitlement(sub), nil
}

// Register 登记或续订，到期时间重置为 now + 1 年
func (s *EntitlementService) Register(ctx context.Context, params RegisterParams) (*dto.RegisterSubscriptionResponse, error) {
	email := strings.TrimSpace(params.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	plan := strings.TrimSpace(params.Plan)
	if plan == "" {
		plan = s.catalog.DefaultPaidPlan()
	}

	cloudID := strings.TrimSpace(params.CloudID)
	generated := false
	if cloudID == "" {
		var err error
		if cloudID, err = s.generateCloudID(ctx); err != nil {
			return nil, err
		}
		generated = true
	}

	now := s.now().UTC()
	expiresAt := now.AddDate(1, 0, 0)

	// 生成的 ID 只用于新记录，不参与匹配
	lookupCloudID := cloudID
	if generated {
		lookupCloudID = ""
	}

	sub, found, err := s.mutateSubscriber(ctx, email, lookupCloudID, func(sub *model.Subscriber) map[string]interface{} {
		fields := map[string]interface{}{
			"plan":       plan,
			"expires_at": expiresAt,
			"status":     model.SubscriptionActive,
			"txn_id":     params.TxnID,
			"updated_at": now,
		}
		if sub.CloudID == "" {
			fields["cloud_id"] = cloudID
		}
		return fields
	})
	if err != nil {
		return nil, err
	}

	if found {
		resolved := sub.CloudID
		if resolved == "" {
			resolved = cloudID
		}
		return &dto.RegisterSubscriptionResponse{CloudID: resolved, ExpiresAt: formatTime(expiresAt)}, nil
	}

	sub = &model.Subscriber{
		Email:     email,
		CloudID:   cloudID,
		Plan:      plan,
		CreatedAt: now,
		ExpiresAt: &expiresAt,
		Status:    model.SubscriptionActive,
		TxnID:     params.TxnID,
		UpdatedAt: now,
	}
	if err := s.subscriberRepo.Create(ctx, sub); err != nil {
		return nil, storeError(err)
	}

	return &dto.RegisterSubscriptionResponse{CloudID: cloudID, ExpiresAt: formatTime(expiresAt)}, nil
}

// Cancel 取消订阅，不存在时视为成功
func (s *EntitlementService) Cancel(ctx context.Context, email, cloudID string) error {
	if email == "" && cloudID == "" {
		return ErrIdentifierRequired
	}

	now := s.now().UTC()
	_, _, err := s.mutateSubscriber(ctx, email, cloudID, func(*model.Subscriber) map[string]interface{} {
		return map[string]interface{}{
			"status":     model.SubscriptionCancelled,
			"updated_at": now,
		}
	})
	return err
}

// ExtendByOneYear 在当前到期时间基础上顺延一年，返回是否找到记录
func (s *EntitlementService) ExtendByOneYear(ctx context.Context, email, cloudID string) (bool, error) {
	if email == "" && cloudID == "" {
		return false, ErrIdentifierRequired
	}

	now := s.now().UTC()
	_, found, err := s.mutateSubscriber(ctx, email, cloudID, func(sub *model.Subscriber) map[string]interface{} {
		base := now
		if sub.ExpiresAt != nil {
			base = sub.ExpiresAt.UTC()
		}
		return map[string]interface{}{
			"expires_at": base.AddDate(1, 0, 0),
			"status":     model.SubscriptionActive,
			"updated_at": now,
		}
	})
	return found, err
}

// BulkReplace 全量覆盖订阅表
func (s *EntitlementService) BulkReplace(ctx context.Context, subscribers []dto.SubscriberInfo) (int, error) {
	if subscribers == nil {
		return 0, ErrSubscribersInvalid
	}

	now := s.now().UTC()
	rows := make([]model.Subscriber, 0, len(subscribers))
	for _, info := range subscribers {
		row := model.Subscriber{
			Email:     info.Email,
			CloudID:   info.CloudID,
			Plan:      info.Plan,
			Status:    info.Status,
			TxnID:     info.TxnID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if row.Plan == "" {
			row.Plan = model.PlanFree
		}
		if row.Status == "" {
			row.Status = model.SubscriptionActive
		}
		if t, ok := parseTime(info.CreatedAt); ok {
			row.CreatedAt = t
		}
		if t, ok := parseTime(info.UpdatedAt); ok {
			row.UpdatedAt = t
		}
		if t, ok := parseTime(info.ExpiresAt); ok {
			row.ExpiresAt = &t
		}
		rows = append(rows, row)
	}

	if err := s.subscriberRepo.ReplaceAll(ctx, rows); err != nil {
		return 0, storeError(err)
	}
	return len(rows), nil
}

// List 列出有邮箱的订阅者
func (s *EntitlementService) List(ctx context.Context) ([]dto.SubscriberInfo, error) {
	subs, err := s.subscriberRepo.List(ctx)
	if err != nil {
		return nil, storeError(err)
	}

	result := make([]dto.SubscriberInfo, 0, len(subs))
	for _, sub := range subs {
		if sub.Email == "" {
			continue
		}
		info := dto.SubscriberInfo{
			Email:     sub.Email,
			CloudID:   sub.CloudID,
			Plan:      sub.Plan,
			CreatedAt: formatTime(sub.CreatedAt),
			Status:    sub.Status,
			TxnID:     sub.TxnID,
			UpdatedAt: formatTime(sub.UpdatedAt),
		}
		if sub.ExpiresAt != nil {
			info.ExpiresAt = formatTime(*sub.ExpiresAt)
		}
		result = append(result, info)
	}
	return result, nil
}

// mutateSubscriber 读取匹配记录并做 CAS 更新，冲突时重新读取
func (s *EntitlementService) mutateSubscriber(
	ctx context.Context,
	email, cloudID string,
	mutate func(*model.Subscriber) map[string]interface{},
) (*model.Subscriber, bool, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		sub, err := s.subscriberRepo.FindByEmailOrCloudID(ctx, email, cloudID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, false, nil
			}
			return nil, false, storeError(err)
		}

		err = s.subscriberRepo.UpdateVersioned(ctx, sub, mutate(sub))
		if err == nil {
			return sub, true, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, false, storeError(err)
		}
	}

	return nil, false, storeError(repository.ErrVersionConflict)
}

func (s *EntitlementService) buildEntitlement(sub *model.Subscriber) *dto.Entitlement {
	isActive := sub.Status == model.SubscriptionActive &&
		sub.ExpiresAt != nil && sub.ExpiresAt.After(s.now())

	email := sub.Email
	cloudID := sub.CloudID
	return &dto.Entitlement{
		Plan:      sub.Plan,
		MaxPets:   s.catalog.MaxPets(sub.Plan),
		IsActive:  isActive,
		ExpiresAt: formatTimePtr(sub.ExpiresAt),
		Email:     &email,
		CloudID:   &cloudID,
	}
}

func freeEntitlement(email, cloudID string) *dto.Entitlement {
	return &dto.Entitlement{
		Plan:     model.PlanFree,
		MaxPets:  1,
		IsActive: true,
		Email:    optionalString(email),
		CloudID:  optionalString(cloudID),
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// generateCloudID 生成未被占用的 MHM-XXXX
func (s *EntitlementService) generateCloudID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCloudIDAttempts; attempt++ {
		id, err := randomCloudID()
		if err != nil {
			return "", err
		}

		_, err = s.subscriberRepo.FindByEmailOrCloudID(ctx, "", id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return id, nil
		}
		if err != nil {
			return "", storeError(err)
		}
	}
	return "", fmt.Errorf("failed to allocate cloud id after %d attempts", maxCloudIDAttempts)
}

func randomCloudID() (string, error) {
	var sb strings.Builder
	sb.WriteString(cloudIDPrefix)

	max := big.NewInt(int64(len(cloudIDAlphabet)))
	for i := 0; i < cloudIDLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(cloudIDAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
