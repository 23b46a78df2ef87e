package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mhmpets/mhm_server/internal/model"
)

type VerificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// ReplaceForEmail 删除该邮箱旧验证码后写入新验证码
func (r *VerificationRepository) ReplaceForEmail(ctx context.Context, code *model.VerificationCode) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", code.Email).Delete(&model.VerificationCode{}).Error; err != nil {
			return err
		}
		return tx.Create(code).Error
	})
}

func (r *VerificationRepository) ListByEmail(ctx context.Context, email string) ([]model.VerificationCode, error) {
	var codes []model.VerificationCode
	err := r.db.WithContext(ctx).Where("email = ?", email).Order("id ASC").Find(&codes).Error
	return codes, err
}

func (r *VerificationRepository) CountByEmail(ctx context.Context, email string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.VerificationCode{}).Where("email = ?", email).Count(&count).Error
	return count, err
}

// Delete 返回实际删除的行数，0 表示已被其他请求消费
func (r *VerificationRepository) Delete(ctx context.Context, id int64) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&model.VerificationCode{}, id)
	return result.RowsAffected, result.Error
}

func (r *VerificationRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.VerificationCode{}).Where("expires_at < ?", now).Count(&count).Error
	return count, err
}

func (r *VerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&model.VerificationCode{})
	return result.RowsAffected, result.Error
}
