package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mhmpets/mhm_server/internal/model"
)

// ErrVersionConflict 乐观锁冲突：记录在读取后被其他请求修改
var ErrVersionConflict = errors.New("subscriber was modified concurrently")

type SubscriberRepository struct {
	db *gorm.DB
}

func NewSubscriberRepository(db *gorm.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// FindByEmailOrCloudID 按插入顺序返回第一条 email 或 cloud_id 匹配的记录
func (r *SubscriberRepository) FindByEmailOrCloudID(ctx context.Context, email, cloudID string) (*model.Subscriber, error) {
	q := r.db.WithContext(ctx)
	switch {
	case email != "" && cloudID != "":
		q = q.Where("email = ? OR cloud_id = ?", email, cloudID)
	case email != "":
		q = q.Where("email = ?", email)
	case cloudID != "":
		q = q.Where("cloud_id = ?", cloudID)
	default:
		return nil, gorm.ErrRecordNotFound
	}

	var sub model.Subscriber
	if err := q.Order("id ASC").First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriberRepository) FindByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	return r.FindByEmailOrCloudID(ctx, email, "")
}

func (r *SubscriberRepository) List(ctx context.Context) ([]model.Subscriber, error) {
	var subs []model.Subscriber
	err := r.db.WithContext(ctx).Order("id ASC").Find(&subs).Error
	return subs, err
}

func (r *SubscriberRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Subscriber{}).Count(&count).Error
	return count, err
}

func (r *SubscriberRepository) Create(ctx context.Context, sub *model.Subscriber) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

// UpdateVersioned 仅当 version 未变化时更新，成功后 version+1
func (r *SubscriberRepository) UpdateVersioned(ctx context.Context, sub *model.Subscriber, fields map[string]interface{}) error {
	fields["version"] = gorm.Expr("version + 1")

	result := r.db.WithContext(ctx).Model(&model.Subscriber{}).
		Where("id = ? AND version = ?", sub.ID, sub.Version).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}

	sub.Version++
	return nil
}

// ReplaceAll 清空后按顺序重新写入
func (r *SubscriberRepository) ReplaceAll(ctx context.Context, subs []model.Subscriber) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.Subscriber{}).Error; err != nil {
			return err
		}
		if len(subs) == 0 {
			return nil
		}
		return tx.CreateInBatches(subs, 100).Error
	})
}
