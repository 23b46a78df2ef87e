package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/mhmpets/mhm_server/internal/model"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.UserAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*model.UserAccount, error) {
	var account model.UserAccount
	err := r.db.WithContext(ctx).Where("email = ?", email).Order("id ASC").First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByCloudID(ctx context.Context, cloudID string) (*model.UserAccount, error) {
	var account model.UserAccount
	err := r.db.WithContext(ctx).Where("cloud_id = ?", cloudID).Order("id ASC").First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ListByEmailOrCloudID 返回与 email 或 cloud_id 相关的全部绑定，按插入顺序
func (r *AccountRepository) ListByEmailOrCloudID(ctx context.Context, email, cloudID string) ([]model.UserAccount, error) {
	var accounts []model.UserAccount
	err := r.db.WithContext(ctx).
		Where("email = ? OR cloud_id = ?", email, cloudID).
		Order("id ASC").
		Find(&accounts).Error
	return accounts, err
}

func (r *AccountRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.UserAccount{}).Where("id = ?", id).Updates(fields).Error
}
