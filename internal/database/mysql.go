package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mhmpets/mhm_server/config"
	"github.com/mhmpets/mhm_server/internal/model"
)

// MySQLTableOptions email / cloud_id 按字节比较，大小写不同视为不同值
const MySQLTableOptions = "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin"

// DSN 拼接 MySQL 连接串，时间统一按 UTC 读写
func DSN(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&collation=utf8mb4_bin&parseTime=True&loc=UTC",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)
}

// NewMySQL 连接数据库并迁移表结构
func NewMySQL(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(DSN(cfg)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := MigrateMySQL(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Migrate 自动建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Subscriber{},
		&model.VerificationCode{},
		&model.UserAccount{},
		&model.EventLog{},
	)
}

// MigrateMySQL 建表时固定二进制排序规则
func MigrateMySQL(db *gorm.DB) error {
	return Migrate(db.Set("gorm:table_options", MySQLTableOptions))
}
