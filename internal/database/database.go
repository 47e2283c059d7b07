package database

import (
	"fmt"
	"time"

	"github.com/blues/campaignhub/internal/config"
	"github.com/blues/campaignhub/internal/logger"
	"github.com/blues/campaignhub/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// GormConfig 服务与测试共用的 gorm 配置
func GormConfig(level gormLogger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger: logger.NewGormLogger(level, 200*time.Millisecond),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		// 级联删除由业务层在事务中完成
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), GormConfig(gormLogger.Warn))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Migrate 自动迁移全部模型
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
