package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"Decibel/config"
	"Decibel/logger"
	"Decibel/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormDB 是 GORM 数据库连接实例
var GormDB *gorm.DB

// Open opens the preferences database described by cfg, without touching GormDB.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(cfg.MySQLDSN())
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dialector = sqlite.Open(cfg.DBPath + "?_busy_timeout=5000")
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}

	logLevel := gormlogger.Silent
	if cfg.DBDebug {
		logLevel = gormlogger.Info
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		// 禁用外键约束
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// sqlite serializes writers anyway
	if cfg.DBDriver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return gdb, nil
}

// ConnectGormDB opens the database and keeps it in GormDB.
func ConnectGormDB(cfg *config.Config) error {
	gdb, err := Open(cfg)
	if err != nil {
		return err
	}
	GormDB = gdb

	logger.Info("database connected", logger.String("driver", cfg.DBDriver))
	return nil
}

// CloseGormDB 关闭 GORM 数据库连接
func CloseGormDB() error {
	if GormDB == nil {
		return nil
	}

	sqlDB, err := GormDB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// AutoMigrateModels 自动迁移指定的模型
func AutoMigrateModels(models ...interface{}) error {
	if GormDB == nil {
		return fmt.Errorf("GORM database not initialized")
	}

	if err := GormDB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}

	logger.Debug("models migrated", logger.Int("count", len(models)))
	return nil
}

// Migrate creates the tables the player needs.
func Migrate() error {
	return AutoMigrateModels(&model.Preference{}, &model.SessionTrack{})
}
