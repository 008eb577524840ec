// Package database 负责建立 GORM 连接、建表与视图
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/glebarez/sqlite"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gosignals-ai/bet-analyzer/internal/config"
	"github.com/gosignals-ai/bet-analyzer/internal/model"
)

// Open 按配置打开数据库（postgres 库不存在时先创建再连），设置连接池并按需迁移
func Open(cfg config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel))}

	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
	default:
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
		if err != nil && (strings.Contains(err.Error(), "does not exist") || strings.Contains(err.Error(), "3D000")) {
			log.Info("目标数据库不存在，尝试自动创建…")
			if e := ensureDatabaseExists(cfg.DSN); e != nil {
				return nil, fmt.Errorf("创建数据库失败: %w", e)
			}
			db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	log.WithField("driver", db.Dialector.Name()).Info("数据库连接成功")

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取SQL DB失败: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if cfg.AutoMigrate {
		if err := Migrate(db); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		log.Info("数据库表结构检查完成（不存在则已创建）")
	}
	return db, nil
}

// Close 关闭底层连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate 按依赖顺序建表；PostgreSQL 上同时创建只读视图
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.RawSnapshot{},
		&model.Game{},
		&model.Market{},
		&model.OddsQuote{},
		&model.AuditLog{},
	); err != nil {
		return fmt.Errorf("数据库表结构迁移失败: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, stmt := range viewStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("创建视图失败: %w", err)
		}
	}
	return nil
}

// 分组与排序子句须与 normalize.LatestQuotes / BestPrices 一致
const (
	latestPartition = "game_uid, market_key, book_key, side"
	latestOrder     = "last_update DESC, observed_at DESC, id DESC"
	bestPartition   = "game_uid, market_key, side"
	bestOrder       = "price DESC, observed_at DESC, book_key ASC"
)

var viewStatements = []string{
	`CREATE OR REPLACE VIEW v_odds_latest AS
SELECT DISTINCT ON (` + latestPartition + `)
       id, game_uid, market_key, book_key, side, price, point, last_update, observed_at
FROM odds
ORDER BY ` + latestPartition + `, ` + latestOrder,
	`CREATE OR REPLACE VIEW v_best_price AS
SELECT DISTINCT ON (` + bestPartition + `)
       game_uid, market_key, side, book_key, price, point, last_update, observed_at
FROM v_odds_latest
ORDER BY ` + bestPartition + `, ` + bestOrder,
}
