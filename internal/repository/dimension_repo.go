package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gosignals-ai/bet-analyzer/internal/model"
)

const defaultBatchSize = 500

// DimensionRepository 比赛与盘口维度仓储：幂等 upsert
type DimensionRepository interface {
	// UpsertGames 按 game_uid upsert；只在来源快照不旧于现有行时覆盖，status 缺失时保留原值
	UpsertGames(ctx context.Context, games []model.Game) (int64, error)
	// UpsertMarkets 按 (game_uid, market_key, book_key) upsert，last_update 取较大值
	UpsertMarkets(ctx context.Context, markets []model.Market) (int64, error)
	WithTx(tx *gorm.DB) DimensionRepository
}

type dimensionRepository struct {
	db        *gorm.DB
	batchSize int
}

func NewDimensionRepository(db *gorm.DB, batchSize int) DimensionRepository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &dimensionRepository{db: db, batchSize: batchSize}
}

func (r *dimensionRepository) WithTx(tx *gorm.DB) DimensionRepository {
	return &dimensionRepository{db: tx, batchSize: r.batchSize}
}

func (r *dimensionRepository) UpsertGames(ctx context.Context, games []model.Game) (int64, error) {
	if len(games) == 0 {
		return 0, nil
	}
	set := clause.AssignmentColumns([]string{
		"sport_key", "commence_time", "home_team", "away_team", "source_fetched_at", "updated_at",
	})
	set = append(set, clause.Assignment{
		Column: clause.Column{Name: "status"},
		Value:  gorm.Expr("COALESCE(excluded.status, games.status)"),
	})
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_uid"}},
		DoUpdates: set,
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "games.source_fetched_at <= excluded.source_fetched_at"},
		}},
	}).CreateInBatches(&games, r.batchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("upsert games 失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *dimensionRepository) UpsertMarkets(ctx context.Context, markets []model.Market) (int64, error) {
	if len(markets) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "game_uid"}, {Name: "market_key"}, {Name: "book_key"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "last_update"}, Value: gorm.Expr(greatest(r.db, "markets.last_update", "excluded.last_update"))},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
	}).CreateInBatches(&markets, r.batchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("upsert markets 失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// greatest PostgreSQL 用 GREATEST，SQLite 的多参数 MAX 为标量函数
func greatest(db *gorm.DB, a, b string) string {
	if db.Dialector.Name() == "sqlite" {
		return fmt.Sprintf("MAX(%s, %s)", a, b)
	}
	return fmt.Sprintf("GREATEST(%s, %s)", a, b)
}
