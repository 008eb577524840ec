package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gosignals-ai/bet-analyzer/internal/model"
)

// OddsFilter 查询事实报价的条件
type OddsFilter struct {
	GameUIDs  []string
	SportKey  string
	MarketKey string
	Since     *time.Time // last_update >= Since
}

// OddsRepository 赔率事实仓储：只插入，不更新
type OddsRepository interface {
	// InsertQuotes 五列唯一键冲突时忽略，返回新插入行数
	InsertQuotes(ctx context.Context, quotes []model.OddsQuote) (int64, error)
	List(ctx context.Context, filter OddsFilter) ([]model.OddsQuote, error)
	WithTx(tx *gorm.DB) OddsRepository
}

type oddsRepository struct {
	db        *gorm.DB
	batchSize int
}

func NewOddsRepository(db *gorm.DB, batchSize int) OddsRepository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &oddsRepository{db: db, batchSize: batchSize}
}

func (r *oddsRepository) WithTx(tx *gorm.DB) OddsRepository {
	return &oddsRepository{db: tx, batchSize: r.batchSize}
}

func (r *oddsRepository) InsertQuotes(ctx context.Context, quotes []model.OddsQuote) (int64, error) {
	if len(quotes) == 0 {
		return 0, nil
	}
	// 避免冲突行回填 id 时错位，写入副本
	rows := make([]model.OddsQuote, len(quotes))
	copy(rows, quotes)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "game_uid"}, {Name: "market_key"}, {Name: "book_key"}, {Name: "side"}, {Name: "last_update"},
		},
		DoNothing: true,
	}).CreateInBatches(&rows, r.batchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("写入赔率失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *oddsRepository) List(ctx context.Context, filter OddsFilter) ([]model.OddsQuote, error) {
	q := r.db.WithContext(ctx).Model(&model.OddsQuote{})
	if len(filter.GameUIDs) > 0 {
		q = q.Where("game_uid IN ?", filter.GameUIDs)
	}
	if filter.SportKey != "" {
		q = q.Where("game_uid IN (?)", r.db.Model(&model.Game{}).Select("game_uid").Where("sport_key = ?", filter.SportKey))
	}
	if filter.MarketKey != "" {
		q = q.Where("market_key = ?", filter.MarketKey)
	}
	if filter.Since != nil {
		q = q.Where("last_update >= ?", filter.Since.UTC())
	}
	var quotes []model.OddsQuote
	if err := q.Order("id").Find(&quotes).Error; err != nil {
		return nil, fmt.Errorf("查询赔率失败: %w", err)
	}
	return quotes, nil
}
