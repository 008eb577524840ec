package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/gosignals-ai/bet-analyzer/internal/model"
)

// TableCounts 各表行数
type TableCounts struct {
	Raw     int64 `json:"raw"`
	Games   int64 `json:"games"`
	Markets int64 `json:"markets"`
	Odds    int64 `json:"odds"`
}

// IntegrityReport 归一化结果的完整性检查
type IntegrityReport struct {
	OrphanMarkets  int64 `json:"orphan_markets"`
	OrphanOdds     int64 `json:"orphan_odds"`
	InvalidSide    int64 `json:"invalid_side"`
	LatestCount    int64 `json:"latest_count"`
	LatestDistinct int64 `json:"latest_distinct"`
	OK             bool  `json:"ok"`
}

// QueryRepository 只读查询：计数、完整性、比赛列表
type QueryRepository interface {
	Counts(ctx context.Context) (*TableCounts, error)
	Integrity(ctx context.Context) (*IntegrityReport, error)
	// ListGames 按开赛时间（空值在后）与 game_uid 排序
	ListGames(ctx context.Context, sportKey string, limit int) ([]model.Game, error)
}

type queryRepository struct {
	db *gorm.DB
}

func NewQueryRepository(db *gorm.DB) QueryRepository {
	return &queryRepository{db: db}
}

func (r *queryRepository) Counts(ctx context.Context) (*TableCounts, error) {
	db := r.db.WithContext(ctx)
	var c TableCounts
	for _, t := range []struct {
		model interface{}
		dest  *int64
	}{
		{&model.RawSnapshot{}, &c.Raw},
		{&model.Game{}, &c.Games},
		{&model.Market{}, &c.Markets},
		{&model.OddsQuote{}, &c.Odds},
	} {
		if err := db.Model(t.model).Count(t.dest).Error; err != nil {
			return nil, fmt.Errorf("统计行数失败: %w", err)
		}
	}
	return &c, nil
}

const (
	orphanMarketsSQL = `SELECT COUNT(*) FROM markets m
LEFT JOIN games g ON g.game_uid = m.game_uid
WHERE g.game_uid IS NULL`
	orphanOddsSQL = `SELECT COUNT(*) FROM odds o
LEFT JOIN markets m ON m.game_uid = o.game_uid AND m.market_key = o.market_key AND m.book_key = o.book_key
WHERE m.id IS NULL`
	invalidSideSQL = `SELECT COUNT(*) FROM odds WHERE side NOT IN ?`
	latestCountSQL = `SELECT COUNT(*) FROM odds o
JOIN (SELECT game_uid, market_key, book_key, side, MAX(last_update) AS last_update
      FROM odds GROUP BY game_uid, market_key, book_key, side) l
  ON l.game_uid = o.game_uid AND l.market_key = o.market_key AND l.book_key = o.book_key
 AND l.side = o.side AND l.last_update = o.last_update`
	latestDistinctSQL = `SELECT COUNT(*) FROM (SELECT DISTINCT game_uid, market_key, book_key, side FROM odds) d`
)

func (r *queryRepository) Integrity(ctx context.Context) (*IntegrityReport, error) {
	db := r.db.WithContext(ctx)
	var rep IntegrityReport
	checks := []struct {
		name string
		sql  string
		args []interface{}
		dest *int64
	}{
		{"orphan_markets", orphanMarketsSQL, nil, &rep.OrphanMarkets},
		{"orphan_odds", orphanOddsSQL, nil, &rep.OrphanOdds},
		{"invalid_side", invalidSideSQL, []interface{}{model.AllSides()}, &rep.InvalidSide},
		{"latest_count", latestCountSQL, nil, &rep.LatestCount},
		{"latest_distinct", latestDistinctSQL, nil, &rep.LatestDistinct},
	}
	for _, c := range checks {
		if err := db.Raw(c.sql, c.args...).Scan(c.dest).Error; err != nil {
			return nil, fmt.Errorf("完整性检查 %s 失败: %w", c.name, err)
		}
	}
	rep.OK = rep.OrphanMarkets == 0 && rep.OrphanOdds == 0 && rep.InvalidSide == 0 &&
		rep.LatestCount == rep.LatestDistinct
	return &rep, nil
}

func (r *queryRepository) ListGames(ctx context.Context, sportKey string, limit int) ([]model.Game, error) {
	q := r.db.WithContext(ctx).Model(&model.Game{})
	if sportKey != "" {
		q = q.Where("sport_key = ?", sportKey)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var games []model.Game
	if err := q.Order("commence_time IS NULL").Order("commence_time").Order("game_uid").Find(&games).Error; err != nil {
		return nil, fmt.Errorf("查询比赛失败: %w", err)
	}
	return games, nil
}
