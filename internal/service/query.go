package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gosignals-ai/bet-analyzer/internal/model"
	"github.com/gosignals-ai/bet-analyzer/internal/normalize"
	"github.com/gosignals-ai/bet-analyzer/internal/repository"
)

const moneylineMarket = "h2h"

// QueryService 读侧：最新报价、最优价、计数与完整性
type QueryService struct {
	db      *gorm.DB
	odds    repository.OddsRepository
	queries repository.QueryRepository
	logger  *logrus.Logger
}

func NewQueryService(db *gorm.DB, logger *logrus.Logger) *QueryService {
	return &QueryService{
		db:      db,
		odds:    repository.NewOddsRepository(db, 0),
		queries: repository.NewQueryRepository(db),
		logger:  logger,
	}
}

// LatestQuotes 每个 (比赛, 盘口, 书商, 方向) 的最新报价
func (s *QueryService) LatestQuotes(ctx context.Context, filter repository.OddsFilter) ([]model.OddsQuote, error) {
	quotes, err := s.odds.List(ctx, filter)
	if err != nil {
		return nil, newError(CodeQueryFailed, "查询报价失败", err)
	}
	return normalize.LatestQuotes(quotes), nil
}

// BestPrices 每个 (比赛, 盘口, 方向) 的最优最新报价
func (s *QueryService) BestPrices(ctx context.Context, filter repository.OddsFilter) ([]model.BestPrice, error) {
	latest, err := s.LatestQuotes(ctx, filter)
	if err != nil {
		return nil, err
	}
	return normalize.BestPrices(latest), nil
}

// MoneylineBoard 每场比赛一行的独赢主客最优价，按开赛时间排序
func (s *QueryService) MoneylineBoard(ctx context.Context, sportKey string, limit int) ([]model.MoneylineRow, error) {
	games, err := s.queries.ListGames(ctx, sportKey, limit)
	if err != nil {
		return nil, newError(CodeQueryFailed, "查询比赛失败", err)
	}
	rows := make([]model.MoneylineRow, 0, len(games))
	if len(games) == 0 {
		return rows, nil
	}

	uids := make([]string, len(games))
	for i, g := range games {
		uids[i] = g.GameUID
	}
	best, err := s.BestPrices(ctx, repository.OddsFilter{GameUIDs: uids, MarketKey: moneylineMarket})
	if err != nil {
		return nil, err
	}
	type sideKey struct {
		gameUID string
		side    model.Side
	}
	bySide := make(map[sideKey]model.BestPrice, len(best))
	for _, b := range best {
		bySide[sideKey{b.GameUID, b.Side}] = b
	}

	for _, g := range games {
		row := model.MoneylineRow{
			SportKey:     g.SportKey,
			GameUID:      g.GameUID,
			AwayTeam:     g.AwayTeam,
			HomeTeam:     g.HomeTeam,
			CommenceTime: g.CommenceTime,
		}
		if b, ok := bySide[sideKey{g.GameUID, model.SideAway}]; ok {
			price, book := b.Price, b.BookKey
			row.AwayBestPrice, row.AwayBook = &price, &book
		}
		if b, ok := bySide[sideKey{g.GameUID, model.SideHome}]; ok {
			price, book := b.Price, b.BookKey
			row.HomeBestPrice, row.HomeBook = &price, &book
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Counts 各表行数
func (s *QueryService) Counts(ctx context.Context) (*repository.TableCounts, error) {
	c, err := s.queries.Counts(ctx)
	if err != nil {
		return nil, newError(CodeQueryFailed, "统计行数失败", err)
	}
	return c, nil
}

// Integrity 孤儿行、非法方向、最新视图唯一性检查
func (s *QueryService) Integrity(ctx context.Context) (*repository.IntegrityReport, error) {
	rep, err := s.queries.Integrity(ctx)
	if err != nil {
		return nil, newError(CodeQueryFailed, "完整性检查失败", err)
	}
	if !rep.OK {
		s.logger.WithFields(logrus.Fields{
			"orphan_markets": rep.OrphanMarkets,
			"orphan_odds":    rep.OrphanOdds,
			"invalid_side":   rep.InvalidSide,
		}).Warn("完整性检查未通过")
	}
	return rep, nil
}

// Ping 数据库连通性
func (s *QueryService) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
