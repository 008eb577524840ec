package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gosignals-ai/bet-analyzer/internal/config"
	"github.com/gosignals-ai/bet-analyzer/internal/metrics"
	"github.com/gosignals-ai/bet-analyzer/internal/normalize"
	"github.com/gosignals-ai/bet-analyzer/internal/repository"
)

const (
	auditSourceNormalizer = "normalizer"
	auditActionResolve    = "resolve_run"
	auditActionNormalize  = "normalize_run"
)

// Selector 选择参与本次运行的原始快照：指定 id，或按 fetched_at 截止时间
type Selector struct {
	IDs          []uint64
	Since        *time.Time
	SportKey     string
	PerGameLimit int // 0 时取配置 normalize.snapshots_per_game
	Limit        int
}

// ResolveResult 维度解析结果
type ResolveResult struct {
	RunID           string            `json:"run_id"`
	GamesUpserted   int64             `json:"games"`
	MarketsUpserted int64             `json:"markets"`
	Snapshots       int               `json:"snapshots"`
	Skipped         normalize.Skipped `json:"skipped"`
}

// NormalizeResult 事实归一化结果；dry run 时为回滚前的计数
type NormalizeResult struct {
	RunID       string            `json:"run_id"`
	Games       int64             `json:"games"`
	Markets     int64             `json:"markets"`
	OddsInserts int64             `json:"odds_inserts"`
	DryRun      bool              `json:"dry_run"`
	Snapshots   int               `json:"snapshots"`
	ObservedAt  time.Time         `json:"observed_at"`
	Skipped     normalize.Skipped `json:"skipped"`
}

// NormalizeService 原始快照 → 比赛/盘口维度 → 赔率事实
type NormalizeService struct {
	db        *gorm.DB
	snapshots repository.SnapshotRepository
	dims      repository.DimensionRepository
	odds      repository.OddsRepository
	audit     repository.AuditRepository
	cfg       config.NormalizeConfig
	metrics   *metrics.PipelineMetrics
	logger    *logrus.Logger
	now       func() time.Time
}

func NewNormalizeService(db *gorm.DB, cfg config.NormalizeConfig, m *metrics.PipelineMetrics, logger *logrus.Logger) *NormalizeService {
	return &NormalizeService{
		db:        db,
		snapshots: repository.NewSnapshotRepository(db),
		dims:      repository.NewDimensionRepository(db, cfg.BatchSize),
		odds:      repository.NewOddsRepository(db, cfg.BatchSize),
		audit:     repository.NewAuditRepository(db),
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// ResolveDimensions 只 upsert 比赛与盘口维度，单事务提交
func (s *NormalizeService) ResolveDimensions(ctx context.Context, sel Selector) (*ResolveResult, error) {
	start := s.now()
	res := &ResolveResult{RunID: uuid.NewString()}
	log := s.logger.WithField("run_id", res.RunID)

	batch, err := s.loadBatch(ctx, sel, start)
	if err != nil {
		s.metrics.RecordRun("resolve", false, err, time.Since(start).Seconds())
		return nil, err
	}
	res.Snapshots = batch.Snapshots()
	res.Skipped = batch.Skipped

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if res.GamesUpserted, err = s.dims.WithTx(tx).UpsertGames(ctx, batch.Games()); err != nil {
			return err
		}
		res.MarketsUpserted, err = s.dims.WithTx(tx).UpsertMarkets(ctx, batch.Markets())
		return err
	})
	s.metrics.RecordRun("resolve", false, err, time.Since(start).Seconds())
	if err != nil {
		log.WithError(err).Error("维度解析失败，事务已回滚")
		return nil, newError(CodeNormalizeFailed, "维度解析失败", err)
	}
	s.metrics.RecordWritten("games", res.GamesUpserted)
	s.metrics.RecordWritten("markets", res.MarketsUpserted)
	s.metrics.RecordSkipped(res.Skipped.Reasons())

	if err := s.audit.Record(ctx, auditSourceNormalizer, auditActionResolve, res); err != nil {
		log.WithError(err).Warn("写入审计日志失败")
	}
	log.WithFields(logrus.Fields{
		"snapshots": res.Snapshots,
		"games":     res.GamesUpserted,
		"markets":   res.MarketsUpserted,
		"skipped":   res.Skipped.Total(),
	}).Info("维度解析完成")
	return res, nil
}

// NormalizeFacts 在同一事务内依次写入 games → markets → odds。
// dryRun 时完整执行后无条件回滚，返回的计数与随后一次正式运行一致。
func (s *NormalizeService) NormalizeFacts(ctx context.Context, sel Selector, dryRun bool, limit int) (res *NormalizeResult, err error) {
	start := s.now()
	observedAt := start.UTC().Truncate(time.Microsecond)
	res = &NormalizeResult{RunID: uuid.NewString(), DryRun: dryRun, ObservedAt: observedAt}
	log := s.logger.WithFields(logrus.Fields{"run_id": res.RunID, "dry_run": dryRun})
	defer func() {
		s.metrics.RecordRun("normalize", dryRun, err, time.Since(start).Seconds())
	}()

	if limit > 0 {
		sel.Limit = limit
	}
	batch, err := s.loadBatch(ctx, sel, observedAt)
	if err != nil {
		return nil, err
	}
	res.Snapshots = batch.Snapshots()
	res.Skipped = batch.Skipped

	if err := s.writeFacts(ctx, batch, dryRun, res); err != nil {
		log.WithError(err).Error("归一化失败，事务已回滚")
		return nil, newError(CodeNormalizeFailed, "归一化失败", err)
	}

	if !dryRun {
		s.metrics.RecordWritten("games", res.Games)
		s.metrics.RecordWritten("markets", res.Markets)
		s.metrics.RecordWritten("odds", res.OddsInserts)
	}
	s.metrics.RecordSkipped(res.Skipped.Reasons())

	// 审计写在事务之外：dry run 的回滚不影响审计记录
	if err := s.audit.Record(ctx, auditSourceNormalizer, auditActionNormalize, res); err != nil {
		log.WithError(err).Warn("写入审计日志失败")
	}
	log.WithFields(logrus.Fields{
		"snapshots":    res.Snapshots,
		"games":        res.Games,
		"markets":      res.Markets,
		"odds_inserts": res.OddsInserts,
		"skipped":      res.Skipped.Total(),
	}).Info("归一化完成")
	return res, nil
}

func (s *NormalizeService) writeFacts(ctx context.Context, batch *normalize.Batch, dryRun bool, res *NormalizeResult) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	var err error
	if res.Games, err = s.dims.WithTx(tx).UpsertGames(ctx, batch.Games()); err != nil {
		return err
	}
	if res.Markets, err = s.dims.WithTx(tx).UpsertMarkets(ctx, batch.Markets()); err != nil {
		return err
	}
	if res.OddsInserts, err = s.odds.WithTx(tx).InsertQuotes(ctx, batch.Quotes()); err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}
	committed = true
	return nil
}

// loadBatch 校验 odds_raw 契约，读出快照并展开（事务外读取）
func (s *NormalizeService) loadBatch(ctx context.Context, sel Selector, observedAt time.Time) (*normalize.Batch, error) {
	if err := s.snapshots.ValidateContract(ctx); err != nil {
		return nil, contractError(err)
	}
	perGame := sel.PerGameLimit
	if perGame <= 0 {
		perGame = s.cfg.SnapshotsPerGame
	}
	snaps, err := s.snapshots.List(ctx, repository.SnapshotFilter{
		IDs:          sel.IDs,
		Since:        sel.Since,
		SportKey:     sel.SportKey,
		PerGameLimit: perGame,
		Limit:        sel.Limit,
	})
	if err != nil {
		return nil, newError(CodeNormalizeFailed, "读取原始快照失败", err)
	}
	batch := normalize.NewBatch(observedAt)
	for _, snap := range snaps {
		batch.Add(snap)
	}
	return batch, nil
}
