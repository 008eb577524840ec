package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gosignals-ai/bet-analyzer/internal/interfaces"
	"github.com/gosignals-ai/bet-analyzer/internal/metrics"
	"github.com/gosignals-ai/bet-analyzer/internal/model"
	"github.com/gosignals-ai/bet-analyzer/internal/normalize"
	"github.com/gosignals-ai/bet-analyzer/internal/repository"
)

const (
	auditSourceIngestor = "ingestor"
	auditActionIngest   = "ingest_run"
)

// IngestResult 单条快照入库结果
type IngestResult struct {
	Inserted    bool   `json:"inserted"`
	PayloadHash string `json:"payload_hash"`
	GameID      string `json:"game_id"`
}

// FetchRequest 从数据源拉取并入库
type FetchRequest struct {
	Sport   string
	Regions string
	Markets string
	DryRun  bool
}

// FetchResult 一次拉取入库的汇总
type FetchResult struct {
	RunID             string    `json:"run_id"`
	Sport             string    `json:"sport"`
	FetchedAt         time.Time `json:"fetched_at"`
	Attempted         int       `json:"attempted"`
	Inserted          int       `json:"inserted"`
	Duplicates        int       `json:"duplicates"`
	Invalid           int       `json:"invalid"`
	DryRun            bool      `json:"dry_run"`
	RequestsRemaining int       `json:"requests_remaining"`
	RequestsUsed      int       `json:"requests_used"`
}

// IngestService 原始快照入库（只追加、按内容哈希去重）
type IngestService struct {
	snapshots repository.SnapshotRepository
	audit     repository.AuditRepository
	source    interfaces.OddsSource
	metrics   *metrics.PipelineMetrics
	logger    *logrus.Logger
	now       func() time.Time
}

// NewIngestService source 可为 nil，此时只支持直接入库
func NewIngestService(db *gorm.DB, source interfaces.OddsSource, m *metrics.PipelineMetrics, logger *logrus.Logger) *IngestService {
	return &IngestService{
		snapshots: repository.NewSnapshotRepository(db),
		audit:     repository.NewAuditRepository(db),
		source:    source,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest 写入一条原始快照；相同内容已存在时 Inserted=false，不视为错误
func (s *IngestService) Ingest(ctx context.Context, sportKey, gameID string, payload []byte, fetchedAt time.Time) (*IngestResult, error) {
	sportKey = strings.TrimSpace(sportKey)
	if sportKey == "" {
		s.metrics.RecordIngest("invalid")
		return nil, newError(CodeInvalidSnapshot, "sport_key 不能为空", nil)
	}
	canon, err := normalize.Canonicalize(sportKey, gameID, payload)
	if err != nil {
		s.metrics.RecordIngest("invalid")
		return nil, newError(CodeInvalidSnapshot, "载荷无效", err)
	}
	if fetchedAt.IsZero() {
		fetchedAt = s.now()
	}

	snap := &model.RawSnapshot{
		SportKey:    sportKey,
		GameID:      canon.GameID,
		FetchedAt:   fetchedAt.UTC().Truncate(time.Microsecond),
		Payload:     datatypes.JSON(payload),
		PayloadHash: canon.Hash,
	}
	inserted, err := s.snapshots.Insert(ctx, snap)
	if err != nil {
		return nil, newError(CodeIngestFailed, "写入原始快照失败", err)
	}
	if inserted {
		s.metrics.RecordIngest("inserted")
	} else {
		s.metrics.RecordIngest("duplicate")
	}
	return &IngestResult{Inserted: inserted, PayloadHash: canon.Hash, GameID: canon.GameID}, nil
}

// FetchAndIngest 拉取一个运动的全部比赛并逐场入库；共享同一 fetched_at。
// dry run 只计算哈希并统计会新增多少条。
func (s *IngestService) FetchAndIngest(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	if strings.TrimSpace(req.Sport) == "" {
		return nil, newError(CodeInvalidRequest, "sport 不能为空", nil)
	}
	if s.source == nil {
		return nil, newError(CodeOddsSourceFailed, "未配置赔率数据源", nil)
	}

	batch, err := s.source.FetchOdds(ctx, interfaces.OddsRequest{Sport: req.Sport, Regions: req.Regions, Markets: req.Markets})
	if err != nil {
		s.metrics.RecordSourceRequest(req.Sport, err, -1, -1)
		return nil, newError(CodeOddsSourceFailed, "拉取赔率失败", err)
	}
	s.metrics.RecordSourceRequest(req.Sport, nil, batch.RequestsRemaining, batch.RequestsUsed)

	res := &FetchResult{
		RunID:             uuid.NewString(),
		Sport:             req.Sport,
		FetchedAt:         batch.FetchedAt.UTC().Truncate(time.Microsecond),
		Attempted:         len(batch.Events),
		DryRun:            req.DryRun,
		RequestsRemaining: batch.RequestsRemaining,
		RequestsUsed:      batch.RequestsUsed,
	}
	log := s.logger.WithFields(logrus.Fields{"run_id": res.RunID, "sport": req.Sport, "dry_run": req.DryRun})

	if req.DryRun {
		if err := s.dryRunCount(ctx, batch.Events, res); err != nil {
			return nil, err
		}
	} else {
		for _, ev := range batch.Events {
			r, err := s.Ingest(ctx, ev.SportKey, ev.ID, ev.Payload, res.FetchedAt)
			switch {
			case CodeOf(err) == CodeInvalidSnapshot:
				res.Invalid++
				log.WithError(err).WithField("game_id", ev.ID).Warn("比赛载荷无效，跳过")
			case err != nil:
				return nil, err
			case r.Inserted:
				res.Inserted++
			default:
				res.Duplicates++
			}
		}
	}

	if err := s.audit.Record(ctx, auditSourceIngestor, auditActionIngest, res); err != nil {
		log.WithError(err).Warn("写入审计日志失败")
	}
	log.WithFields(logrus.Fields{
		"attempted":  res.Attempted,
		"inserted":   res.Inserted,
		"duplicates": res.Duplicates,
		"invalid":    res.Invalid,
	}).Info("赔率入库完成")
	return res, nil
}

func (s *IngestService) dryRunCount(ctx context.Context, events []interfaces.SourceEvent, res *FetchResult) error {
	hashes := make([]string, 0, len(events))
	for _, ev := range events {
		canon, err := normalize.Canonicalize(ev.SportKey, ev.ID, ev.Payload)
		if err != nil {
			if errors.Is(err, normalize.ErrPayloadNotObject) || errors.Is(err, normalize.ErrMissingGameID) {
				res.Invalid++
				continue
			}
			return newError(CodeInvalidSnapshot, "计算哈希失败", err)
		}
		hashes = append(hashes, canon.Hash)
	}
	existing, err := s.snapshots.ExistingHashes(ctx, hashes)
	if err != nil {
		return newError(CodeIngestFailed, "查询已有快照失败", err)
	}
	seen := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		if existing[h] || seen[h] {
			res.Duplicates++
			continue
		}
		seen[h] = true
		res.Inserted++
	}
	return nil
}
