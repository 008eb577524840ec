package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// SportSyncResult 单个运动的拉取结果；失败时 Error 为对外信息，原始错误只在 Detail（debug）中出现
type SportSyncResult struct {
	Sport  string       `json:"sport"`
	Result *FetchResult `json:"result,omitempty"`
	Code   Code         `json:"code,omitempty"`
	Error  string       `json:"error,omitempty"`
	Detail string       `json:"detail,omitempty"`

	err error
}

// Err 原始错误，供调用方决定是否展示
func (r SportSyncResult) Err() error { return r.err }

// OddsSyncResult 一次多运动拉取的汇总
type OddsSyncResult struct {
	Sports   []SportSyncResult `json:"sports"`
	Inserted int               `json:"inserted"`
	Failed   int               `json:"failed"`
}

// OddsSyncService 按运动列表逐个拉取赔率入库；单个运动失败不阻塞整次运行
type OddsSyncService struct {
	ingest *IngestService
	sports []string
	logger *logrus.Logger
}

// NewOddsSyncService sports 为默认拉取的运动列表（odds_api.sports）
func NewOddsSyncService(ingest *IngestService, sports []string, logger *logrus.Logger) *OddsSyncService {
	return &OddsSyncService{ingest: ingest, sports: sports, logger: logger}
}

// Run sports 为空时使用配置的运动列表；全部失败时返回最后一个错误
func (s *OddsSyncService) Run(ctx context.Context, sports []string, dryRun bool) (*OddsSyncResult, error) {
	if len(sports) == 0 {
		sports = s.sports
	}
	sports = dedupSports(sports)
	if len(sports) == 0 {
		return nil, newError(CodeInvalidRequest, "未配置需要拉取的运动", nil)
	}

	out := &OddsSyncResult{Sports: make([]SportSyncResult, 0, len(sports))}
	var lastErr error
	for _, sport := range sports {
		if err := ctx.Err(); err != nil {
			return nil, newError(CodeOddsSourceFailed, "拉取被取消", err)
		}
		res, err := s.ingest.FetchAndIngest(ctx, FetchRequest{Sport: sport, DryRun: dryRun})
		if err != nil {
			s.logger.WithError(err).WithField("sport", sport).Warn("OddsSync: 拉取失败，跳过")
			out.Sports = append(out.Sports, SportSyncResult{Sport: sport, Code: CodeOf(err), Error: MessageOf(err), err: err})
			out.Failed++
			lastErr = err
			continue
		}
		out.Sports = append(out.Sports, SportSyncResult{Sport: sport, Result: res})
		out.Inserted += res.Inserted
	}
	if out.Failed == len(sports) {
		return nil, lastErr
	}
	s.logger.Infof("OddsSync: %d 个运动完成，新增 %d 条快照，失败 %d 个", len(sports)-out.Failed, out.Inserted, out.Failed)
	return out, nil
}

func dedupSports(sports []string) []string {
	seen := make(map[string]bool, len(sports))
	out := make([]string, 0, len(sports))
	for _, sp := range sports {
		sp = strings.TrimSpace(sp)
		if sp == "" || seen[sp] {
			continue
		}
		seen[sp] = true
		out = append(out, sp)
	}
	return out
}
