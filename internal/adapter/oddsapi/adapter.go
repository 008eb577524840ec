// Package oddsapi 对接 the-odds-api v4 的赔率数据源
package oddsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/gosignals-ai/bet-analyzer/internal/adapter"
	"github.com/gosignals-ai/bet-analyzer/internal/config"
	"github.com/gosignals-ai/bet-analyzer/internal/interfaces"
	"github.com/gosignals-ai/bet-analyzer/internal/utils/httpclient"
)

// Name 注册名
const Name = "oddsapi"

func init() {
	adapter.Register(Name, NewAdapter)
}

type Adapter struct {
	cfg        config.OddsAPIConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
	now        func() time.Time
}

func NewAdapter(cfg config.OddsAPIConfig, logger *logrus.Logger) interfaces.OddsSource {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Adapter{
		cfg:        cfg,
		httpClient: httpclient.NewHTTPClient(cfg, logger),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
		now:        time.Now,
	}
}

func (a *Adapter) GetName() string {
	return Name
}

// FetchOdds 拉取 /v4/sports/{sport}/odds，美式赔率、ISO 时间
func (a *Adapter) FetchOdds(ctx context.Context, req interfaces.OddsRequest) (*interfaces.OddsBatch, error) {
	if strings.TrimSpace(req.Sport) == "" {
		return nil, fmt.Errorf("sport 不能为空")
	}
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("未配置 odds_api.api_key（或设置 ODDS_API_KEY）")
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("等待限流失败: %w", err)
	}

	regions := firstNonEmpty(req.Regions, a.cfg.Regions)
	markets := firstNonEmpty(req.Markets, a.cfg.Markets)
	q := url.Values{}
	q.Set("apiKey", a.cfg.APIKey)
	q.Set("regions", regions)
	q.Set("markets", markets)
	q.Set("oddsFormat", "american")
	q.Set("dateFormat", "iso")
	endpoint := fmt.Sprintf("%s/v4/sports/%s/odds?%s",
		strings.TrimRight(a.cfg.BaseURL, "/"), url.PathEscape(req.Sport), q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	fetchedAt := a.now().UTC()
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求赔率API失败: %w", redactKey(err, a.cfg.APIKey))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			a.logger.WithError(err).Warn("关闭赔率API响应体失败")
		}
	}()

	remaining := headerInt(resp.Header, "x-requests-remaining")
	used := headerInt(resp.Header, "x-requests-used")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("赔率API返回 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("解析赔率API响应失败: %w", err)
	}

	batch := &interfaces.OddsBatch{
		FetchedAt:         fetchedAt,
		Events:            make([]interfaces.SourceEvent, 0, len(items)),
		RequestsRemaining: remaining,
		RequestsUsed:      used,
	}
	for _, item := range items {
		var head struct {
			ID       string `json:"id"`
			SportKey string `json:"sport_key"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			a.logger.WithError(err).Warn("赔率API返回的比赛不是对象，跳过")
			continue
		}
		batch.Events = append(batch.Events, interfaces.SourceEvent{
			ID:       head.ID,
			SportKey: firstNonEmpty(head.SportKey, req.Sport),
			Payload:  item,
		})
	}

	a.logger.WithFields(logrus.Fields{
		"sport":     req.Sport,
		"events":    len(batch.Events),
		"remaining": remaining,
		"used":      used,
	}).Info("成功获取赔率数据")
	return batch, nil
}

func headerInt(h http.Header, key string) int {
	v := strings.TrimSpace(h.Get(key))
	if v == "" {
		return -1
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return -1
	}
	return int(n)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// redactKey url.Error 会带上完整 URL，去掉其中的 apiKey
func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
