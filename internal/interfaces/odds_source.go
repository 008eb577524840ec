package interfaces

import (
	"context"
	"encoding/json"
	"time"
)

// OddsRequest 一次赔率拉取的参数
type OddsRequest struct {
	Sport   string // 如 basketball_nba
	Regions string // 如 us
	Markets string // 如 h2h,spreads,totals
}

// SourceEvent 数据源返回的单场比赛原始载荷
type SourceEvent struct {
	ID       string
	SportKey string
	Payload  json.RawMessage
}

// OddsBatch 一次拉取的结果；配额未知时为 -1
type OddsBatch struct {
	FetchedAt         time.Time
	Events            []SourceEvent
	RequestsRemaining int
	RequestsUsed      int
}

// OddsSource 赔率数据源必须实现的接口
type OddsSource interface {
	GetName() string
	FetchOdds(ctx context.Context, req OddsRequest) (*OddsBatch, error)
}
