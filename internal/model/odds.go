package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side 归一化后的下注方向
type Side string

const (
	SideHome  Side = "home"
	SideAway  Side = "away"
	SideDraw  Side = "draw"
	SideOver  Side = "over"
	SideUnder Side = "under"
)

// Valid 是否为五种规范方向之一
func (s Side) Valid() bool {
	switch s {
	case SideHome, SideAway, SideDraw, SideOver, SideUnder:
		return true
	}
	return false
}

// AllSides 按固定顺序列出所有方向（用于完整性校验的 IN 条件）
func AllSides() []string {
	return []string{string(SideHome), string(SideAway), string(SideDraw), string(SideOver), string(SideUnder)}
}

// BestPrice 某场比赛某盘口某方向在所有书商中的最优最新报价
type BestPrice struct {
	GameUID    string              `json:"game_uid"`
	MarketKey  string              `json:"market_key"`
	Side       Side                `json:"side"`
	BookKey    string              `json:"book_key"`
	Price      int                 `json:"price"`
	Point      decimal.NullDecimal `json:"point"`
	LastUpdate time.Time           `json:"last_update"`
	ObservedAt time.Time           `json:"observed_at"`
}

// MoneylineRow 每场比赛一行的独赢最优价（主客两侧）
type MoneylineRow struct {
	SportKey      string     `json:"sport_key"`
	GameUID       string     `json:"game_uid"`
	AwayTeam      string     `json:"away_team"`
	HomeTeam      string     `json:"home_team"`
	CommenceTime  *time.Time `json:"commence_time_utc"`
	AwayBestPrice *int       `json:"away_best_price"`
	AwayBook      *string    `json:"away_book"`
	HomeBestPrice *int       `json:"home_best_price"`
	HomeBook      *string    `json:"home_book"`
}
