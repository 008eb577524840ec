package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RawSnapshot 对应 odds_raw 表：一次抓取中单场比赛的原始赔率载荷，只追加不修改
type RawSnapshot struct {
	ID          uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	SportKey    string         `gorm:"column:sport_key;type:varchar(64);not null;index:idx_odds_raw_sport_time,priority:1"`
	GameID      string         `gorm:"column:game_id;type:varchar(128);not null;index:idx_odds_raw_game"`
	FetchedAt   time.Time      `gorm:"column:fetched_at;not null;index:idx_odds_raw_sport_time,priority:2,sort:desc"`
	Payload     datatypes.JSON `gorm:"column:payload;not null"`
	PayloadHash string         `gorm:"column:payload_hash;type:varchar(64);uniqueIndex:uq_odds_raw_payload_hash;not null"`
}

// Game 比赛维度：game_uid 由数据源比赛 ID 派生，字段按最新快照覆盖
type Game struct {
	GameUID         string     `gorm:"column:game_uid;primaryKey;type:varchar(128)"`
	SportKey        string     `gorm:"column:sport_key;type:varchar(64);not null"`
	CommenceTime    *time.Time `gorm:"column:commence_time"`
	HomeTeam        string     `gorm:"column:home_team;type:varchar(128)"`
	AwayTeam        string     `gorm:"column:away_team;type:varchar(128)"`
	Status          *string    `gorm:"column:status;type:varchar(32)"`       // 仅取数据源提供的值，缺失为 NULL
	SourceFetchedAt time.Time  `gorm:"column:source_fetched_at;not null"`    // 最近一次写入所用快照的抓取时间
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Market 盘口维度：(game_uid, market_key, book_key) 唯一，last_update 只增不减
type Market struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	GameUID    string    `gorm:"column:game_uid;type:varchar(128);not null;uniqueIndex:uq_markets_key,priority:1"`
	MarketKey  string    `gorm:"column:market_key;type:varchar(64);not null;uniqueIndex:uq_markets_key,priority:2"`
	BookKey    string    `gorm:"column:book_key;type:varchar(64);not null;uniqueIndex:uq_markets_key,priority:3"`
	LastUpdate time.Time `gorm:"column:last_update;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// OddsQuote 赔率事实表：五列唯一键去重，写入后不可变
type OddsQuote struct {
	ID         uint64              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	GameUID    string              `gorm:"column:game_uid;type:varchar(128);not null;uniqueIndex:uq_odds_key,priority:1" json:"game_uid"`
	MarketKey  string              `gorm:"column:market_key;type:varchar(64);not null;uniqueIndex:uq_odds_key,priority:2" json:"market_key"`
	BookKey    string              `gorm:"column:book_key;type:varchar(64);not null;uniqueIndex:uq_odds_key,priority:3" json:"book_key"`
	Side       Side                `gorm:"column:side;type:varchar(8);not null;uniqueIndex:uq_odds_key,priority:4" json:"side"`
	Price      int                 `gorm:"column:price;type:integer;not null" json:"price"` // 美式赔率
	Point      decimal.NullDecimal `gorm:"column:point;type:numeric(8,2)" json:"point"`
	LastUpdate time.Time           `gorm:"column:last_update;not null;uniqueIndex:uq_odds_key,priority:5" json:"last_update"`
	ObservedAt time.Time           `gorm:"column:observed_at;not null" json:"observed_at"`
}

// AuditLog 运行审计：每次抓取/归一化记录一条
type AuditLog struct {
	ID      uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	At      time.Time      `gorm:"column:at;autoCreateTime"`
	Source  string         `gorm:"column:source;type:varchar(32);not null"`
	Action  string         `gorm:"column:action;type:varchar(64);not null"`
	Details datatypes.JSON `gorm:"column:details"`
}

func (RawSnapshot) TableName() string { return "odds_raw" }
func (Game) TableName() string        { return "games" }
func (Market) TableName() string      { return "markets" }
func (OddsQuote) TableName() string   { return "odds" }
func (AuditLog) TableName() string    { return "audit_logs" }
