package normalize

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/gosignals-ai/bet-analyzer/internal/model"
	"github.com/shopspring/decimal"
)

// Skipped 按原因统计被过滤的输入单元；这些都不是错误
type Skipped struct {
	MalformedSnapshots  int `json:"malformed_snapshots"`
	MissingBookmakers   int `json:"missing_bookmakers"`
	MalformedBookmakers int `json:"malformed_bookmakers"`
	MalformedMarkets    int `json:"malformed_markets"`
	MalformedRows       int `json:"malformed_rows"`
	UnclassifiableSides int `json:"unclassifiable_sides"`
	UnknownMarkets      int `json:"unknown_market_rows"`
	DuplicateQuotes     int `json:"duplicate_quotes"`
}

// Total 被过滤的行与单元总数
func (s Skipped) Total() int {
	return s.MalformedSnapshots + s.MissingBookmakers + s.MalformedBookmakers + s.MalformedMarkets +
		s.MalformedRows + s.UnclassifiableSides + s.UnknownMarkets + s.DuplicateQuotes
}

// Reasons 以 reason→count 形式输出（用于指标）
func (s Skipped) Reasons() map[string]int {
	return map[string]int{
		"malformed_snapshot":  s.MalformedSnapshots,
		"missing_bookmakers":  s.MissingBookmakers,
		"malformed_bookmaker": s.MalformedBookmakers,
		"malformed_market":    s.MalformedMarkets,
		"malformed_row":       s.MalformedRows,
		"unclassifiable_side": s.UnclassifiableSides,
		"unknown_market":      s.UnknownMarkets,
		"duplicate_quote":     s.DuplicateQuotes,
	}
}

type marketIdentity struct {
	gameUID, marketKey, bookKey string
}

type quoteIdentity struct {
	marketIdentity
	side       model.Side
	lastUpdate int64
}

type gameEntry struct {
	game       model.Game
	snapshotID uint64
}

// Batch 把一组快照展开为维度与事实行。快照须按 (fetched_at, id) 升序加入：
// 同一去重键先到先得，比赛取最新快照。
type Batch struct {
	observedAt time.Time
	games      map[string]*gameEntry
	markets    map[marketIdentity]time.Time
	quotes     []model.OddsQuote
	seen       map[quoteIdentity]struct{}
	snapshots  int
	Skipped    Skipped
}

// NewBatch observedAt 为本次运行观察到报价的时间
func NewBatch(observedAt time.Time) *Batch {
	return &Batch{
		observedAt: canonicalTime(observedAt),
		games:      make(map[string]*gameEntry),
		markets:    make(map[marketIdentity]time.Time),
		seen:       make(map[quoteIdentity]struct{}),
	}
}

// Snapshots 已成功展开的快照数
func (b *Batch) Snapshots() int { return b.snapshots }

// Add 展开一条原始快照
func (b *Batch) Add(raw *model.RawSnapshot) {
	doc, ok := parseObject(json.RawMessage(raw.Payload))
	if !ok {
		b.Skipped.MalformedSnapshots++
		return
	}
	gameUID := strings.TrimSpace(raw.GameID)
	if gameUID == "" {
		gameUID = doc.str("id")
	}
	if gameUID == "" {
		b.Skipped.MalformedSnapshots++
		return
	}
	fetchedAt := canonicalTime(raw.FetchedAt)
	b.snapshots++
	b.resolveGame(gameUID, raw, doc, fetchedAt)

	books, ok := doc.array("bookmakers")
	if !ok {
		b.Skipped.MissingBookmakers++
		return
	}
	home, away := doc.str("home_team"), doc.str("away_team")
	for _, bookRaw := range books {
		b.addBookmaker(gameUID, home, away, bookRaw, fetchedAt)
	}
}

func (b *Batch) resolveGame(gameUID string, raw *model.RawSnapshot, doc rawObject, fetchedAt time.Time) {
	if cur, ok := b.games[gameUID]; ok {
		newer := fetchedAt.After(cur.game.SourceFetchedAt) ||
			(fetchedAt.Equal(cur.game.SourceFetchedAt) && raw.ID > cur.snapshotID)
		if !newer {
			return
		}
	}
	sportKey := strings.TrimSpace(raw.SportKey)
	if sportKey == "" {
		sportKey = doc.str("sport_key")
	}
	g := model.Game{
		GameUID:         gameUID,
		SportKey:        sportKey,
		HomeTeam:        doc.str("home_team"),
		AwayTeam:        doc.str("away_team"),
		SourceFetchedAt: fetchedAt,
	}
	if t, _, ok := doc.timestamp("commence_time"); ok {
		g.CommenceTime = &t
	}
	if s := doc.str("status"); s != "" {
		g.Status = &s
	}
	b.games[gameUID] = &gameEntry{game: g, snapshotID: raw.ID}
}

func (b *Batch) addBookmaker(gameUID, home, away string, raw json.RawMessage, fetchedAt time.Time) {
	book, ok := parseObject(raw)
	if !ok {
		b.Skipped.MalformedBookmakers++
		return
	}
	bookKey := book.str("key")
	if bookKey == "" {
		b.Skipped.MalformedBookmakers++
		return
	}
	bookTS, ok := fallbackTime(book, fetchedAt)
	if !ok {
		b.Skipped.MalformedBookmakers++
		return
	}
	markets, ok := book.array("markets")
	if !ok {
		b.Skipped.MalformedBookmakers++
		return
	}
	for _, marketRaw := range markets {
		b.addMarket(gameUID, home, away, bookKey, marketRaw, bookTS)
	}
}

func (b *Batch) addMarket(gameUID, home, away, bookKey string, raw json.RawMessage, bookTS time.Time) {
	market, ok := parseObject(raw)
	if !ok {
		b.Skipped.MalformedMarkets++
		return
	}
	marketKey := market.str("key")
	if marketKey == "" {
		b.Skipped.MalformedMarkets++
		return
	}
	marketTS, ok := fallbackTime(market, bookTS)
	if !ok {
		b.Skipped.MalformedMarkets++
		return
	}
	id := marketIdentity{gameUID: gameUID, marketKey: marketKey, bookKey: bookKey}
	b.touchMarket(id, marketTS)

	outcomes, ok := market.array("outcomes")
	if !ok {
		return
	}
	family := FamilyOf(marketKey)
	for _, outcomeRaw := range outcomes {
		b.addOutcome(id, family, home, away, outcomeRaw, marketTS)
	}
}

func (b *Batch) addOutcome(id marketIdentity, family MarketFamily, home, away string, raw json.RawMessage, marketTS time.Time) {
	outcome, ok := parseObject(raw)
	if !ok {
		b.Skipped.MalformedRows++
		return
	}
	lastUpdate, ok := fallbackTime(outcome, marketTS)
	if !ok {
		b.Skipped.MalformedRows++
		return
	}
	// 盘口时间取所有可解析的结果时间，与该行能否入事实表无关
	b.touchMarket(id, lastUpdate)
	price, ok := ParsePrice(outcome["price"])
	if !ok {
		b.Skipped.MalformedRows++
		return
	}
	var point decimal.NullDecimal
	if family.RequiresPoint() {
		p, _, ok := ParsePoint(outcome["point"])
		if !ok {
			b.Skipped.MalformedRows++
			return
		}
		point = decimal.NullDecimal{Decimal: p, Valid: true}
	}
	if family == FamilyUnknown {
		b.Skipped.UnknownMarkets++
		return
	}
	side, ok := ClassifySide(family, outcome.str("name"), home, away)
	if !ok {
		b.Skipped.UnclassifiableSides++
		return
	}

	key := quoteIdentity{marketIdentity: id, side: side, lastUpdate: lastUpdate.UnixNano()}
	if _, dup := b.seen[key]; dup {
		b.Skipped.DuplicateQuotes++
		return
	}
	b.seen[key] = struct{}{}
	b.quotes = append(b.quotes, model.OddsQuote{
		GameUID:    id.gameUID,
		MarketKey:  id.marketKey,
		BookKey:    id.bookKey,
		Side:       side,
		Price:      price,
		Point:      point,
		LastUpdate: lastUpdate,
		ObservedAt: b.observedAt,
	})
}

func (b *Batch) touchMarket(id marketIdentity, ts time.Time) {
	if cur, ok := b.markets[id]; !ok || ts.After(cur) {
		b.markets[id] = ts
	}
}

// fallbackTime 本层 last_update 存在则必须可解析，缺失时继承上一层
func fallbackTime(o rawObject, parent time.Time) (time.Time, bool) {
	t, present, ok := o.timestamp("last_update")
	if !present {
		return parent, true
	}
	return t, ok
}

// Games 每场比赛取最新快照的维度行，按 game_uid 排序
func (b *Batch) Games() []model.Game {
	games := make([]model.Game, 0, len(b.games))
	for _, e := range b.games {
		games = append(games, e.game)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].GameUID < games[j].GameUID })
	return games
}

// Markets 每个 (比赛, 盘口, 书商) 的最大 last_update，按键排序
func (b *Batch) Markets() []model.Market {
	markets := make([]model.Market, 0, len(b.markets))
	for id, ts := range b.markets {
		markets = append(markets, model.Market{
			GameUID:    id.gameUID,
			MarketKey:  id.marketKey,
			BookKey:    id.bookKey,
			LastUpdate: ts,
		})
	}
	sort.Slice(markets, func(i, j int) bool {
		a, c := markets[i], markets[j]
		if a.GameUID != c.GameUID {
			return a.GameUID < c.GameUID
		}
		if a.MarketKey != c.MarketKey {
			return a.MarketKey < c.MarketKey
		}
		return a.BookKey < c.BookKey
	})
	return markets
}

// Quotes 去重后的报价，保持加入顺序
func (b *Batch) Quotes() []model.OddsQuote {
	return b.quotes
}
