package normalize

import (
	"sort"

	"github.com/gosignals-ai/bet-analyzer/internal/model"
)

type sideIdentity struct {
	gameUID, marketKey string
	side               model.Side
}

// LatestQuotes 每个 (比赛, 盘口, 书商, 方向) 取 last_update 最大的一条，相同时取 observed_at 最大
func LatestQuotes(quotes []model.OddsQuote) []model.OddsQuote {
	latest := make(map[quoteIdentity]model.OddsQuote, len(quotes))
	for _, q := range quotes {
		id := quoteIdentity{marketIdentity: marketIdentity{q.GameUID, q.MarketKey, q.BookKey}, side: q.Side}
		cur, ok := latest[id]
		if !ok || newerQuote(q, cur) {
			latest[id] = q
		}
	}
	out := make([]model.OddsQuote, 0, len(latest))
	for _, q := range latest {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return quoteLess(out[i], out[j]) })
	return out
}

func newerQuote(a, b model.OddsQuote) bool {
	if !a.LastUpdate.Equal(b.LastUpdate) {
		return a.LastUpdate.After(b.LastUpdate)
	}
	if !a.ObservedAt.Equal(b.ObservedAt) {
		return a.ObservedAt.After(b.ObservedAt)
	}
	return a.ID > b.ID
}

// BestPrices 对最新报价按 (比赛, 盘口, 方向) 在各书商间选最优价。
// 价格高者优先（+150 > -110 > -200）；同价取 observed_at 较新者；再同则取字典序最小的 book_key。
func BestPrices(latest []model.OddsQuote) []model.BestPrice {
	best := make(map[sideIdentity]model.OddsQuote)
	for _, q := range latest {
		id := sideIdentity{gameUID: q.GameUID, marketKey: q.MarketKey, side: q.Side}
		cur, ok := best[id]
		if !ok || betterPrice(q, cur) {
			best[id] = q
		}
	}
	out := make([]model.BestPrice, 0, len(best))
	for _, q := range best {
		out = append(out, model.BestPrice{
			GameUID:    q.GameUID,
			MarketKey:  q.MarketKey,
			Side:       q.Side,
			BookKey:    q.BookKey,
			Price:      q.Price,
			Point:      q.Point,
			LastUpdate: q.LastUpdate,
			ObservedAt: q.ObservedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.GameUID != b.GameUID {
			return a.GameUID < b.GameUID
		}
		if a.MarketKey != b.MarketKey {
			return a.MarketKey < b.MarketKey
		}
		return a.Side < b.Side
	})
	return out
}

func betterPrice(a, b model.OddsQuote) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	if !a.ObservedAt.Equal(b.ObservedAt) {
		return a.ObservedAt.After(b.ObservedAt)
	}
	return a.BookKey < b.BookKey
}

func quoteLess(a, b model.OddsQuote) bool {
	if a.GameUID != b.GameUID {
		return a.GameUID < b.GameUID
	}
	if a.MarketKey != b.MarketKey {
		return a.MarketKey < b.MarketKey
	}
	if a.BookKey != b.BookKey {
		return a.BookKey < b.BookKey
	}
	return a.Side < b.Side
}
