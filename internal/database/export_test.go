package database

// LatestQuoteQuery / BestPriceQuery 用窗口函数表达与 PostgreSQL 视图相同的分组与排序，
// 便于在 SQLite 上校验
func LatestQuoteQuery() string {
	return `SELECT id, game_uid, market_key, book_key, side, price, point, last_update, observed_at FROM (
  SELECT o.*, ROW_NUMBER() OVER (PARTITION BY ` + latestPartition + ` ORDER BY ` + latestOrder + `) AS rn FROM odds o
) WHERE rn = 1`
}

func BestPriceQuery() string {
	return `SELECT game_uid, market_key, side, book_key, price FROM (
  SELECT l.*, ROW_NUMBER() OVER (PARTITION BY ` + bestPartition + ` ORDER BY ` + bestOrder + `) AS rn FROM (` + LatestQuoteQuery() + `) l
) WHERE rn = 1 ORDER BY game_uid, market_key, side`
}

func ViewStatements() []string { return viewStatements }
