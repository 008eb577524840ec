package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gosignals-ai/bet-analyzer/internal/repository"
	"github.com/gosignals-ai/bet-analyzer/internal/service"
)

// CoreHandler 规范化数据的只读查询接口
type CoreHandler struct {
	query  *service.QueryService
	logger *logrus.Logger
}

func NewCoreHandler(query *service.QueryService, logger *logrus.Logger) *CoreHandler {
	return &CoreHandler{query: query, logger: logger}
}

// LatestQuotes GET /core/latest-quotes?sport=&market=&game_uid=a,b&since=
func (h *CoreHandler) LatestQuotes(c *gin.Context) {
	filter, err := oddsFilterFromQuery(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	quotes, err := h.query.LatestQuotes(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": quotes, "count": len(quotes)})
}

// BestPrices GET /core/best-prices?sport=&market=&game_uid=&since=
func (h *CoreHandler) BestPrices(c *gin.Context) {
	filter, err := oddsFilterFromQuery(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	best, err := h.query.BestPrices(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": best, "count": len(best)})
}

// LatestLines 每场比赛的独赢最优价
// GET /core/latest-lines?sport=basketball_nba&limit=50
func (h *CoreHandler) LatestLines(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if limit > 500 {
		limit = 500
	}
	rows, err := h.query.MoneylineBoard(c.Request.Context(), c.Query("sport"), limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "count": len(rows)})
}

// Counts GET /core/metrics
func (h *CoreHandler) Counts(c *gin.Context) {
	counts, err := h.query.Counts(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// Integrity GET /core/integrity
func (h *CoreHandler) Integrity(c *gin.Context) {
	rep, err := h.query.Integrity(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// Health GET /health
func (h *CoreHandler) Health(c *gin.Context) {
	if err := h.query.Ping(c.Request.Context()); err != nil {
		h.logger.WithError(err).Warn("数据库不可用")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func oddsFilterFromQuery(c *gin.Context) (repository.OddsFilter, error) {
	since, err := queryTime(c, "since")
	if err != nil {
		return repository.OddsFilter{}, err
	}
	var uids []string
	for _, u := range strings.Split(c.Query("game_uid"), ",") {
		if u = strings.TrimSpace(u); u != "" {
			uids = append(uids, u)
		}
	}
	return repository.OddsFilter{
		GameUIDs:  uids,
		SportKey:  c.Query("sport"),
		MarketKey: c.Query("market"),
		Since:     since,
	}, nil
}
