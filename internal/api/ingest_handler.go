package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gosignals-ai/bet-analyzer/internal/service"
)

// IngestHandler 原始快照入库与归一化运行接口
type IngestHandler struct {
	ingest    *service.IngestService
	normalize *service.NormalizeService
	logger    *logrus.Logger
}

func NewIngestHandler(ingest *service.IngestService, normalize *service.NormalizeService, logger *logrus.Logger) *IngestHandler {
	return &IngestHandler{ingest: ingest, normalize: normalize, logger: logger}
}

type snapshotRequest struct {
	SportKey  string          `json:"sport_key" binding:"required"`
	GameID    string          `json:"game_id"`
	FetchedAt *time.Time      `json:"fetched_at"`
	Payload   json.RawMessage `json:"payload" binding:"required"`
}

// IngestSnapshot 写入单条原始快照
// POST /ingest/snapshots  {"sport_key":"basketball_nba","game_id":"...","payload":{...}}
func (h *IngestHandler) IngestSnapshot(c *gin.Context) {
	var req snapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, &service.Error{Code: service.CodeInvalidRequest, Message: "请求体无效", Err: err})
		return
	}
	var fetchedAt time.Time
	if req.FetchedAt != nil {
		fetchedAt = *req.FetchedAt
	}
	res, err := h.ingest.Ingest(c.Request.Context(), req.SportKey, req.GameID, req.Payload, fetchedAt)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if res.Inserted {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// FetchOdds 从赔率 API 拉取一个运动并入库
// POST /ingest/odds/:sport?regions=us&markets=h2h,spreads&dry_run=0
func (h *IngestHandler) FetchOdds(c *gin.Context) {
	dryRun, err := queryBool(c, "dry_run", "0")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.ingest.FetchAndIngest(c.Request.Context(), service.FetchRequest{
		Sport:   c.Param("sport"),
		Regions: c.Query("regions"),
		Markets: c.Query("markets"),
		DryRun:  dryRun,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Resolve 只解析比赛/盘口维度
// POST /ingest/resolve?since=2025-01-01T00:00:00Z&sport=basketball_nba&ids=1,2&per_game=3&limit=1000
func (h *IngestHandler) Resolve(c *gin.Context) {
	sel, err := selectorFromQuery(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.normalize.ResolveDimensions(c.Request.Context(), sel)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Normalize 归一化事实；默认 dry_run=1
// POST /ingest/normalize?dry_run=0&limit=1000
func (h *IngestHandler) Normalize(c *gin.Context) {
	dryRun, err := queryBool(c, "dry_run", "1")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	sel, err := selectorFromQuery(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.normalize.NormalizeFacts(c.Request.Context(), sel, dryRun, 0)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func selectorFromQuery(c *gin.Context) (service.Selector, error) {
	var sel service.Selector
	var err error
	if sel.IDs, err = queryIDs(c, "ids"); err != nil {
		return sel, err
	}
	if sel.Since, err = queryTime(c, "since"); err != nil {
		return sel, err
	}
	if sel.PerGameLimit, err = queryInt(c, "per_game", 0); err != nil {
		return sel, err
	}
	if sel.Limit, err = queryInt(c, "limit", 0); err != nil {
		return sel, err
	}
	sel.SportKey = c.Query("sport")
	return sel, nil
}
