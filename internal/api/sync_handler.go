package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gosignals-ai/bet-analyzer/internal/service"
)

type SyncHandler struct {
	syncService *service.OddsSyncService
	logger      *logrus.Logger
}

func NewSyncHandler(syncService *service.OddsSyncService, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{syncService: syncService, logger: logger}
}

// SyncOdds 按运动列表批量拉取赔率入库
// @Summary 批量拉取赔率
// @Param sports query string false "逗号分隔的运动，默认 odds_api.sports"
// @Param dry_run query string false "默认 0"
// @Success 200 {object} service.OddsSyncResult
// @Router /ingest/odds [post]
func (h *SyncHandler) SyncOdds(c *gin.Context) {
	dryRun, err := queryBool(c, "dry_run", "0")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	var sports []string
	if raw := strings.TrimSpace(c.Query("sports")); raw != "" {
		sports = strings.Split(raw, ",")
	}

	res, err := h.syncService.Run(c.Request.Context(), sports, dryRun)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if gin.IsDebugging() {
		for i := range res.Sports {
			if e := res.Sports[i].Err(); e != nil {
				res.Sports[i].Detail = e.Error()
			}
		}
	}
	c.JSON(http.StatusOK, res)
}
