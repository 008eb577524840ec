package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 注册入库、查询与运维路由
func RegisterRoutes(r *gin.Engine, ingest *IngestHandler, sync *SyncHandler, core *CoreHandler, registry *prometheus.Registry) {
	r.GET("/health", core.Health)
	if registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	ig := r.Group("/ingest")
	ig.POST("/snapshots", ingest.IngestSnapshot)
	ig.POST("/odds", sync.SyncOdds)
	ig.POST("/odds/:sport", ingest.FetchOdds)
	ig.POST("/resolve", ingest.Resolve)
	ig.POST("/normalize", ingest.Normalize)

	cg := r.Group("/core")
	cg.GET("/latest-quotes", core.LatestQuotes)
	cg.GET("/best-prices", core.BestPrices)
	cg.GET("/latest-lines", core.LatestLines)
	cg.GET("/metrics", core.Counts)
	cg.GET("/integrity", core.Integrity)
}
