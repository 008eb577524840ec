package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gosignals-ai/bet-analyzer/internal/adapter"
	"github.com/gosignals-ai/bet-analyzer/internal/adapter/oddsapi"
	"github.com/gosignals-ai/bet-analyzer/internal/api"
	"github.com/gosignals-ai/bet-analyzer/internal/config"
	"github.com/gosignals-ai/bet-analyzer/internal/database"
	"github.com/gosignals-ai/bet-analyzer/internal/interfaces"
	"github.com/gosignals-ai/bet-analyzer/internal/metrics"
	"github.com/gosignals-ai/bet-analyzer/internal/repository"
	"github.com/gosignals-ai/bet-analyzer/internal/service"
	"github.com/gosignals-ai/bet-analyzer/internal/utils/logging"
)

func main() {
	// 1. 加载配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("加载配置文件失败: %v", err)
	}

	// 2. 初始化日志
	logger := logging.New(cfg.Log)
	logger.Info("配置文件加载成功")

	// run 返回时数据库连接已释放
	if err := run(cfg, logger); err != nil {
		logger.Fatalf("服务退出: %v", err)
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	// 3. 连接数据库（按配置建表或只校验 odds_raw）
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.WithError(err).Warn("关闭数据库连接失败")
		}
	}()

	// 只读已有 odds_raw 时启动即校验契约
	if !cfg.Database.AutoMigrate {
		if err := repository.NewSnapshotRepository(db).ValidateContract(context.Background()); err != nil {
			return fmt.Errorf("odds_raw 契约校验失败: %w", err)
		}
	}

	// 4. 指标与数据源；未配置 api_key 时只开放直接入库
	m := metrics.New()
	var source interfaces.OddsSource
	if strings.TrimSpace(cfg.OddsAPI.APIKey) != "" {
		source, err = adapter.NewSource(oddsapi.Name, cfg.OddsAPI, logger)
		if err != nil {
			return fmt.Errorf("初始化赔率数据源失败: %w", err)
		}
		logger.Infof("赔率数据源: %s", source.GetName())
	} else {
		logger.Warn("未配置 odds_api.api_key，/ingest/odds 不可用")
	}

	ingestSvc := service.NewIngestService(db, source, m, logger)
	normalizeSvc := service.NewNormalizeService(db, cfg.Normalize, m, logger)
	syncSvc := service.NewOddsSyncService(ingestSvc, cfg.OddsAPI.Sports, logger)
	querySvc := service.NewQueryService(db, logger)

	// 5. 配置Gin运行模式
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()

	// 注册pprof 方便调试和监测性能问题
	pprof.Register(r)
	logger.Infof("Gin运行模式: %s", cfg.Server.Mode)

	api.RegisterRoutes(r,
		api.NewIngestHandler(ingestSvc, normalizeSvc, logger),
		api.NewSyncHandler(syncSvc, logger),
		api.NewCoreHandler(querySvc, logger),
		m.Registry(),
	)

	// 6. 启动服务
	port := cfg.Server.Port
	logger.Infof("服务启动成功，端口：%d", port)
	if err := r.Run(fmt.Sprintf(":%d", port)); err != nil {
		return fmt.Errorf("启动服务失败: %w", err)
	}
	return nil
}
