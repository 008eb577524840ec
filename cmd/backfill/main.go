// backfill 从 odds_raw 一次性重建 games/markets/odds
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gosignals-ai/bet-analyzer/internal/config"
	"github.com/gosignals-ai/bet-analyzer/internal/database"
	"github.com/gosignals-ai/bet-analyzer/internal/metrics"
	"github.com/gosignals-ai/bet-analyzer/internal/service"
	"github.com/gosignals-ai/bet-analyzer/internal/utils/logging"
)

var (
	dryRun      = flag.Bool("dry-run", true, "完整执行后回滚，只输出计数")
	resolveOnly = flag.Bool("resolve-only", false, "只解析 games/markets 维度")
	since       = flag.String("since", "", "只处理 fetched_at >= since 的快照（RFC3339）")
	ids         = flag.String("ids", "", "逗号分隔的快照 id，优先于 -since")
	sport       = flag.String("sport", "", "只处理该 sport_key")
	perGame     = flag.Int("per-game", 0, "每场比赛最多处理的最新快照数，0 使用配置值")
	limit       = flag.Int("limit", 0, "最多处理的快照数，0 表示不限")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("加载配置文件失败: %v", err)
	}
	logger := logging.New(cfg.Log)

	sel, err := buildSelector()
	if err != nil {
		logger.Fatalf("参数无效: %v", err)
	}
	// run 返回后连接已关闭，再决定退出码
	if err := run(cfg, sel, options{dryRun: *dryRun, resolveOnly: *resolveOnly}, os.Stdout, logger); err != nil {
		logger.WithError(err).Error("回填失败")
		os.Exit(1)
	}
}

type options struct {
	dryRun      bool
	resolveOnly bool
}

func run(cfg *config.Config, sel service.Selector, opts options, w io.Writer, logger *logrus.Logger) error {
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.WithError(err).Warn("关闭数据库连接失败")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := service.NewNormalizeService(db, cfg.Normalize, metrics.New(), logger)
	var out interface{}
	if opts.resolveOnly {
		out, err = svc.ResolveDimensions(ctx, sel)
	} else {
		out, err = svc.NormalizeFacts(ctx, sel, opts.dryRun, 0)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("输出结果失败: %w", err)
	}
	return nil
}

func buildSelector() (service.Selector, error) {
	sel := service.Selector{
		SportKey:     strings.TrimSpace(*sport),
		PerGameLimit: *perGame,
		Limit:        *limit,
	}
	if *perGame < 0 || *limit < 0 {
		return sel, fmt.Errorf("-per-game 与 -limit 不能为负数")
	}
	if s := strings.TrimSpace(*since); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return sel, fmt.Errorf("解析 -since 失败: %w", err)
		}
		t = t.UTC()
		sel.Since = &t
	}
	for _, p := range strings.Split(*ids, ",") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return sel, fmt.Errorf("解析 -ids 失败: %w", err)
		}
		sel.IDs = append(sel.IDs, id)
	}
	return sel, nil
}
