package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（匹配 config/config.yaml）
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`    // 服务器配置
	Database  DatabaseConfig  `mapstructure:"database"`  // 数据库配置
	OddsAPI   OddsAPIConfig   `mapstructure:"odds_api"`  // 赔率数据源配置
	Normalize NormalizeConfig `mapstructure:"normalize"` // 归一化任务配置
	Log       LogConfig       `mapstructure:"log"`       // 日志配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// DatabaseConfig 关系库配置；driver 为 postgres（生产）或 sqlite（本地开发）
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"` // 启动时建表；关闭时仅校验 odds_raw 契约
	LogLevel        string        `mapstructure:"log_level"`    // GORM 日志级别：silent/error/warn/info
}

// OddsAPIConfig 外部赔率 API 配置
type OddsAPIConfig struct {
	BaseURL           string   `mapstructure:"base_url"`
	APIKey            string   `mapstructure:"api_key"`
	Regions           string   `mapstructure:"regions"` // 如 us
	Markets           string   `mapstructure:"markets"` // 如 h2h,spreads,totals
	Sports            []string `mapstructure:"sports"`  // POST /ingest/odds 批量拉取的运动
	Timeout           int      `mapstructure:"timeout"` // 请求超时（秒）
	Proxy             string   `mapstructure:"proxy"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
}

// NormalizeConfig 归一化任务配置
type NormalizeConfig struct {
	SnapshotsPerGame int `mapstructure:"snapshots_per_game"` // 每场比赛最多处理的最新快照数，0 表示不限
	BatchSize        int `mapstructure:"batch_size"`         // 批量写入大小
}

// LogConfig 日志配置；File 非空时按 lumberjack 规则滚动写文件
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text/json
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env / 环境变量覆盖
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("./config")
}

// LoadConfigFrom 从指定目录加载 config.yaml
func LoadConfigFrom(dir string) (*Config, error) {
	// 1. 加载 .env（若存在）
	_ = godotenv.Load()

	// 2. 读取 config.yaml
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：env 优先于 yaml
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("odds_api.base_url", "https://api.the-odds-api.com")
	v.SetDefault("odds_api.regions", "us")
	v.SetDefault("odds_api.markets", "h2h,spreads,totals")
	v.SetDefault("odds_api.sports", []string{"basketball_nba"})
	v.SetDefault("odds_api.timeout", 30)
	v.SetDefault("odds_api.requests_per_second", 1.0)
	v.SetDefault("normalize.snapshots_per_game", 0)
	v.SetDefault("normalize.batch_size", 500)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("ODDS_API_KEY"); v != "" {
		cfg.OddsAPI.APIKey = v
	}
	if v := os.Getenv("ODDS_API_PROXY"); v != "" {
		cfg.OddsAPI.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate 启动前检查必填项
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn 未配置（或设置 DATABASE_URL）")
	}
	if c.Normalize.SnapshotsPerGame < 0 {
		return fmt.Errorf("normalize.snapshots_per_game 不能为负数")
	}
	return nil
}
