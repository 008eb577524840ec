// internal/adapter/registry.go
package adapter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gosignals-ai/bet-analyzer/internal/config"
	"github.com/gosignals-ai/bet-analyzer/internal/interfaces"
)

// Factory 数据源工厂函数签名
type Factory func(cfg config.OddsAPIConfig, logger *logrus.Logger) interfaces.OddsSource

var (
	mu              sync.RWMutex
	factoryRegistry = make(map[string]Factory)
)

// Register 供数据源包的 init 调用
func Register(name string, factory Factory) {
	if factory == nil {
		panic(fmt.Sprintf("数据源%s的工厂函数不能为nil", name))
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factoryRegistry[name]; exists {
		logrus.Warnf("数据源%s已注册，将覆盖原有实现", name)
	}
	factoryRegistry[name] = factory
}

// ListSources 已注册的数据源名称（排序）
func ListSources() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factoryRegistry))
	for n := range factoryRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewSource 按名称创建数据源实例
func NewSource(name string, cfg config.OddsAPIConfig, logger *logrus.Logger) (interfaces.OddsSource, error) {
	mu.RLock()
	factory, ok := factoryRegistry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("数据源%s未注册（已注册：%v）", name, ListSources())
	}
	src := factory(cfg, logger)
	if src == nil {
		return nil, fmt.Errorf("数据源%s的工厂函数返回nil", name)
	}
	return src, nil
}
