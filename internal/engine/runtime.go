package engine

import (
	"time"

	"github.com/open9am/traderengine/internal/connector"
	"github.com/open9am/traderengine/internal/idmap"
)

// RuntimeConfig 通道注册参数：初始化/启动/结算三组属性包。
// 启动属性在 Start 时与全局启动属性合并，通道自己的键优先。
type RuntimeConfig struct {
	InitProps   map[string]string
	StartProps  map[string]string
	SettleProps map[string]string
}

// Runtime 每个后端通道一条注册记录。引擎独占注册表；
// 每个 Runtime 独占自己的委托号映射表，不跨通道共享。
type Runtime struct {
	TraderID string

	trader     connector.Trader
	enabled    bool
	translator *idmap.Translator
	config     RuntimeConfig

	registeredAt time.Time
	startedAt    time.Time
}

// Trader 通道句柄
func (r *Runtime) Trader() connector.Trader {
	return r.trader
}

// Enabled 是否参与路由
func (r *Runtime) Enabled() bool {
	return r.enabled
}

func newTranslator(g IDGenerator) *idmap.Translator {
	return idmap.New(g.NextID)
}

func mergeProps(global, local map[string]string) map[string]string {
	merged := make(map[string]string, len(global)+len(local))
	for k, v := range global {
		merged[k] = v
	}
	for k, v := range local {
		merged[k] = v
	}
	return merged
}
