// Package engine 路由与准入引擎：受理委托、执行事前资金/持仓检查、
// 选择后端通道转发，并对账通道的异步回报。
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/open9am/traderengine/internal/connector"
	"github.com/open9am/traderengine/internal/fanout"
	"github.com/open9am/traderengine/internal/ledger"
	"github.com/open9am/traderengine/internal/metrics"
	"github.com/open9am/traderengine/pkg/logger"
)

// IDGenerator ID 生成器接口
type IDGenerator interface {
	NextID() int64
}

// Engine 交易引擎门面
type Engine struct {
	store   ledger.Store
	idGen   IDGenerator
	log     *logger.Logger
	metrics *metrics.Metrics

	hub *fanout.Hub[Handler]

	mu          sync.Mutex
	status      Status
	runtimes    map[string]*Runtime
	orderRoute  map[int64][]string // 逻辑委托号 -> 承接通道
	globalStart map[string]string

	instMu      sync.RWMutex
	instruments map[string]*ledger.Instrument
}

// New 创建引擎。metricsClient 可以为 nil。
func New(store ledger.Store, idGen IDGenerator, log *logger.Logger, metricsClient *metrics.Metrics) *Engine {
	e := &Engine{
		store:       store,
		idGen:       idGen,
		log:         log,
		metrics:     metricsClient,
		status:      StatusUninitialized,
		runtimes:    make(map[string]*Runtime),
		orderRoute:  make(map[int64][]string),
		instruments: make(map[string]*ledger.Instrument),
	}
	e.hub = fanout.New(func(h Handler, err error) {
		h.OnException(err)
	})
	return e
}

// RegisterHandler 注册观察者
func (e *Engine) RegisterHandler(h Handler) {
	e.hub.Register(h)
}

// Register 注册后端通道，初始为禁用
func (e *Engine) Register(traderID string, trader connector.Trader, cfg RuntimeConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.runtimes[traderID]; ok {
		return fmt.Errorf("register %s: %w", traderID, ErrDuplicateTrader)
	}
	e.runtimes[traderID] = &Runtime{
		TraderID:     traderID,
		trader:       trader,
		translator:   newTranslator(e.idGen),
		config:       cfg,
		registeredAt: time.Now(),
	}
	return nil
}

// Enable 允许通道参与路由
func (e *Engine) Enable(traderID string) error {
	return e.setEnabled(traderID, true)
}

// Disable 将通道移出路由
func (e *Engine) Disable(traderID string) error {
	return e.setEnabled(traderID, false)
}

func (e *Engine) setEnabled(traderID string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rt, ok := e.runtimes[traderID]
	if !ok {
		return fmt.Errorf("trader %s: %w", traderID, ErrNoTrader)
	}
	rt.enabled = enabled
	return nil
}

// SetGlobalStartProperties 设置全局启动属性包，通道自己的键优先
func (e *Engine) SetGlobalStartProperties(props map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.globalStart = props
}

// Status 引擎状态
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// setStatus 迁移引擎状态并广播。每次相位迁移都通知观察者。
func (e *Engine) setStatus(s Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.SetEngineStatus(int(s))
	}
	e.hub.Publish("status", func(h Handler) { h.OnStatusChange(s) })
}

func (e *Engine) runtime(traderID string) (*Runtime, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, ok := e.runtimes[traderID]
	return rt, ok
}

func (e *Engine) enabledRuntimes() []*Runtime {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*Runtime
	for _, rt := range e.runtimes {
		if rt.enabled {
			out = append(out, rt)
		}
	}
	return out
}

func (e *Engine) rememberRoute(orderID int64, traderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range e.orderRoute[orderID] {
		if id == traderID {
			return
		}
	}
	e.orderRoute[orderID] = append(e.orderRoute[orderID], traderID)
}

func (e *Engine) routesFor(orderID int64) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.orderRoute[orderID]...)
}

// Initialize 初始化引擎：清除上一会话遗留的 CLOSED 合约并重置账户
// 的昨结字段。清除是破坏性的，先通知观察者再动手。
func (e *Engine) Initialize(ctx context.Context) error {
	e.setStatus(StatusInitializing)

	if err := e.initialize(ctx); err != nil {
		e.setStatus(StatusInitFailed)
		return err
	}
	e.setStatus(StatusWorking)
	return nil
}

func (e *Engine) initialize(ctx context.Context) error {
	closed, err := e.store.ContractsByStatus(ctx, ledger.ContractClosed)
	if err != nil {
		return fmt.Errorf("load closed contracts: %w", err)
	}
	account, err := e.store.Account(ctx)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	if len(closed) > 0 {
		e.hub.Publish("erase-contracts", func(h Handler) { h.OnErasingContracts(closed) })
	}
	e.hub.Publish("erase-account", func(h Handler) { h.OnErasingAccount(account) })

	day, err := e.store.TradingDay(ctx)
	if err != nil {
		return fmt.Errorf("trading day: %w", err)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", ErrUnfixableStore)
	}
	for _, c := range closed {
		if err := tx.DeleteContract(ctx, c.ContractID); err != nil {
			return e.rollback(tx, fmt.Errorf("erase contract %d: %w", c.ContractID, err))
		}
	}
	if err := tx.ReplaceAccount(ctx, rebaseAccount(account, day)); err != nil {
		return e.rollback(tx, fmt.Errorf("rebase account: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit initialize: %w", ErrUnfixableStore)
	}
	return nil
}

// rebaseAccount 把当前账户滚动为新交易日的起点：今日值转入昨结字段
func rebaseAccount(a *ledger.Account, tradingDay string) *ledger.Account {
	return &ledger.Account{
		Balance:     a.Balance,
		Margin:      a.Margin,
		PreBalance:  a.Balance,
		PreMargin:   a.Margin,
		PreDeposit:  a.Deposit,
		PreWithdraw: a.Withdraw,
		TradingDay:  tradingDay,
		UpdateTime:  time.Now(),
	}
}

// Start 启动全部已启用的通道
func (e *Engine) Start(ctx context.Context) error {
	e.setStatus(StatusStarting)

	e.mu.Lock()
	global := e.globalStart
	e.mu.Unlock()

	for _, rt := range e.enabledRuntimes() {
		props := mergeProps(global, rt.config.StartProps)
		if err := rt.trader.Start(props, &traderCallback{engine: e, rt: rt}); err != nil {
			e.setStatus(StatusStartFailed)
			return fmt.Errorf("start trader %s: %w", rt.TraderID, err)
		}
		rt.startedAt = time.Now()
	}

	e.setStatus(StatusWorking)
	return nil
}

// Stop 停止全部通道
func (e *Engine) Stop(ctx context.Context) error {
	e.setStatus(StatusStopping)

	for _, rt := range e.enabledRuntimes() {
		if err := rt.trader.Stop(); err != nil {
			e.setStatus(StatusStopFailed)
			return fmt.Errorf("stop trader %s: %w", rt.TraderID, err)
		}
	}

	e.setStatus(StatusWorking)
	return nil
}

// Instrument 读取品种配置，带并发安全的进程内缓存
func (e *Engine) Instrument(ctx context.Context, instrumentID string) (*ledger.Instrument, error) {
	e.instMu.RLock()
	inst, ok := e.instruments[instrumentID]
	e.instMu.RUnlock()
	if ok {
		return inst, nil
	}

	inst, err := e.store.Instrument(ctx, instrumentID)
	if err != nil {
		return nil, err
	}
	e.instMu.Lock()
	e.instruments[instrumentID] = inst
	e.instMu.Unlock()
	return inst, nil
}

// rollback 先回滚再返回业务错误；回滚自身失败升级为不可修复错误
func (e *Engine) rollback(tx ledger.Tx, cause error) error {
	if err := tx.Rollback(); err != nil {
		e.log.WithError(err).Error("rollback failed")
		return fmt.Errorf("%v: rollback: %w", cause, ErrUnfixableStore)
	}
	return cause
}
