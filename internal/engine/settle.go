package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/open9am/traderengine/internal/algo"
	"github.com/open9am/traderengine/internal/ledger"
)

// Settle 日终结算：强制终结所有未完结委托，回退残留冻结簿记，
// 然后把推导出的账户快照写回账本。成功后引擎回到 WORKING，
// 失败停在 SETTLE_FAILED 等待人工介入。
func (e *Engine) Settle(ctx context.Context) error {
	if s := e.Status(); s != StatusWorking {
		return fmt.Errorf("settle in status %s: %w", s, ErrNotWorking)
	}
	e.setStatus(StatusSettling)

	if err := e.settle(ctx); err != nil {
		e.setStatus(StatusSettleFailed)
		return err
	}
	e.setStatus(StatusWorking)
	return nil
}

func (e *Engine) settle(ctx context.Context) error {
	if err := e.terminateOrders(ctx); err != nil {
		return err
	}

	account, _, err := e.deriveAccount(ctx)
	if err != nil {
		return fmt.Errorf("derive account: %w", err)
	}
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", ErrUnfixableStore)
	}
	if err := tx.ReplaceAccount(ctx, account); err != nil {
		return e.rollback(tx, fmt.Errorf("replace account: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settle: %w", ErrUnfixableStore)
	}

	// 委托号映射只在交易日内有效
	e.mu.Lock()
	for _, rt := range e.runtimes {
		rt.translator.Clear()
	}
	e.orderRoute = make(map[int64][]string)
	e.mu.Unlock()

	e.hub.Publish("settled-account", func(h Handler) { h.OnErasingAccount(account) })
	return nil
}

// terminateOrders 逐笔重放当日委托，给未走到终态的委托
// 合成一条 Status 0 的本地撤单并回退冻结簿记
func (e *Engine) terminateOrders(ctx context.Context) error {
	requests, err := e.store.Requests(ctx)
	if err != nil {
		return fmt.Errorf("load requests: %w", err)
	}
	day, err := e.store.TradingDay(ctx)
	if err != nil {
		return fmt.Errorf("trading day: %w", err)
	}

	for _, request := range requests {
		order, err := e.computeOrder(ctx, request)
		if err != nil {
			return fmt.Errorf("compute order %d: %w", request.OrderID, err)
		}
		if order.Status == algo.OrderAllTraded || order.Status == algo.OrderCanceled {
			continue
		}
		if err := e.forceCancel(ctx, request, order, day); err != nil {
			return fmt.Errorf("force cancel order %d: %w", request.OrderID, err)
		}
	}
	return nil
}

func (e *Engine) forceCancel(ctx context.Context, request *ledger.OrderRequest, order *algo.Order, day string) error {
	undone := &ledger.CancelResponse{
		ResponseID:   e.idGen.NextID(),
		OrderID:      request.OrderID,
		InstrumentID: request.InstrumentID,
		Status:       0,
		TradingDay:   day,
		Time:         time.Now(),
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", ErrUnfixableStore)
	}
	if err := e.revertBundles(ctx, tx, request, order.Volume-order.TradedVolume); err != nil {
		return e.rollback(tx, err)
	}
	if err := tx.InsertCancel(ctx, undone); err != nil {
		return e.rollback(tx, fmt.Errorf("insert cancel: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", ErrUnfixableStore)
	}

	e.hub.Publish("cancel", func(h Handler) { h.OnCancel(undone) })
	return nil
}
