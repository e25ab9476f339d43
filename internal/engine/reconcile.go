package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/open9am/traderengine/internal/algo"
	"github.com/open9am/traderengine/internal/connector"
	"github.com/open9am/traderengine/internal/ledger"
)

// traderCallback 把单个通道的异步回报接入引擎的对账流程。
// 每个回调是独立工作单元，只靠它打开的账本事务串行化。
type traderCallback struct {
	engine *Engine
	rt     *Runtime
}

func (c *traderCallback) OnOrderResponse(resp *ledger.OrderResponse) {
	c.engine.reconcileFill(context.Background(), c.rt, resp)
}

func (c *traderCallback) OnCancelResponse(cancel *ledger.CancelResponse) {
	c.engine.reconcileCancel(context.Background(), c.rt, cancel)
}

func (c *traderCallback) OnException(err error) {
	c.engine.hub.Publish("trader-exception", func(h Handler) { h.OnException(err) })
}

func (c *traderCallback) OnStatusChange(status connector.Status) {
	traderID := c.rt.TraderID
	c.engine.hub.Publish("trader-status", func(h Handler) { h.OnTraderStatusChange(traderID, status) })
}

// reconcileFill 处理一笔成交回报：倒数递减、委托号还原、
// 冻结簿记成交化。整个变更在一个事务里，任何失败回滚。
func (e *Engine) reconcileFill(ctx context.Context, rt *Runtime, resp *ledger.OrderResponse) {
	if err := e.applyFill(ctx, rt, resp); err != nil {
		if e.metrics != nil {
			e.metrics.IncReconcileFailure("fill")
		}
		e.log.WithError(err).WithField("backendOrderID", resp.OrderID).Error("reconcile fill failed")
		e.hub.Publish("fill-error", func(h Handler) { h.OnException(err) })
	}
}

func (e *Engine) applyFill(ctx context.Context, rt *Runtime, resp *ledger.OrderResponse) error {
	// 通道引用了引擎从未签发的委托号：对这条回报是致命错误
	orderID, err := rt.translator.SourceID(resp.OrderID)
	if err != nil {
		return fmt.Errorf("backend order %d: %w", resp.OrderID, err)
	}
	if _, err := rt.translator.CountDown(resp.OrderID, resp.Volume); err != nil {
		return fmt.Errorf("count down backend order %d: %w", resp.OrderID, err)
	}
	// 倒数只随提交成功的事务递减，失败路径把手数加回去
	restore := func(cause error) error {
		rt.translator.Restore(resp.OrderID, resp.Volume)
		return cause
	}

	request, err := e.store.Request(ctx, orderID)
	if err != nil {
		return restore(fmt.Errorf("request %d: %w", orderID, err))
	}
	inst, err := e.Instrument(ctx, resp.InstrumentID)
	if err != nil {
		return restore(fmt.Errorf("instrument %s: %w", resp.InstrumentID, ErrInstrumentNull))
	}

	// 还原为逻辑委托号后再落库
	fill := *resp
	fill.ResponseID = e.idGen.NextID()
	fill.OrderID = orderID
	fill.TraderID = rt.TraderID
	if fill.Time.IsZero() {
		fill.Time = time.Now()
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return restore(fmt.Errorf("begin: %w", ErrUnfixableStore))
	}
	if request.Offset.IsClose() {
		err = e.dealCloseBundles(ctx, tx, orderID, &fill, inst)
	} else {
		err = e.dealOpenBundles(ctx, tx, orderID, &fill, inst)
	}
	if err != nil {
		return restore(e.rollback(tx, err))
	}
	if err := tx.InsertResponse(ctx, &fill); err != nil {
		return restore(e.rollback(tx, fmt.Errorf("insert response: %w", err)))
	}
	if err := tx.Commit(); err != nil {
		return restore(fmt.Errorf("commit fill: %w", ErrUnfixableStore))
	}

	if e.metrics != nil {
		e.metrics.IncTrade(rt.TraderID)
	}
	e.hub.Publish("trade", func(h Handler) { h.OnTrade(&fill) })
	e.publishOrder(ctx, request)
	return nil
}

// dealOpenBundles 开仓成交：挑选 OPENING 状态的（合约+保证金+手续费）
// 簿记束，数量不足说明准入簿记与通道视角已分歧，必须失败。
func (e *Engine) dealOpenBundles(ctx context.Context, tx ledger.Tx, orderID int64, fill *ledger.OrderResponse, inst *ledger.Instrument) error {
	contracts, err := tx.ContractsByOpenOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("contracts of order %d: %w", orderID, err)
	}

	remaining := fill.Volume
	for _, c := range contracts {
		if remaining == 0 {
			break
		}
		if c.Status != ledger.ContractOpening {
			continue
		}
		margin, commission, err := e.frozenBundle(ctx, tx, c, orderID)
		if err != nil {
			return err
		}

		commission.Status = ledger.FeeDealed
		if err := tx.UpdateCommission(ctx, commission); err != nil {
			return fmt.Errorf("deal commission: %w", err)
		}
		margin.Status = ledger.FeeDealed
		if err := tx.UpdateMargin(ctx, margin); err != nil {
			return fmt.Errorf("deal margin: %w", err)
		}

		c.OpenAmount = algo.Amount(fill.Price, inst)
		c.OpenTime = fill.Time
		c.OpenTradingDay = fill.TradingDay
		c.Status = ledger.ContractOpen
		if err := tx.UpdateContract(ctx, c); err != nil {
			return fmt.Errorf("open contract %d: %w", c.ContractID, err)
		}
		remaining--
	}
	if remaining > 0 {
		return fmt.Errorf("order %d short %d opening bundles: %w", orderID, remaining, ErrInconsistentFrozenInfo)
	}
	return nil
}

// dealCloseBundles 平仓成交：CLOSING 合约转 CLOSED，
// 平仓手续费成交化，保证金释放
func (e *Engine) dealCloseBundles(ctx context.Context, tx ledger.Tx, orderID int64, fill *ledger.OrderResponse, inst *ledger.Instrument) error {
	contracts, err := tx.ContractsByCloseOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("contracts of order %d: %w", orderID, err)
	}

	remaining := fill.Volume
	for _, c := range contracts {
		if remaining == 0 {
			break
		}
		if c.Status != ledger.ContractClosing {
			continue
		}
		margin, commission, err := e.closingBundle(ctx, tx, c, orderID)
		if err != nil {
			return err
		}

		commission.Status = ledger.FeeDealed
		if err := tx.UpdateCommission(ctx, commission); err != nil {
			return fmt.Errorf("deal close commission: %w", err)
		}
		margin.Status = ledger.FeeRemoved
		if err := tx.UpdateMargin(ctx, margin); err != nil {
			return fmt.Errorf("remove margin: %w", err)
		}

		c.CloseAmount = sql.NullFloat64{Float64: algo.Amount(fill.Price, inst), Valid: true}
		c.Status = ledger.ContractClosed
		if err := tx.UpdateContract(ctx, c); err != nil {
			return fmt.Errorf("close contract %d: %w", c.ContractID, err)
		}
		remaining--
	}
	if remaining > 0 {
		return fmt.Errorf("order %d short %d closing bundles: %w", orderID, remaining, ErrInconsistentFrozenInfo)
	}
	return nil
}

// frozenBundle 开仓簿记束：该合约的冻结保证金与该委托冻结的手续费
func (e *Engine) frozenBundle(ctx context.Context, tx ledger.Tx, c *ledger.Contract, orderID int64) (*ledger.Margin, *ledger.Commission, error) {
	margin, err := tx.MarginByContract(ctx, c.ContractID)
	if err != nil || margin.Status != ledger.FeeFrozen {
		return nil, nil, fmt.Errorf("contract %d frozen margin: %w", c.ContractID, ErrInconsistentFrozenInfo)
	}
	commission, err := e.orderCommission(ctx, tx, c.ContractID, orderID)
	if err != nil {
		return nil, nil, err
	}
	return margin, commission, nil
}

// closingBundle 平仓簿记束：保证金必须已成交化，平仓手续费必须冻结中
func (e *Engine) closingBundle(ctx context.Context, tx ledger.Tx, c *ledger.Contract, orderID int64) (*ledger.Margin, *ledger.Commission, error) {
	margin, err := tx.MarginByContract(ctx, c.ContractID)
	if err != nil || margin.Status != ledger.FeeDealed {
		return nil, nil, fmt.Errorf("contract %d dealed margin: %w", c.ContractID, ErrInconsistentFrozenInfo)
	}
	commission, err := e.orderCommission(ctx, tx, c.ContractID, orderID)
	if err != nil {
		return nil, nil, err
	}
	return margin, commission, nil
}

func (e *Engine) orderCommission(ctx context.Context, tx ledger.Tx, contractID, orderID int64) (*ledger.Commission, error) {
	commissions, err := tx.CommissionsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("commissions of order %d: %w", orderID, err)
	}
	for _, f := range commissions {
		if f.ContractID == contractID && f.Status == ledger.FeeFrozen {
			return f, nil
		}
	}
	return nil, fmt.Errorf("contract %d frozen commission: %w", contractID, ErrInconsistentFrozenInfo)
}

// reconcileCancel 处理一笔撤单回报：回收剩余倒数并回退冻结簿记
func (e *Engine) reconcileCancel(ctx context.Context, rt *Runtime, cancel *ledger.CancelResponse) {
	if err := e.applyCancel(ctx, rt, cancel); err != nil {
		if e.metrics != nil {
			e.metrics.IncReconcileFailure("cancel")
		}
		e.log.WithError(err).WithField("backendOrderID", cancel.OrderID).Error("reconcile cancel failed")
		e.hub.Publish("cancel-error", func(h Handler) { h.OnException(err) })
	}
}

func (e *Engine) applyCancel(ctx context.Context, rt *Runtime, cancel *ledger.CancelResponse) error {
	orderID, err := rt.translator.SourceID(cancel.OrderID)
	if err != nil {
		return fmt.Errorf("backend order %d: %w", cancel.OrderID, err)
	}
	recovered, err := rt.translator.Zero(cancel.OrderID)
	if err != nil {
		return fmt.Errorf("zero backend order %d: %w", cancel.OrderID, err)
	}
	restore := func(cause error) error {
		rt.translator.Restore(cancel.OrderID, recovered)
		return cause
	}

	request, err := e.store.Request(ctx, orderID)
	if err != nil {
		return restore(fmt.Errorf("request %d: %w", orderID, err))
	}

	undone := *cancel
	undone.ResponseID = e.idGen.NextID()
	undone.OrderID = orderID
	if undone.Time.IsZero() {
		undone.Time = time.Now()
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return restore(fmt.Errorf("begin: %w", ErrUnfixableStore))
	}
	if err := e.revertBundles(ctx, tx, request, recovered); err != nil {
		return restore(e.rollback(tx, err))
	}
	if err := tx.InsertCancel(ctx, &undone); err != nil {
		return restore(e.rollback(tx, fmt.Errorf("insert cancel: %w", err)))
	}
	if err := tx.Commit(); err != nil {
		return restore(fmt.Errorf("commit cancel: %w", ErrUnfixableStore))
	}

	if e.metrics != nil {
		e.metrics.IncCancel(rt.TraderID)
	}
	e.hub.Publish("cancel", func(h Handler) { h.OnCancel(&undone) })
	e.publishOrder(ctx, request)
	return nil
}

// revertBundles 回退仍处于成交前相位的簿记束：OPENING 合约连同冻结
// 费用一并删除；CLOSING 合约退回 OPEN，新冻结的平仓手续费删除。
// 相位不符是缺陷信号，绝不悄悄纠正。
func (e *Engine) revertBundles(ctx context.Context, tx ledger.Tx, request *ledger.OrderRequest, recovered int64) error {
	if recovered == 0 {
		return nil
	}

	if request.Offset.IsClose() {
		contracts, err := tx.ContractsByCloseOrder(ctx, request.OrderID)
		if err != nil {
			return fmt.Errorf("contracts of order %d: %w", request.OrderID, err)
		}
		for _, c := range contracts {
			if recovered == 0 {
				break
			}
			if c.Status != ledger.ContractClosing {
				if c.Status == ledger.ContractClosed {
					continue // 已成交部分保持不动
				}
				return fmt.Errorf("contract %d status %d: %w", c.ContractID, c.Status, ErrInvalidCancelingContractStatus)
			}
			commission, err := e.orderCommission(ctx, tx, c.ContractID, request.OrderID)
			if err != nil {
				return err
			}
			if err := tx.DeleteCommission(ctx, commission.CommissionID); err != nil {
				return fmt.Errorf("remove close commission: %w", err)
			}
			c.Status = ledger.ContractOpen
			c.CloseOrderID = 0
			if err := tx.UpdateContract(ctx, c); err != nil {
				return fmt.Errorf("revert contract %d: %w", c.ContractID, err)
			}
			recovered--
		}
		return nil
	}

	contracts, err := tx.ContractsByOpenOrder(ctx, request.OrderID)
	if err != nil {
		return fmt.Errorf("contracts of order %d: %w", request.OrderID, err)
	}
	for _, c := range contracts {
		if recovered == 0 {
			break
		}
		if c.Status != ledger.ContractOpening {
			if c.Status != ledger.ContractClosing && c.Status != ledger.ContractClosed && c.Status != ledger.ContractOpen {
				return fmt.Errorf("contract %d status %d: %w", c.ContractID, c.Status, ErrInvalidCancelingContractStatus)
			}
			continue // 已开仓部分保持不动
		}
		margin, commission, err := e.frozenBundle(ctx, tx, c, request.OrderID)
		if err != nil {
			return err
		}
		if err := tx.DeleteCommission(ctx, commission.CommissionID); err != nil {
			return fmt.Errorf("remove commission: %w", err)
		}
		if err := tx.DeleteMargin(ctx, margin.MarginID); err != nil {
			return fmt.Errorf("remove margin: %w", err)
		}
		if err := tx.DeleteContract(ctx, c.ContractID); err != nil {
			return fmt.Errorf("remove contract %d: %w", c.ContractID, err)
		}
		recovered--
	}
	return nil
}

// publishOrder 重算委托读模型并广播
func (e *Engine) publishOrder(ctx context.Context, request *ledger.OrderRequest) {
	order, err := e.computeOrder(ctx, request)
	if err != nil {
		e.log.WithError(err).WithField("orderID", request.OrderID).Error("compute order failed")
		e.hub.Publish("order-error", func(h Handler) { h.OnException(err) })
		return
	}
	e.hub.Publish("order", func(h Handler) { h.OnResponse(order) })
}
