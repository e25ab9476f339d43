package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/open9am/traderengine/internal/algo"
	"github.com/open9am/traderengine/internal/ledger"
)

// Request 受理一笔开/平仓委托：准入检查、账本冻结、通道转发。
// 受检业务错误同步返回；冻结写入全部发生在一个账本事务里，
// 任何失败回滚后不留残余。
func (e *Engine) Request(ctx context.Context, req *ledger.OrderRequest, requestID int64) error {
	start := time.Now()
	if e.metrics != nil {
		defer func() { e.metrics.ObserveAdmissionLatency(time.Since(start)) }()
	}

	if e.Status() != StatusWorking {
		return e.reject("NOT_WORKING", ErrNotWorking)
	}
	if req == nil || req.Volume <= 0 {
		return e.reject("NONPOSITIVE_VOLUME", ErrNonpositiveVolume)
	}

	inst, err := e.Instrument(ctx, req.InstrumentID)
	if err != nil {
		return e.reject("INSTRUMENT_NULL", fmt.Errorf("instrument %s: %w", req.InstrumentID, ErrInstrumentNull))
	}

	rt, err := e.pickRuntime(req.TraderID)
	if err != nil {
		return e.reject("NO_TRADER", err)
	}

	day, err := e.store.TradingDay(ctx)
	if err != nil {
		return fmt.Errorf("trading day: %w", err)
	}
	req.TradingDay = day
	if req.Time.IsZero() {
		req.Time = time.Now()
	}

	switch {
	case req.Offset == ledger.OffsetOpen:
		return e.requestOpen(ctx, req, inst, rt, day, requestID)
	case req.Offset.IsClose():
		return e.requestClose(ctx, req, inst, rt, day, requestID)
	default:
		return e.reject("INVALID_OFFSET", fmt.Errorf("offset %d: %w", req.Offset, ledger.ErrInvalidOffset))
	}
}

func (e *Engine) reject(reason string, err error) error {
	if e.metrics != nil {
		e.metrics.IncRequestRejected(reason)
	}
	return err
}

// pickRuntime 选择目的通道：未指定时在已启用通道中均匀随机挑选，
// 指定的通道必须已注册且已启用。
func (e *Engine) pickRuntime(traderID string) (*Runtime, error) {
	if traderID != "" {
		rt, ok := e.runtime(traderID)
		if !ok || !rt.enabled {
			return nil, fmt.Errorf("trader %s: %w", traderID, ErrTraderNotEnabled)
		}
		return rt, nil
	}

	enabled := e.enabledRuntimes()
	if len(enabled) == 0 {
		return nil, ErrNoTrader
	}
	return enabled[rand.Intn(len(enabled))], nil
}

func (e *Engine) requestOpen(ctx context.Context, req *ledger.OrderRequest, inst *ledger.Instrument, rt *Runtime, day string, requestID int64) error {
	unitMargin := algo.MarginAmount(req.Price, inst)
	unitCommission, err := algo.CommissionAmount(req.Price, inst, ledger.OffsetOpen)
	if err != nil {
		return e.reject("INVALID_OFFSET", err)
	}

	req.TraderID = rt.TraderID

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", ErrUnfixableStore)
	}
	// 资金检查持有账户行锁进行：并发开仓在事务边界串行化
	if _, err := tx.AccountForUpdate(ctx); err != nil {
		return e.rollback(tx, fmt.Errorf("lock account: %w", err))
	}
	account, _, err := e.deriveAccount(ctx)
	if err != nil {
		return e.rollback(tx, fmt.Errorf("derive account: %w", err))
	}
	if algo.Available(account) < float64(req.Volume)*(unitMargin+unitCommission) {
		return e.rollback(tx, e.reject("INSUFFICIENT_MONEY", ErrInsufficientMoney))
	}

	if err := tx.InsertRequest(ctx, req); err != nil {
		return e.rollback(tx, fmt.Errorf("insert request: %w", err))
	}
	now := time.Now()
	for i := int64(0); i < req.Volume; i++ {
		contract := &ledger.Contract{
			ContractID:   e.idGen.NextID(),
			InstrumentID: req.InstrumentID,
			TraderID:     rt.TraderID,
			OpenOrderID:  req.OrderID,
			Direction:    req.Direction,
			Status:       ledger.ContractOpening,
		}
		if err := tx.InsertContract(ctx, contract); err != nil {
			return e.rollback(tx, fmt.Errorf("insert contract: %w", err))
		}
		if err := tx.InsertMargin(ctx, &ledger.Margin{
			MarginID:   e.idGen.NextID(),
			ContractID: contract.ContractID,
			OrderID:    req.OrderID,
			Amount:     unitMargin,
			Status:     ledger.FeeFrozen,
			TradingDay: day,
			Time:       now,
		}); err != nil {
			return e.rollback(tx, fmt.Errorf("insert margin: %w", err))
		}
		if err := tx.InsertCommission(ctx, &ledger.Commission{
			CommissionID: e.idGen.NextID(),
			ContractID:   contract.ContractID,
			OrderID:      req.OrderID,
			Amount:       unitCommission,
			Status:       ledger.FeeFrozen,
			TradingDay:   day,
			Time:         now,
		}); err != nil {
			return e.rollback(tx, fmt.Errorf("insert commission: %w", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit open admission: %w", ErrUnfixableStore)
	}

	e.rememberRoute(req.OrderID, rt.TraderID)
	sub := *req
	sub.OrderID = rt.translator.Allocate(req.OrderID, req.Volume)
	if err := rt.trader.Insert(ctx, &sub, requestID); err != nil {
		// 冻结已落库，由调用方决定是否撤单
		e.log.WithError(err).WithField("orderID", req.OrderID).Error("forward insert failed")
		return fmt.Errorf("insert to trader %s: %w", rt.TraderID, err)
	}

	if e.metrics != nil {
		e.metrics.IncRequestAccepted("OPEN")
	}
	return nil
}

func (e *Engine) requestClose(ctx context.Context, req *ledger.OrderRequest, inst *ledger.Instrument, rt *Runtime, day string, requestID int64) error {
	unitCommission, err := algo.CommissionAmount(req.Price, inst, req.Offset)
	if err != nil {
		return e.reject("INVALID_OFFSET", err)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", ErrUnfixableStore)
	}

	open, err := tx.ContractsByInstrumentStatus(ctx, req.InstrumentID, ledger.ContractOpen)
	if err != nil {
		return e.rollback(tx, fmt.Errorf("load open contracts: %w", err))
	}
	wantDirection := req.Direction.Opposite()
	eligible := open[:0]
	for _, c := range open {
		if c.Direction == wantDirection {
			eligible = append(eligible, c)
		}
	}
	// 先开先平
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].OpenTime.Before(eligible[j].OpenTime)
	})
	if int64(len(eligible)) < req.Volume {
		return e.rollback(tx, e.reject("INSUFFICIENT_POSITION", ErrInsufficientPosition))
	}
	selected := eligible[:req.Volume]

	if err := tx.InsertRequest(ctx, req); err != nil {
		return e.rollback(tx, fmt.Errorf("insert request: %w", err))
	}
	now := time.Now()
	for _, c := range selected {
		if err := tx.InsertCommission(ctx, &ledger.Commission{
			CommissionID: e.idGen.NextID(),
			ContractID:   c.ContractID,
			OrderID:      req.OrderID,
			Amount:       unitCommission,
			Status:       ledger.FeeFrozen,
			TradingDay:   day,
			Time:         now,
		}); err != nil {
			return e.rollback(tx, fmt.Errorf("freeze close commission: %w", err))
		}
		c.Status = ledger.ContractClosing
		c.CloseOrderID = req.OrderID
		if err := tx.UpdateContract(ctx, c); err != nil {
			return e.rollback(tx, fmt.Errorf("mark contract closing: %w", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit close admission: %w", ErrUnfixableStore)
	}

	// 按（通道，昨/今）分组拆分子委托：昨仓与今仓在多数交易所
	// 必须用不同的开平标志申报
	type groupKey struct {
		traderID string
		preOpen  bool
	}
	groups := make(map[groupKey]int64)
	for _, c := range selected {
		tid := c.TraderID
		if grt, ok := e.runtime(tid); tid == "" || !ok || !grt.enabled {
			tid = rt.TraderID
		}
		groups[groupKey{tid, c.OpenTradingDay < day}]++
	}

	for key, volume := range groups {
		grt, ok := e.runtime(key.traderID)
		if !ok {
			grt = rt
		}
		sub := *req
		sub.TraderID = grt.TraderID
		sub.Volume = volume
		if key.preOpen {
			sub.Offset = ledger.OffsetClose
		} else {
			sub.Offset = ledger.OffsetCloseToday
		}
		sub.OrderID = grt.translator.Allocate(req.OrderID, volume)
		e.rememberRoute(req.OrderID, grt.TraderID)

		if err := grt.trader.Insert(ctx, &sub, requestID); err != nil {
			e.log.WithError(err).WithField("orderID", req.OrderID).Error("forward close insert failed")
			return fmt.Errorf("insert to trader %s: %w", grt.TraderID, err)
		}
	}

	if e.metrics != nil {
		e.metrics.IncRequestAccepted("CLOSE")
	}
	return nil
}

// Cancel 把撤单转发给承接该逻辑委托的每个通道上仍有剩余手数的
// 子委托。撤单没有超时语义，结果以 CancelResponse 回报为准。
func (e *Engine) Cancel(ctx context.Context, req *ledger.CancelRequest, requestID int64) error {
	if e.Status() != StatusWorking {
		return ErrNotWorking
	}

	routes := e.routesFor(req.OrderID)
	if len(routes) == 0 {
		return fmt.Errorf("order %d: %w", req.OrderID, ledger.ErrNotFound)
	}

	for _, traderID := range routes {
		rt, ok := e.runtime(traderID)
		if !ok {
			continue
		}
		backendIDs, err := rt.translator.DestinationIDs(req.OrderID)
		if err != nil {
			continue // 该通道已无此委托的映射
		}
		for _, backendID := range backendIDs {
			sub := *req
			sub.OrderID = backendID
			if err := rt.trader.Cancel(ctx, &sub, requestID); err != nil {
				return fmt.Errorf("cancel on trader %s: %w", traderID, err)
			}
		}
	}

	if e.metrics != nil {
		e.metrics.IncRequestAccepted("CANCEL")
	}
	return nil
}
