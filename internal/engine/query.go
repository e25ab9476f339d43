package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/open9am/traderengine/internal/algo"
	"github.com/open9am/traderengine/internal/ledger"
)

// Positions 即时推导的持仓读模型
func (e *Engine) Positions(ctx context.Context) ([]*algo.Position, error) {
	_, positions, err := e.deriveAccount(ctx)
	return positions, err
}

// Account 即时推导的资金账户。落库的账户行只在结算时替换，
// 日内视图一律由账本现算。
func (e *Engine) Account(ctx context.Context) (*ledger.Account, error) {
	account, _, err := e.deriveAccount(ctx)
	return account, err
}

// Order 推导一笔委托的读模型
func (e *Engine) Order(ctx context.Context, orderID int64) (*algo.Order, error) {
	request, err := e.store.Request(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("request %d: %w", orderID, err)
	}
	return e.computeOrder(ctx, request)
}

func (e *Engine) computeOrder(ctx context.Context, request *ledger.OrderRequest) (*algo.Order, error) {
	var contracts []*ledger.Contract
	var err error
	if request.Offset.IsClose() {
		contracts, err = e.store.ContractsByCloseOrder(ctx, request.OrderID)
	} else {
		contracts, err = e.store.ContractsByOpenOrder(ctx, request.OrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("contracts of order %d: %w", request.OrderID, err)
	}

	responses, err := e.store.ResponsesByOrder(ctx, request.OrderID)
	if err != nil {
		return nil, fmt.Errorf("responses of order %d: %w", request.OrderID, err)
	}
	cancels, err := e.store.CancelsByOrder(ctx, request.OrderID)
	if err != nil {
		return nil, fmt.Errorf("cancels of order %d: %w", request.OrderID, err)
	}
	return algo.ComputeOrder(request, contracts, responses, cancels)
}

// deriveAccount 读取账本快照，经账务算法推导持仓与账户
func (e *Engine) deriveAccount(ctx context.Context) (*ledger.Account, []*algo.Position, error) {
	day, err := e.store.TradingDay(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("trading day: %w", err)
	}
	contracts, err := e.store.Contracts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("contracts: %w", err)
	}
	margins, err := e.store.Margins(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("margins: %w", err)
	}
	commissions, err := e.store.Commissions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("commissions: %w", err)
	}
	instruments, err := e.store.Instruments(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("instruments: %w", err)
	}

	marginByContract := make(map[int64]*ledger.Margin, len(margins))
	for _, m := range margins {
		marginByContract[m.ContractID] = m
	}
	commissionByContract := make(map[int64][]*ledger.Commission)
	for _, c := range commissions {
		commissionByContract[c.ContractID] = append(commissionByContract[c.ContractID], c)
	}
	instrumentByID := make(map[string]*ledger.Instrument, len(instruments))
	tickByID := make(map[string]*ledger.Tick, len(instruments))
	for _, inst := range instruments {
		instrumentByID[inst.InstrumentID] = inst
		tick, err := e.store.Tick(ctx, inst.InstrumentID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				continue // 无行情品种的持仓盈亏在算法层报 NullField
			}
			return nil, nil, fmt.Errorf("tick %s: %w", inst.InstrumentID, err)
		}
		tickByID[inst.InstrumentID] = tick
	}

	positions, err := algo.ComputePositions(contracts, commissionByContract, marginByContract, tickByID, instrumentByID, day)
	if err != nil {
		return nil, nil, err
	}

	pre, err := e.store.Account(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("account: %w", err)
	}
	deposits, err := e.store.Deposits(ctx, day)
	if err != nil {
		return nil, nil, fmt.Errorf("deposits: %w", err)
	}
	withdraws, err := e.store.Withdraws(ctx, day)
	if err != nil {
		return nil, nil, fmt.Errorf("withdraws: %w", err)
	}

	account, err := algo.ComputeAccount(pre, deposits, withdraws, positions, day)
	if err != nil {
		return nil, nil, err
	}
	return account, positions, nil
}
