package algo

import (
	"fmt"
	"time"

	"github.com/open9am/traderengine/internal/ledger"
)

// OrderStatus 委托状态（衍生，不落库）
type OrderStatus int

const (
	OrderAccepted   OrderStatus = 1
	OrderPartTraded OrderStatus = 2
	OrderAllTraded  OrderStatus = 3
	OrderCanceled   OrderStatus = 4
)

// Order 委托读模型，按需由请求、合约与回报推导
type Order struct {
	OrderID      int64
	TraderID     string
	InstrumentID string
	Offset       ledger.Offset
	Direction    ledger.Direction
	Price        float64
	Volume       int64

	TradedVolume int64
	TradedAmount float64
	Status       OrderStatus

	InsertTime time.Time
	UpdateTime time.Time
	CancelTime time.Time
}

// ComputeOrder 推导委托状态。contracts 必须是该委托名下的合约；
// 品种或方向与请求不符说明账本交叉串号，直接失败。
// 已成交超过委托手数同样是致命的不一致。
func ComputeOrder(
	request *ledger.OrderRequest,
	contracts []*ledger.Contract,
	responses []*ledger.OrderResponse,
	cancels []*ledger.CancelResponse,
) (*Order, error) {
	order := &Order{
		OrderID:      request.OrderID,
		TraderID:     request.TraderID,
		InstrumentID: request.InstrumentID,
		Offset:       request.Offset,
		Direction:    request.Direction,
		Price:        request.Price,
		Volume:       request.Volume,
		InsertTime:   request.Time,
	}

	wantDirection := request.Direction
	if request.Offset.IsClose() {
		// 平仓委托选中的是对手方向的持仓
		wantDirection = request.Direction.Opposite()
	}

	for _, c := range contracts {
		if c.InstrumentID != request.InstrumentID || c.Direction != wantDirection {
			return nil, fmt.Errorf("order %d contract %d: %w",
				request.OrderID, c.ContractID, ledger.ErrInconsistentContractOrderInfo)
		}
		switch {
		case !request.Offset.IsClose() && c.Status != ledger.ContractOpening:
			// 开仓委托：已收到开仓成交的合约计入已成交
			order.TradedVolume++
			order.TradedAmount += c.OpenAmount
		case request.Offset.IsClose() && c.Status == ledger.ContractClosed:
			if !c.CloseAmount.Valid {
				return nil, fmt.Errorf("contract %d close amount: %w", c.ContractID, ledger.ErrNullField)
			}
			order.TradedVolume++
			order.TradedAmount += c.CloseAmount.Float64
		}
	}

	if order.TradedVolume > order.Volume {
		return nil, fmt.Errorf("order %d traded %d of %d: %w",
			request.OrderID, order.TradedVolume, order.Volume, ledger.ErrInconsistentContractOrderInfo)
	}

	for _, r := range responses {
		if r.Time.After(order.UpdateTime) {
			order.UpdateTime = r.Time
		}
	}

	// 撤单回报以最新一条为准
	var latestCancel *ledger.CancelResponse
	for _, c := range cancels {
		if latestCancel == nil || c.Time.After(latestCancel.Time) {
			latestCancel = c
		}
	}

	switch {
	case latestCancel != nil:
		order.Status = OrderCanceled
		order.CancelTime = latestCancel.Time
	case order.TradedVolume == 0:
		order.Status = OrderAccepted
	case order.TradedVolume < order.Volume:
		order.Status = OrderPartTraded
	default:
		order.Status = OrderAllTraded
	}
	return order, nil
}
