// Package connector 后端交易通道边界。
// 引擎通过 Trader 接口下发委托与撤单，通道通过 Handler 异步回报；
// 同一真实事件可能回报多次，引擎只依靠委托号倒数去重。
package connector

import (
	"context"

	"github.com/open9am/traderengine/internal/ledger"
)

// Status 通道状态
type Status int

const (
	StatusStopped  Status = 0
	StatusStarting Status = 1
	StatusWorking  Status = 2
	StatusStopping Status = 3
)

// Handler 通道回调。所有回调都可能来自通道自己的线程。
type Handler interface {
	OnOrderResponse(resp *ledger.OrderResponse)
	OnCancelResponse(cancel *ledger.CancelResponse)
	OnException(err error)
	OnStatusChange(status Status)
}

// Trader 后端交易通道能力面
type Trader interface {
	Start(props map[string]string, h Handler) error
	Stop() error
	Insert(ctx context.Context, req *ledger.OrderRequest, requestID int64) error
	Cancel(ctx context.Context, req *ledger.CancelRequest, requestID int64) error
	Status() Status
}
