package engine

import (
	"github.com/open9am/traderengine/internal/algo"
	"github.com/open9am/traderengine/internal/connector"
	"github.com/open9am/traderengine/internal/ledger"
)

// Status 引擎状态
type Status int

const (
	StatusUninitialized Status = 0
	StatusInitializing  Status = 1
	StatusWorking       Status = 2
	StatusStarting      Status = 3
	StatusStopping      Status = 4
	StatusSettling      Status = 5
	StatusInitFailed    Status = 11
	StatusStartFailed   Status = 12
	StatusStopFailed    Status = 13
	StatusSettleFailed  Status = 14
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "UNINITIALIZED"
	case StatusInitializing:
		return "INITIALIZING"
	case StatusWorking:
		return "WORKING"
	case StatusStarting:
		return "STARTING"
	case StatusStopping:
		return "STOPPING"
	case StatusSettling:
		return "SETTLING"
	case StatusInitFailed:
		return "INIT_FAILED"
	case StatusStartFailed:
		return "START_FAILED"
	case StatusStopFailed:
		return "STOP_FAILED"
	case StatusSettleFailed:
		return "SETTLE_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Handler 引擎观察者。回调可能被并发调用，实现方自行保证线程安全；
// 回调中的 panic 被引擎捕获并经 OnException 重投递。
type Handler interface {
	OnTrade(trade *ledger.OrderResponse)
	OnResponse(order *algo.Order)
	OnCancel(cancel *ledger.CancelResponse)
	OnException(err error)
	OnStatusChange(status Status)
	OnTraderStatusChange(traderID string, status connector.Status)
	OnErasingContracts(contracts []*ledger.Contract)
	OnErasingAccount(account *ledger.Account)
}

// NopHandler 空实现，观察者可内嵌后只覆写关心的回调
type NopHandler struct{}

func (NopHandler) OnTrade(*ledger.OrderResponse)                 {}
func (NopHandler) OnResponse(*algo.Order)                        {}
func (NopHandler) OnCancel(*ledger.CancelResponse)               {}
func (NopHandler) OnException(error)                             {}
func (NopHandler) OnStatusChange(Status)                         {}
func (NopHandler) OnTraderStatusChange(string, connector.Status) {}
func (NopHandler) OnErasingContracts([]*ledger.Contract)         {}
func (NopHandler) OnErasingAccount(*ledger.Account)              {}
