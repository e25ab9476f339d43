// Package ledger 账本数据模型与存储边界
package ledger

import (
	"database/sql"
	"time"
)

// Direction 买卖方向
type Direction int

const (
	DirectionBuy  Direction = 1
	DirectionSell Direction = 2
)

// Opposite 返回对手方向
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

// Offset 开平标志
type Offset int

const (
	OffsetOpen       Offset = 1
	OffsetClose      Offset = 2
	OffsetCloseToday Offset = 3
)

// IsClose 是否为平仓动作
func (o Offset) IsClose() bool {
	return o == OffsetClose || o == OffsetCloseToday
}

// RatioMode 费率计算方式
type RatioMode int

const (
	RatioByMoney  RatioMode = 1 // 按金额比例
	RatioByVolume RatioMode = 2 // 按手数固定额
)

// ContractStatus 合约（单手持仓）生命周期状态
type ContractStatus int

const (
	ContractOpening ContractStatus = 1
	ContractOpen    ContractStatus = 2
	ContractClosing ContractStatus = 3
	ContractClosed  ContractStatus = 4
)

// FeeStatus 保证金/手续费记录状态
type FeeStatus int

const (
	FeeFrozen  FeeStatus = 1
	FeeDealed  FeeStatus = 2
	FeeRemoved FeeStatus = 3
)

// Account 资金账户，单账户模型，结算时整体替换
type Account struct {
	Balance          float64
	Margin           float64
	FrozenMargin     float64
	FrozenCommission float64
	Commission       float64
	CloseProfit      float64
	PositionProfit   float64
	Deposit          float64
	Withdraw         float64

	// 结算时留存的上一交易日快照
	PreBalance  float64
	PreMargin   float64
	PreDeposit  float64
	PreWithdraw float64

	TradingDay string
	UpdateTime time.Time
}

// Instrument 合约品种静态配置
type Instrument struct {
	InstrumentID string
	ExchangeID   string
	Multiplier   float64

	MarginRatio float64
	MarginMode  RatioMode

	CommissionMode            RatioMode
	OpenCommissionRatio       float64
	CloseCommissionRatio      float64
	CloseTodayCommissionRatio float64

	StartDate string
	EndDate   string
}

// Contract 一手持仓，独立走完 OPENING→OPEN→CLOSING→CLOSED 生命周期
type Contract struct {
	ContractID   int64
	InstrumentID string
	TraderID     string // 开仓委托被路由到的通道
	OpenOrderID  int64
	CloseOrderID int64 // 0 表示未被平仓委托选中
	Direction    Direction
	Status       ContractStatus

	OpenAmount     float64
	CloseAmount    sql.NullFloat64 // 平仓成交前为空
	OpenTradingDay string
	OpenTime       time.Time
}

// Margin 保证金记录，每手合约一条
type Margin struct {
	MarginID   int64
	ContractID int64
	OrderID    int64
	Amount     float64
	Status     FeeStatus
	TradingDay string
	Time       time.Time
}

// Commission 手续费记录，开仓、平仓各冻结一条
type Commission struct {
	CommissionID int64
	ContractID   int64
	OrderID      int64
	Amount       float64
	Status       FeeStatus
	TradingDay   string
	Time         time.Time
}

// OrderRequest 逻辑委托
type OrderRequest struct {
	OrderID      int64
	TraderID     string // 指定通道，空表示由引擎选择
	InstrumentID string
	ExchangeID   string
	Offset       Offset
	Direction    Direction
	Price        float64
	Volume       int64
	TradingDay   string
	Time         time.Time
}

// OrderResponse 通道回报的一笔成交
type OrderResponse struct {
	ResponseID   int64
	OrderID      int64
	TraderID     string
	InstrumentID string
	Offset       Offset
	Direction    Direction
	Price        float64
	Volume       int64 // 本笔成交手数
	TradingDay   string
	Time         time.Time
}

// CancelResponse 撤单回报。Status 为 0 表示引擎本地合成的终结撤单
type CancelResponse struct {
	ResponseID   int64
	OrderID      int64
	InstrumentID string
	Status       int
	TradingDay   string
	Time         time.Time
}

// CancelRequest 撤单请求，不落库，仅在通道边界传递
type CancelRequest struct {
	OrderID      int64
	InstrumentID string
	ExchangeID   string
}

// CashFlow 出入金流水
type CashFlow struct {
	FlowID     int64
	Amount     float64
	TradingDay string
	Time       time.Time
}

// Tick 行情快照，持仓盈亏以其价格为标记价
type Tick struct {
	InstrumentID string
	Price        float64
	TradingDay   string
	Time         time.Time
}
