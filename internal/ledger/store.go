package ledger

import "context"

// Store 存储边界。引擎只通过具名访问器读写账本，不直接下 SQL。
// 事务是唯一的串行化点：所有变更都在 Tx 内完成，失败必须回滚。
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	TradingDay(ctx context.Context) (string, error)
	SetTradingDay(ctx context.Context, day string) error

	Account(ctx context.Context) (*Account, error)
	Instrument(ctx context.Context, instrumentID string) (*Instrument, error)
	Instruments(ctx context.Context) ([]*Instrument, error)
	UpsertInstrument(ctx context.Context, inst *Instrument) error
	Tick(ctx context.Context, instrumentID string) (*Tick, error)
	UpsertTick(ctx context.Context, tick *Tick) error

	Deposits(ctx context.Context, tradingDay string) ([]*CashFlow, error)
	Withdraws(ctx context.Context, tradingDay string) ([]*CashFlow, error)

	Contracts(ctx context.Context) ([]*Contract, error)
	ContractsByStatus(ctx context.Context, status ContractStatus) ([]*Contract, error)
	ContractsByInstrument(ctx context.Context, instrumentID string) ([]*Contract, error)
	ContractsByOpenOrder(ctx context.Context, orderID int64) ([]*Contract, error)
	ContractsByCloseOrder(ctx context.Context, orderID int64) ([]*Contract, error)

	Margins(ctx context.Context) ([]*Margin, error)
	MarginByContract(ctx context.Context, contractID int64) (*Margin, error)
	Commissions(ctx context.Context) ([]*Commission, error)
	CommissionsByContract(ctx context.Context, contractID int64) ([]*Commission, error)

	Requests(ctx context.Context) ([]*OrderRequest, error)
	Request(ctx context.Context, orderID int64) (*OrderRequest, error)
	ResponsesByOrder(ctx context.Context, orderID int64) ([]*OrderResponse, error)
	CancelsByOrder(ctx context.Context, orderID int64) ([]*CancelResponse, error)
}

// Tx 账本事务。Commit 前所有写入对 Store 的读取不可见。
type Tx interface {
	Commit() error
	Rollback() error

	AccountForUpdate(ctx context.Context) (*Account, error)
	ReplaceAccount(ctx context.Context, account *Account) error

	InsertContract(ctx context.Context, c *Contract) error
	UpdateContract(ctx context.Context, c *Contract) error
	DeleteContract(ctx context.Context, contractID int64) error
	// ContractsByInstrumentStatus 按品种与状态加锁读取，用于平仓选仓
	ContractsByInstrumentStatus(ctx context.Context, instrumentID string, status ContractStatus) ([]*Contract, error)
	ContractsByOpenOrder(ctx context.Context, orderID int64) ([]*Contract, error)
	ContractsByCloseOrder(ctx context.Context, orderID int64) ([]*Contract, error)

	InsertMargin(ctx context.Context, m *Margin) error
	UpdateMargin(ctx context.Context, m *Margin) error
	DeleteMargin(ctx context.Context, marginID int64) error
	MarginByContract(ctx context.Context, contractID int64) (*Margin, error)

	InsertCommission(ctx context.Context, c *Commission) error
	UpdateCommission(ctx context.Context, c *Commission) error
	DeleteCommission(ctx context.Context, commissionID int64) error
	CommissionsByOrder(ctx context.Context, orderID int64) ([]*Commission, error)

	InsertRequest(ctx context.Context, r *OrderRequest) error
	InsertResponse(ctx context.Context, r *OrderResponse) error
	InsertCancel(ctx context.Context, c *CancelResponse) error
}
