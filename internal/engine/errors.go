package engine

import "errors"

// 受检业务错误：同步返回给调用方，从不自动重试
var (
	ErrNotWorking           = errors.New("engine not working")
	ErrNonpositiveVolume    = errors.New("nonpositive volume")
	ErrInstrumentNull       = errors.New("instrument null")
	ErrInsufficientMoney    = errors.New("insufficient money")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrNoTrader             = errors.New("no enabled trader")
	ErrTraderNotEnabled     = errors.New("trader not enabled")
	ErrDuplicateTrader      = errors.New("trader already registered")
)

// 账本不一致错误：当前操作失败、事务回滚，从不自动修正。
// 冻结费用/合约簿记与通道视角出现分歧时出现。
var (
	ErrInconsistentFrozenInfo         = errors.New("frozen info diverged from response")
	ErrInvalidCancelingContractStatus = errors.New("invalid canceling contract status")
)

// ErrUnfixableStore 基础设施错误：事务提交/回滚失败，本地无法恢复
var ErrUnfixableStore = errors.New("store failure unfixable")
