package ledger

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")

	// 账本不一致类错误：当前操作必须失败并回滚，不允许自动修复
	ErrNullField                     = errors.New("null numeric field")
	ErrInvalidContractStatus         = errors.New("invalid contract status")
	ErrInvalidOffset                 = errors.New("invalid order offset")
	ErrInconsistentContractOrderInfo = errors.New("contract and order info diverged")
)
