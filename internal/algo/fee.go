// Package algo 账务算法：纯函数，无 I/O，不修改账本
package algo

import (
	"fmt"

	"github.com/open9am/traderengine/internal/ledger"
)

// Amount 合约金额 = 价格 × 乘数
func Amount(price float64, inst *ledger.Instrument) float64 {
	return price * inst.Multiplier
}

// MarginAmount 单手保证金
func MarginAmount(price float64, inst *ledger.Instrument) float64 {
	if inst.MarginMode == ledger.RatioByVolume {
		return inst.MarginRatio
	}
	return Amount(price, inst) * inst.MarginRatio
}

// CommissionAmount 单手手续费，费率按开平动作选取
func CommissionAmount(price float64, inst *ledger.Instrument, offset ledger.Offset) (float64, error) {
	var ratio float64
	switch offset {
	case ledger.OffsetOpen:
		ratio = inst.OpenCommissionRatio
	case ledger.OffsetClose:
		ratio = inst.CloseCommissionRatio
	case ledger.OffsetCloseToday:
		ratio = inst.CloseTodayCommissionRatio
	default:
		return 0, fmt.Errorf("commission for offset %d: %w", offset, ledger.ErrInvalidOffset)
	}
	if inst.CommissionMode == ledger.RatioByVolume {
		return ratio, nil
	}
	return Amount(price, inst) * ratio, nil
}

// profitSign 多头为 +1，空头为 -1
func profitSign(d ledger.Direction) float64 {
	if d == ledger.DirectionBuy {
		return 1
	}
	return -1
}
