package algo

import (
	"fmt"
	"math"
	"time"

	"github.com/open9am/traderengine/internal/ledger"
)

// ComputeAccount 由上日账户、当日出入金与持仓推导当前账户。
// 任一持仓字段为 NaN 说明账本里有空值被放行，绝不按零处理。
func ComputeAccount(
	pre *ledger.Account,
	deposits []*ledger.CashFlow,
	withdraws []*ledger.CashFlow,
	positions []*Position,
	tradingDay string,
) (*ledger.Account, error) {
	account := &ledger.Account{
		PreBalance:  pre.Balance,
		PreMargin:   pre.Margin,
		PreDeposit:  pre.Deposit,
		PreWithdraw: pre.Withdraw,
		TradingDay:  tradingDay,
		UpdateTime:  time.Now(),
	}

	for _, p := range positions {
		for _, v := range []float64{
			p.CloseProfit, p.PositionProfit, p.Margin, p.Commission,
			p.FrozenMargin, p.FrozenCommission,
		} {
			if math.IsNaN(v) {
				return nil, fmt.Errorf("position %s: %w", p.InstrumentID, ledger.ErrNullField)
			}
		}
		account.CloseProfit += p.CloseProfit
		account.PositionProfit += p.PositionProfit
		account.Margin += p.Margin
		account.Commission += p.Commission
		account.FrozenMargin += p.FrozenMargin
		account.FrozenCommission += p.FrozenCommission
	}

	for _, d := range deposits {
		account.Deposit += d.Amount
	}
	for _, w := range withdraws {
		account.Withdraw += w.Amount
	}

	account.Balance = account.PreBalance + account.Deposit - account.Withdraw +
		account.CloseProfit + account.PositionProfit - account.Commission
	return account, nil
}

// Available 可用资金 = 余额 - 占用保证金 - 冻结保证金 - 冻结手续费
func Available(account *ledger.Account) float64 {
	return account.Balance - account.Margin - account.FrozenMargin - account.FrozenCommission
}
