package algo

import (
	"errors"
	"math"
	"testing"

	"github.com/open9am/traderengine/internal/ledger"
)

func TestComputeAccountBalanceEquation(t *testing.T) {
	pre := &ledger.Account{Balance: 100000, Margin: 200, Deposit: 0, Withdraw: 0}
	deposits := []*ledger.CashFlow{{FlowID: 1, Amount: 5000, TradingDay: day}}
	withdraws := []*ledger.CashFlow{{FlowID: 2, Amount: 1000, TradingDay: day}}
	positions := []*Position{
		{
			InstrumentID:   "c2511",
			CloseProfit:    10,
			PositionProfit: 5,
			Margin:         100,
			Commission:     0.4,
			FrozenMargin:   100,
		},
	}

	account, err := ComputeAccount(pre, deposits, withdraws, positions, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 余额等式要求精确相等，不允许容差
	want := account.PreBalance + account.Deposit - account.Withdraw +
		account.CloseProfit + account.PositionProfit - account.Commission
	if account.Balance != want {
		t.Fatalf("balance = %v, want exactly %v", account.Balance, want)
	}
	if account.Balance != 100000+5000-1000+10+5-0.4 {
		t.Fatalf("balance = %v, want %v", account.Balance, 100000+5000-1000+10+5-0.4)
	}
	if account.PreBalance != 100000 || account.PreMargin != 200 {
		t.Fatalf("pre snapshot wrong: %+v", account)
	}
	if account.Margin != 100 || account.FrozenMargin != 100 {
		t.Fatalf("margin aggregation wrong: %+v", account)
	}
	if account.TradingDay != day {
		t.Fatalf("trading day = %s, want %s", account.TradingDay, day)
	}
}

func TestComputeAccountEmptyPositions(t *testing.T) {
	pre := &ledger.Account{Balance: 50000}
	account, err := ComputeAccount(pre, nil, nil, nil, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.Balance != 50000 {
		t.Fatalf("balance = %v, want 50000", account.Balance)
	}
}

func TestComputeAccountRejectsNaN(t *testing.T) {
	pre := &ledger.Account{Balance: 50000}
	positions := []*Position{{InstrumentID: "c2511", PositionProfit: math.NaN()}}
	_, err := ComputeAccount(pre, nil, nil, positions, day)
	if !errors.Is(err, ledger.ErrNullField) {
		t.Fatalf("expected ErrNullField, got %v", err)
	}
}

func TestAvailable(t *testing.T) {
	account := &ledger.Account{
		Balance:          100000,
		Margin:           300,
		FrozenMargin:     100,
		FrozenCommission: 0.2,
	}
	if got := Available(account); got != 100000-300-100-0.2 {
		t.Fatalf("available = %v, want %v", got, 100000-300-100-0.2)
	}
}
