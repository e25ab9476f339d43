package algo

import (
	"errors"
	"testing"

	"github.com/open9am/traderengine/internal/ledger"
)

func byMoneyInstrument() *ledger.Instrument {
	return &ledger.Instrument{
		InstrumentID:              "c2511",
		ExchangeID:                "DCE",
		Multiplier:                10,
		MarginRatio:               0.1,
		MarginMode:                ledger.RatioByMoney,
		CommissionMode:            ledger.RatioByMoney,
		OpenCommissionRatio:       0.0002,
		CloseCommissionRatio:      0.0003,
		CloseTodayCommissionRatio: 0.0001,
	}
}

func byVolumeInstrument() *ledger.Instrument {
	return &ledger.Instrument{
		InstrumentID:              "c2511",
		ExchangeID:                "DCE",
		Multiplier:                10,
		MarginRatio:               100,
		MarginMode:                ledger.RatioByVolume,
		CommissionMode:            ledger.RatioByVolume,
		OpenCommissionRatio:       0.2,
		CloseCommissionRatio:      0.2,
		CloseTodayCommissionRatio: 0.1,
	}
}

func TestAmount(t *testing.T) {
	if got := Amount(101, byMoneyInstrument()); got != 1010 {
		t.Fatalf("amount = %v, want 1010", got)
	}
}

func TestMarginAmountByMoney(t *testing.T) {
	if got := MarginAmount(101, byMoneyInstrument()); got != 101 {
		t.Fatalf("margin = %v, want 101", got)
	}
}

func TestMarginAmountByVolume(t *testing.T) {
	if got := MarginAmount(101, byVolumeInstrument()); got != 100 {
		t.Fatalf("margin = %v, want 100", got)
	}
}

func TestCommissionAmountByMoney(t *testing.T) {
	inst := byMoneyInstrument()
	got, err := CommissionAmount(101, inst, ledger.OffsetOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1010*0.0002 {
		t.Fatalf("open commission = %v, want %v", got, 1010*0.0002)
	}
	got, err = CommissionAmount(101, inst, ledger.OffsetClose)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1010*0.0003 {
		t.Fatalf("close commission = %v, want %v", got, 1010*0.0003)
	}
}

func TestCommissionAmountByVolume(t *testing.T) {
	inst := byVolumeInstrument()
	got, err := CommissionAmount(101, inst, ledger.OffsetCloseToday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0.1 {
		t.Fatalf("close today commission = %v, want 0.1", got)
	}
}

func TestCommissionAmountInvalidOffset(t *testing.T) {
	_, err := CommissionAmount(101, byMoneyInstrument(), ledger.Offset(9))
	if !errors.Is(err, ledger.ErrInvalidOffset) {
		t.Fatalf("expected ErrInvalidOffset, got %v", err)
	}
}
