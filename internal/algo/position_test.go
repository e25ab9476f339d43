package algo

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/open9am/traderengine/internal/ledger"
)

const day = "20250901"

func testInstruments() map[string]*ledger.Instrument {
	return map[string]*ledger.Instrument{"c2511": byVolumeInstrument()}
}

func testTicks(price float64) map[string]*ledger.Tick {
	return map[string]*ledger.Tick{
		"c2511": {InstrumentID: "c2511", Price: price, TradingDay: day},
	}
}

func TestComputePositionsOpeningFreezesOnly(t *testing.T) {
	contracts := []*ledger.Contract{
		{ContractID: 1, InstrumentID: "c2511", Direction: ledger.DirectionBuy, Status: ledger.ContractOpening, OpenOrderID: 100},
	}
	commissions := map[int64][]*ledger.Commission{
		1: {{CommissionID: 11, ContractID: 1, OrderID: 100, Amount: 0.2, Status: ledger.FeeFrozen}},
	}
	margins := map[int64]*ledger.Margin{
		1: {MarginID: 21, ContractID: 1, OrderID: 100, Amount: 100, Status: ledger.FeeFrozen},
	}

	positions, err := ComputePositions(contracts, commissions, margins, nil, testInstruments(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	p := positions[0]
	if p.FrozenOpenVolume != 1 || p.FrozenMargin != 100 || p.FrozenCommission != 0.2 {
		t.Fatalf("frozen bucket wrong: %+v", p)
	}
	if p.Volume != 0 || p.Margin != 0 || p.Amount != 0 {
		t.Fatalf("opening contract must not enter live bucket: %+v", p)
	}
}

func TestComputePositionsOpenWithProfit(t *testing.T) {
	contracts := []*ledger.Contract{
		{ContractID: 1, InstrumentID: "c2511", Direction: ledger.DirectionBuy, Status: ledger.ContractOpen,
			OpenAmount: 1010, OpenTradingDay: day},
	}
	commissions := map[int64][]*ledger.Commission{
		1: {{CommissionID: 11, ContractID: 1, Amount: 0.2, Status: ledger.FeeDealed}},
	}
	margins := map[int64]*ledger.Margin{
		1: {MarginID: 21, ContractID: 1, Amount: 100, Status: ledger.FeeDealed},
	}

	positions, err := ComputePositions(contracts, commissions, margins, testTicks(101.5), testInstruments(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := positions[0]
	if p.Volume != 1 || p.Amount != 1010 || p.Margin != 100 || p.Commission != 0.2 {
		t.Fatalf("live bucket wrong: %+v", p)
	}
	// 多头盈亏 = 标记金额 - 开仓金额 = 1015 - 1010
	if p.PositionProfit != 5 {
		t.Fatalf("position profit = %v, want 5", p.PositionProfit)
	}
	if p.TodayVolume != 1 || p.PreVolume != 0 {
		t.Fatalf("today contract bucketed wrong: %+v", p)
	}
}

func TestComputePositionsShortProfitSign(t *testing.T) {
	contracts := []*ledger.Contract{
		{ContractID: 1, InstrumentID: "c2511", Direction: ledger.DirectionSell, Status: ledger.ContractOpen,
			OpenAmount: 1010, OpenTradingDay: day},
	}
	positions, err := ComputePositions(contracts, nil, nil, testTicks(101.5), testInstruments(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if positions[0].PositionProfit != -5 {
		t.Fatalf("short position profit = %v, want -5", positions[0].PositionProfit)
	}
}

func TestComputePositionsClosingFreezesVolume(t *testing.T) {
	contracts := []*ledger.Contract{
		{ContractID: 1, InstrumentID: "c2511", Direction: ledger.DirectionBuy, Status: ledger.ContractClosing,
			OpenAmount: 1010, OpenTradingDay: "20250829", CloseOrderID: 200},
	}
	commissions := map[int64][]*ledger.Commission{
		1: {
			{CommissionID: 11, ContractID: 1, Amount: 0.2, Status: ledger.FeeDealed},
			{CommissionID: 12, ContractID: 1, OrderID: 200, Amount: 0.2, Status: ledger.FeeFrozen},
		},
	}
	margins := map[int64]*ledger.Margin{
		1: {MarginID: 21, ContractID: 1, Amount: 100, Status: ledger.FeeDealed},
	}

	positions, err := ComputePositions(contracts, commissions, margins, testTicks(101.5), testInstruments(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := positions[0]
	if p.Volume != 1 || p.FrozenCloseVolume != 1 {
		t.Fatalf("closing contract stays live and freezes close volume: %+v", p)
	}
	if p.FrozenCommission != 0.2 || p.Commission != 0.2 {
		t.Fatalf("frozen close commission wrong: %+v", p)
	}
	// 昨仓分桶
	if p.PreVolume != 1 || p.TodayVolume != 0 {
		t.Fatalf("pre-day contract bucketed wrong: %+v", p)
	}
}

func TestComputePositionsClosedProfit(t *testing.T) {
	contracts := []*ledger.Contract{
		{ContractID: 1, InstrumentID: "c2511", Direction: ledger.DirectionBuy, Status: ledger.ContractClosed,
			OpenAmount: 1010, OpenTradingDay: day,
			CloseAmount: sql.NullFloat64{Float64: 1020, Valid: true}},
	}
	commissions := map[int64][]*ledger.Commission{
		1: {
			{CommissionID: 11, ContractID: 1, Amount: 0.2, Status: ledger.FeeDealed},
			{CommissionID: 12, ContractID: 1, Amount: 0.2, Status: ledger.FeeDealed},
		},
	}

	positions, err := ComputePositions(contracts, commissions, nil, nil, testInstruments(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := positions[0]
	if p.CloseProfit != 10 {
		t.Fatalf("close profit = %v, want 10", p.CloseProfit)
	}
	if p.Commission != 0.4 {
		t.Fatalf("dealt commission = %v, want 0.4", p.Commission)
	}
	if p.Volume != 0 {
		t.Fatalf("closed contract must leave live bucket: %+v", p)
	}
}

func TestComputePositionsNullCloseAmount(t *testing.T) {
	contracts := []*ledger.Contract{
		{ContractID: 1, InstrumentID: "c2511", Direction: ledger.DirectionBuy, Status: ledger.ContractClosed,
			OpenAmount: 1010, OpenTradingDay: day},
	}
	_, err := ComputePositions(contracts, nil, nil, nil, testInstruments(), day)
	if !errors.Is(err, ledger.ErrNullField) {
		t.Fatalf("expected ErrNullField, got %v", err)
	}
}

func TestComputePositionsMissingTick(t *testing.T) {
	contracts := []*ledger.Contract{
		{ContractID: 1, InstrumentID: "c2511", Direction: ledger.DirectionBuy, Status: ledger.ContractOpen,
			OpenAmount: 1010, OpenTradingDay: day},
	}
	_, err := ComputePositions(contracts, nil, nil, nil, testInstruments(), day)
	if !errors.Is(err, ledger.ErrNullField) {
		t.Fatalf("expected ErrNullField for missing tick, got %v", err)
	}
}

func TestComputePositionsUnknownStatus(t *testing.T) {
	contracts := []*ledger.Contract{
		{ContractID: 1, InstrumentID: "c2511", Direction: ledger.DirectionBuy, Status: ledger.ContractStatus(9)},
	}
	_, err := ComputePositions(contracts, nil, nil, nil, testInstruments(), day)
	if !errors.Is(err, ledger.ErrInvalidContractStatus) {
		t.Fatalf("expected ErrInvalidContractStatus, got %v", err)
	}
}

func TestComputePositionsGroupsByDirection(t *testing.T) {
	contracts := []*ledger.Contract{
		{ContractID: 1, InstrumentID: "c2511", Direction: ledger.DirectionBuy, Status: ledger.ContractOpen,
			OpenAmount: 1010, OpenTradingDay: day},
		{ContractID: 2, InstrumentID: "c2511", Direction: ledger.DirectionSell, Status: ledger.ContractOpen,
			OpenAmount: 1020, OpenTradingDay: day},
	}
	positions, err := ComputePositions(contracts, nil, nil, testTicks(101.5), testInstruments(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}
	if positions[0].Direction != ledger.DirectionBuy || positions[1].Direction != ledger.DirectionSell {
		t.Fatalf("positions not sorted by direction: %+v", positions)
	}
}
