package algo

import (
	"fmt"
	"sort"

	"github.com/open9am/traderengine/internal/ledger"
)

// Position 衍生持仓读模型，按（品种 × 开仓方向）聚合
type Position struct {
	InstrumentID string
	Direction    ledger.Direction // 开仓方向

	Amount         float64
	Margin         float64
	Commission     float64
	CloseProfit    float64
	PositionProfit float64
	Volume         int64

	FrozenMargin      float64
	FrozenCommission  float64
	FrozenOpenVolume  int64
	FrozenCloseVolume int64

	TodayAmount     float64
	TodayMargin     float64
	TodayVolume     int64
	TodayOpenVolume int64

	PreAmount float64
	PreMargin float64
	PreVolume int64

	TradingDay string
}

type positionKey struct {
	instrumentID string
	direction    ledger.Direction
}

// ComputePositions 由合约及其费用记录推导持仓。
// commissions/margins 以合约号为键；ticks/instruments 以品种为键。
// 未识别的状态值视为账本损坏，直接失败。
func ComputePositions(
	contracts []*ledger.Contract,
	commissions map[int64][]*ledger.Commission,
	margins map[int64]*ledger.Margin,
	ticks map[string]*ledger.Tick,
	instruments map[string]*ledger.Instrument,
	tradingDay string,
) ([]*Position, error) {
	byKey := make(map[positionKey]*Position)

	for _, c := range contracts {
		inst, ok := instruments[c.InstrumentID]
		if !ok {
			return nil, fmt.Errorf("instrument %s: %w", c.InstrumentID, ledger.ErrNullField)
		}

		key := positionKey{c.InstrumentID, c.Direction}
		p, ok := byKey[key]
		if !ok {
			p = &Position{
				InstrumentID: c.InstrumentID,
				Direction:    c.Direction,
				TradingDay:   tradingDay,
			}
			byKey[key] = p
		}

		if err := accumulateContract(p, c, commissions[c.ContractID], margins[c.ContractID], ticks[c.InstrumentID], inst, tradingDay); err != nil {
			return nil, err
		}
	}

	positions := make([]*Position, 0, len(byKey))
	for _, p := range byKey {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].InstrumentID != positions[j].InstrumentID {
			return positions[i].InstrumentID < positions[j].InstrumentID
		}
		return positions[i].Direction < positions[j].Direction
	})
	return positions, nil
}

func accumulateContract(
	p *Position,
	c *ledger.Contract,
	fees []*ledger.Commission,
	margin *ledger.Margin,
	tick *ledger.Tick,
	inst *ledger.Instrument,
	tradingDay string,
) error {
	// 费用记录逐条归入：冻结额与已成交额分开累计
	var frozenCommission, dealedCommission float64
	for _, f := range fees {
		switch f.Status {
		case ledger.FeeFrozen:
			frozenCommission += f.Amount
		case ledger.FeeDealed:
			dealedCommission += f.Amount
		}
	}
	var frozenMargin, dealedMargin float64
	if margin != nil {
		switch margin.Status {
		case ledger.FeeFrozen:
			frozenMargin = margin.Amount
		case ledger.FeeDealed:
			dealedMargin = margin.Amount
		}
	}

	live := false // 是否计入实际持仓
	switch c.Status {
	case ledger.ContractOpening:
		p.FrozenOpenVolume++
		p.FrozenMargin += frozenMargin
		p.FrozenCommission += frozenCommission

	case ledger.ContractOpen, ledger.ContractClosing:
		if tick == nil {
			return fmt.Errorf("tick %s: %w", c.InstrumentID, ledger.ErrNullField)
		}
		live = true
		p.Volume++
		p.Amount += c.OpenAmount
		p.Margin += dealedMargin
		p.Commission += dealedCommission
		p.FrozenCommission += frozenCommission
		p.PositionProfit += profitSign(c.Direction) * (Amount(tick.Price, inst) - c.OpenAmount)
		if c.Status == ledger.ContractClosing {
			p.FrozenCloseVolume++
		}

	case ledger.ContractClosed:
		if !c.CloseAmount.Valid {
			return fmt.Errorf("contract %d close amount: %w", c.ContractID, ledger.ErrNullField)
		}
		p.CloseProfit += profitSign(c.Direction) * (c.CloseAmount.Float64 - c.OpenAmount)
		p.Commission += dealedCommission

	default:
		return fmt.Errorf("contract %d status %d: %w", c.ContractID, c.Status, ledger.ErrInvalidContractStatus)
	}

	// 昨仓/今仓分桶：开仓交易日早于当前交易日即为昨仓
	if c.Status != ledger.ContractOpening {
		if c.OpenTradingDay < tradingDay {
			if live {
				p.PreAmount += c.OpenAmount
				p.PreMargin += dealedMargin
				p.PreVolume++
			}
		} else {
			p.TodayOpenVolume++
			if live {
				p.TodayAmount += c.OpenAmount
				p.TodayMargin += dealedMargin
				p.TodayVolume++
			}
		}
	}
	return nil
}
