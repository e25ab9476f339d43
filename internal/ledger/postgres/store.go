// Package postgres 账本的 PostgreSQL 实现
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/open9am/traderengine/internal/ledger"
)

// Store PostgreSQL 账本
type Store struct {
	db *sql.DB
}

// New 创建账本
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Begin 开启账本事务
func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

// TradingDay 当前交易日，单行表
func (s *Store) TradingDay(ctx context.Context) (string, error) {
	query := `SELECT trading_day FROM trader.trading_day WHERE id = 1`
	var day string
	err := s.db.QueryRowContext(ctx, query).Scan(&day)
	if err == sql.ErrNoRows {
		return "", ledger.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query trading day: %w", err)
	}
	return day, nil
}

// SetTradingDay 切换交易日
func (s *Store) SetTradingDay(ctx context.Context, day string) error {
	query := `
		INSERT INTO trader.trading_day (id, trading_day) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET trading_day = $1
	`
	if _, err := s.db.ExecContext(ctx, query, day); err != nil {
		return fmt.Errorf("set trading day: %w", err)
	}
	return nil
}

const accountColumns = `
	balance, margin, frozen_margin, frozen_commission, commission,
	close_profit, position_profit, deposit, withdraw,
	pre_balance, pre_margin, pre_deposit, pre_withdraw,
	trading_day, update_time
`

func scanAccount(row *sql.Row) (*ledger.Account, error) {
	var a ledger.Account
	err := row.Scan(
		&a.Balance, &a.Margin, &a.FrozenMargin, &a.FrozenCommission, &a.Commission,
		&a.CloseProfit, &a.PositionProfit, &a.Deposit, &a.Withdraw,
		&a.PreBalance, &a.PreMargin, &a.PreDeposit, &a.PreWithdraw,
		&a.TradingDay, &a.UpdateTime,
	)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

// Account 资金账户，单账户模型
func (s *Store) Account(ctx context.Context) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM trader.accounts WHERE id = 1`
	return scanAccount(s.db.QueryRowContext(ctx, query))
}

const instrumentColumns = `
	instrument_id, exchange_id, multiplier,
	margin_ratio, margin_mode,
	commission_mode, open_commission_ratio, close_commission_ratio, close_today_commission_ratio,
	start_date, end_date
`

func scanInstrument(scan func(...any) error) (*ledger.Instrument, error) {
	var i ledger.Instrument
	err := scan(
		&i.InstrumentID, &i.ExchangeID, &i.Multiplier,
		&i.MarginRatio, &i.MarginMode,
		&i.CommissionMode, &i.OpenCommissionRatio, &i.CloseCommissionRatio, &i.CloseTodayCommissionRatio,
		&i.StartDate, &i.EndDate,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// Instrument 品种配置
func (s *Store) Instrument(ctx context.Context, instrumentID string) (*ledger.Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM trader.instruments WHERE instrument_id = $1`
	inst, err := scanInstrument(s.db.QueryRowContext(ctx, query, instrumentID).Scan)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query instrument: %w", err)
	}
	return inst, nil
}

// Instruments 全部品种配置
func (s *Store) Instruments(ctx context.Context) ([]*ledger.Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM trader.instruments ORDER BY instrument_id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// UpsertInstrument 写入或覆盖品种配置
func (s *Store) UpsertInstrument(ctx context.Context, inst *ledger.Instrument) error {
	query := `
		INSERT INTO trader.instruments (` + instrumentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (instrument_id) DO UPDATE SET
			exchange_id = $2, multiplier = $3,
			margin_ratio = $4, margin_mode = $5,
			commission_mode = $6, open_commission_ratio = $7,
			close_commission_ratio = $8, close_today_commission_ratio = $9,
			start_date = $10, end_date = $11
	`
	_, err := s.db.ExecContext(ctx, query,
		inst.InstrumentID, inst.ExchangeID, inst.Multiplier,
		inst.MarginRatio, inst.MarginMode,
		inst.CommissionMode, inst.OpenCommissionRatio, inst.CloseCommissionRatio, inst.CloseTodayCommissionRatio,
		inst.StartDate, inst.EndDate,
	)
	if err != nil {
		return fmt.Errorf("upsert instrument: %w", err)
	}
	return nil
}

// Tick 最新行情快照
func (s *Store) Tick(ctx context.Context, instrumentID string) (*ledger.Tick, error) {
	query := `SELECT instrument_id, price, trading_day, time FROM trader.ticks WHERE instrument_id = $1`
	var t ledger.Tick
	err := s.db.QueryRowContext(ctx, query, instrumentID).Scan(&t.InstrumentID, &t.Price, &t.TradingDay, &t.Time)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query tick: %w", err)
	}
	return &t, nil
}

// UpsertTick 覆盖最新行情
func (s *Store) UpsertTick(ctx context.Context, tick *ledger.Tick) error {
	query := `
		INSERT INTO trader.ticks (instrument_id, price, trading_day, time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (instrument_id) DO UPDATE SET price = $2, trading_day = $3, time = $4
	`
	if _, err := s.db.ExecContext(ctx, query, tick.InstrumentID, tick.Price, tick.TradingDay, tick.Time); err != nil {
		return fmt.Errorf("upsert tick: %w", err)
	}
	return nil
}

const (
	flowDeposit  = 1
	flowWithdraw = 2
)

func (s *Store) cashFlows(ctx context.Context, kind int, tradingDay string) ([]*ledger.CashFlow, error) {
	query := `
		SELECT flow_id, amount, trading_day, time
		FROM trader.cash_flows
		WHERE kind = $1 AND trading_day = $2
		ORDER BY flow_id
	`
	rows, err := s.db.QueryContext(ctx, query, kind, tradingDay)
	if err != nil {
		return nil, fmt.Errorf("query cash flows: %w", err)
	}
	defer rows.Close()

	var out []*ledger.CashFlow
	for rows.Next() {
		var f ledger.CashFlow
		if err := rows.Scan(&f.FlowID, &f.Amount, &f.TradingDay, &f.Time); err != nil {
			return nil, fmt.Errorf("scan cash flow: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// Deposits 当日入金流水
func (s *Store) Deposits(ctx context.Context, tradingDay string) ([]*ledger.CashFlow, error) {
	return s.cashFlows(ctx, flowDeposit, tradingDay)
}

// Withdraws 当日出金流水
func (s *Store) Withdraws(ctx context.Context, tradingDay string) ([]*ledger.CashFlow, error) {
	return s.cashFlows(ctx, flowWithdraw, tradingDay)
}

// AddDeposit 记一笔入金
func (s *Store) AddDeposit(ctx context.Context, flow *ledger.CashFlow) error {
	return s.addCashFlow(ctx, flowDeposit, flow)
}

// AddWithdraw 记一笔出金
func (s *Store) AddWithdraw(ctx context.Context, flow *ledger.CashFlow) error {
	return s.addCashFlow(ctx, flowWithdraw, flow)
}

func (s *Store) addCashFlow(ctx context.Context, kind int, flow *ledger.CashFlow) error {
	query := `
		INSERT INTO trader.cash_flows (flow_id, kind, amount, trading_day, time)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.ExecContext(ctx, query, flow.FlowID, kind, flow.Amount, flow.TradingDay, flow.Time); err != nil {
		return fmt.Errorf("insert cash flow: %w", err)
	}
	return nil
}
