package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/open9am/traderengine/internal/ledger"
)

// querier 让 *sql.DB 与 *sql.Tx 共用同一套查询
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const contractColumns = `
	contract_id, instrument_id, trader_id, open_order_id, close_order_id,
	direction, status, open_amount, close_amount, open_trading_day, open_time
`

func queryContracts(ctx context.Context, q querier, where string, args ...any) ([]*ledger.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM trader.contracts ` + where + ` ORDER BY contract_id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Contract
	for rows.Next() {
		var c ledger.Contract
		if err := rows.Scan(
			&c.ContractID, &c.InstrumentID, &c.TraderID, &c.OpenOrderID, &c.CloseOrderID,
			&c.Direction, &c.Status, &c.OpenAmount, &c.CloseAmount, &c.OpenTradingDay, &c.OpenTime,
		); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Contracts 全部持仓合约
func (s *Store) Contracts(ctx context.Context) ([]*ledger.Contract, error) {
	return queryContracts(ctx, s.db, ``)
}

// ContractsByStatus 按状态查询合约
func (s *Store) ContractsByStatus(ctx context.Context, status ledger.ContractStatus) ([]*ledger.Contract, error) {
	return queryContracts(ctx, s.db, `WHERE status = $1`, status)
}

// ContractsByInstrument 按品种查询合约
func (s *Store) ContractsByInstrument(ctx context.Context, instrumentID string) ([]*ledger.Contract, error) {
	return queryContracts(ctx, s.db, `WHERE instrument_id = $1`, instrumentID)
}

// ContractsByOpenOrder 查询某开仓委托下的合约
func (s *Store) ContractsByOpenOrder(ctx context.Context, orderID int64) ([]*ledger.Contract, error) {
	return queryContracts(ctx, s.db, `WHERE open_order_id = $1`, orderID)
}

// ContractsByCloseOrder 查询某平仓委托选中的合约
func (s *Store) ContractsByCloseOrder(ctx context.Context, orderID int64) ([]*ledger.Contract, error) {
	return queryContracts(ctx, s.db, `WHERE close_order_id = $1`, orderID)
}

func queryMargins(ctx context.Context, q querier, where string, args ...any) ([]*ledger.Margin, error) {
	query := `
		SELECT margin_id, contract_id, order_id, amount, status, trading_day, time
		FROM trader.margins ` + where + ` ORDER BY margin_id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query margins: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Margin
	for rows.Next() {
		var m ledger.Margin
		if err := rows.Scan(&m.MarginID, &m.ContractID, &m.OrderID, &m.Amount, &m.Status, &m.TradingDay, &m.Time); err != nil {
			return nil, fmt.Errorf("scan margin: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func queryOneMargin(ctx context.Context, q querier, contractID int64) (*ledger.Margin, error) {
	query := `
		SELECT margin_id, contract_id, order_id, amount, status, trading_day, time
		FROM trader.margins WHERE contract_id = $1
	`
	var m ledger.Margin
	err := q.QueryRowContext(ctx, query, contractID).Scan(
		&m.MarginID, &m.ContractID, &m.OrderID, &m.Amount, &m.Status, &m.TradingDay, &m.Time,
	)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query margin: %w", err)
	}
	return &m, nil
}

// Margins 全部保证金记录
func (s *Store) Margins(ctx context.Context) ([]*ledger.Margin, error) {
	return queryMargins(ctx, s.db, ``)
}

// MarginByContract 合约对应的保证金记录，一手一条
func (s *Store) MarginByContract(ctx context.Context, contractID int64) (*ledger.Margin, error) {
	return queryOneMargin(ctx, s.db, contractID)
}

func queryCommissions(ctx context.Context, q querier, where string, args ...any) ([]*ledger.Commission, error) {
	query := `
		SELECT commission_id, contract_id, order_id, amount, status, trading_day, time
		FROM trader.commissions ` + where + ` ORDER BY commission_id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query commissions: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Commission
	for rows.Next() {
		var c ledger.Commission
		if err := rows.Scan(&c.CommissionID, &c.ContractID, &c.OrderID, &c.Amount, &c.Status, &c.TradingDay, &c.Time); err != nil {
			return nil, fmt.Errorf("scan commission: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Commissions 全部手续费记录
func (s *Store) Commissions(ctx context.Context) ([]*ledger.Commission, error) {
	return queryCommissions(ctx, s.db, ``)
}

// CommissionsByContract 合约的手续费记录，开平各一条
func (s *Store) CommissionsByContract(ctx context.Context, contractID int64) ([]*ledger.Commission, error) {
	return queryCommissions(ctx, s.db, `WHERE contract_id = $1`, contractID)
}
