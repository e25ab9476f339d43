package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/open9am/traderengine/internal/ledger"
)

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Commit() error {
	return t.tx.Commit()
}

func (t *pgTx) Rollback() error {
	return t.tx.Rollback()
}

// AccountForUpdate 加锁读取资金账户，整个资金相关事务都先过这一行
func (t *pgTx) AccountForUpdate(ctx context.Context) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM trader.accounts WHERE id = 1 FOR UPDATE`
	return scanAccount(t.tx.QueryRowContext(ctx, query))
}

// ReplaceAccount 整体替换资金账户
func (t *pgTx) ReplaceAccount(ctx context.Context, account *ledger.Account) error {
	query := `
		INSERT INTO trader.accounts (id, ` + accountColumns + `)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			balance = $1, margin = $2, frozen_margin = $3, frozen_commission = $4, commission = $5,
			close_profit = $6, position_profit = $7, deposit = $8, withdraw = $9,
			pre_balance = $10, pre_margin = $11, pre_deposit = $12, pre_withdraw = $13,
			trading_day = $14, update_time = $15
	`
	_, err := t.tx.ExecContext(ctx, query,
		account.Balance, account.Margin, account.FrozenMargin, account.FrozenCommission, account.Commission,
		account.CloseProfit, account.PositionProfit, account.Deposit, account.Withdraw,
		account.PreBalance, account.PreMargin, account.PreDeposit, account.PreWithdraw,
		account.TradingDay, account.UpdateTime,
	)
	if err != nil {
		return fmt.Errorf("replace account: %w", err)
	}
	return nil
}

func execOne(ctx context.Context, tx *sql.Tx, what, query string, args ...any) error {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", what, ledger.ErrNotFound)
	}
	return nil
}

func (t *pgTx) InsertContract(ctx context.Context, c *ledger.Contract) error {
	query := `
		INSERT INTO trader.contracts (` + contractColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := t.tx.ExecContext(ctx, query,
		c.ContractID, c.InstrumentID, c.TraderID, c.OpenOrderID, c.CloseOrderID,
		c.Direction, c.Status, c.OpenAmount, c.CloseAmount, c.OpenTradingDay, c.OpenTime,
	)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateContract(ctx context.Context, c *ledger.Contract) error {
	query := `
		UPDATE trader.contracts SET
			instrument_id = $2, trader_id = $3, open_order_id = $4, close_order_id = $5,
			direction = $6, status = $7, open_amount = $8, close_amount = $9,
			open_trading_day = $10, open_time = $11
		WHERE contract_id = $1
	`
	return execOne(ctx, t.tx, "update contract", query,
		c.ContractID, c.InstrumentID, c.TraderID, c.OpenOrderID, c.CloseOrderID,
		c.Direction, c.Status, c.OpenAmount, c.CloseAmount, c.OpenTradingDay, c.OpenTime,
	)
}

func (t *pgTx) DeleteContract(ctx context.Context, contractID int64) error {
	return execOne(ctx, t.tx, "delete contract",
		`DELETE FROM trader.contracts WHERE contract_id = $1`, contractID)
}

// ContractsByInstrumentStatus 加锁读取，平仓选仓期间不允许并发变更
func (t *pgTx) ContractsByInstrumentStatus(ctx context.Context, instrumentID string, status ledger.ContractStatus) ([]*ledger.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM trader.contracts
		WHERE instrument_id = $1 AND status = $2
		ORDER BY contract_id
		FOR UPDATE
	`
	rows, err := t.tx.QueryContext(ctx, query, instrumentID, status)
	if err != nil {
		return nil, fmt.Errorf("query contracts for update: %w", err)
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

func (t *pgTx) ContractsByOpenOrder(ctx context.Context, orderID int64) ([]*ledger.Contract, error) {
	return queryContracts(ctx, t.tx, `WHERE open_order_id = $1`, orderID)
}

func (t *pgTx) ContractsByCloseOrder(ctx context.Context, orderID int64) ([]*ledger.Contract, error) {
	return queryContracts(ctx, t.tx, `WHERE close_order_id = $1`, orderID)
}

func (t *pgTx) InsertMargin(ctx context.Context, m *ledger.Margin) error {
	query := `
		INSERT INTO trader.margins (margin_id, contract_id, order_id, amount, status, trading_day, time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := t.tx.ExecContext(ctx, query, m.MarginID, m.ContractID, m.OrderID, m.Amount, m.Status, m.TradingDay, m.Time)
	if err != nil {
		return fmt.Errorf("insert margin: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateMargin(ctx context.Context, m *ledger.Margin) error {
	query := `
		UPDATE trader.margins SET
			contract_id = $2, order_id = $3, amount = $4, status = $5, trading_day = $6, time = $7
		WHERE margin_id = $1
	`
	return execOne(ctx, t.tx, "update margin", query,
		m.MarginID, m.ContractID, m.OrderID, m.Amount, m.Status, m.TradingDay, m.Time)
}

func (t *pgTx) DeleteMargin(ctx context.Context, marginID int64) error {
	return execOne(ctx, t.tx, "delete margin",
		`DELETE FROM trader.margins WHERE margin_id = $1`, marginID)
}

func (t *pgTx) MarginByContract(ctx context.Context, contractID int64) (*ledger.Margin, error) {
	return queryOneMargin(ctx, t.tx, contractID)
}

func (t *pgTx) InsertCommission(ctx context.Context, c *ledger.Commission) error {
	query := `
		INSERT INTO trader.commissions (commission_id, contract_id, order_id, amount, status, trading_day, time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := t.tx.ExecContext(ctx, query, c.CommissionID, c.ContractID, c.OrderID, c.Amount, c.Status, c.TradingDay, c.Time)
	if err != nil {
		return fmt.Errorf("insert commission: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateCommission(ctx context.Context, c *ledger.Commission) error {
	query := `
		UPDATE trader.commissions SET
			contract_id = $2, order_id = $3, amount = $4, status = $5, trading_day = $6, time = $7
		WHERE commission_id = $1
	`
	return execOne(ctx, t.tx, "update commission", query,
		c.CommissionID, c.ContractID, c.OrderID, c.Amount, c.Status, c.TradingDay, c.Time)
}

func (t *pgTx) DeleteCommission(ctx context.Context, commissionID int64) error {
	return execOne(ctx, t.tx, "delete commission",
		`DELETE FROM trader.commissions WHERE commission_id = $1`, commissionID)
}

func (t *pgTx) CommissionsByOrder(ctx context.Context, orderID int64) ([]*ledger.Commission, error) {
	return queryCommissions(ctx, t.tx, `WHERE order_id = $1`, orderID)
}

func (t *pgTx) InsertRequest(ctx context.Context, r *ledger.OrderRequest) error {
	query := `
		INSERT INTO trader.order_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := t.tx.ExecContext(ctx, query,
		r.OrderID, r.TraderID, r.InstrumentID, r.ExchangeID,
		r.Offset, r.Direction, r.Price, r.Volume, r.TradingDay, r.Time,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (t *pgTx) InsertResponse(ctx context.Context, r *ledger.OrderResponse) error {
	query := `
		INSERT INTO trader.order_responses
		(response_id, order_id, trader_id, instrument_id, offset_flag, direction, price, volume, trading_day, time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := t.tx.ExecContext(ctx, query,
		r.ResponseID, r.OrderID, r.TraderID, r.InstrumentID,
		r.Offset, r.Direction, r.Price, r.Volume, r.TradingDay, r.Time,
	)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (t *pgTx) InsertCancel(ctx context.Context, c *ledger.CancelResponse) error {
	query := `
		INSERT INTO trader.cancel_responses (response_id, order_id, instrument_id, status, trading_day, time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := t.tx.ExecContext(ctx, query, c.ResponseID, c.OrderID, c.InstrumentID, c.Status, c.TradingDay, c.Time)
	if err != nil {
		return fmt.Errorf("insert cancel: %w", err)
	}
	return nil
}
