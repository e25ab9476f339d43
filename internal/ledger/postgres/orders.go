package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/open9am/traderengine/internal/ledger"
)

const requestColumns = `
	order_id, trader_id, instrument_id, exchange_id,
	offset_flag, direction, price, volume, trading_day, time
`

func scanRequest(scan func(...any) error) (*ledger.OrderRequest, error) {
	var r ledger.OrderRequest
	err := scan(
		&r.OrderID, &r.TraderID, &r.InstrumentID, &r.ExchangeID,
		&r.Offset, &r.Direction, &r.Price, &r.Volume, &r.TradingDay, &r.Time,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Requests 当日全部委托请求
func (s *Store) Requests(ctx context.Context) ([]*ledger.OrderRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM trader.order_requests ORDER BY order_id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var out []*ledger.OrderRequest
	for rows.Next() {
		r, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Request 按逻辑委托号查询
func (s *Store) Request(ctx context.Context, orderID int64) (*ledger.OrderRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM trader.order_requests WHERE order_id = $1`
	r, err := scanRequest(s.db.QueryRowContext(ctx, query, orderID).Scan)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query request: %w", err)
	}
	return r, nil
}

// ResponsesByOrder 委托的成交回报
func (s *Store) ResponsesByOrder(ctx context.Context, orderID int64) ([]*ledger.OrderResponse, error) {
	query := `
		SELECT response_id, order_id, trader_id, instrument_id,
		       offset_flag, direction, price, volume, trading_day, time
		FROM trader.order_responses WHERE order_id = $1 ORDER BY response_id
	`
	rows, err := s.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var out []*ledger.OrderResponse
	for rows.Next() {
		var r ledger.OrderResponse
		if err := rows.Scan(
			&r.ResponseID, &r.OrderID, &r.TraderID, &r.InstrumentID,
			&r.Offset, &r.Direction, &r.Price, &r.Volume, &r.TradingDay, &r.Time,
		); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// CancelsByOrder 委托的撤单回报
func (s *Store) CancelsByOrder(ctx context.Context, orderID int64) ([]*ledger.CancelResponse, error) {
	query := `
		SELECT response_id, order_id, instrument_id, status, trading_day, time
		FROM trader.cancel_responses WHERE order_id = $1 ORDER BY response_id
	`
	rows, err := s.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query cancels: %w", err)
	}
	defer rows.Close()

	var out []*ledger.CancelResponse
	for rows.Next() {
		var c ledger.CancelResponse
		if err := rows.Scan(&c.ResponseID, &c.OrderID, &c.InstrumentID, &c.Status, &c.TradingDay, &c.Time); err != nil {
			return nil, fmt.Errorf("scan cancel: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
