// Package memstore 内存账本，用于仿真盘与测试。
// Begin 拿到整本账本的拷贝，Commit 整体换入，天然满足事务隔离。
package memstore

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/open9am/traderengine/internal/ledger"
)

type state struct {
	tradingDay  string
	account     ledger.Account
	instruments map[string]ledger.Instrument
	ticks       map[string]ledger.Tick
	deposits    []ledger.CashFlow
	withdraws   []ledger.CashFlow
	contracts   map[int64]ledger.Contract
	margins     map[int64]ledger.Margin
	commissions map[int64]ledger.Commission
	requests    []ledger.OrderRequest
	responses   []ledger.OrderResponse
	cancels     []ledger.CancelResponse
}

func newState() *state {
	return &state{
		instruments: make(map[string]ledger.Instrument),
		ticks:       make(map[string]ledger.Tick),
		contracts:   make(map[int64]ledger.Contract),
		margins:     make(map[int64]ledger.Margin),
		commissions: make(map[int64]ledger.Commission),
	}
}

func (s *state) clone() *state {
	c := newState()
	c.tradingDay = s.tradingDay
	c.account = s.account
	for k, v := range s.instruments {
		c.instruments[k] = v
	}
	for k, v := range s.ticks {
		c.ticks[k] = v
	}
	for k, v := range s.contracts {
		c.contracts[k] = v
	}
	for k, v := range s.margins {
		c.margins[k] = v
	}
	for k, v := range s.commissions {
		c.commissions[k] = v
	}
	c.deposits = append([]ledger.CashFlow(nil), s.deposits...)
	c.withdraws = append([]ledger.CashFlow(nil), s.withdraws...)
	c.requests = append([]ledger.OrderRequest(nil), s.requests...)
	c.responses = append([]ledger.OrderResponse(nil), s.responses...)
	c.cancels = append([]ledger.CancelResponse(nil), s.cancels...)
	return c
}

// Store 内存账本
type Store struct {
	mu    sync.Mutex // 保护 state 指针与读取
	txMu  sync.Mutex // 串行化事务，Begin 到 Commit/Rollback 独占
	state *state
}

// New 空账本
func New() *Store {
	return &Store{state: newState()}
}

// SetAccount 预置资金账户，仅供装载与测试
func (s *Store) SetAccount(account *ledger.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.account = *account
}

// AddDeposit 预置一笔入金流水
func (s *Store) AddDeposit(flow *ledger.CashFlow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.deposits = append(s.state.deposits, *flow)
}

// AddWithdraw 预置一笔出金流水
func (s *Store) AddWithdraw(flow *ledger.CashFlow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.withdraws = append(s.state.withdraws, *flow)
}

// PutContract 预置一手合约，仅供装载与测试
func (s *Store) PutContract(c *ledger.Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.contracts[c.ContractID] = *c
}

// PutMargin 预置一条保证金记录，仅供装载与测试
func (s *Store) PutMargin(m *ledger.Margin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.margins[m.MarginID] = *m
}

// PutCommission 预置一条手续费记录，仅供装载与测试
func (s *Store) PutCommission(c *ledger.Commission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.commissions[c.CommissionID] = *c
}

func (s *Store) TradingDay(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.tradingDay == "" {
		return "", ledger.ErrNotFound
	}
	return s.state.tradingDay, nil
}

func (s *Store) SetTradingDay(ctx context.Context, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.tradingDay = day
	return nil
}

func (s *Store) Account(ctx context.Context) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.state.account
	return &account, nil
}

func (s *Store) Instrument(ctx context.Context, instrumentID string) (*ledger.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.state.instruments[instrumentID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &inst, nil
}

func (s *Store) Instruments(ctx context.Context) ([]*ledger.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ledger.Instrument, 0, len(s.state.instruments))
	for _, inst := range s.state.instruments {
		v := inst
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID < out[j].InstrumentID })
	return out, nil
}

func (s *Store) UpsertInstrument(ctx context.Context, inst *ledger.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.instruments[inst.InstrumentID] = *inst
	return nil
}

func (s *Store) Tick(ctx context.Context, instrumentID string) (*ledger.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tick, ok := s.state.ticks[instrumentID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &tick, nil
}

func (s *Store) UpsertTick(ctx context.Context, tick *ledger.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ticks[tick.InstrumentID] = *tick
	return nil
}

func (s *Store) Deposits(ctx context.Context, tradingDay string) ([]*ledger.CashFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterFlows(s.state.deposits, tradingDay), nil
}

func (s *Store) Withdraws(ctx context.Context, tradingDay string) ([]*ledger.CashFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterFlows(s.state.withdraws, tradingDay), nil
}

func filterFlows(flows []ledger.CashFlow, tradingDay string) []*ledger.CashFlow {
	var out []*ledger.CashFlow
	for _, f := range flows {
		if f.TradingDay == tradingDay {
			v := f
			out = append(out, &v)
		}
	}
	return out
}

func (s *Store) Contracts(ctx context.Context) ([]*ledger.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return selectContracts(s.state, func(c *ledger.Contract) bool { return true }), nil
}

func (s *Store) ContractsByStatus(ctx context.Context, status ledger.ContractStatus) ([]*ledger.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return selectContracts(s.state, func(c *ledger.Contract) bool { return c.Status == status }), nil
}

func (s *Store) ContractsByInstrument(ctx context.Context, instrumentID string) ([]*ledger.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return selectContracts(s.state, func(c *ledger.Contract) bool { return c.InstrumentID == instrumentID }), nil
}

func (s *Store) ContractsByOpenOrder(ctx context.Context, orderID int64) ([]*ledger.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return selectContracts(s.state, func(c *ledger.Contract) bool { return c.OpenOrderID == orderID }), nil
}

func (s *Store) ContractsByCloseOrder(ctx context.Context, orderID int64) ([]*ledger.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return selectContracts(s.state, func(c *ledger.Contract) bool { return c.CloseOrderID == orderID }), nil
}

func selectContracts(st *state, keep func(*ledger.Contract) bool) []*ledger.Contract {
	var out []*ledger.Contract
	for _, c := range st.contracts {
		v := c
		if keep(&v) {
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContractID < out[j].ContractID })
	return out
}

func (s *Store) Margins(ctx context.Context) ([]*ledger.Margin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ledger.Margin, 0, len(s.state.margins))
	for _, m := range s.state.margins {
		v := m
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarginID < out[j].MarginID })
	return out, nil
}

func (s *Store) MarginByContract(ctx context.Context, contractID int64) (*ledger.Margin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return marginByContract(s.state, contractID)
}

func marginByContract(st *state, contractID int64) (*ledger.Margin, error) {
	for _, m := range st.margins {
		if m.ContractID == contractID {
			v := m
			return &v, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (s *Store) Commissions(ctx context.Context) ([]*ledger.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return selectCommissions(s.state, func(c *ledger.Commission) bool { return true }), nil
}

func (s *Store) CommissionsByContract(ctx context.Context, contractID int64) ([]*ledger.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return selectCommissions(s.state, func(c *ledger.Commission) bool { return c.ContractID == contractID }), nil
}

func selectCommissions(st *state, keep func(*ledger.Commission) bool) []*ledger.Commission {
	var out []*ledger.Commission
	for _, c := range st.commissions {
		v := c
		if keep(&v) {
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CommissionID < out[j].CommissionID })
	return out
}

func (s *Store) Requests(ctx context.Context) ([]*ledger.OrderRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ledger.OrderRequest, 0, len(s.state.requests))
	for i := range s.state.requests {
		v := s.state.requests[i]
		out = append(out, &v)
	}
	return out, nil
}

func (s *Store) Request(ctx context.Context, orderID int64) (*ledger.OrderRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.requests {
		if s.state.requests[i].OrderID == orderID {
			v := s.state.requests[i]
			return &v, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (s *Store) ResponsesByOrder(ctx context.Context, orderID int64) ([]*ledger.OrderResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ledger.OrderResponse
	for i := range s.state.responses {
		if s.state.responses[i].OrderID == orderID {
			v := s.state.responses[i]
			out = append(out, &v)
		}
	}
	return out, nil
}

func (s *Store) CancelsByOrder(ctx context.Context, orderID int64) ([]*ledger.CancelResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ledger.CancelResponse
	for i := range s.state.cancels {
		if s.state.cancels[i].OrderID == orderID {
			v := s.state.cancels[i]
			out = append(out, &v)
		}
	}
	return out, nil
}

// Begin 独占整本账本直到 Commit 或 Rollback
func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	s.txMu.Lock()
	s.mu.Lock()
	staged := s.state.clone()
	s.mu.Unlock()
	return &memTx{store: s, staged: staged}, nil
}

type memTx struct {
	store  *Store
	staged *state
	done   bool
}

func (t *memTx) finish() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.store.mu.Lock()
	t.store.state = t.staged
	t.store.mu.Unlock()
	return t.finish()
}

func (t *memTx) Rollback() error {
	return t.finish()
}

func (t *memTx) AccountForUpdate(ctx context.Context) (*ledger.Account, error) {
	account := t.staged.account
	return &account, nil
}

func (t *memTx) ReplaceAccount(ctx context.Context, account *ledger.Account) error {
	t.staged.account = *account
	return nil
}

func (t *memTx) InsertContract(ctx context.Context, c *ledger.Contract) error {
	if _, ok := t.staged.contracts[c.ContractID]; ok {
		return ledger.ErrDuplicateKey
	}
	t.staged.contracts[c.ContractID] = *c
	return nil
}

func (t *memTx) UpdateContract(ctx context.Context, c *ledger.Contract) error {
	if _, ok := t.staged.contracts[c.ContractID]; !ok {
		return ledger.ErrNotFound
	}
	t.staged.contracts[c.ContractID] = *c
	return nil
}

func (t *memTx) DeleteContract(ctx context.Context, contractID int64) error {
	if _, ok := t.staged.contracts[contractID]; !ok {
		return ledger.ErrNotFound
	}
	delete(t.staged.contracts, contractID)
	return nil
}

func (t *memTx) ContractsByInstrumentStatus(ctx context.Context, instrumentID string, status ledger.ContractStatus) ([]*ledger.Contract, error) {
	return selectContracts(t.staged, func(c *ledger.Contract) bool {
		return c.InstrumentID == instrumentID && c.Status == status
	}), nil
}

func (t *memTx) ContractsByOpenOrder(ctx context.Context, orderID int64) ([]*ledger.Contract, error) {
	return selectContracts(t.staged, func(c *ledger.Contract) bool { return c.OpenOrderID == orderID }), nil
}

func (t *memTx) ContractsByCloseOrder(ctx context.Context, orderID int64) ([]*ledger.Contract, error) {
	return selectContracts(t.staged, func(c *ledger.Contract) bool { return c.CloseOrderID == orderID }), nil
}

func (t *memTx) InsertMargin(ctx context.Context, m *ledger.Margin) error {
	if _, ok := t.staged.margins[m.MarginID]; ok {
		return ledger.ErrDuplicateKey
	}
	t.staged.margins[m.MarginID] = *m
	return nil
}

func (t *memTx) UpdateMargin(ctx context.Context, m *ledger.Margin) error {
	if _, ok := t.staged.margins[m.MarginID]; !ok {
		return ledger.ErrNotFound
	}
	t.staged.margins[m.MarginID] = *m
	return nil
}

func (t *memTx) DeleteMargin(ctx context.Context, marginID int64) error {
	if _, ok := t.staged.margins[marginID]; !ok {
		return ledger.ErrNotFound
	}
	delete(t.staged.margins, marginID)
	return nil
}

func (t *memTx) MarginByContract(ctx context.Context, contractID int64) (*ledger.Margin, error) {
	return marginByContract(t.staged, contractID)
}

func (t *memTx) InsertCommission(ctx context.Context, c *ledger.Commission) error {
	if _, ok := t.staged.commissions[c.CommissionID]; ok {
		return ledger.ErrDuplicateKey
	}
	t.staged.commissions[c.CommissionID] = *c
	return nil
}

func (t *memTx) UpdateCommission(ctx context.Context, c *ledger.Commission) error {
	if _, ok := t.staged.commissions[c.CommissionID]; !ok {
		return ledger.ErrNotFound
	}
	t.staged.commissions[c.CommissionID] = *c
	return nil
}

func (t *memTx) DeleteCommission(ctx context.Context, commissionID int64) error {
	if _, ok := t.staged.commissions[commissionID]; !ok {
		return ledger.ErrNotFound
	}
	delete(t.staged.commissions, commissionID)
	return nil
}

func (t *memTx) CommissionsByOrder(ctx context.Context, orderID int64) ([]*ledger.Commission, error) {
	return selectCommissions(t.staged, func(c *ledger.Commission) bool { return c.OrderID == orderID }), nil
}

func (t *memTx) InsertRequest(ctx context.Context, r *ledger.OrderRequest) error {
	t.staged.requests = append(t.staged.requests, *r)
	return nil
}

func (t *memTx) InsertResponse(ctx context.Context, r *ledger.OrderResponse) error {
	t.staged.responses = append(t.staged.responses, *r)
	return nil
}

func (t *memTx) InsertCancel(ctx context.Context, c *ledger.CancelResponse) error {
	t.staged.cancels = append(t.staged.cancels, *c)
	return nil
}
