package connector

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/open9am/traderengine/internal/ledger"
)

// Sim 纸面通道：不触达任何真实柜台，延迟一段时间后按委托价全量成交。
// 用于引擎的 paper 模式与集成测试。
type Sim struct {
	mu      sync.Mutex
	handler Handler
	status  Status
	latency time.Duration
	pending map[int64]*ledger.OrderRequest // 通道委托号 -> 未成交委托
	filled  map[int64]bool
}

// NewSim 创建纸面通道
func NewSim() *Sim {
	return &Sim{
		latency: 10 * time.Millisecond,
		pending: make(map[int64]*ledger.OrderRequest),
		filled:  make(map[int64]bool),
	}
}

// Start 启动通道。props 支持 latency_ms 控制成交延迟。
func (s *Sim) Start(props map[string]string, h Handler) error {
	s.mu.Lock()
	if h == nil {
		s.mu.Unlock()
		return errors.New("sim: nil handler")
	}
	if v, ok := props["latency_ms"]; ok {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			s.latency = time.Duration(ms) * time.Millisecond
		}
	}
	s.handler = h
	s.status = StatusWorking
	s.mu.Unlock()

	h.OnStatusChange(StatusWorking)
	return nil
}

// Stop 停止通道
func (s *Sim) Stop() error {
	s.mu.Lock()
	h := s.handler
	s.status = StatusStopped
	s.mu.Unlock()

	if h != nil {
		h.OnStatusChange(StatusStopped)
	}
	return nil
}

// Status 通道状态
func (s *Sim) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Insert 受理委托，延迟后回报全量成交
func (s *Sim) Insert(ctx context.Context, req *ledger.OrderRequest, requestID int64) error {
	s.mu.Lock()
	if s.status != StatusWorking {
		s.mu.Unlock()
		return errors.New("sim: not working")
	}
	h := s.handler
	latency := s.latency
	copied := *req
	s.pending[req.OrderID] = &copied
	s.mu.Unlock()

	go func() {
		if latency > 0 {
			timer := time.NewTimer(latency)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
		}

		s.mu.Lock()
		order, ok := s.pending[copied.OrderID]
		if !ok || s.filled[copied.OrderID] {
			s.mu.Unlock()
			return
		}
		s.filled[copied.OrderID] = true
		delete(s.pending, copied.OrderID)
		s.mu.Unlock()

		h.OnOrderResponse(&ledger.OrderResponse{
			OrderID:      order.OrderID,
			TraderID:     order.TraderID,
			InstrumentID: order.InstrumentID,
			Offset:       order.Offset,
			Direction:    order.Direction,
			Price:        order.Price,
			Volume:       order.Volume,
			TradingDay:   order.TradingDay,
			Time:         time.Now(),
		})
	}()
	return nil
}

// Cancel 撤销仍未成交的委托
func (s *Sim) Cancel(ctx context.Context, req *ledger.CancelRequest, requestID int64) error {
	s.mu.Lock()
	if s.status != StatusWorking {
		s.mu.Unlock()
		return errors.New("sim: not working")
	}
	h := s.handler
	order, ok := s.pending[req.OrderID]
	if ok {
		delete(s.pending, req.OrderID)
	}
	s.mu.Unlock()

	if !ok {
		// 已成交或未知：柜台语义是无可撤，静默
		return nil
	}

	go h.OnCancelResponse(&ledger.CancelResponse{
		OrderID:      order.OrderID,
		InstrumentID: order.InstrumentID,
		Status:       1,
		TradingDay:   order.TradingDay,
		Time:         time.Now(),
	})
	return nil
}
