// Package idmap 逻辑委托号与通道委托号的映射层。
// 一个逻辑委托可能拆成多个通道子委托（今仓/昨仓分单），每个子委托
// 维护一个剩余手数倒数，随成交回报递减。
package idmap

import (
	"errors"
	"sync"
)

// ErrUnknownOrderID 表示回报引用了引擎从未签发过的委托号，
// 对该回报而言是致命错误。
var ErrUnknownOrderID = errors.New("unknown order id")

type entry struct {
	sourceID  int64
	remaining int64
}

// Translator 委托号映射表，每个通道独享一个实例，不跨通道共享
type Translator struct {
	mu       sync.Mutex
	nextID   func() int64
	backends map[int64]*entry  // 通道委托号 -> 来源与剩余手数
	sources  map[int64][]int64 // 逻辑委托号 -> 通道委托号列表
}

// New 创建映射表，nextID 提供通道委托号
func New(nextID func() int64) *Translator {
	return &Translator{
		nextID:   nextID,
		backends: make(map[int64]*entry),
		sources:  make(map[int64][]int64),
	}
}

// Allocate 为逻辑委托分配一个新的通道委托号，倒数初始化为 volume
func (t *Translator) Allocate(sourceID, volume int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	backendID := t.nextID()
	t.backends[backendID] = &entry{sourceID: sourceID, remaining: volume}
	t.sources[sourceID] = append(t.sources[sourceID], backendID)
	return backendID
}

// CountDown 按成交手数递减倒数。倒数已为零再收到成交必须快速失败，
// 绝不允许变成负数。
func (t *Translator) CountDown(backendID, filled int64) (remaining int64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.backends[backendID]
	if !ok {
		return 0, ErrUnknownOrderID
	}
	if filled > e.remaining {
		return e.remaining, errors.New("fill exceeds remaining countdown")
	}
	e.remaining -= filled
	return e.remaining, nil
}

// Restore 把未能入账的手数加回倒数。成交或撤单回报入账失败回滚时
// 调用，保证倒数与账本同进退。
func (t *Translator) Restore(backendID, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.backends[backendID]; ok {
		e.remaining += n
	}
}

// Remaining 查询剩余手数
func (t *Translator) Remaining(backendID int64) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.backends[backendID]
	if !ok {
		return 0, ErrUnknownOrderID
	}
	return e.remaining, nil
}

// Zero 清空剩余手数并返回清空前的值，撤单回报用它回收未成交部分
func (t *Translator) Zero(backendID int64) (recovered int64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.backends[backendID]
	if !ok {
		return 0, ErrUnknownOrderID
	}
	recovered = e.remaining
	e.remaining = 0
	return recovered, nil
}

// SourceID 由通道委托号反查逻辑委托号
func (t *Translator) SourceID(backendID int64) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.backends[backendID]
	if !ok {
		return 0, ErrUnknownOrderID
	}
	return e.sourceID, nil
}

// DestinationIDs 逻辑委托名下仍有剩余手数的通道委托号，撤单按此扇出
func (t *Translator) DestinationIDs(sourceID int64) ([]int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids, ok := t.sources[sourceID]
	if !ok {
		return nil, ErrUnknownOrderID
	}
	var open []int64
	for _, id := range ids {
		if e := t.backends[id]; e != nil && e.remaining > 0 {
			open = append(open, id)
		}
	}
	return open, nil
}

// Clear 清空全部映射，每个新交易日开始时调用以约束内存
func (t *Translator) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.backends = make(map[int64]*entry)
	t.sources = make(map[int64][]int64)
}
