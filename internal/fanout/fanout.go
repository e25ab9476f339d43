// Package fanout 向注册的观察者并发投递事件，并隔离单个观察者的故障。
package fanout

import (
	"fmt"
	"sync"
)

// UserCodeError 包装观察者代码抛出的 panic。
// 观察者故障从不打断引擎自身的状态迁移。
type UserCodeError struct {
	Event     string
	Recovered interface{}
}

func (e *UserCodeError) Error() string {
	return fmt.Sprintf("user code panic during %s: %v", e.Event, e.Recovered)
}

// Hub 观察者集合。H 为观察者接口类型，由调用方给定。
// 没有观察者时投递是静默空操作，不是错误。
type Hub[H any] struct {
	mu          sync.RWMutex
	handlers    []H
	onException func(h H, err error)
}

// New 创建 Hub。onException 指明如何把异常事件交给单个观察者，
// 用于故障重投递。
func New[H any](onException func(h H, err error)) *Hub[H] {
	return &Hub[H]{onException: onException}
}

// Register 注册观察者
func (hub *Hub[H]) Register(h H) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.handlers = append(hub.handlers, h)
}

// Len 当前观察者数量
func (hub *Hub[H]) Len() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.handlers)
}

// Publish 把一个事件投递给全部观察者：每个观察者一个 goroutine，
// 全部返回后才结束，保证一个事件恰好投递一轮。观察者 panic 被捕获、
// 包装为 UserCodeError 后通过异常通道重投递给所有观察者（含肇事者）；
// 重投递阶段的再次故障被丢弃，避免无限递归。
func (hub *Hub[H]) Publish(event string, deliver func(h H)) {
	hub.mu.RLock()
	handlers := make([]H, len(hub.handlers))
	copy(handlers, hub.handlers)
	hub.mu.RUnlock()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []error

	for _, h := range handlers {
		wg.Add(1)
		go func(h H) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					failures = append(failures, &UserCodeError{Event: event, Recovered: r})
					mu.Unlock()
				}
			}()
			deliver(h)
		}(h)
	}
	wg.Wait()

	for _, err := range failures {
		hub.redeliver(handlers, err)
	}
}

func (hub *Hub[H]) redeliver(handlers []H, err error) {
	if hub.onException == nil {
		return
	}
	var wg sync.WaitGroup
	for _, h := range handlers {
		wg.Add(1)
		go func(h H) {
			defer wg.Done()
			// 异常通道自身的故障只能丢弃
			defer func() { _ = recover() }()
			hub.onException(h, err)
		}(h)
	}
	wg.Wait()
}
