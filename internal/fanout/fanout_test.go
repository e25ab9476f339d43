package fanout

import (
	"errors"
	"sync"
	"testing"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	errs   []error
}

func (r *recorder) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) recordError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func newRecorderHub() *Hub[*recorder] {
	return New(func(h *recorder, err error) {
		h.recordError(err)
	})
}

func TestPublishDeliversToAll(t *testing.T) {
	hub := newRecorderHub()
	first := &recorder{}
	second := &recorder{}
	hub.Register(first)
	hub.Register(second)

	if hub.Len() != 2 {
		t.Fatalf("len = %d, want 2", hub.Len())
	}
	hub.Publish("trade", func(h *recorder) { h.record("trade") })

	for i, r := range []*recorder{first, second} {
		if len(r.events) != 1 || r.events[0] != "trade" {
			t.Fatalf("handler %d events = %v, want [trade]", i, r.events)
		}
	}
}

func TestPublishNoHandlers(t *testing.T) {
	hub := newRecorderHub()
	// 没有观察者时投递是空操作
	hub.Publish("trade", func(h *recorder) { h.record("trade") })
}

func TestPanicIsolatedAndRedelivered(t *testing.T) {
	hub := newRecorderHub()
	healthy := &recorder{}
	hub.Register(healthy)
	faulty := &recorder{}
	hub.Register(faulty)

	hub.Publish("trade", func(h *recorder) {
		if h == faulty {
			panic("boom")
		}
		h.record("trade")
	})

	// 健康观察者正常收到事件
	if len(healthy.events) != 1 {
		t.Fatalf("healthy events = %v, want one trade", healthy.events)
	}
	// 异常经 UserCodeError 重投递给全部观察者，包括肇事者
	if len(healthy.errs) != 1 || len(faulty.errs) != 1 {
		t.Fatalf("expected one redelivered error each, got %d and %d", len(healthy.errs), len(faulty.errs))
	}
	var uce *UserCodeError
	if !errors.As(healthy.errs[0], &uce) {
		t.Fatalf("expected UserCodeError, got %T", healthy.errs[0])
	}
	if uce.Event != "trade" {
		t.Fatalf("event = %s, want trade", uce.Event)
	}
}

func TestRedeliveryPanicDiscarded(t *testing.T) {
	hub := New(func(h *recorder, err error) {
		panic("exception handler itself broken")
	})
	hub.Register(&recorder{})

	// 重投递阶段的 panic 被丢弃，Publish 正常返回
	hub.Publish("trade", func(h *recorder) { panic("boom") })
}

func TestPublishExactlyOnceUnderConcurrency(t *testing.T) {
	hub := newRecorderHub()
	r := &recorder{}
	hub.Register(r)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Publish("tick", func(h *recorder) { h.record("tick") })
		}()
	}
	wg.Wait()

	if len(r.events) != 50 {
		t.Fatalf("events = %d, want 50", len(r.events))
	}
}
