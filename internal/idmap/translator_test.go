package idmap

import (
	"testing"
)

func newTestTranslator() *Translator {
	var next int64 = 1000
	return New(func() int64 {
		next++
		return next
	})
}

func TestAllocateAndSourceID(t *testing.T) {
	tr := newTestTranslator()
	backendID := tr.Allocate(100, 3)

	sourceID, err := tr.SourceID(backendID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sourceID != 100 {
		t.Fatalf("source id = %d, want 100", sourceID)
	}
	remaining, err := tr.Remaining(backendID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("remaining = %d, want 3", remaining)
	}
}

func TestCountDown(t *testing.T) {
	tr := newTestTranslator()
	backendID := tr.Allocate(100, 3)

	remaining, err := tr.CountDown(backendID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("remaining = %d, want 1", remaining)
	}
	remaining, err = tr.CountDown(backendID, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}
}

func TestCountDownPastZeroFailsFast(t *testing.T) {
	tr := newTestTranslator()
	backendID := tr.Allocate(100, 1)

	if _, err := tr.CountDown(backendID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 倒数到零后再来成交必须失败，剩余手数不许变负
	if _, err := tr.CountDown(backendID, 1); err == nil {
		t.Fatal("expected error on fill past zero")
	}
	remaining, _ := tr.Remaining(backendID)
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0 after rejected fill", remaining)
	}
}

func TestRestoreAfterFailedCountDown(t *testing.T) {
	tr := newTestTranslator()
	backendID := tr.Allocate(100, 3)
	if _, err := tr.CountDown(backendID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 入账失败回滚时把手数加回去，倒数与账本保持一致
	tr.Restore(backendID, 2)
	remaining, err := tr.Remaining(backendID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("remaining = %d, want 3 after restore", remaining)
	}
}

func TestRestoreUnknownBackendIsNoop(t *testing.T) {
	tr := newTestTranslator()
	tr.Restore(9999, 2)

	if _, err := tr.Remaining(9999); err != ErrUnknownOrderID {
		t.Fatalf("expected ErrUnknownOrderID, got %v", err)
	}
}

func TestCountDownUnknownBackend(t *testing.T) {
	tr := newTestTranslator()
	if _, err := tr.CountDown(9999, 1); err != ErrUnknownOrderID {
		t.Fatalf("expected ErrUnknownOrderID, got %v", err)
	}
}

func TestZeroRecoversRemaining(t *testing.T) {
	tr := newTestTranslator()
	backendID := tr.Allocate(100, 3)
	if _, err := tr.CountDown(backendID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recovered, err := tr.Zero(backendID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recovered != 2 {
		t.Fatalf("recovered = %d, want 2", recovered)
	}
	remaining, _ := tr.Remaining(backendID)
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0 after zero", remaining)
	}
}

func TestDestinationIDsSkipsExhausted(t *testing.T) {
	tr := newTestTranslator()
	first := tr.Allocate(100, 2)
	second := tr.Allocate(100, 1)

	ids, err := tr.DestinationIDs(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 open backend ids, got %v", ids)
	}

	if _, err := tr.CountDown(second, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, err = tr.DestinationIDs(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != first {
		t.Fatalf("expected only backend %d open, got %v", first, ids)
	}
}

func TestDestinationIDsUnknownSource(t *testing.T) {
	tr := newTestTranslator()
	if _, err := tr.DestinationIDs(42); err != ErrUnknownOrderID {
		t.Fatalf("expected ErrUnknownOrderID, got %v", err)
	}
}

func TestClear(t *testing.T) {
	tr := newTestTranslator()
	backendID := tr.Allocate(100, 2)
	tr.Clear()

	if _, err := tr.SourceID(backendID); err != ErrUnknownOrderID {
		t.Fatalf("expected ErrUnknownOrderID after clear, got %v", err)
	}
	if _, err := tr.DestinationIDs(100); err != ErrUnknownOrderID {
		t.Fatalf("expected ErrUnknownOrderID after clear, got %v", err)
	}
}
