package events

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/open9am/traderengine/internal/engine"
	"github.com/open9am/traderengine/internal/ledger"
	"github.com/open9am/traderengine/pkg/logger"
)

func newTestPublisher(t *testing.T) (*Publisher, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	p := NewPublisher(client, "", logger.New("events-test", io.Discard))
	return p, client, func() {
		client.Close()
		mr.Close()
	}
}

func TestPublishTrade(t *testing.T) {
	p, client, closeAll := newTestPublisher(t)
	defer closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sub := client.Subscribe(ctx, "trader:events")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	p.OnTrade(&ledger.OrderResponse{
		ResponseID:   1,
		OrderID:      100,
		TraderID:     "sim-01",
		InstrumentID: "c2511",
		Price:        2500,
		Volume:       1,
	})

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["event"].(string) != "trade" {
		t.Fatalf("event = %v, want trade", payload["event"])
	}
	if payload["event_id"].(string) == "" {
		t.Fatal("expected non-empty event id")
	}
	data := payload["data"].(map[string]interface{})
	if data["OrderID"].(float64) != 100 {
		t.Fatalf("order id = %v, want 100", data["OrderID"])
	}
}

func TestPublishEngineStatus(t *testing.T) {
	p, client, closeAll := newTestPublisher(t)
	defer closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sub := client.Subscribe(ctx, "trader:events")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	p.OnStatusChange(engine.StatusWorking)

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["event"].(string) != "engine_status" {
		t.Fatalf("event = %v, want engine_status", payload["event"])
	}
	data := payload["data"].(map[string]interface{})
	if data["status"].(string) != "WORKING" {
		t.Fatalf("status = %v, want WORKING", data["status"])
	}
}

func TestPublisherIsEngineHandler(t *testing.T) {
	var _ engine.Handler = (*Publisher)(nil)
}
