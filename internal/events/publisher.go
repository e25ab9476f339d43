// Package events 把引擎回报以 JSON 事件推到 Redis 频道，
// 供前端网关或风控订阅。发布失败只记日志，不反压引擎。
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/open9am/traderengine/internal/algo"
	"github.com/open9am/traderengine/internal/connector"
	"github.com/open9am/traderengine/internal/engine"
	"github.com/open9am/traderengine/internal/ledger"
	"github.com/open9am/traderengine/pkg/logger"
)

const defaultChannel = "trader:events"

// Publisher 引擎事件发布者，注册为引擎观察者
type Publisher struct {
	engine.NopHandler

	client  *redis.Client
	channel string
	log     *logger.Logger
}

// NewPublisher 创建发布者，channel 为空时用默认频道
func NewPublisher(client *redis.Client, channel string, log *logger.Logger) *Publisher {
	if channel == "" {
		channel = defaultChannel
	}
	return &Publisher{client: client, channel: channel, log: log}
}

type envelope struct {
	EventID string      `json:"event_id"`
	Event   string      `json:"event"`
	Time    int64       `json:"time_ms"`
	Data    interface{} `json:"data"`
}

func (p *Publisher) publish(event string, data interface{}) {
	raw, err := json.Marshal(envelope{
		EventID: uuid.NewString(),
		Event:   event,
		Time:    time.Now().UnixMilli(),
		Data:    data,
	})
	if err != nil {
		p.log.WithError(err).Error("marshal event")
		return
	}
	if err := p.client.Publish(context.Background(), p.channel, raw).Err(); err != nil {
		p.log.WithError(err).WithField("event", event).Error("publish event")
	}
}

func (p *Publisher) OnTrade(resp *ledger.OrderResponse) {
	p.publish("trade", resp)
}

func (p *Publisher) OnResponse(order *algo.Order) {
	p.publish("order", order)
}

func (p *Publisher) OnCancel(cancel *ledger.CancelResponse) {
	p.publish("cancel", cancel)
}

func (p *Publisher) OnStatusChange(status engine.Status) {
	p.publish("engine_status", map[string]string{"status": status.String()})
}

func (p *Publisher) OnTraderStatusChange(traderID string, status connector.Status) {
	p.publish("trader_status", map[string]interface{}{
		"trader_id": traderID,
		"status":    int(status),
	})
}

func (p *Publisher) OnErasingContracts(contracts []*ledger.Contract) {
	p.publish("erasing_contracts", contracts)
}

func (p *Publisher) OnErasingAccount(account *ledger.Account) {
	p.publish("erasing_account", account)
}
