package backtest

import (
	"context"
	"encoding/json"
	"log"

	"forecast-backtest/cache"
	"forecast-backtest/realtime"
)

// eventsChannel carries progress events between instances via Redis pub/sub.
const eventsChannel = "forecast:events"

// EventPublisher routes events to connected clients. With Redis available
// events go through pub/sub and come back via the bridge, so every instance
// behind the load balancer delivers them; without Redis, events hit the
// local broker directly.
type EventPublisher struct {
	broker *realtime.Broker
	redis  *cache.RedisClient
}

// NewEventPublisher creates a publisher over the broker, with an optional
// Redis fan-out.
func NewEventPublisher(broker *realtime.Broker, redis *cache.RedisClient) *EventPublisher {
	return &EventPublisher{broker: broker, redis: redis}
}

// Broadcast delivers one event to all connected clients.
func (p *EventPublisher) Broadcast(event string, payload interface{}) {
	if p.redis != nil {
		msg := map[string]interface{}{"event": event, "payload": payload}
		if err := p.redis.Publish(context.Background(), eventsChannel, msg); err == nil {
			return
		}
		// Redis down: fall through to local delivery
	}
	p.broker.Broadcast(event, payload)
}

// RunBridge relays Redis pub/sub messages into the local broker until the
// context is canceled. Started only when Redis is configured.
func (p *EventPublisher) RunBridge(ctx context.Context) {
	sub := p.redis.Subscribe(ctx, eventsChannel)
	if sub == nil {
		return
	}
	defer sub.Close()

	log.Println("📡 Event bridge subscribed to Redis")
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !json.Valid([]byte(msg.Payload)) {
				log.Printf("⚠️  Dropping malformed event payload")
				continue
			}
			p.broker.BroadcastRaw([]byte(msg.Payload))
		}
	}
}
