package redisrepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventsPubSub fans out "availability changed" notes between instances so
// each one can drop its cached catalog views.
type EventsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewEventsPubSub(rdb *redis.Client) *EventsPubSub {
	return &EventsPubSub{
		rdb:     rdb,
		channel: ChannelEventsChanged(),
	}
}

type EventChanged struct {
	Type     string `json:"type"`
	ActionID int64  `json:"action_id"`
	EventID  int64  `json:"event_id"`
	Reason   string `json:"reason"`
	TsUnix   int64  `json:"ts_unix"`
}

func (p *EventsPubSub) PublishEventChanged(ctx context.Context, actionID, eventID int64, reason string) error {
	msg := EventChanged{
		Type:     "availability_changed",
		ActionID: actionID,
		EventID:  eventID,
		Reason:   reason,
		TsUnix:   time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe blocks until ctx is done, calling handler for every
// well-formed message.
func (p *EventsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, ev EventChanged)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev EventChanged
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.ActionID != 0 {
				handler(ctx, ev)
			}
		}
	}
}
