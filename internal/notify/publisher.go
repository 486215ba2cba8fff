package notify

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "taskhub:"

// Publisher delivers an event to its subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Channels lists the pub/sub channels e goes to.
func Channels(e Event) []string {
	var out []string
	if e.Recipient != "" {
		out = append(out, channelPrefix+"user:"+e.Recipient)
	}
	if e.Team != "" {
		out = append(out, channelPrefix+"team:"+e.Team)
	}
	if e.AdminBroadcast {
		out = append(out, channelPrefix+"admins")
	}
	return out
}

// RedisPublisher fans events out over Redis pub/sub.
type RedisPublisher struct {
	client redis.UniversalClient
}

func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	var errs []error
	for _, ch := range Channels(e) {
		if err := p.client.Publish(ctx, ch, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

// NopPublisher is used when no Redis is configured.
var NopPublisher Publisher = nopPublisher{}
