package changefeed

import (
	"context"
	"encoding/json"

	redislib "github.com/redis/go-redis/v9"

	"github.com/gatsis/gatsishub-backend/pkg/config"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
)

type feedPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

type feedSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) (*redislib.PubSub, error)
}

// Publisher pushes ChangeEvents onto the shared Redis channel. The worker
// uses it after persisting a consumed domain event.
type Publisher struct {
	store   feedPublisher
	channel string
}

// NewPublisher wires a Redis-backed changefeed publisher.
func NewPublisher(store feedPublisher, cfg config.ChangefeedConfig) (*Publisher, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "redis publisher required")
	}
	if cfg.Channel == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "changefeed channel required")
	}
	return &Publisher{store: store, channel: cfg.Channel}, nil
}

func (p *Publisher) Publish(ctx context.Context, event ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode change event")
	}
	if err := p.store.Publish(ctx, p.channel, payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish change event")
	}
	return nil
}

// Bridge subscribes to the Redis channel and forwards each decoded event
// into the hub. It runs until the context is cancelled.
type Bridge struct {
	store   feedSubscriber
	hub     *Hub
	channel string
	logg    *logger.Logger
}

// NewBridge wires the Redis-to-hub pump.
func NewBridge(store feedSubscriber, hub *Hub, cfg config.ChangefeedConfig, logg *logger.Logger) (*Bridge, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "redis subscriber required")
	}
	if hub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "hub required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if cfg.Channel == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "changefeed channel required")
	}
	return &Bridge{store: store, hub: hub, channel: cfg.Channel, logg: logg}, nil
}

// Run blocks, pumping messages until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	sub, err := b.store.Subscribe(ctx, b.channel)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe changefeed")
	}
	defer func() { _ = sub.Close() }()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logg.Warn(ctx, "changefeed.bridge.bad_payload")
				continue
			}
			b.hub.Broadcast(ctx, event)
		}
	}
}
