package infra

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

// StorageChangedTopic carries one message per mutated storage key.
const StorageChangedTopic = "storage.changed"

// ChangeBus fans storage changes out to every subscribed context.
// It implements domain.ChangePublisher and domain.ChangeFeed on a watermill
// in-process channel; delivery order between messages is not guaranteed, so
// observers must re-read the store rather than apply deltas.
type ChangeBus struct {
	pubSub *gochannel.GoChannel
	logger *zap.Logger
}

// NewChangeBus creates an in-process change bus.
func NewChangeBus(logger *zap.Logger) *ChangeBus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		NewWatermillLogger(logger),
	)
	return &ChangeBus{pubSub: pubSub, logger: logger}
}

// Publish sends each change as its own message.
func (b *ChangeBus) Publish(ctx context.Context, changes ...domain.StorageChange) error {
	for _, change := range changes {
		payload, err := json.Marshal(change)
		if err != nil {
			return fmt.Errorf("failed to encode storage change: %w", err)
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.SetContext(ctx)
		if err := b.pubSub.Publish(StorageChangedTopic, msg); err != nil {
			return fmt.Errorf("failed to publish storage change: %w", err)
		}
	}
	return nil
}

// Subscribe returns a channel of changes that closes when ctx is done.
func (b *ChangeBus) Subscribe(ctx context.Context) (<-chan domain.StorageChange, error) {
	messages, err := b.pubSub.Subscribe(ctx, StorageChangedTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to storage changes: %w", err)
	}

	out := make(chan domain.StorageChange, 16)
	go func() {
		defer close(out)
		for msg := range messages {
			var change domain.StorageChange
			err := json.Unmarshal(msg.Payload, &change)
			// Ack undecodable messages too so gochannel does not redeliver them.
			msg.Ack()
			if err != nil {
				b.logger.Warn("dropping malformed storage change", zap.Error(err))
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down and closes all subscriber channels.
func (b *ChangeBus) Close() error {
	return b.pubSub.Close()
}

// Ensure ChangeBus implements both sides of the feed.
var _ domain.ChangePublisher = (*ChangeBus)(nil)
var _ domain.ChangeFeed = (*ChangeBus)(nil)

// watermillLogger adapts zap to watermill.LoggerAdapter.
type watermillLogger struct {
	logger *zap.Logger
}

// NewWatermillLogger routes watermill's internal logs through zap.
func NewWatermillLogger(logger *zap.Logger) watermill.LoggerAdapter {
	return &watermillLogger{logger: logger.Named("watermill")}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.logger.Info(msg, zapFields(fields)...)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, zapFields(fields)...)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, zapFields(fields)...)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{logger: l.logger.With(zapFields(fields)...)}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
