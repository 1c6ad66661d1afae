package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// WatermillBridge implements Publisher and Subscriber on top of
// watermill's in-memory GoChannel transport.
type WatermillBridge struct {
	pub message.Publisher
	sub message.Subscriber
}

// NewWatermillBridge initializes an in-process pub/sub bus.
func NewWatermillBridge() *WatermillBridge {
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)
	return &WatermillBridge{pub: goChannel, sub: goChannel}
}

// Publish implements the Publisher interface.
func (wb *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	wmMsg := message.NewMessage(watermill.NewUUID(), msg.Payload)
	for k, v := range msg.Metadata {
		wmMsg.Metadata.Set(k, v)
	}
	return wb.pub.Publish(msg.Topic, wmMsg)
}

// Subscribe implements the Subscriber interface. Message processing runs
// on a background goroutine; Subscribe itself returns once the
// subscription is live.
func (wb *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := wb.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wmMsg := range messages {
			msg := Message{
				Topic:    topic,
				Payload:  wmMsg.Payload,
				Metadata: wmMsg.Metadata,
			}
			if err := handler(ctx, msg); err != nil {
				slog.Error("Failed to handle bus message",
					"topic", topic, "msg_id", wmMsg.UUID, "error", err)
				wmMsg.Nack()
			} else {
				wmMsg.Ack()
			}
		}
		slog.Debug("Subscription message loop ended", "topic", topic)
	}()

	return nil
}

// Close shuts down the bus and ends all subscription loops.
func (wb *WatermillBridge) Close() error {
	return wb.sub.Close()
}
