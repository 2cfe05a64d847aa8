package events

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
)

// TopicSessionExpired carries "the credential is no longer usable" notices.
const TopicSessionExpired = "session.expired"

const (
	metaKeyReason      = "reason"
	metaKeyFingerprint = "credential"
)

// Notice says a credential stopped being usable.
type Notice struct {
	Reason string
	// Fingerprint identifies the credential without carrying it. Empty when
	// the publisher did not know which credential was involved.
	Fingerprint string
}

// Matches reports whether the notice is about token. A notice without a
// fingerprint matches any credential.
func (n Notice) Matches(token string) bool {
	return n.Fingerprint == "" || n.Fingerprint == Fingerprint(token)
}

// Fingerprint returns a stable digest of token, safe to log and publish.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16])
}

// Bus is an in-process pub/sub used to tell the session layer that the
// request pipeline found the credential expired or rejected.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *zap.Logger
}

// NewBus creates an in-memory bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}),
		logger: logger,
	}
}

// NotifyExpired publishes an expiration notice about token. Delivery is
// asynchronous and notices sent with no subscriber are dropped.
func (b *Bus) NotifyExpired(ctx context.Context, token, reason string) {
	msg := message.NewMessage(watermill.NewUUID(), nil)
	msg.Metadata.Set(metaKeyReason, reason)
	msg.Metadata.Set(metaKeyFingerprint, Fingerprint(token))
	if err := b.pubsub.Publish(TopicSessionExpired, msg); err != nil {
		b.logger.Warn("publish expiration notice", zap.Error(err))
	}
}

// OnExpired calls fn for every notice until ctx is done. It returns as soon
// as the subscription is active.
func (b *Bus) OnExpired(ctx context.Context, fn func(Notice)) error {
	messages, err := b.pubsub.Subscribe(ctx, TopicSessionExpired)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicSessionExpired, err)
	}

	go func() {
		for msg := range messages {
			fn(Notice{
				Reason:      msg.Metadata.Get(metaKeyReason),
				Fingerprint: msg.Metadata.Get(metaKeyFingerprint),
			})
			msg.Ack()
		}
		b.logger.Debug("expiration subscription ended")
	}()
	return nil
}

// Close shuts the bus down and ends all subscriptions.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
