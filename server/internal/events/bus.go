// Package events 在进程内分发帖子变更。
//
// Bus 基于 watermill 的 gochannel 实现，Publish 会等待所有订阅者 Ack，
// 因此同一订阅者收到的变更顺序与发布顺序一致。订阅者应在收到消息后尽快 Ack，
// 把耗时工作（例如网络写出）放到自己的缓冲里处理。
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"blog-posts/server/internal/model"
)

// TopicPostChanges 承载所有 post_created / post_deleted 变更。
const TopicPostChanges = "posts.changes"

const changeTypeMetadataKey = "change_type"

type Bus struct {
	pubSub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

func NewBus(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			BlockPublishUntilSubscriberAck: true,
		}, logger),
		logger: logger,
	}
}

// Publish 以 JSON 发布一条变更，消息 UUID 复用变更的 EventID。
func (b *Bus) Publish(change model.PostChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	uuid := change.EventID
	if uuid == "" {
		uuid = watermill.NewUUID()
	}
	msg := message.NewMessage(uuid, payload)
	msg.Metadata.Set(changeTypeMetadataKey, string(change.Type))

	if err := b.pubSub.Publish(TopicPostChanges, msg); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Subscribe 订阅变更主题，ctx 结束或 Bus 关闭时返回的 channel 会被关闭。
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, TopicPostChanges)
}

// Subscriber 暴露底层订阅端，供 watermill router 使用。
func (b *Bus) Subscriber() message.Subscriber {
	return b.pubSub
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}

// DecodeChange 从消息中解析变更。
func DecodeChange(msg *message.Message) (model.PostChange, error) {
	var change model.PostChange
	if err := json.Unmarshal(msg.Payload, &change); err != nil {
		return model.PostChange{}, fmt.Errorf("decode change %s: %w", msg.UUID, err)
	}
	return change, nil
}
