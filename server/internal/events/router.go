package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"blog-posts/server/internal/model"
)

const changeObserverHandler = "post-change-observer"

// NewChangeRouter 构建消费变更主题的 watermill router，每条变更交给 observe 处理。
// 无法解析的消息只记录日志并 Ack，避免 gochannel 反复重投。
// 注意：router 关闭时会一并关闭 bus 的订阅端。
func NewChangeRouter(bus *Bus, logger watermill.LoggerAdapter, observe func(model.PostChange)) (*message.Router, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, err
	}
	router.AddMiddleware(middleware.Recoverer)

	router.AddNoPublisherHandler(
		changeObserverHandler,
		TopicPostChanges,
		bus.Subscriber(),
		func(msg *message.Message) error {
			change, err := DecodeChange(msg)
			if err != nil {
				logger.Error("Dropping undecodable change", err, watermill.LogFields{"message_uuid": msg.UUID})
				return nil
			}
			logger.Debug("Post change observed", watermill.LogFields{
				"seq":     change.Seq,
				"type":    string(change.Type),
				"post_id": change.Post.ID,
			})
			observe(change)
			return nil
		},
	)
	return router, nil
}
