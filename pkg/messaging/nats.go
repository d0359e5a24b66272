// pkg/messaging/nats.go
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSClient NATS JetStream 事件发布
type NATSClient struct {
	conn      *nats.Conn
	jetStream jetstream.JetStream
	logger    *slog.Logger
}

var _ Publisher = (*NATSClient)(nil)

// NewNATSClient 连接 NATS 并确保事件 Stream 存在
func NewNATSClient(ctx context.Context, natsURL string, logger *slog.Logger) (*NATSClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "messaging")

	nc, err := nats.Connect(natsURL,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // 无限重连
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS连接断开", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS重新连接成功")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("连接NATS失败: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("创建JetStream失败: %w", err)
	}

	client := &NATSClient{conn: nc, jetStream: js, logger: logger}
	client.setupStreams(ctx)
	return client, nil
}

// setupStreams 失败只记录日志，发布时再报错
func (c *NATSClient) setupStreams(ctx context.Context) {
	streams := []jetstream.StreamConfig{
		{
			Name:        "DIGEST_EVENTS",
			Subjects:    []string{"digest.*"},
			Description: "每日批处理事件",
			Retention:   jetstream.LimitsPolicy,
			MaxMsgs:     10000,
			MaxAge:      30 * 24 * time.Hour,
		},
		{
			Name:        "CURATED_NEWS",
			Subjects:    []string{"news.curated"},
			Description: "精选新闻事件",
			Retention:   jetstream.LimitsPolicy,
			MaxMsgs:     100000,
			MaxBytes:    100 * 1024 * 1024, // 100MB
			MaxAge:      7 * 24 * time.Hour,
		},
	}

	for _, cfg := range streams {
		if _, err := c.jetStream.CreateOrUpdateStream(ctx, cfg); err != nil {
			c.logger.Warn("创建/更新Stream失败", "stream", cfg.Name, "error", err)
		}
	}
}

// Publish 发布消息，data 为 []byte 或 string 时原样发送，其他类型序列化为 JSON
func (c *NATSClient) Publish(ctx context.Context, subject string, data any) error {
	payload, err := encode(data)
	if err != nil {
		return err
	}
	if _, err := c.jetStream.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("发布消息到 %s 失败: %w", subject, err)
	}
	c.logger.Debug("发布消息", "subject", subject, "bytes", len(payload))
	return nil
}

func encode(data any) ([]byte, error) {
	switch v := data.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("序列化数据失败: %w", err)
		}
		return payload, nil
	}
}

// IsConnected 检查连接状态
func (c *NATSClient) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

func (c *NATSClient) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}
