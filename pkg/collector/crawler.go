package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/stan.go"

	"NewsRadar/pkg/model"
)

// CrawlerMessage 爬虫推送到 NATS Streaming 的新闻
type CrawlerMessage struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Link     string `json:"link"`
	Source   string `json:"source"`
	Region   string `json:"region"`
	Category string `json:"category"`
	Date     string `json:"date"` // 2006-01-02 15:04:05 或 RFC3339
}

// CrawlerSource 订阅爬虫频道并缓存新闻，Fetch 时按时间取出
type CrawlerSource struct {
	conn    stan.Conn
	subject string
	sub     stan.Subscription
	logger  *slog.Logger

	mu     sync.Mutex
	buffer map[string]model.RawNews // URL -> 新闻
	maxAge time.Duration
}

// NewCrawlerSource 连接 NATS Streaming，subject 为空时使用 news.crawler
func NewCrawlerSource(natsURL, clusterID, clientID, subject string, logger *slog.Logger) (*CrawlerSource, error) {
	conn, err := stan.Connect(clusterID, clientID, stan.NatsURL(natsURL))
	if err != nil {
		return nil, fmt.Errorf("连接NATS失败: %w", err)
	}
	if subject == "" {
		subject = "news.crawler"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CrawlerSource{
		conn:    conn,
		subject: subject,
		logger:  logger.With("component", "crawler_source"),
		buffer:  make(map[string]model.RawNews),
		maxAge:  72 * time.Hour,
	}, nil
}

// Start 从最近一条消息开始订阅
func (c *CrawlerSource) Start() error {
	sub, err := c.conn.Subscribe(c.subject, func(msg *stan.Msg) {
		c.HandleMessage(msg.Data)
	}, stan.StartWithLastReceived())
	if err != nil {
		return fmt.Errorf("订阅新闻主题失败: %w", err)
	}
	c.sub = sub
	c.logger.Info("爬虫新闻订阅已启动", "subject", c.subject)
	return nil
}

func (c *CrawlerSource) Name() string { return "crawler" }

// HandleMessage 解析一条爬虫消息并放入缓存
func (c *CrawlerSource) HandleMessage(data []byte) {
	var msg CrawlerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("解析爬虫消息失败", "error", err)
		return
	}
	item, ok := msg.toRaw()
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.buffer[item.URL]; !exists {
		c.buffer[item.URL] = item
	}
}

func (m CrawlerMessage) toRaw() (model.RawNews, bool) {
	title := strings.TrimSpace(m.Title)
	link := strings.TrimSpace(m.Link)
	if title == "" || link == "" {
		return model.RawNews{}, false
	}
	published := parseFeedTime(m.Date)
	if published.IsZero() {
		published = time.Now().UTC()
	}
	source := m.Source
	if source == "" {
		source = "Crawler"
	}
	region := m.Region
	if region == "" {
		region = InferRegion(source)
	}
	return model.RawNews{
		Title:       title,
		URL:         link,
		Source:      source,
		Region:      region,
		Category:    model.NormalizeCategory(m.Category),
		PublishedAt: published,
		Summary:     strings.TrimSpace(m.Abstract),
	}, true
}

// Fetch 返回 since 之后的缓存新闻，同时清理过期条目
func (c *CrawlerSource) Fetch(ctx context.Context, since time.Time) ([]model.RawNews, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-c.maxAge)
	var out []model.RawNews
	for url, item := range c.buffer {
		if item.PublishedAt.Before(cutoff) {
			delete(c.buffer, url)
			continue
		}
		if !item.PublishedAt.Before(since) {
			out = append(out, item)
		}
	}
	return out, nil
}

// Stop 取消订阅并关闭连接
func (c *CrawlerSource) Stop() error {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
