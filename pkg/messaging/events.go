package messaging

import (
	"context"
	"encoding/json"
	"sync"
)

const (
	SubjectDigestCompleted = "digest.completed"
	SubjectDigestFailed    = "digest.failed"
	SubjectNewsCurated     = "news.curated"
)

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
}

// DigestEvent 批处理结束事件
type DigestEvent struct {
	DigestDate        string  `json:"digest_date"`
	BatchID           string  `json:"batch_id"`
	Status            string  `json:"status"`
	TotalRaw          int     `json:"total_raw"`
	TotalMerged       int     `json:"total_merged"`
	TotalScreened     int     `json:"total_screened"`
	TotalCurated      int     `json:"total_curated"`
	TotalSkipped      int     `json:"total_skipped"`
	TotalIncomplete   int     `json:"total_incomplete"`
	ProcessingSeconds float64 `json:"processing_seconds"`
	Error             string  `json:"error,omitempty"`
}

// CuratedEvent 单条精选新闻提交事件
type CuratedEvent struct {
	ID                    uint    `json:"id"`
	DigestDate            string  `json:"digest_date"`
	Title                 string  `json:"title"`
	URL                   string  `json:"url"`
	Category              string  `json:"category,omitempty"`
	Rank                  int     `json:"rank"`
	EffectiveScore        float64 `json:"effective_score"`
	DisplayRecommendation string  `json:"display_recommendation"`
	ReportingDays         int     `json:"reporting_days"`
	Continuation          bool    `json:"continuation"`
}

// Message 内存发布器记录的消息
type Message struct {
	Subject string
	Data    json.RawMessage
}

// MemoryPublisher 把消息保存在内存中，未配置 NATS 时使用
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
}

var _ Publisher = (*MemoryPublisher)(nil)

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (m *MemoryPublisher) Publish(ctx context.Context, subject string, data any) error {
	payload, err := encode(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, Message{Subject: subject, Data: payload})
	return nil
}

// Messages 按主题过滤，subject 为空时返回全部
func (m *MemoryPublisher) Messages(subject string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.messages {
		if subject == "" || msg.Subject == subject {
			out = append(out, msg)
		}
	}
	return out
}
