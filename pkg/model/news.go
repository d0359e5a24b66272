// pkg/model/news.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// RawNews 原始新闻，采集后不可变
type RawNews struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(500);not null" json:"title"`
	URL         string    `gorm:"type:varchar(2000);uniqueIndex;not null" json:"url"`
	Source      string    `gorm:"type:varchar(100);not null;index" json:"source"`
	Region      string    `gorm:"type:varchar(50);not null;index" json:"region"`
	Category    string    `gorm:"type:varchar(50);index" json:"category,omitempty"`
	PublishedAt time.Time `gorm:"not null;index" json:"published_at"`
	Summary     string    `gorm:"type:text" json:"summary,omitempty"`
	FetchedAt   time.Time `gorm:"not null" json:"fetched_at"`
	BatchID     string    `gorm:"type:uuid;not null;index" json:"batch_id"`
}

func (n *RawNews) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.FetchedAt.IsZero() {
		n.FetchedAt = time.Now()
	}
	return nil
}

func (RawNews) TableName() string {
	return "raw_news"
}

// MergedNews 聚类后的新闻主题，代表文章字段 + 来源统计
type MergedNews struct {
	ID              string         `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string         `gorm:"type:varchar(500);not null" json:"title"`
	URL             string         `gorm:"type:varchar(2000);not null;index" json:"url"` // 代表文章URL，不要求唯一
	Source          string         `gorm:"type:varchar(100);not null;index" json:"source"`
	Region          string         `gorm:"type:varchar(50);not null;index" json:"region"`
	Category        string         `gorm:"type:varchar(50);index" json:"category,omitempty"`
	PublishedAt     time.Time      `gorm:"not null;index" json:"published_at"`
	Summary         string         `gorm:"type:text" json:"summary,omitempty"`
	RelatedSources  pq.StringArray `gorm:"type:text[]" json:"related_sources"`
	SourceCount     int            `gorm:"not null;default:1" json:"source_count"`
	ImportanceBoost float64        `gorm:"not null;default:1" json:"importance_boost"`
	BatchID         string         `gorm:"type:uuid;not null;index" json:"batch_id"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (m *MergedNews) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (MergedNews) TableName() string {
	return "merged_news"
}

// TopicKey 同一日期内识别主题是否已提交
func (m *MergedNews) TopicKey() string {
	return m.URL
}
