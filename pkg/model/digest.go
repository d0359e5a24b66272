// pkg/model/digest.go
package model

import (
	"time"

	"gorm.io/datatypes"
)

type DigestStatus string

const (
	DigestPending   DigestStatus = "pending"
	DigestRunning   DigestStatus = "running"
	DigestCompleted DigestStatus = "completed"
	DigestFailed    DigestStatus = "failed"
)

// DailyDigest 每日批处理记录，digest_date 唯一
type DailyDigest struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	DigestDate            time.Time      `gorm:"type:date;not null;uniqueIndex" json:"digest_date"`
	BatchID               string         `gorm:"type:uuid;index" json:"batch_id"`
	Status                DigestStatus   `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	LookbackHours         int            `gorm:"default:24" json:"lookback_hours"`
	TotalRawNews          int            `gorm:"default:0" json:"total_raw_news"`
	TotalMergedNews       int            `gorm:"default:0" json:"total_merged_news"`
	TotalScreenedNews     int            `gorm:"default:0" json:"total_screened_news"`
	TotalCuratedNews      int            `gorm:"default:0" json:"total_curated_news"`
	TotalSkippedNews      int            `gorm:"default:0" json:"total_skipped_news"` // 已提交而跳过的主题
	TotalIncompleteNews   int            `gorm:"default:0" json:"total_incomplete_news"`
	ProcessingTimeSeconds float64        `json:"processing_time_seconds"`
	RegionalDistribution  datatypes.JSON `gorm:"type:jsonb" json:"regional_distribution,omitempty"`
	CategoryDistribution  datatypes.JSON `gorm:"type:jsonb" json:"category_distribution,omitempty"`
	ErrorMessage          string         `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt             *time.Time     `json:"started_at,omitempty"`
	CompletedAt           *time.Time     `json:"completed_at,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

func (DailyDigest) TableName() string {
	return "daily_digests"
}

// DigestDay 返回 t 在 loc 时区的自然日，统一以 UTC 零点表示，与 date 列一致
func DigestDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
