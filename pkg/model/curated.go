// pkg/model/curated.go
package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// CuratedNews 面向用户的精选新闻
//
// effective_score 只是缓存值，随时可由 base_score、reporting_days、is_pinned
// 与 first_seen_at 重新计算。跨日同一主题只更新已有记录。
type CuratedNews struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	MergedNewsID string    `gorm:"type:uuid;not null;index" json:"merged_news_id"`
	DigestDate   time.Time `gorm:"type:date;not null;index" json:"digest_date"`

	Title           string         `gorm:"type:varchar(500);not null" json:"title"`
	URL             string         `gorm:"type:varchar(2000);not null" json:"url"`
	Source          string         `gorm:"type:varchar(100);not null" json:"source"`
	Region          string         `gorm:"type:varchar(50);not null" json:"region"`
	Category        string         `gorm:"type:varchar(50);index" json:"category,omitempty"`
	PublishedAt     time.Time      `gorm:"index" json:"published_at"`
	SourceCount     int            `gorm:"not null;default:1" json:"source_count"`
	RelatedSources  pq.StringArray `gorm:"type:text[]" json:"related_sources"`
	ImportanceBoost float64        `gorm:"not null;default:1" json:"importance_boost"`

	// 第二阶段分析
	AISummary           string         `gorm:"type:text" json:"ai_summary"`
	ImpactTier          ImpactTier     `gorm:"type:varchar(10)" json:"impact_tier"`
	ImpactDirection     string         `gorm:"type:varchar(20)" json:"impact_direction,omitempty"`
	AffectedSymbols     pq.StringArray `gorm:"type:text[]" json:"affected_symbols"`
	SymbolImpacts       datatypes.JSON `gorm:"type:jsonb" json:"symbol_impacts,omitempty"`
	IndirectImpacts     datatypes.JSON `gorm:"type:jsonb" json:"indirect_impacts,omitempty"`
	Predictions         datatypes.JSON `gorm:"type:jsonb" json:"predictions,omitempty"`
	SupplyChainAnalysis string         `gorm:"type:text" json:"supply_chain_analysis,omitempty"`
	CompetitorAnalysis  string         `gorm:"type:text" json:"competitor_analysis,omitempty"`
	KeyPoints           pq.StringArray `gorm:"type:text[]" json:"key_points,omitempty"`

	// 第三阶段验证
	PredictionCount      int        `gorm:"default:0" json:"prediction_count"`
	MatchedCount         int        `gorm:"default:0" json:"matched_count"`
	VerificationRate     float64    `gorm:"default:0" json:"verification_rate"`
	Confidence           Confidence `gorm:"type:varchar(10)" json:"confidence"`
	ConfidenceMultiplier float64    `gorm:"default:0.9" json:"confidence_multiplier"`

	// 第四阶段排序
	Rank                  int    `gorm:"default:0" json:"rank"`
	Commentary            string `gorm:"type:text" json:"commentary,omitempty"`
	ActionSuggestion      string `gorm:"type:text" json:"action_suggestion,omitempty"`
	DisplayRecommendation string `gorm:"type:varchar(20)" json:"display_recommendation"`

	ImpactScore    float64 `gorm:"not null;default:0" json:"impact_score"`
	BaseScore      float64 `gorm:"not null;default:0" json:"base_score"`
	EffectiveScore float64 `gorm:"not null;default:0;index" json:"effective_score"`

	// 生命周期
	FirstSeenAt   time.Time  `gorm:"not null;index" json:"first_seen_at"`
	LastSeenAt    time.Time  `gorm:"not null" json:"last_seen_at"`
	ReportingDays int        `gorm:"not null;default:1" json:"reporting_days"`
	IsPinned      bool       `gorm:"not null;default:false;index" json:"is_pinned"`
	PinnedAt      *time.Time `json:"pinned_at,omitempty"`

	AnalysisStage1 datatypes.JSON `gorm:"type:jsonb" json:"-"`
	AnalysisStage2 datatypes.JSON `gorm:"type:jsonb" json:"-"`
	AnalysisStage3 datatypes.JSON `gorm:"type:jsonb" json:"-"`
	AnalysisStage4 datatypes.JSON `gorm:"type:jsonb" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	VerificationLogs []VerificationLog `gorm:"foreignKey:CuratedNewsID" json:"verification_logs,omitempty"`
}

func (CuratedNews) TableName() string {
	return "curated_news"
}

// VerificationLog 每条第二阶段预测一行，只追加
type VerificationLog struct {
	ID                uint               `gorm:"primaryKey" json:"id"`
	CuratedNewsID     uint               `gorm:"not null;index" json:"curated_news_id"`
	DigestDate        time.Time          `gorm:"type:date;not null;index" json:"digest_date"`
	Symbol            string             `gorm:"type:varchar(20);not null;index" json:"symbol"`
	ExpectedDirection Direction          `gorm:"type:varchar(10);not null" json:"expected_direction"`
	ActualChange      *float64           `json:"actual_change,omitempty"` // 百分比
	Matched           bool               `gorm:"not null;default:false" json:"matched"`
	Status            VerificationStatus `gorm:"type:varchar(20);not null" json:"status"`
	Detail            string             `gorm:"type:text" json:"detail,omitempty"`
	VerifiedAt        time.Time          `gorm:"not null" json:"verified_at"`
}

func (VerificationLog) TableName() string {
	return "verification_logs"
}

// DigestEntry 记录某日已完整提交的主题，用于重跑时跳过
type DigestEntry struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	DigestDate    time.Time `gorm:"type:date;not null;uniqueIndex:idx_digest_topic" json:"digest_date"`
	TopicKey      string    `gorm:"type:varchar(2000);not null;uniqueIndex:idx_digest_topic" json:"topic_key"`
	CuratedNewsID uint      `gorm:"not null;index" json:"curated_news_id"`
	Continuation  bool      `gorm:"default:false" json:"continuation"` // 是否合并入已有记录
	CreatedAt     time.Time `json:"created_at"`
}

func (DigestEntry) TableName() string {
	return "digest_entries"
}

// Symbols 返回受影响股票列表
func (c *CuratedNews) Symbols() []string {
	return []string(c.AffectedSymbols)
}
