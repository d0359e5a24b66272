package store

import (
	"context"
	"errors"
	"time"

	"NewsRadar/pkg/model"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("记录不存在")
	// ErrDigestRunning 同一日期已有批处理在运行
	ErrDigestRunning = errors.New("当日批处理正在运行")
)

// BeginDigestParams 开始批处理的参数
type BeginDigestParams struct {
	DigestDate    time.Time
	BatchID       string
	LookbackHours int
	StartedAt     time.Time
	StaleAfter    time.Duration // 超过该时长的 running 记录视为僵死，可被接管
}

// ScoreUpdate 周期性重算的分数
type ScoreUpdate struct {
	ID                    uint
	EffectiveScore        float64
	DisplayRecommendation string
}

// AnalysisStats 某日精选新闻的统计
type AnalysisStats struct {
	DigestDate           time.Time      `json:"digest_date"`
	TotalCurated         int            `json:"total_curated"`
	Continuations        int            `json:"continuations"`
	ByRecommendation     map[string]int `json:"by_recommendation"`
	ByCategory           map[string]int `json:"by_category"`
	AverageBaseScore     float64        `json:"average_base_score"`
	TotalPredictions     int            `json:"total_predictions"`
	MatchedPredictions   int            `json:"matched_predictions"`
	VerificationPassRate float64        `json:"verification_pass_rate"`
	IncompleteCount      int            `json:"incomplete_count"`
}

// TopicTx 单个主题的事务视图，事务内的写入要么全部提交要么全部回滚
type TopicTx interface {
	// RecentCurated 返回 last_seen_at 不早于 since 的精选新闻
	RecentCurated(ctx context.Context, since time.Time) ([]model.CuratedNews, error)
	CreateCurated(ctx context.Context, news *model.CuratedNews) error
	// UpdateCurated 更新分析与生命周期字段，不修改置顶状态
	UpdateCurated(ctx context.Context, news *model.CuratedNews) error
	AppendVerificationLogs(ctx context.Context, logs []model.VerificationLog) error
	RecordDigestEntry(ctx context.Context, entry *model.DigestEntry) error
}

// NewsStore 原始与合并新闻
type NewsStore interface {
	// SaveRawNews 按 URL 去重保存，返回新增条数
	SaveRawNews(ctx context.Context, news []model.RawNews) (int, error)
	SaveMergedNews(ctx context.Context, news []model.MergedNews) error
}

// DigestStore 每日批处理记录
type DigestStore interface {
	BeginDigest(ctx context.Context, params BeginDigestParams) (*model.DailyDigest, error)
	// UpdateDigest 保存进度统计，不修改状态
	UpdateDigest(ctx context.Context, digest *model.DailyDigest) error
	// FinishDigest 写入最终状态，只对仍属于该 batch_id 的记录生效
	FinishDigest(ctx context.Context, digest *model.DailyDigest) error
	GetDigest(ctx context.Context, date time.Time) (*model.DailyDigest, error)
	DigestHistory(ctx context.Context, from, to time.Time) ([]model.DailyDigest, error)
	LatestCompletedDigest(ctx context.Context) (*model.DailyDigest, error)
	CommittedTopicKeys(ctx context.Context, date time.Time) (map[string]struct{}, error)
}

// CuratedStore 精选新闻查询与维护
type CuratedStore interface {
	InTopicTx(ctx context.Context, fn func(tx TopicTx) error) error
	// TodayCurated 返回展示候选：置顶或 first_seen_at 不早于 since
	TodayCurated(ctx context.Context, since time.Time) ([]model.CuratedNews, error)
	GetCurated(ctx context.Context, id uint) (*model.CuratedNews, error)
	SetPinned(ctx context.Context, id uint, pinned bool, at time.Time) (*model.CuratedNews, error)
	// AllCuratedSince 返回置顶或 last_seen_at 不早于 since 的记录，用于重算分数
	AllCuratedSince(ctx context.Context, since time.Time) ([]model.CuratedNews, error)
	UpdateEffectiveScores(ctx context.Context, updates []ScoreUpdate) error
	AnalysisStats(ctx context.Context, date time.Time) (*AnalysisStats, error)
}

// Store 全部存储能力
type Store interface {
	NewsStore
	DigestStore
	CuratedStore
}
