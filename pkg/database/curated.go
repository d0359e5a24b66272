package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"NewsRadar/pkg/model"
	"NewsRadar/pkg/store"
)

const displayOrder = "is_pinned DESC, effective_score DESC, first_seen_at DESC"

type CuratedDB struct {
	db *gorm.DB
}

// InTopicTx 在数据库事务中执行单个主题的全部写入
func (c *CuratedDB) InTopicTx(ctx context.Context, fn func(tx store.TopicTx) error) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&topicTx{db: tx})
	})
}

func (c *CuratedDB) TodayCurated(ctx context.Context, since time.Time) ([]model.CuratedNews, error) {
	var items []model.CuratedNews
	err := c.db.WithContext(ctx).
		Where("is_pinned = ? OR first_seen_at >= ?", true, since).
		Order(displayOrder).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("查询精选新闻失败: %w", err)
	}
	return items, nil
}

func (c *CuratedDB) GetCurated(ctx context.Context, id uint) (*model.CuratedNews, error) {
	var item model.CuratedNews
	err := c.db.WithContext(ctx).
		Preload("VerificationLogs", func(db *gorm.DB) *gorm.DB { return db.Order("verified_at DESC") }).
		First(&item, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (c *CuratedDB) SetPinned(ctx context.Context, id uint, pinned bool, at time.Time) (*model.CuratedNews, error) {
	var pinnedAt *time.Time
	if pinned {
		pinnedAt = &at
	}
	res := c.db.WithContext(ctx).Model(&model.CuratedNews{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_pinned": pinned, "pinned_at": pinnedAt})
	if res.Error != nil {
		return nil, fmt.Errorf("更新置顶状态失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}
	return c.GetCurated(ctx, id)
}

func (c *CuratedDB) AllCuratedSince(ctx context.Context, since time.Time) ([]model.CuratedNews, error) {
	var items []model.CuratedNews
	err := c.db.WithContext(ctx).
		Where("is_pinned = ? OR last_seen_at >= ?", true, since).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("查询精选新闻失败: %w", err)
	}
	return items, nil
}

func (c *CuratedDB) UpdateEffectiveScores(ctx context.Context, updates []store.ScoreUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			err := tx.Model(&model.CuratedNews{}).
				Where("id = ?", u.ID).
				Updates(map[string]any{
					"effective_score":        u.EffectiveScore,
					"display_recommendation": u.DisplayRecommendation,
				}).Error
			if err != nil {
				return fmt.Errorf("更新有效分数失败: %w", err)
			}
		}
		return nil
	})
}

type entryRow struct {
	DisplayRecommendation string
	Category              string
	BaseScore             float64
	Continuation          bool
}

type predictionRow struct {
	Total   int
	Matched int
}

// AnalysisStats 以 digest_entries 为准统计当日提交的主题
func (c *CuratedDB) AnalysisStats(ctx context.Context, date time.Time) (*store.AnalysisStats, error) {
	db := c.db.WithContext(ctx)
	stats := &store.AnalysisStats{
		DigestDate:       date,
		ByRecommendation: make(map[string]int),
		ByCategory:       make(map[string]int),
	}

	query, args, err := psql.
		Select("c.display_recommendation", "c.category", "c.base_score", "e.continuation").
		From("digest_entries e").
		Join("curated_news c ON c.id = e.curated_news_id").
		Where(sq.Eq{"e.digest_date": date}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("构建查询失败: %w", err)
	}
	var rows []entryRow
	if err := db.Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询当日精选失败: %w", err)
	}

	var scoreSum float64
	for _, r := range rows {
		stats.TotalCurated++
		if r.Continuation {
			stats.Continuations++
		}
		stats.ByRecommendation[r.DisplayRecommendation]++
		stats.ByCategory[r.Category]++
		scoreSum += r.BaseScore
	}
	if stats.TotalCurated > 0 {
		stats.AverageBaseScore = scoreSum / float64(stats.TotalCurated)
	}

	query, args, err = psql.
		Select("COUNT(*) AS total", "COALESCE(SUM(CASE WHEN matched THEN 1 ELSE 0 END), 0) AS matched").
		From("verification_logs").
		Where(sq.Eq{"digest_date": date}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("构建查询失败: %w", err)
	}
	var pred predictionRow
	if err := db.Raw(query, args...).Scan(&pred).Error; err != nil {
		return nil, fmt.Errorf("查询验证记录失败: %w", err)
	}
	stats.TotalPredictions = pred.Total
	stats.MatchedPredictions = pred.Matched
	if pred.Total > 0 {
		stats.VerificationPassRate = float64(pred.Matched) / float64(pred.Total)
	}

	var dg model.DailyDigest
	err = db.Select("total_incomplete_news").Where("digest_date = ?", date).Take(&dg).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询批处理记录失败: %w", err)
	}
	stats.IncompleteCount = dg.TotalIncompleteNews
	return stats, nil
}

// topicTx 绑定到 gorm 事务
type topicTx struct {
	db *gorm.DB
}

func (t *topicTx) RecentCurated(ctx context.Context, since time.Time) ([]model.CuratedNews, error) {
	var items []model.CuratedNews
	err := t.db.WithContext(ctx).
		Where("last_seen_at >= ?", since).
		Order("last_seen_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("查询近期精选失败: %w", err)
	}
	return items, nil
}

func (t *topicTx) CreateCurated(ctx context.Context, news *model.CuratedNews) error {
	if err := t.db.WithContext(ctx).Omit(clause.Associations).Create(news).Error; err != nil {
		return fmt.Errorf("创建精选新闻失败: %w", err)
	}
	return nil
}

// UpdateCurated 置顶字段只由 SetPinned 修改
func (t *topicTx) UpdateCurated(ctx context.Context, news *model.CuratedNews) error {
	res := t.db.WithContext(ctx).Model(&model.CuratedNews{ID: news.ID}).
		Select("*").
		Omit("id", "is_pinned", "pinned_at", "created_at", clause.Associations).
		Updates(news)
	if res.Error != nil {
		return fmt.Errorf("更新精选新闻失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *topicTx) AppendVerificationLogs(ctx context.Context, logs []model.VerificationLog) error {
	if len(logs) == 0 {
		return nil
	}
	if err := t.db.WithContext(ctx).Create(&logs).Error; err != nil {
		return fmt.Errorf("写入验证记录失败: %w", err)
	}
	return nil
}

// RecordDigestEntry 强制重跑时同一主题覆盖原记录
func (t *topicTx) RecordDigestEntry(ctx context.Context, entry *model.DigestEntry) error {
	err := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "digest_date"}, {Name: "topic_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"curated_news_id", "continuation"}),
		}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("记录已提交主题失败: %w", err)
	}
	return nil
}
