package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"NewsRadar/pkg/model"
	"NewsRadar/pkg/store"
)

type DigestDB struct {
	db *gorm.DB
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// BeginDigest 条件更新实现互斥：仅当记录不在运行，或运行已超过 StaleAfter 时才接管
func (d *DigestDB) BeginDigest(ctx context.Context, p store.BeginDigestParams) (*model.DailyDigest, error) {
	var digest model.DailyDigest
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := model.DailyDigest{DigestDate: p.DigestDate, Status: model.DigestPending}
		if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "digest_date"}}, DoNothing: true}).
			Create(&seed).Error; err != nil {
			return fmt.Errorf("创建批处理记录失败: %w", err)
		}

		staleBefore := p.StartedAt.Add(-p.StaleAfter)
		res := tx.Model(&model.DailyDigest{}).
			Where("digest_date = ?", p.DigestDate).
			Where("NOT (status = ? AND started_at IS NOT NULL AND started_at > ?)", model.DigestRunning, staleBefore).
			Updates(map[string]any{
				"batch_id":                p.BatchID,
				"status":                  model.DigestRunning,
				"lookback_hours":          p.LookbackHours,
				"started_at":              p.StartedAt,
				"completed_at":            nil,
				"error_message":           "",
				"total_raw_news":          0,
				"total_merged_news":       0,
				"total_screened_news":     0,
				"total_curated_news":      0,
				"total_skipped_news":      0,
				"total_incomplete_news":   0,
				"processing_time_seconds": 0,
			})
		if res.Error != nil {
			return fmt.Errorf("更新批处理状态失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return store.ErrDigestRunning
		}
		return tx.Where("digest_date = ?", p.DigestDate).First(&digest).Error
	})
	if err != nil {
		return nil, err
	}
	return &digest, nil
}

func progressFields(dg *model.DailyDigest) map[string]any {
	return map[string]any{
		"total_raw_news":          dg.TotalRawNews,
		"total_merged_news":       dg.TotalMergedNews,
		"total_screened_news":     dg.TotalScreenedNews,
		"total_curated_news":      dg.TotalCuratedNews,
		"total_skipped_news":      dg.TotalSkippedNews,
		"total_incomplete_news":   dg.TotalIncompleteNews,
		"processing_time_seconds": dg.ProcessingTimeSeconds,
		"regional_distribution":   dg.RegionalDistribution,
		"category_distribution":   dg.CategoryDistribution,
	}
}

func (d *DigestDB) UpdateDigest(ctx context.Context, dg *model.DailyDigest) error {
	return d.updateOwned(ctx, dg, progressFields(dg))
}

func (d *DigestDB) FinishDigest(ctx context.Context, dg *model.DailyDigest) error {
	fields := progressFields(dg)
	fields["status"] = dg.Status
	fields["error_message"] = dg.ErrorMessage
	fields["completed_at"] = dg.CompletedAt
	return d.updateOwned(ctx, dg, fields)
}

// updateOwned 只更新仍属于该 batch_id 的记录，被接管后返回 ErrNotFound
func (d *DigestDB) updateOwned(ctx context.Context, dg *model.DailyDigest, fields map[string]any) error {
	res := d.db.WithContext(ctx).Model(&model.DailyDigest{}).
		Where("digest_date = ? AND batch_id = ?", dg.DigestDate, dg.BatchID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("更新批处理记录失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DigestDB) GetDigest(ctx context.Context, date time.Time) (*model.DailyDigest, error) {
	var dg model.DailyDigest
	if err := d.db.WithContext(ctx).Where("digest_date = ?", date).First(&dg).Error; err != nil {
		return nil, notFound(err)
	}
	return &dg, nil
}

// DigestHistory 日期闭区间，零值表示不限，按日期倒序
func (d *DigestDB) DigestHistory(ctx context.Context, from, to time.Time) ([]model.DailyDigest, error) {
	query, args, err := historyQuery(from, to)
	if err != nil {
		return nil, fmt.Errorf("构建查询失败: %w", err)
	}

	var digests []model.DailyDigest
	if err := d.db.WithContext(ctx).Raw(query, args...).Scan(&digests).Error; err != nil {
		return nil, fmt.Errorf("查询批处理历史失败: %w", err)
	}
	return digests, nil
}

func historyQuery(from, to time.Time) (string, []any, error) {
	q := psql.Select("*").From(model.DailyDigest{}.TableName()).OrderBy("digest_date DESC")
	if !from.IsZero() {
		q = q.Where(sq.GtOrEq{"digest_date": from})
	}
	if !to.IsZero() {
		q = q.Where(sq.LtOrEq{"digest_date": to})
	}
	return q.ToSql()
}

func (d *DigestDB) LatestCompletedDigest(ctx context.Context) (*model.DailyDigest, error) {
	var dg model.DailyDigest
	err := d.db.WithContext(ctx).
		Where("status = ?", model.DigestCompleted).
		Order("digest_date DESC").
		First(&dg).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &dg, nil
}

func (d *DigestDB) CommittedTopicKeys(ctx context.Context, date time.Time) (map[string]struct{}, error) {
	var keys []string
	err := d.db.WithContext(ctx).Model(&model.DigestEntry{}).
		Where("digest_date = ?", date).
		Pluck("topic_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("查询已提交主题失败: %w", err)
	}
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out, nil
}
