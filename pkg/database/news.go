// pkg/database/news.go
package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"NewsRadar/pkg/model"
)

const batchSize = 200

type NewsDB struct {
	db *gorm.DB
}

// SaveRawNews URL 冲突时跳过，返回实际写入条数
func (n *NewsDB) SaveRawNews(ctx context.Context, news []model.RawNews) (int, error) {
	if len(news) == 0 {
		return 0, nil
	}
	res := n.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, DoNothing: true}).
		CreateInBatches(&news, batchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("保存原始新闻失败: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (n *NewsDB) SaveMergedNews(ctx context.Context, news []model.MergedNews) error {
	if len(news) == 0 {
		return nil
	}
	if err := n.db.WithContext(ctx).CreateInBatches(&news, batchSize).Error; err != nil {
		return fmt.Errorf("保存合并新闻失败: %w", err)
	}
	return nil
}
