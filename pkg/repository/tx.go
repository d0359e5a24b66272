package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"NewsRadar/pkg/model"
	"NewsRadar/pkg/store"
)

// memTx 暂存单主题事务内的写入，提交时由 InTopicTx 统一落盘
type memTx struct {
	repo    *Repository
	curated map[uint]*model.CuratedNews
	logs    []model.VerificationLog
	entries []model.DigestEntry
	nextID  uint
}

func (tx *memTx) lookup(id uint) (*model.CuratedNews, bool) {
	if c, ok := tx.curated[id]; ok {
		return c, true
	}
	c, ok := tx.repo.curated[id]
	return c, ok
}

func (tx *memTx) RecentCurated(ctx context.Context, since time.Time) ([]model.CuratedNews, error) {
	seen := make(map[uint]bool)
	var result []model.CuratedNews
	for id, c := range tx.curated {
		seen[id] = true
		if !c.LastSeenAt.Before(since) {
			result = append(result, *c)
		}
	}
	for id, c := range tx.repo.curated {
		if seen[id] {
			continue
		}
		if !c.LastSeenAt.Before(since) {
			result = append(result, *c)
		}
	}
	sortByLastSeen(result)
	return result, nil
}

func (tx *memTx) CreateCurated(ctx context.Context, news *model.CuratedNews) error {
	tx.nextID++
	news.ID = tx.nextID
	now := time.Now()
	if news.CreatedAt.IsZero() {
		news.CreatedAt = now
	}
	news.UpdatedAt = now
	c := *news
	c.VerificationLogs = nil
	tx.curated[c.ID] = &c
	return nil
}

func (tx *memTx) UpdateCurated(ctx context.Context, news *model.CuratedNews) error {
	existing, ok := tx.lookup(news.ID)
	if !ok {
		return fmt.Errorf("更新精选新闻 %d: %w", news.ID, store.ErrNotFound)
	}
	c := *news
	c.IsPinned = existing.IsPinned
	c.PinnedAt = existing.PinnedAt
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	c.VerificationLogs = nil
	tx.curated[c.ID] = &c
	return nil
}

func (tx *memTx) AppendVerificationLogs(ctx context.Context, logs []model.VerificationLog) error {
	for _, l := range logs {
		if _, ok := tx.lookup(l.CuratedNewsID); !ok {
			return fmt.Errorf("验证记录关联的精选新闻 %d: %w", l.CuratedNewsID, store.ErrNotFound)
		}
		tx.logs = append(tx.logs, l)
	}
	return nil
}

func (tx *memTx) RecordDigestEntry(ctx context.Context, entry *model.DigestEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	tx.entries = append(tx.entries, *entry)
	return nil
}

func sortByLastSeen(items []model.CuratedNews) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].LastSeenAt.Equal(items[j].LastSeenAt) {
			return items[i].LastSeenAt.After(items[j].LastSeenAt)
		}
		return items[i].ID < items[j].ID
	})
}
