package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"NewsRadar/pkg/model"
	"NewsRadar/pkg/store"
)

var _ store.Store = (*Repository)(nil)

// Repository 内存数据仓库，实现全部存储接口，用于测试与 storage.driver=memory
type Repository struct {
	rawByURL  map[string]model.RawNews
	merged    []model.MergedNews
	digests   map[time.Time]*model.DailyDigest
	curated   map[uint]*model.CuratedNews
	logs      []model.VerificationLog
	entries   map[entryKey]model.DigestEntry
	nextID    uint
	nextLogID uint
	mutex     sync.RWMutex
}

type entryKey struct {
	date  time.Time
	topic string
}

// NewRepository 创建新的内存仓库
func NewRepository() *Repository {
	return &Repository{
		rawByURL: make(map[string]model.RawNews),
		digests:  make(map[time.Time]*model.DailyDigest),
		curated:  make(map[uint]*model.CuratedNews),
		entries:  make(map[entryKey]model.DigestEntry),
	}
}

// SaveRawNews 保存原始新闻，URL 已存在的跳过
func (r *Repository) SaveRawNews(ctx context.Context, news []model.RawNews) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	saved := 0
	for _, n := range news {
		if _, ok := r.rawByURL[n.URL]; ok {
			continue
		}
		if n.ID == "" {
			n.ID = uuid.New().String()
		}
		if n.FetchedAt.IsZero() {
			n.FetchedAt = time.Now()
		}
		r.rawByURL[n.URL] = n
		saved++
	}
	return saved, nil
}

// SaveMergedNews 保存合并新闻
func (r *Repository) SaveMergedNews(ctx context.Context, news []model.MergedNews) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, n := range news {
		if n.ID == "" {
			n.ID = uuid.New().String()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now()
		}
		r.merged = append(r.merged, n)
	}
	return nil
}

// MergedCount 已保存的合并新闻数
func (r *Repository) MergedCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.merged)
}

// BeginDigest 创建或接管当日批处理记录
func (r *Repository) BeginDigest(ctx context.Context, p store.BeginDigestParams) (*model.DailyDigest, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	d, ok := r.digests[p.DigestDate]
	if !ok {
		d = &model.DailyDigest{
			ID:         uint(len(r.digests) + 1),
			DigestDate: p.DigestDate,
			Status:     model.DigestPending,
			CreatedAt:  p.StartedAt,
		}
		r.digests[p.DigestDate] = d
	}

	if d.Status == model.DigestRunning && d.StartedAt != nil && d.StartedAt.After(p.StartedAt.Add(-p.StaleAfter)) {
		return nil, store.ErrDigestRunning
	}

	started := p.StartedAt
	*d = model.DailyDigest{
		ID:            d.ID,
		DigestDate:    d.DigestDate,
		BatchID:       p.BatchID,
		Status:        model.DigestRunning,
		LookbackHours: p.LookbackHours,
		StartedAt:     &started,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     p.StartedAt,
	}
	out := *d
	return &out, nil
}

// UpdateDigest 保存进度统计
func (r *Repository) UpdateDigest(ctx context.Context, digest *model.DailyDigest) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	d, ok := r.digests[digest.DigestDate]
	if !ok || d.BatchID != digest.BatchID {
		return store.ErrNotFound
	}
	status := d.Status
	*d = *digest
	d.Status = status
	d.UpdatedAt = time.Now()
	return nil
}

// FinishDigest 写入最终状态
func (r *Repository) FinishDigest(ctx context.Context, digest *model.DailyDigest) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	d, ok := r.digests[digest.DigestDate]
	if !ok || d.BatchID != digest.BatchID {
		return store.ErrNotFound
	}
	*d = *digest
	d.UpdatedAt = time.Now()
	return nil
}

// GetDigest 获取某日批处理记录
func (r *Repository) GetDigest(ctx context.Context, date time.Time) (*model.DailyDigest, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	d, ok := r.digests[date]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *d
	return &out, nil
}

// DigestHistory 按日期范围查询，日期倒序
func (r *Repository) DigestHistory(ctx context.Context, from, to time.Time) ([]model.DailyDigest, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []model.DailyDigest
	for _, d := range r.digests {
		if !from.IsZero() && d.DigestDate.Before(from) {
			continue
		}
		if !to.IsZero() && d.DigestDate.After(to) {
			continue
		}
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DigestDate.After(result[j].DigestDate)
	})
	return result, nil
}

// LatestCompletedDigest 最近一次成功的批处理
func (r *Repository) LatestCompletedDigest(ctx context.Context) (*model.DailyDigest, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var latest *model.DailyDigest
	for _, d := range r.digests {
		if d.Status != model.DigestCompleted {
			continue
		}
		if latest == nil || d.DigestDate.After(latest.DigestDate) {
			latest = d
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	out := *latest
	return &out, nil
}

// CommittedTopicKeys 某日已提交的主题
func (r *Repository) CommittedTopicKeys(ctx context.Context, date time.Time) (map[string]struct{}, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	keys := make(map[string]struct{})
	for k := range r.entries {
		if k.date.Equal(date) {
			keys[k.topic] = struct{}{}
		}
	}
	return keys, nil
}

// InTopicTx 在单主题事务中执行 fn，fn 返回错误时丢弃全部写入。
// 事务期间持有写锁，fn 内只能通过 tx 访问仓库。
func (r *Repository) InTopicTx(ctx context.Context, fn func(tx store.TopicTx) error) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	tx := &memTx{
		repo:    r,
		curated: make(map[uint]*model.CuratedNews),
		nextID:  r.nextID,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, c := range tx.curated {
		r.curated[id] = c
	}
	for _, l := range tx.logs {
		r.nextLogID++
		l.ID = r.nextLogID
		r.logs = append(r.logs, l)
	}
	for _, e := range tx.entries {
		r.entries[entryKey{date: e.DigestDate, topic: e.TopicKey}] = e
	}
	r.nextID = tx.nextID
	return nil
}

// TodayCurated 返回展示候选
func (r *Repository) TodayCurated(ctx context.Context, since time.Time) ([]model.CuratedNews, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []model.CuratedNews
	for _, c := range r.curated {
		if c.IsPinned || !c.FirstSeenAt.Before(since) {
			result = append(result, *c)
		}
	}
	sortForDisplay(result)
	return result, nil
}

// GetCurated 按ID获取精选新闻，附带验证记录
func (r *Repository) GetCurated(ctx context.Context, id uint) (*model.CuratedNews, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	c, ok := r.curated[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *c
	out.VerificationLogs = nil
	for _, l := range r.logs {
		if l.CuratedNewsID == id {
			out.VerificationLogs = append(out.VerificationLogs, l)
		}
	}
	return &out, nil
}

// SetPinned 切换置顶状态
func (r *Repository) SetPinned(ctx context.Context, id uint, pinned bool, at time.Time) (*model.CuratedNews, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	c, ok := r.curated[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.IsPinned = pinned
	if pinned {
		t := at
		c.PinnedAt = &t
	} else {
		c.PinnedAt = nil
	}
	out := *c
	return &out, nil
}

// AllCuratedSince 返回需要重算分数的记录
func (r *Repository) AllCuratedSince(ctx context.Context, since time.Time) ([]model.CuratedNews, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []model.CuratedNews
	for _, c := range r.curated {
		if c.IsPinned || !c.LastSeenAt.Before(since) {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// UpdateEffectiveScores 批量写入重算后的分数
func (r *Repository) UpdateEffectiveScores(ctx context.Context, updates []store.ScoreUpdate) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, u := range updates {
		c, ok := r.curated[u.ID]
		if !ok {
			continue
		}
		c.EffectiveScore = u.EffectiveScore
		c.DisplayRecommendation = u.DisplayRecommendation
	}
	return nil
}

// AnalysisStats 统计某日提交的精选新闻
func (r *Repository) AnalysisStats(ctx context.Context, date time.Time) (*store.AnalysisStats, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := &store.AnalysisStats{
		DigestDate:       date,
		ByRecommendation: make(map[string]int),
		ByCategory:       make(map[string]int),
	}
	var scoreSum float64
	for k, e := range r.entries {
		if !k.date.Equal(date) {
			continue
		}
		c, ok := r.curated[e.CuratedNewsID]
		if !ok {
			continue
		}
		stats.TotalCurated++
		if e.Continuation {
			stats.Continuations++
		}
		stats.ByRecommendation[c.DisplayRecommendation]++
		stats.ByCategory[c.Category]++
		scoreSum += c.BaseScore
	}
	if stats.TotalCurated > 0 {
		stats.AverageBaseScore = scoreSum / float64(stats.TotalCurated)
	}
	for _, l := range r.logs {
		if !l.DigestDate.Equal(date) {
			continue
		}
		stats.TotalPredictions++
		if l.Matched {
			stats.MatchedPredictions++
		}
	}
	if stats.TotalPredictions > 0 {
		stats.VerificationPassRate = float64(stats.MatchedPredictions) / float64(stats.TotalPredictions)
	}
	if d, ok := r.digests[date]; ok {
		stats.IncompleteCount = d.TotalIncompleteNews
	}
	return stats, nil
}

// sortForDisplay 置顶优先，其次有效分数、首次出现时间倒序
func sortForDisplay(items []model.CuratedNews) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if a.EffectiveScore != b.EffectiveScore {
			return a.EffectiveScore > b.EffectiveScore
		}
		return a.FirstSeenAt.After(b.FirstSeenAt)
	})
}
