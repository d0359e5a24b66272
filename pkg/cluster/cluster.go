// Package cluster 将近似重复的原始新闻合并为主题
package cluster

import (
	"log/slog"

	"github.com/google/uuid"

	"NewsRadar/pkg/model"
	"NewsRadar/pkg/similarity"
)

// Clusterer 单遍并查集聚类
type Clusterer struct {
	threshold float64
	logger    *slog.Logger
}

// DedupStats 去重统计
type DedupStats struct {
	OriginalCount     int     `json:"original_count"`
	MergedCount       int     `json:"merged_count"`
	DuplicatesRemoved int     `json:"duplicates_removed"`
	DedupRatio        float64 `json:"dedup_ratio"`
}

// NewClusterer 创建聚类器，threshold<=0 时使用默认阈值
func NewClusterer(threshold float64, logger *slog.Logger) *Clusterer {
	if threshold <= 0 {
		threshold = similarity.DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Clusterer{threshold: threshold, logger: logger.With("component", "cluster")}
}

// Cluster 标题相似度严格大于阈值的文章并入同一簇（传递闭包），
// URL 完全相同的文章无条件并入。输出顺序为各簇首篇文章的出现顺序。
func (c *Clusterer) Cluster(articles []model.RawNews) []model.MergedNews {
	n := len(articles)
	if n == 0 {
		return nil
	}

	uf := newUnionFind(n)
	tokens := make([]map[string]struct{}, n)
	for i := range articles {
		tokens[i] = similarity.Tokens(articles[i].Title)
	}

	byURL := make(map[string]int, n)
	for i := range articles {
		if first, ok := byURL[articles[i].URL]; ok && articles[i].URL != "" {
			uf.union(first, i)
			continue
		}
		byURL[articles[i].URL] = i
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if uf.find(i) == uf.find(j) {
				continue
			}
			if similarity.Jaccard(tokens[i], tokens[j]) > c.threshold {
				uf.union(i, j)
			}
		}
	}

	// 按首次出现顺序收集簇
	order := make([]int, 0)
	members := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := uf.find(i)
		if _, ok := members[root]; !ok {
			order = append(order, root)
		}
		members[root] = append(members[root], i)
	}

	merged := make([]model.MergedNews, 0, len(order))
	for _, root := range order {
		merged = append(merged, c.merge(articles, members[root]))
	}

	c.logger.Info("新闻聚类完成", "raw", n, "merged", len(merged))
	return merged
}

// merge 选出代表文章：来源优先级最高，其次发布时间最早
func (c *Clusterer) merge(articles []model.RawNews, idx []int) model.MergedNews {
	rep := idx[0]
	for _, i := range idx[1:] {
		pi, pr := Priority(articles[i].Source), Priority(articles[rep].Source)
		if pi > pr || (pi == pr && articles[i].PublishedAt.Before(articles[rep].PublishedAt)) {
			rep = i
		}
	}

	r := articles[rep]
	related := make([]string, 0)
	seen := map[string]bool{r.Source: true}
	for _, i := range idx {
		src := articles[i].Source
		if !seen[src] {
			seen[src] = true
			related = append(related, src)
		}
	}

	return model.MergedNews{
		ID:              uuid.New().String(),
		Title:           r.Title,
		URL:             r.URL,
		Source:          r.Source,
		Region:          r.Region,
		Category:        r.Category,
		PublishedAt:     r.PublishedAt,
		Summary:         r.Summary,
		RelatedSources:  related,
		SourceCount:     len(idx),
		ImportanceBoost: ImportanceBoost(len(idx)),
		BatchID:         r.BatchID,
	}
}

// Stats 计算去重统计
func Stats(original, merged int) DedupStats {
	s := DedupStats{
		OriginalCount:     original,
		MergedCount:       merged,
		DuplicatesRemoved: original - merged,
	}
	if original > 0 {
		s.DedupRatio = float64(original-merged) / float64(original)
	}
	return s
}

// AsRaw 将代表文章还原为原始新闻，用于幂等性检查
func AsRaw(topics []model.MergedNews) []model.RawNews {
	out := make([]model.RawNews, 0, len(topics))
	for _, t := range topics {
		out = append(out, model.RawNews{
			ID:          t.ID,
			Title:       t.Title,
			URL:         t.URL,
			Source:      t.Source,
			Region:      t.Region,
			Category:    t.Category,
			PublishedAt: t.PublishedAt,
			Summary:     t.Summary,
			BatchID:     t.BatchID,
		})
	}
	return out
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
