package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsRadar/pkg/model"
)

// ArticleSource 新闻来源，返回 since 之后发布的文章
type ArticleSource interface {
	Name() string
	Fetch(ctx context.Context, since time.Time) ([]model.RawNews, error)
}

// MultiSource 并发汇总多个来源，按 URL 去重
type MultiSource struct {
	sources []ArticleSource
	logger  *slog.Logger
}

// NewMultiSource 创建聚合来源
func NewMultiSource(logger *slog.Logger, sources ...ArticleSource) *MultiSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiSource{
		sources: sources,
		logger:  logger.With("component", "collector"),
	}
}

func (m *MultiSource) Name() string { return "multi" }

// Sources 已注册的来源
func (m *MultiSource) Sources() []ArticleSource {
	return m.sources
}

// Fetch 单个来源失败只记录日志；全部失败时返回错误。
// 结果按发布时间排序，同一 URL 保留最先出现的一条
func (m *MultiSource) Fetch(ctx context.Context, since time.Time) ([]model.RawNews, error) {
	if len(m.sources) == 0 {
		return nil, nil
	}

	results := make([][]model.RawNews, len(m.sources))
	errs := make([]error, len(m.sources))

	var g errgroup.Group
	for i, src := range m.sources {
		i, src := i, src
		g.Go(func() error {
			items, err := src.Fetch(ctx, since)
			if err != nil {
				errs[i] = err
				m.logger.Warn("采集来源失败", "source", src.Name(), "error", err)
				return nil
			}
			results[i] = items
			m.logger.Info("采集来源完成", "source", src.Name(), "articles", len(items))
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(m.sources) {
		return nil, fmt.Errorf("所有新闻来源均采集失败: %w", errs[0])
	}

	seen := make(map[string]bool)
	var out []model.RawNews
	for _, items := range results {
		for _, item := range items {
			key := normalizeURL(item.URL)
			if key == "" || strings.TrimSpace(item.Title) == "" || seen[key] {
				continue
			}
			if item.PublishedAt.Before(since) {
				continue
			}
			seen[key] = true
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.Before(out[j].PublishedAt)
	})
	return out, nil
}

func normalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// StaticSource 固定文章列表，用于测试和手工导入
type StaticSource struct {
	SourceName string
	Articles   []model.RawNews
	Err        error
}

func (s *StaticSource) Name() string { return s.SourceName }

func (s *StaticSource) Fetch(ctx context.Context, since time.Time) ([]model.RawNews, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var out []model.RawNews
	for _, a := range s.Articles {
		if !a.PublishedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}
