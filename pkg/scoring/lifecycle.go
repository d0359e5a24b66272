package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsRadar/pkg/model"
	"NewsRadar/pkg/similarity"
	"NewsRadar/pkg/store"
)

const (
	DefaultContinuityLookback = 7 * 24 * time.Hour
	MinSymbolOverlap          = 0.5
)

// Lifecycle 跨日主题延续与分数维护
type Lifecycle struct {
	store     store.CuratedStore
	lookback  time.Duration
	retention time.Duration
	threshold float64
	logger    *slog.Logger
}

// NewLifecycle 创建生命周期引擎，lookback 为延续检测窗口，retention 为重算窗口
func NewLifecycle(st store.CuratedStore, lookback, retention time.Duration, logger *slog.Logger) *Lifecycle {
	if lookback <= 0 {
		lookback = DefaultContinuityLookback
	}
	if retention <= 0 {
		retention = 14 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		store:     st,
		lookback:  lookback,
		retention: retention,
		threshold: similarity.DefaultThreshold,
		logger:    logger.With("component", "lifecycle"),
	}
}

// Matches 延续判定：标题相似度达到阈值；双方都有股票时重合度不低于 50%；
// 双方都有分类时分类相同
func Matches(existing, candidate *model.CuratedNews, threshold float64) (bool, float64) {
	if len(existing.AffectedSymbols) > 0 && len(candidate.AffectedSymbols) > 0 &&
		similarity.SymbolOverlap(existing.AffectedSymbols, candidate.AffectedSymbols) < MinSymbolOverlap {
		return false, 0
	}
	if !sameCategory(existing.Category, candidate.Category) {
		return false, 0
	}
	sim := similarity.Title(existing.Title, candidate.Title)
	return sim >= threshold, sim
}

func sameCategory(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return true
	}
	return strings.EqualFold(a, b)
}

// FindMergeOrCreate 在事务内查找近期同一主题：找到则原地更新，否则新建。
// 返回写入后的记录以及是否为延续。
func (l *Lifecycle) FindMergeOrCreate(ctx context.Context, tx store.TopicTx, candidate *model.CuratedNews, now time.Time) (*model.CuratedNews, bool, error) {
	recent, err := tx.RecentCurated(ctx, now.Add(-l.lookback))
	if err != nil {
		return nil, false, fmt.Errorf("查询近期精选新闻失败: %w", err)
	}

	var match *model.CuratedNews
	best := -1.0
	for i := range recent {
		ok, sim := Matches(&recent[i], candidate, l.threshold)
		if ok && sim > best {
			match, best = &recent[i], sim
		}
	}

	if match == nil {
		candidate.FirstSeenAt = now
		candidate.LastSeenAt = now
		candidate.ReportingDays = 1
		candidate.IsPinned = false
		candidate.PinnedAt = nil
		candidate.EffectiveScore = Effective(candidate, now)
		candidate.DisplayRecommendation = string(Label(candidate.EffectiveScore))
		if err := tx.CreateCurated(ctx, candidate); err != nil {
			return nil, false, fmt.Errorf("创建精选新闻失败: %w", err)
		}
		return candidate, false, nil
	}

	merged := mergeInto(match, candidate, now)
	if err := tx.UpdateCurated(ctx, merged); err != nil {
		return nil, false, fmt.Errorf("更新精选新闻失败: %w", err)
	}
	l.logger.Debug("主题延续",
		"curated_id", merged.ID,
		"similarity", best,
		"reporting_days", merged.ReportingDays)
	return merged, true, nil
}

// mergeInto 以最新分析覆盖已有记录；标题、链接、首次出现时间与置顶状态保持不变
func mergeInto(existing, candidate *model.CuratedNews, now time.Time) *model.CuratedNews {
	out := *existing
	if !existing.DigestDate.Equal(candidate.DigestDate) {
		out.ReportingDays++
	}
	out.DigestDate = candidate.DigestDate
	out.MergedNewsID = candidate.MergedNewsID
	out.LastSeenAt = now

	out.SourceCount = candidate.SourceCount
	out.RelatedSources = candidate.RelatedSources
	out.ImportanceBoost = candidate.ImportanceBoost

	out.AISummary = candidate.AISummary
	out.ImpactTier = candidate.ImpactTier
	out.ImpactDirection = candidate.ImpactDirection
	out.AffectedSymbols = candidate.AffectedSymbols
	out.SymbolImpacts = candidate.SymbolImpacts
	out.IndirectImpacts = candidate.IndirectImpacts
	out.Predictions = candidate.Predictions
	out.SupplyChainAnalysis = candidate.SupplyChainAnalysis
	out.CompetitorAnalysis = candidate.CompetitorAnalysis
	out.KeyPoints = candidate.KeyPoints

	out.PredictionCount = candidate.PredictionCount
	out.MatchedCount = candidate.MatchedCount
	out.VerificationRate = candidate.VerificationRate
	out.Confidence = candidate.Confidence
	out.ConfidenceMultiplier = candidate.ConfidenceMultiplier

	out.Rank = candidate.Rank
	out.Commentary = candidate.Commentary
	out.ActionSuggestion = candidate.ActionSuggestion
	out.ImpactScore = candidate.ImpactScore
	out.BaseScore = candidate.BaseScore

	out.AnalysisStage1 = candidate.AnalysisStage1
	out.AnalysisStage2 = candidate.AnalysisStage2
	out.AnalysisStage3 = candidate.AnalysisStage3
	out.AnalysisStage4 = candidate.AnalysisStage4

	out.EffectiveScore = Effective(&out, now)
	out.DisplayRecommendation = string(Label(out.EffectiveScore))
	out.VerificationLogs = nil
	return &out
}

// RecalculateAll 重算保留窗口内全部记录的有效分数，返回更新条数
func (l *Lifecycle) RecalculateAll(ctx context.Context, now time.Time) (int, error) {
	items, err := l.store.AllCuratedSince(ctx, now.Add(-l.retention))
	if err != nil {
		return 0, fmt.Errorf("加载精选新闻失败: %w", err)
	}

	updates := make([]store.ScoreUpdate, 0, len(items))
	for i := range items {
		eff := Effective(&items[i], now)
		updates = append(updates, store.ScoreUpdate{
			ID:                    items[i].ID,
			EffectiveScore:        eff,
			DisplayRecommendation: string(Label(eff)),
		})
	}
	if len(updates) == 0 {
		return 0, nil
	}
	if err := l.store.UpdateEffectiveScores(ctx, updates); err != nil {
		return 0, fmt.Errorf("写入有效分数失败: %w", err)
	}
	l.logger.Info("有效分数重算完成", "count", len(updates))
	return len(updates), nil
}
