package pipeline

import (
	"strings"
	"time"

	"NewsRadar/pkg/model"
	"NewsRadar/pkg/verify"
)

// BatchContext 一次批处理的全部状态，显式在各阶段之间传递
type BatchContext struct {
	BatchID    string
	DigestDate time.Time
	Watchlist  []string
	Window     verify.Window
	Topics     []*TopicState
}

// NewBatchContext 按聚类顺序为每个主题建立状态
func NewBatchContext(batchID string, digestDate time.Time, watchlist []string, window verify.Window, topics []model.MergedNews) *BatchContext {
	bc := &BatchContext{
		BatchID:    batchID,
		DigestDate: digestDate,
		Watchlist:  normalizeSymbols(watchlist),
		Window:     window,
		Topics:     make([]*TopicState, len(topics)),
	}
	for i := range topics {
		bc.Topics[i] = &TopicState{Topic: topics[i]}
	}
	return bc
}

// TopicState 单个主题在各阶段累积的分析结果，阶段结束后只读
type TopicState struct {
	Topic model.MergedNews

	Screen       *ScreenPick
	Category     string
	Analysis     *AnalysisResponse
	Indirect     []model.IndirectImpact
	Verification *verify.TopicVerification
	Ranking      *RankItem

	ImpactScore float64
	BaseScore   float64

	Incomplete bool
	Reason     string
}

func (t *TopicState) markIncomplete(stage string, err error) {
	t.Incomplete = true
	t.Reason = stage + ": " + err.Error()
}

// DirectSymbols 直接受影响的股票，去重并保持顺序
func (t *TopicState) DirectSymbols() []string {
	if t.Analysis == nil {
		return nil
	}
	symbols := make([]string, 0, len(t.Analysis.AffectedSymbols))
	for _, s := range t.Analysis.AffectedSymbols {
		symbols = append(symbols, s.Symbol)
	}
	return normalizeSymbols(symbols)
}

// Predictions 第二阶段给出的验证预测
func (t *TopicState) Predictions() []model.Prediction {
	if t.Analysis == nil {
		return nil
	}
	out := make([]model.Prediction, 0, len(t.Analysis.Predictions))
	for _, p := range t.Analysis.Predictions {
		out = append(out, model.Prediction{
			Symbol:    p.Symbol,
			Expected:  model.Direction(p.ExpectedDirection),
			Rationale: p.Rationale,
		})
	}
	return out
}

// Curated 组装待持久化的精选新闻；生命周期字段由评分引擎填写
func (t *TopicState) Curated(digestDate time.Time) *model.CuratedNews {
	n := t.Topic
	c := &model.CuratedNews{
		MergedNewsID:    n.ID,
		DigestDate:      digestDate,
		Title:           n.Title,
		URL:             n.URL,
		Source:          n.Source,
		Region:          n.Region,
		Category:        t.Category,
		PublishedAt:     n.PublishedAt,
		SourceCount:     n.SourceCount,
		RelatedSources:  n.RelatedSources,
		ImportanceBoost: n.ImportanceBoost,
		ImpactScore:     t.ImpactScore,
		BaseScore:       t.BaseScore,
		AnalysisStage1:  model.ToJSON(t.Screen),
	}

	if a := t.Analysis; a != nil {
		impacts := make([]model.SymbolImpact, 0, len(a.AffectedSymbols))
		for _, s := range a.AffectedSymbols {
			impacts = append(impacts, model.SymbolImpact{
				Symbol:     s.Symbol,
				Direction:  s.Direction,
				Confidence: s.Confidence,
				Reason:     s.Reason,
			})
		}
		c.AISummary = a.Summary
		c.ImpactTier = model.ImpactTier(a.ImpactTier)
		c.ImpactDirection = a.ImpactDirection
		c.AffectedSymbols = t.DirectSymbols()
		c.SymbolImpacts = model.ToJSON(impacts)
		c.IndirectImpacts = model.ToJSON(t.Indirect)
		c.Predictions = model.ToJSON(t.Predictions())
		c.SupplyChainAnalysis = a.SupplyChainAnalysis
		c.CompetitorAnalysis = a.CompetitorAnalysis
		c.KeyPoints = a.KeyPoints
		c.AnalysisStage2 = model.ToJSON(a)
	}

	if v := t.Verification; v != nil {
		c.PredictionCount = v.Total
		c.MatchedCount = v.Matched
		c.VerificationRate = v.Rate
		c.Confidence = v.Confidence
		c.ConfidenceMultiplier = v.Multiplier
		c.AnalysisStage3 = model.ToJSON(v)
	}

	if r := t.Ranking; r != nil {
		c.Rank = r.Rank
		c.Commentary = r.Commentary
		c.ActionSuggestion = r.ActionSuggestion
		c.AnalysisStage4 = model.ToJSON(r)
	}
	return c
}

// Result 一次编排的输出
type Result struct {
	Screened   []*TopicState
	Analyzed   []*TopicState
	Curated    []*TopicState // 按最终排名排序
	Incomplete []*TopicState
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
