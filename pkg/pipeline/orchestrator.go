package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsRadar/pkg/graph"
	"NewsRadar/pkg/llm"
	"NewsRadar/pkg/model"
	"NewsRadar/pkg/scoring"
	"NewsRadar/pkg/verify"
)

// Invoker 按阶段调用模型并返回 JSON
type Invoker interface {
	Invoke(ctx context.Context, stage llm.Stage, payload any) (json.RawMessage, error)
}

// Verifier 第三阶段验证
type Verifier interface {
	VerifyTopic(ctx context.Context, predictions []model.Prediction, window verify.Window) verify.TopicVerification
}

// Options 编排参数
type Options struct {
	ScreenCap       int
	ScreenBatchSize int
	Concurrency     int
	MaxAttempts     int
	BackoffBase     time.Duration
}

// DefaultOptions 默认编排参数
func DefaultOptions() Options {
	return Options{
		ScreenCap:       30,
		ScreenBatchSize: 20,
		Concurrency:     4,
		MaxAttempts:     3,
		BackoffBase:     2 * time.Second,
	}
}

// Orchestrator 四阶段分析编排：筛选、分析预测、验证、排名，严格按序执行
type Orchestrator struct {
	llm      Invoker
	verifier Verifier
	graph    *graph.Graph
	opts     Options
	logger   *slog.Logger
}

// NewOrchestrator 创建分析流程编排器，g 为空时使用默认关系图
func NewOrchestrator(inv Invoker, verifier Verifier, g *graph.Graph, opts Options, logger *slog.Logger) *Orchestrator {
	def := DefaultOptions()
	if opts.ScreenCap <= 0 {
		opts.ScreenCap = def.ScreenCap
	}
	if opts.ScreenBatchSize <= 0 {
		opts.ScreenBatchSize = def.ScreenBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.BackoffBase < 0 {
		opts.BackoffBase = 0
	}
	if g == nil {
		g = graph.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		llm:      inv,
		verifier: verifier,
		graph:    g,
		opts:     opts,
		logger:   logger.With("component", "pipeline"),
	}
}

// Run 依次执行四个阶段；任一阶段全部失败时返回 ErrStageFailed
func (o *Orchestrator) Run(ctx context.Context, bc *BatchContext) (*Result, error) {
	log := o.logger.With("batch_id", bc.BatchID)
	res := &Result{}

	screened, err := o.Screen(ctx, bc)
	if err != nil {
		return nil, err
	}
	res.Screened = screened
	log.Info("第一阶段筛选完成", "topics", len(bc.Topics), "selected", len(screened))

	analyzed, err := o.Analyze(ctx, bc, screened)
	if err != nil {
		return nil, err
	}
	res.Analyzed = analyzed
	log.Info("第二阶段分析完成", "analyzed", len(analyzed))

	if err := o.Verify(ctx, bc, analyzed); err != nil {
		return nil, err
	}
	log.Info("第三阶段验证完成")

	curated, err := o.Rank(ctx, bc, analyzed)
	if err != nil {
		return nil, err
	}
	res.Curated = curated
	log.Info("第四阶段排名完成", "curated", len(curated))

	for _, t := range bc.Topics {
		if t.Incomplete {
			res.Incomplete = append(res.Incomplete, t)
		}
	}
	return res, nil
}

type screenItem struct {
	Index       int       `json:"index"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	Region      string    `json:"region"`
	PublishedAt time.Time `json:"published_at"`
}

type screenPayload struct {
	Watchlist []string     `json:"watchlist"`
	MaxItems  int          `json:"max_items"`
	Items     []screenItem `json:"items"`
}

// Screen 第一阶段：分批筛选，结果按原始顺序截断到上限
func (o *Orchestrator) Screen(ctx context.Context, bc *BatchContext) ([]*TopicState, error) {
	if len(bc.Topics) == 0 {
		return nil, nil
	}

	picked := make(map[int]ScreenPick)
	failedBatches, batches := 0, 0
	for start := 0; start < len(bc.Topics); start += o.opts.ScreenBatchSize {
		end := min(start+o.opts.ScreenBatchSize, len(bc.Topics))
		batch := bc.Topics[start:end]
		batches++

		payload := screenPayload{Watchlist: bc.Watchlist, MaxItems: o.opts.ScreenCap}
		for i, t := range batch {
			payload.Items = append(payload.Items, screenItem{
				Index:       i + 1,
				Title:       t.Topic.Title,
				Source:      t.Topic.Source,
				Region:      t.Topic.Region,
				PublishedAt: t.Topic.PublishedAt,
			})
		}

		var resp ScreenResponse
		err := o.call(ctx, llm.StageScreen, payload, &resp, func(bool) error {
			return checkIndexes(resp.Selected, len(batch))
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failedBatches++
			for _, t := range batch {
				t.markIncomplete("screen", err)
			}
			continue
		}
		for _, p := range resp.Selected {
			if _, dup := picked[start+p.Index-1]; !dup {
				picked[start+p.Index-1] = p
			}
		}
	}

	if failedBatches == batches {
		return nil, fmt.Errorf("%w: screen", ErrStageFailed)
	}

	var survivors []*TopicState
	for i, t := range bc.Topics {
		p, ok := picked[i]
		if !ok {
			continue
		}
		if len(survivors) == o.opts.ScreenCap {
			break
		}
		pick := p
		t.Screen = &pick
		t.Category = model.NormalizeCategory(p.Category)
		if t.Category == "" {
			t.Category = model.NormalizeCategory(t.Topic.Category)
		}
		survivors = append(survivors, t)
	}
	return survivors, nil
}

func checkIndexes(picks []ScreenPick, n int) error {
	for _, p := range picks {
		if p.Index < 1 || p.Index > n {
			return fmt.Errorf("序号 %d 超出范围", p.Index)
		}
	}
	return nil
}

type analyzeNews struct {
	Title          string    `json:"title"`
	Source         string    `json:"source"`
	SourceCount    int       `json:"source_count"`
	RelatedSources []string  `json:"related_sources"`
	Summary        string    `json:"summary,omitempty"`
	Category       string    `json:"category,omitempty"`
	PublishedAt    time.Time `json:"published_at"`
}

type analyzePayload struct {
	News          analyzeNews            `json:"news"`
	Watchlist     []string               `json:"watchlist"`
	Relationships map[string]graph.Peers `json:"relationships,omitempty"`
}

// Analyze 第二阶段：有界并发逐主题分析，全部完成后再返回
func (o *Orchestrator) Analyze(ctx context.Context, bc *BatchContext, topics []*TopicState) ([]*TopicState, error) {
	if len(topics) == 0 {
		return nil, nil
	}

	relationships := make(map[string]graph.Peers)
	for _, s := range bc.Watchlist {
		if p, ok := o.graph.Peers(s); ok {
			relationships[s] = p
		}
	}

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for _, t := range topics {
		t := t
		g.Go(func() error {
			payload := analyzePayload{
				News: analyzeNews{
					Title:          t.Topic.Title,
					Source:         t.Topic.Source,
					SourceCount:    t.Topic.SourceCount,
					RelatedSources: t.Topic.RelatedSources,
					Summary:        t.Topic.Summary,
					Category:       t.Category,
					PublishedAt:    t.Topic.PublishedAt,
				},
				Watchlist:     bc.Watchlist,
				Relationships: relationships,
			}
			var resp AnalysisResponse
			if err := o.call(ctx, llm.StageAnalyze, payload, &resp, nil); err != nil {
				if ctx.Err() == nil {
					t.markIncomplete("analyze", err)
				}
				return nil
			}
			t.Analysis = &resp
			t.Indirect = o.resolveIndirect(&resp, t.DirectSymbols())
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var analyzed []*TopicState
	for _, t := range topics {
		if t.Analysis != nil {
			analyzed = append(analyzed, t)
		}
	}
	if len(analyzed) == 0 {
		return nil, fmt.Errorf("%w: analyze", ErrStageFailed)
	}
	return analyzed, nil
}

// resolveIndirect 间接影响的关系类型以关系图谱为准
func (o *Orchestrator) resolveIndirect(resp *AnalysisResponse, direct []string) []model.IndirectImpact {
	out := make([]model.IndirectImpact, 0, len(resp.IndirectImpacts))
	for _, in := range resp.IndirectImpacts {
		rel, via := o.graph.Resolve(in.Symbol, in.Via, direct)
		out = append(out, model.IndirectImpact{
			Symbol:       in.Symbol,
			Via:          via,
			Relationship: string(rel),
			Direction:    in.Direction,
			Reason:       in.Reason,
		})
	}
	return out
}

// Verify 第三阶段：纯程序验证，按主题并发获取价格
func (o *Orchestrator) Verify(ctx context.Context, bc *BatchContext, topics []*TopicState) error {
	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for _, t := range topics {
		t := t
		g.Go(func() error {
			tv := o.verifier.VerifyTopic(ctx, t.Predictions(), bc.Window)
			t.Verification = &tv
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

type rankVerification struct {
	Total      int              `json:"total"`
	Matched    int              `json:"matched"`
	Rate       float64          `json:"rate"`
	Confidence model.Confidence `json:"confidence"`
}

type rankInput struct {
	TopicID         string           `json:"topic_id"`
	Title           string           `json:"title"`
	Summary         string           `json:"summary"`
	ImpactTier      string           `json:"impact_tier"`
	ImportanceScore float64          `json:"importance_score"`
	Verification    rankVerification `json:"verification"`
}

type rankPayload struct {
	Items []rankInput `json:"items"`
}

// Rank 第四阶段：一次调用给出全序；分数由代码计算，不采用模型给出的数值
func (o *Orchestrator) Rank(ctx context.Context, bc *BatchContext, topics []*TopicState) ([]*TopicState, error) {
	if len(topics) == 0 {
		return nil, nil
	}

	byID := make(map[string]*TopicState, len(topics))
	payload := rankPayload{Items: make([]rankInput, 0, len(topics))}
	for _, t := range topics {
		byID[t.Topic.ID] = t
		in := rankInput{
			TopicID:         t.Topic.ID,
			Title:           t.Topic.Title,
			Summary:         t.Analysis.Summary,
			ImpactTier:      t.Analysis.ImpactTier,
			ImportanceScore: t.Analysis.ImportanceScore,
		}
		if v := t.Verification; v != nil {
			in.Verification = rankVerification{Total: v.Total, Matched: v.Matched, Rate: v.Rate, Confidence: v.Confidence}
		}
		payload.Items = append(payload.Items, in)
	}

	var resp RankResponse
	err := o.call(ctx, llm.StageRank, payload, &resp, func(final bool) error {
		return checkRankings(resp.Rankings, byID, final)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for _, t := range topics {
			t.markIncomplete("rank", err)
		}
		return nil, fmt.Errorf("%w: rank: %v", ErrStageFailed, err)
	}

	ranked := make([]*TopicState, 0, len(resp.Rankings))
	for _, item := range resp.Rankings {
		t := byID[item.TopicID]
		it := item
		t.Ranking = &it
		ranked = append(ranked, t)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Ranking.Rank < ranked[j].Ranking.Rank
	})

	for i, t := range ranked {
		t.Ranking.Rank = i + 1
		t.ImpactScore = clamp(t.Analysis.ImportanceScore, 0, scoring.MaxScore)
		multiplier := 0.9
		if t.Verification != nil {
			multiplier = t.Verification.Multiplier
		}
		t.BaseScore = scoring.BaseScore(t.ImpactScore, t.Topic.ImportanceBoost, multiplier)
	}

	for _, t := range topics {
		if t.Ranking == nil {
			t.markIncomplete("rank", fmt.Errorf("排名结果缺少该主题"))
		}
	}
	return ranked, nil
}

// checkRankings 未知主题、重复主题或重复名次都视为格式错误。
// 排名必须覆盖全部主题；最后一次尝试时接受部分排名，缺少的主题记为未完成
func checkRankings(items []RankItem, byID map[string]*TopicState, partialOK bool) error {
	if len(items) == 0 {
		return fmt.Errorf("排名结果为空")
	}
	ranks := make(map[int]bool, len(items))
	topics := make(map[string]bool, len(items))
	for _, r := range items {
		if _, ok := byID[r.TopicID]; !ok {
			return fmt.Errorf("未知主题 %s", r.TopicID)
		}
		if ranks[r.Rank] {
			return fmt.Errorf("名次 %d 重复", r.Rank)
		}
		if topics[r.TopicID] {
			return fmt.Errorf("主题 %s 重复", r.TopicID)
		}
		ranks[r.Rank] = true
		topics[r.TopicID] = true
	}
	if !partialOK && len(topics) != len(byID) {
		return fmt.Errorf("排名缺少 %d 个主题", len(byID)-len(topics))
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
