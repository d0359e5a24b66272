// Package batch 每日批处理：采集、聚类、四阶段分析、评分与持久化
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"NewsRadar/pkg/cluster"
	"NewsRadar/pkg/collector"
	"NewsRadar/pkg/messaging"
	"NewsRadar/pkg/model"
	"NewsRadar/pkg/pipeline"
	"NewsRadar/pkg/scoring"
	"NewsRadar/pkg/store"
	"NewsRadar/pkg/verify"
)

// Deps 批处理依赖
type Deps struct {
	Source       collector.ArticleSource
	Store        store.Store
	Clusterer    *cluster.Clusterer
	Orchestrator *pipeline.Orchestrator
	Lifecycle    *scoring.Lifecycle
	Publisher    messaging.Publisher // 可为空
}

// Options 批处理参数
type Options struct {
	Watchlist     []string
	Location      *time.Location // 计算 digest_date 的时区
	LookbackHours int
	StaleAfter    time.Duration
	RunTimeout    time.Duration
	PriceHorizon  time.Duration // 价格源实际覆盖的跨度，0 表示与回溯窗口一致
}

// RunOptions 单次运行参数
type RunOptions struct {
	LookbackHours   int       // 0 使用默认值
	Force           bool      // 重新处理当日已提交的主题
	SkipIfCompleted bool      // 当日已完成时直接返回
	Now             time.Time // 零值使用当前时间
	BatchID         string    // 为空时自动生成
}

// RunResult 运行结果
type RunResult struct {
	BatchID    string                    `json:"batch_id"`
	DigestDate time.Time                 `json:"digest_date"`
	Status     model.DigestStatus        `json:"status"`
	Skipped    bool                      `json:"skipped"`
	Digest     *model.DailyDigest        `json:"digest"`
	Dedup      cluster.DedupStats        `json:"dedup"`
	Balance    collector.RegionalBalance `json:"regional_balance"`
	Curated    []model.CuratedNews       `json:"curated,omitempty"`
	Stats      *store.AnalysisStats      `json:"stats,omitempty"`
	Window     VerificationWindow        `json:"verification_window"`
}

// VerificationWindow 预测验证实际使用的价格跨度；Truncated 表示价格源覆盖不到整个回溯窗口
type VerificationWindow struct {
	LookbackHours     int     `json:"lookback_hours"`
	PriceHorizonHours float64 `json:"price_horizon_hours"`
	Truncated         bool    `json:"truncated"`
}

func verificationWindow(lookbackHours int, horizon time.Duration) VerificationWindow {
	w := VerificationWindow{LookbackHours: lookbackHours, PriceHorizonHours: float64(lookbackHours)}
	if horizon > 0 && horizon < time.Duration(lookbackHours)*time.Hour {
		w.PriceHorizonHours = horizon.Hours()
		w.Truncated = true
	}
	return w
}

// Coordinator 批处理协调器，digest_date 唯一约束保证同日互斥
type Coordinator struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewCoordinator 创建批处理协调器
func NewCoordinator(deps Deps, opts Options, logger *slog.Logger) *Coordinator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LookbackHours <= 0 {
		opts.LookbackHours = 24
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		deps:   deps,
		opts:   opts,
		logger: logger.With("component", "batch"),
		now:    time.Now,
	}
}

// run 一次运行的可变状态
type run struct {
	*Coordinator
	ctx     context.Context
	log     *slog.Logger
	digest  *model.DailyDigest
	prev    *model.DailyDigest // 本次开始前已完成的记录，重新运行失败时恢复
	result  *RunResult
	now     time.Time
	started time.Time
}

// Run 执行一次批处理。同日已有运行中的批处理时返回 store.ErrDigestRunning；
// 阶段整体失败或被取消时 digest 标记为 failed，已提交的主题保持不变
func (c *Coordinator) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if c.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RunTimeout)
		defer cancel()
	}

	now := opts.Now
	if now.IsZero() {
		now = c.now()
	}
	lookback := opts.LookbackHours
	if lookback <= 0 {
		lookback = c.opts.LookbackHours
	}
	digestDate := model.DigestDay(now, c.opts.Location)

	existing, err := c.deps.Store.GetDigest(ctx, digestDate)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("查询批处理记录失败: %w", err)
	}
	var prev *model.DailyDigest
	if err == nil && existing.Status == model.DigestCompleted {
		if opts.SkipIfCompleted && !opts.Force {
			c.logger.Info("当日批处理已完成，跳过", "digest_date", digestDate.Format(time.DateOnly))
			return &RunResult{
				BatchID:    existing.BatchID,
				DigestDate: digestDate,
				Status:     existing.Status,
				Skipped:    true,
				Digest:     existing,
			}, nil
		}
		prev = existing
	}

	batchID := opts.BatchID
	if batchID == "" {
		batchID = uuid.New().String()
	}
	digest, err := c.deps.Store.BeginDigest(ctx, store.BeginDigestParams{
		DigestDate:    digestDate,
		BatchID:       batchID,
		LookbackHours: lookback,
		StartedAt:     now,
		StaleAfter:    c.opts.StaleAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("开始批处理失败: %w", err)
	}

	r := &run{
		Coordinator: c,
		ctx:         ctx,
		log:         c.logger.With("digest_date", digestDate.Format(time.DateOnly), "batch_id", batchID),
		digest:      digest,
		prev:        prev,
		result:      &RunResult{
			BatchID:    batchID,
			DigestDate: digestDate,
			Status:     model.DigestRunning,
			Window:     verificationWindow(lookback, c.opts.PriceHorizon),
		},
		now:         now,
		started:     time.Now(),
	}
	r.log.Info("批处理开始", "lookback_hours", lookback, "force", opts.Force)
	if r.result.Window.Truncated {
		r.log.Warn("价格源只覆盖部分回溯窗口，预测按较短跨度验证",
			"price_horizon_hours", r.result.Window.PriceHorizonHours)
	}

	if err := r.execute(now.Add(-time.Duration(lookback)*time.Hour), opts.Force); err != nil {
		return r.fail(err)
	}
	return r.result, nil
}

func (r *run) execute(since time.Time, force bool) error {
	ctx := r.ctx

	articles, err := r.deps.Source.Fetch(ctx, since)
	if err != nil {
		return fmt.Errorf("采集新闻失败: %w", err)
	}
	for i := range articles {
		articles[i].BatchID = r.result.BatchID
	}
	inserted, err := r.deps.Store.SaveRawNews(ctx, articles)
	if err != nil {
		return fmt.Errorf("保存原始新闻失败: %w", err)
	}
	r.result.Balance = collector.CheckRegionalBalance(articles)
	r.digest.TotalRawNews = len(articles)
	r.digest.RegionalDistribution = model.ToJSON(r.result.Balance)
	r.log.Info("采集完成", "articles", len(articles), "inserted", inserted, "deficient_regions", r.result.Balance.Deficiencies)

	merged := r.deps.Clusterer.Cluster(articles)
	if err := r.deps.Store.SaveMergedNews(ctx, merged); err != nil {
		return fmt.Errorf("保存合并新闻失败: %w", err)
	}
	r.result.Dedup = cluster.Stats(len(articles), len(merged))
	r.digest.TotalMergedNews = len(merged)

	pending := merged
	if !force {
		pending, err = r.skipCommitted(merged)
		if err != nil {
			return err
		}
	}
	r.digest.TotalSkippedNews = len(merged) - len(pending)
	r.progress()

	var res *pipeline.Result
	if len(pending) > 0 {
		bc := pipeline.NewBatchContext(r.result.BatchID, r.result.DigestDate, r.opts.Watchlist,
			verify.Window{From: since, To: r.now}, pending)
		res, err = r.deps.Orchestrator.Run(ctx, bc)
		if err != nil {
			return fmt.Errorf("分析流程失败: %w", err)
		}
	} else {
		res = &pipeline.Result{}
	}
	r.digest.TotalScreenedNews = len(res.Screened)
	if r.prev != nil && !force {
		// 跳过的主题已在之前的运行中筛选过
		r.digest.TotalScreenedNews += r.prev.TotalScreenedNews
	}
	r.progress()

	failed, err := r.commit(res.Curated)
	if err != nil {
		return err
	}
	r.digest.TotalIncompleteNews = len(res.Incomplete) + failed
	if failed > 0 {
		r.digest.ErrorMessage = fmt.Sprintf("%d 个主题持久化失败", failed)
	}
	return r.finish()
}

func (r *run) skipCommitted(merged []model.MergedNews) ([]model.MergedNews, error) {
	committed, err := r.deps.Store.CommittedTopicKeys(r.ctx, r.result.DigestDate)
	if err != nil {
		return nil, fmt.Errorf("查询已提交主题失败: %w", err)
	}
	if len(committed) == 0 {
		return merged, nil
	}
	pending := make([]model.MergedNews, 0, len(merged))
	for _, m := range merged {
		if _, done := committed[m.TopicKey()]; !done {
			pending = append(pending, m)
		}
	}
	r.log.Info("跳过已提交主题", "skipped", len(merged)-len(pending))
	return pending, nil
}

// commit 按排名逐主题提交，每个主题一个事务；单个主题失败不影响其他主题
func (r *run) commit(ranked []*pipeline.TopicState) (int, error) {
	failed := 0
	categories := make(map[string]int)
	for _, t := range ranked {
		if err := r.ctx.Err(); err != nil {
			return failed, err
		}

		var (
			saved        *model.CuratedNews
			continuation bool
		)
		err := r.deps.Store.InTopicTx(r.ctx, func(tx store.TopicTx) error {
			var err error
			saved, continuation, err = r.deps.Lifecycle.FindMergeOrCreate(r.ctx, tx, t.Curated(r.result.DigestDate), r.now)
			if err != nil {
				return err
			}
			if t.Verification != nil {
				if err := tx.AppendVerificationLogs(r.ctx, t.Verification.Logs(saved.ID, r.result.DigestDate, r.now)); err != nil {
					return err
				}
			}
			return tx.RecordDigestEntry(r.ctx, &model.DigestEntry{
				DigestDate:    r.result.DigestDate,
				TopicKey:      t.Topic.TopicKey(),
				CuratedNewsID: saved.ID,
				Continuation:  continuation,
			})
		})
		if err != nil {
			if ctxErr := r.ctx.Err(); ctxErr != nil {
				return failed, ctxErr
			}
			failed++
			r.log.Error("主题提交失败", "topic", t.Topic.Title, "error", err)
			continue
		}

		r.result.Curated = append(r.result.Curated, *saved)
		categories[saved.Category]++
		r.publish(messaging.SubjectNewsCurated, messaging.CuratedEvent{
			ID:                    saved.ID,
			DigestDate:            r.result.DigestDate.Format(time.DateOnly),
			Title:                 saved.Title,
			URL:                   saved.URL,
			Category:              saved.Category,
			Rank:                  saved.Rank,
			EffectiveScore:        saved.EffectiveScore,
			DisplayRecommendation: saved.DisplayRecommendation,
			ReportingDays:         saved.ReportingDays,
			Continuation:          continuation,
		})
	}
	r.digest.TotalCuratedNews = len(r.result.Curated)
	r.digest.CategoryDistribution = model.ToJSON(categories)
	return failed, nil
}

func (r *run) progress() {
	r.digest.ProcessingTimeSeconds = time.Since(r.started).Seconds()
	if err := r.deps.Store.UpdateDigest(r.ctx, r.digest); err != nil {
		r.log.Warn("更新批处理进度失败", "error", err)
	}
}

func (r *run) finish() error {
	completed := time.Now()
	r.digest.Status = model.DigestCompleted
	r.digest.CompletedAt = &completed
	r.digest.ProcessingTimeSeconds = time.Since(r.started).Seconds()

	stats, err := r.deps.Store.AnalysisStats(r.ctx, r.result.DigestDate)
	if err != nil {
		r.log.Warn("统计分析结果失败", "error", err)
	} else {
		stats.IncompleteCount = r.digest.TotalIncompleteNews
		applyCommitted(r.digest, stats)
	}
	if err := r.deps.Store.FinishDigest(r.ctx, r.digest); err != nil {
		return fmt.Errorf("完成批处理失败: %w", err)
	}

	r.result.Stats = stats
	r.result.Status = model.DigestCompleted
	r.result.Digest = r.digest

	r.publish(messaging.SubjectDigestCompleted, r.event())
	r.log.Info("批处理完成",
		"raw", r.digest.TotalRawNews,
		"merged", r.digest.TotalMergedNews,
		"screened", r.digest.TotalScreenedNews,
		"curated", r.digest.TotalCuratedNews,
		"skipped", r.digest.TotalSkippedNews,
		"incomplete", r.digest.TotalIncompleteNews,
		"seconds", r.digest.ProcessingTimeSeconds)
	return nil
}

// applyCommitted 精选数量与类别分布以 digest_entries 为准，包含之前运行已提交的主题
func applyCommitted(dg *model.DailyDigest, stats *store.AnalysisStats) {
	dg.TotalCuratedNews = stats.TotalCurated
	dg.CategoryDistribution = model.ToJSON(stats.ByCategory)
}

// fail 记录失败状态；上下文可能已取消，写库使用独立上下文。
// 当日已完成过的记录保持 completed 和原有统计，只记录本次错误
func (r *run) fail(cause error) (*RunResult, error) {
	ctx := context.WithoutCancel(r.ctx)
	completed := time.Now()
	r.digest.Status = model.DigestFailed
	r.digest.ErrorMessage = cause.Error()
	r.digest.CompletedAt = &completed
	r.digest.ProcessingTimeSeconds = time.Since(r.started).Seconds()
	event := r.event()

	stored := r.digest
	if r.prev != nil {
		restored := *r.prev
		restored.BatchID = r.digest.BatchID
		restored.ErrorMessage = fmt.Sprintf("重新运行失败: %v", cause)
		if stats, err := r.deps.Store.AnalysisStats(ctx, r.result.DigestDate); err == nil {
			applyCommitted(&restored, stats)
		}
		stored = &restored
		r.log.Warn("重新运行失败，保留上次完成的批处理记录")
	}
	if err := r.deps.Store.FinishDigest(ctx, stored); err != nil {
		r.log.Error("标记批处理失败状态出错", "error", err)
	}

	r.result.Status = model.DigestFailed
	r.result.Digest = stored
	r.publishCtx(ctx, messaging.SubjectDigestFailed, event)
	r.log.Error("批处理失败", "error", cause)
	return r.result, cause
}

func (r *run) event() messaging.DigestEvent {
	return messaging.DigestEvent{
		DigestDate:        r.result.DigestDate.Format(time.DateOnly),
		BatchID:           r.result.BatchID,
		Status:            string(r.digest.Status),
		TotalRaw:          r.digest.TotalRawNews,
		TotalMerged:       r.digest.TotalMergedNews,
		TotalScreened:     r.digest.TotalScreenedNews,
		TotalCurated:      r.digest.TotalCuratedNews,
		TotalSkipped:      r.digest.TotalSkippedNews,
		TotalIncomplete:   r.digest.TotalIncompleteNews,
		ProcessingSeconds: r.digest.ProcessingTimeSeconds,
		Error:             r.digest.ErrorMessage,
	}
}

func (r *run) publish(subject string, data any) {
	r.publishCtx(r.ctx, subject, data)
}

// publishCtx 事件发布失败不影响批处理结果
func (r *run) publishCtx(ctx context.Context, subject string, data any) {
	if r.deps.Publisher == nil {
		return
	}
	if err := r.deps.Publisher.Publish(ctx, subject, data); err != nil {
		r.log.Warn("发布事件失败", "subject", subject, "error", err)
	}
}
