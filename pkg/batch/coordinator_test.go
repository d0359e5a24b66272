package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"NewsRadar/pkg/cluster"
	"NewsRadar/pkg/collector"
	"NewsRadar/pkg/llm"
	"NewsRadar/pkg/logging"
	"NewsRadar/pkg/messaging"
	"NewsRadar/pkg/model"
	"NewsRadar/pkg/pipeline"
	"NewsRadar/pkg/repository"
	"NewsRadar/pkg/scoring"
	"NewsRadar/pkg/store"
	"NewsRadar/pkg/verify"
)

var day1 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// scriptedInvoker 不依赖具体载荷类型，按 JSON 字段生成响应
type scriptedInvoker struct {
	mu    sync.Mutex
	calls map[llm.Stage]int
	fail  map[llm.Stage]bool
}

func newScriptedInvoker() *scriptedInvoker {
	return &scriptedInvoker{calls: make(map[llm.Stage]int), fail: make(map[llm.Stage]bool)}
}

func (s *scriptedInvoker) Invoke(ctx context.Context, stage llm.Stage, payload any) (json.RawMessage, error) {
	s.mu.Lock()
	s.calls[stage]++
	fail := s.fail[stage]
	s.mu.Unlock()
	if fail {
		return nil, errors.New("upstream unavailable")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var in struct {
		Items []struct {
			Index   int    `json:"index"`
			TopicID string `json:"topic_id"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}

	var out any
	switch stage {
	case llm.StageScreen:
		picks := make([]map[string]any, 0, len(in.Items))
		for _, it := range in.Items {
			picks = append(picks, map[string]any{"index": it.Index, "relevance_score": 7, "category": "earnings"})
		}
		out = map[string]any{"selected": picks}
	case llm.StageAnalyze:
		out = map[string]any{
			"summary":          "summary",
			"importance_score": 7,
			"impact_tier":      "high",
			"affected_symbols": []map[string]any{{"symbol": "AAPL", "direction": "positive", "confidence": 0.7}},
			"verification_predictions": []map[string]any{
				{"symbol": "AAPL", "expected_direction": "up"},
			},
		}
	case llm.StageRank:
		rankings := make([]map[string]any, 0, len(in.Items))
		for i, it := range in.Items {
			rankings = append(rankings, map[string]any{"topic_id": it.TopicID, "rank": i + 1, "commentary": "c"})
		}
		out = map[string]any{"rankings": rankings}
	default:
		return nil, fmt.Errorf("unexpected stage %s", stage)
	}
	b, err := json.Marshal(out)
	return json.RawMessage(b), err
}

type risingPrices struct{}

func (risingPrices) PriceChange(ctx context.Context, symbol string, window verify.Window) (float64, error) {
	return 2.5, nil
}

// articles 生成 distinct 个主题，前 dup 个主题各有一篇来自另一来源的重复报道
func articles(distinct, dup int, published time.Time, urlPrefix string) []model.RawNews {
	out := make([]model.RawNews, 0, distinct+dup)
	for i := 0; i < distinct; i++ {
		out = append(out, model.RawNews{
			Title:       fmt.Sprintf("Story %d about market", i),
			URL:         fmt.Sprintf("https://reuters.example.com/%s/%d", urlPrefix, i),
			Source:      "Reuters",
			Region:      collector.RegionNorthAmerica,
			PublishedAt: published.Add(-time.Duration(i) * time.Minute),
		})
	}
	for i := 0; i < dup; i++ {
		out = append(out, model.RawNews{
			Title:       fmt.Sprintf("Story %d about market", i),
			URL:         fmt.Sprintf("https://cnbc.example.com/%s/%d", urlPrefix, i),
			Source:      "CNBC",
			Region:      collector.RegionNorthAmerica,
			PublishedAt: published.Add(-time.Duration(i) * time.Minute),
		})
	}
	return out
}

type fixture struct {
	repo      *repository.Repository
	source    *collector.StaticSource
	invoker   *scriptedInvoker
	publisher *messaging.MemoryPublisher
	coord     *Coordinator
}

func newFixture(arts []model.RawNews) *fixture {
	logger := logging.Discard()
	f := &fixture{
		repo:      repository.NewRepository(),
		source:    &collector.StaticSource{SourceName: "static", Articles: arts},
		invoker:   newScriptedInvoker(),
		publisher: messaging.NewMemoryPublisher(),
	}
	orch := pipeline.NewOrchestrator(f.invoker, verify.NewEngine(risingPrices{}, 0, logger), nil,
		pipeline.Options{MaxAttempts: 1}, logger)
	f.coord = NewCoordinator(Deps{
		Source:       f.source,
		Store:        f.repo,
		Clusterer:    cluster.NewClusterer(0, logger),
		Orchestrator: orch,
		Lifecycle:    scoring.NewLifecycle(f.repo, 0, 0, logger),
		Publisher:    f.publisher,
	}, Options{Watchlist: []string{"AAPL"}, LookbackHours: 24}, logger)
	return f
}

func (f *fixture) curated(t *testing.T) []model.CuratedNews {
	t.Helper()
	items, err := f.repo.TodayCurated(context.Background(), time.Time{})
	assert.Equal(t, nil, err)
	return items
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(articles(65, 35, day1.Add(-time.Hour), "d1"))

	res, err := f.coord.Run(context.Background(), RunOptions{Now: day1})
	assert.Equal(t, nil, err)
	assert.Equal(t, model.DigestCompleted, res.Status)
	assert.Equal(t, false, res.Skipped)

	dg := res.Digest
	assert.Equal(t, 100, dg.TotalRawNews)
	assert.Equal(t, 65, dg.TotalMergedNews)
	assert.Equal(t, 30, dg.TotalScreenedNews)
	assert.Equal(t, 30, dg.TotalCuratedNews)
	assert.Equal(t, 0, dg.TotalSkippedNews)
	assert.Equal(t, 0, dg.TotalIncompleteNews)
	assert.Equal(t, 35, res.Dedup.DuplicatesRemoved)
	assert.Equal(t, 65, f.repo.MergedCount())

	stored, err := f.repo.GetDigest(context.Background(), model.DigestDay(day1, time.UTC))
	assert.Equal(t, nil, err)
	assert.Equal(t, model.DigestCompleted, stored.Status)
	assert.NotEqual(t, nil, stored.CompletedAt)

	items := f.curated(t)
	assert.Equal(t, 30, len(items))
	for _, it := range items {
		assert.Equal(t, 1, it.ReportingDays)
		assert.Equal(t, true, it.EffectiveScore > 0)
		assert.Equal(t, "earnings", it.Category)
	}

	assert.Equal(t, 30, res.Stats.TotalCurated)
	assert.Equal(t, 30, res.Stats.TotalPredictions)
	assert.Equal(t, 30, res.Stats.MatchedPredictions)

	assert.Equal(t, 30, len(f.publisher.Messages(messaging.SubjectNewsCurated)))
	done := f.publisher.Messages(messaging.SubjectDigestCompleted)
	assert.Equal(t, 1, len(done))
	var ev messaging.DigestEvent
	assert.Equal(t, nil, json.Unmarshal(done[0].Data, &ev))
	assert.Equal(t, 30, ev.TotalCurated)
	assert.Equal(t, string(model.DigestCompleted), ev.Status)
}

func TestRunContinuityAcrossDays(t *testing.T) {
	f := newFixture(articles(5, 0, day1.Add(-time.Hour), "d1"))
	_, err := f.coord.Run(context.Background(), RunOptions{Now: day1})
	assert.Equal(t, nil, err)

	day2 := day1.Add(24 * time.Hour)
	f.source.Articles = articles(5, 0, day2.Add(-time.Hour), "d2")
	res, err := f.coord.Run(context.Background(), RunOptions{Now: day2})
	assert.Equal(t, nil, err)
	assert.Equal(t, 5, res.Digest.TotalCuratedNews)
	assert.Equal(t, 5, res.Stats.Continuations)

	items := f.curated(t)
	assert.Equal(t, 5, len(items))
	for _, it := range items {
		assert.Equal(t, 2, it.ReportingDays)
		assert.Equal(t, true, it.FirstSeenAt.Equal(day1))
		assert.Equal(t, true, it.LastSeenAt.Equal(day2))
		assert.Equal(t, true, it.DigestDate.Equal(model.DigestDay(day2, time.UTC)))
	}
}

func TestRerunSkipsCommittedTopics(t *testing.T) {
	f := newFixture(articles(5, 0, day1.Add(-time.Hour), "d1"))
	_, err := f.coord.Run(context.Background(), RunOptions{Now: day1})
	assert.Equal(t, nil, err)
	screenCalls := f.invoker.calls[llm.StageScreen]

	res, err := f.coord.Run(context.Background(), RunOptions{Now: day1.Add(time.Hour)})
	assert.Equal(t, nil, err)
	assert.Equal(t, 5, res.Digest.TotalSkippedNews)
	assert.Equal(t, 5, res.Digest.TotalCuratedNews)
	assert.Equal(t, screenCalls, f.invoker.calls[llm.StageScreen])
	assert.Equal(t, 5, len(f.curated(t)))
}

func TestRerunKeepsCompletedDigest(t *testing.T) {
	ctx := context.Background()
	date := model.DigestDay(day1, time.UTC)
	f := newFixture(articles(5, 0, day1.Add(-time.Hour), "d1"))
	first, err := f.coord.Run(ctx, RunOptions{Now: day1})
	assert.Equal(t, nil, err)
	assert.Equal(t, 5, first.Digest.TotalCuratedNews)

	wantCategories := `{"earnings":5}`

	// 无新主题的重新运行保留已提交的统计
	res, err := f.coord.Run(ctx, RunOptions{Now: day1.Add(time.Hour)})
	assert.Equal(t, nil, err)
	assert.Equal(t, model.DigestCompleted, res.Status)
	assert.Equal(t, 5, res.Digest.TotalScreenedNews)
	assert.Equal(t, 5, res.Digest.TotalCuratedNews)
	assert.Equal(t, wantCategories, string(res.Digest.CategoryDistribution))
	assert.Equal(t, res.Stats.TotalCurated, res.Digest.TotalCuratedNews)

	// 新主题在筛选阶段失败，当日记录仍为 completed
	f.source.Articles = articles(6, 0, day1.Add(-time.Hour), "d1")
	f.invoker.fail[llm.StageScreen] = true
	res, err = f.coord.Run(ctx, RunOptions{Now: day1.Add(2 * time.Hour)})
	assert.Equal(t, true, errors.Is(err, pipeline.ErrStageFailed))
	assert.Equal(t, model.DigestFailed, res.Status)

	stored, err := f.repo.GetDigest(ctx, date)
	assert.Equal(t, nil, err)
	assert.Equal(t, model.DigestCompleted, stored.Status)
	assert.Equal(t, 5, stored.TotalCuratedNews)
	assert.Equal(t, 5, stored.TotalScreenedNews)
	assert.Equal(t, wantCategories, string(stored.CategoryDistribution))
	assert.NotEqual(t, "", stored.ErrorMessage)

	latest, err := f.repo.LatestCompletedDigest(ctx)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, latest.DigestDate.Equal(date))
	assert.Equal(t, 1, len(f.publisher.Messages(messaging.SubjectDigestFailed)))
}

func TestRunUsesGivenBatchID(t *testing.T) {
	f := newFixture(articles(2, 0, day1.Add(-time.Hour), "d1"))
	res, err := f.coord.Run(context.Background(), RunOptions{Now: day1, BatchID: "batch-1"})
	assert.Equal(t, nil, err)
	assert.Equal(t, "batch-1", res.BatchID)
	assert.Equal(t, "batch-1", res.Digest.BatchID)
}

func TestForceRerunMergesSameDay(t *testing.T) {
	f := newFixture(articles(5, 0, day1.Add(-time.Hour), "d1"))
	_, err := f.coord.Run(context.Background(), RunOptions{Now: day1})
	assert.Equal(t, nil, err)

	res, err := f.coord.Run(context.Background(), RunOptions{Now: day1.Add(time.Hour), Force: true})
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, res.Digest.TotalSkippedNews)
	assert.Equal(t, 5, res.Digest.TotalCuratedNews)
	assert.Equal(t, 5, res.Stats.Continuations)

	items := f.curated(t)
	assert.Equal(t, 5, len(items))
	for _, it := range items {
		assert.Equal(t, 1, it.ReportingDays)
	}
}

func TestSkipIfCompleted(t *testing.T) {
	f := newFixture(articles(3, 0, day1.Add(-time.Hour), "d1"))
	first, err := f.coord.Run(context.Background(), RunOptions{Now: day1})
	assert.Equal(t, nil, err)

	tests := []struct {
		name        string
		opts        RunOptions
		wantSkipped bool
	}{
		{"completed day is skipped", RunOptions{Now: day1.Add(time.Hour), SkipIfCompleted: true}, true},
		{"force overrides skip", RunOptions{Now: day1.Add(2 * time.Hour), SkipIfCompleted: true, Force: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.coord.Run(context.Background(), tt.opts)
			assert.Equal(t, nil, err)
			assert.Equal(t, tt.wantSkipped, res.Skipped)
			if tt.wantSkipped {
				assert.Equal(t, first.BatchID, res.BatchID)
			} else {
				assert.NotEqual(t, first.BatchID, res.BatchID)
			}
		})
	}
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		want  error
	}{
		{
			name:  "source failure",
			setup: func(f *fixture) { f.source.Err = errors.New("feed down") },
		},
		{
			name:  "screen stage fails entirely",
			setup: func(f *fixture) { f.invoker.fail[llm.StageScreen] = true },
			want:  pipeline.ErrStageFailed,
		},
		{
			name:  "rank stage fails entirely",
			setup: func(f *fixture) { f.invoker.fail[llm.StageRank] = true },
			want:  pipeline.ErrStageFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(articles(4, 0, day1.Add(-time.Hour), "d1"))
			tt.setup(f)

			res, err := f.coord.Run(context.Background(), RunOptions{Now: day1})
			assert.NotEqual(t, nil, err)
			if tt.want != nil {
				assert.Equal(t, true, errors.Is(err, tt.want))
			}
			assert.Equal(t, model.DigestFailed, res.Status)

			stored, err := f.repo.GetDigest(context.Background(), model.DigestDay(day1, time.UTC))
			assert.Equal(t, nil, err)
			assert.Equal(t, model.DigestFailed, stored.Status)
			assert.NotEqual(t, "", stored.ErrorMessage)
			assert.Equal(t, 0, len(f.curated(t)))
			assert.Equal(t, 1, len(f.publisher.Messages(messaging.SubjectDigestFailed)))
		})
	}
}

func TestRunRejectsConcurrentDigest(t *testing.T) {
	f := newFixture(articles(3, 0, day1.Add(-time.Hour), "d1"))
	_, err := f.repo.BeginDigest(context.Background(), store.BeginDigestParams{
		DigestDate: model.DigestDay(day1, time.UTC),
		BatchID:    "other-batch",
		StartedAt:  day1.Add(-10 * time.Minute),
		StaleAfter: time.Hour,
	})
	assert.Equal(t, nil, err)

	_, err = f.coord.Run(context.Background(), RunOptions{Now: day1})
	assert.Equal(t, true, errors.Is(err, store.ErrDigestRunning))

	// 超过 StaleAfter 的运行记录可被接管
	res, err := f.coord.Run(context.Background(), RunOptions{Now: day1.Add(3 * time.Hour)})
	assert.Equal(t, nil, err)
	assert.Equal(t, model.DigestCompleted, res.Status)
}

func TestVerificationWindow(t *testing.T) {
	tests := []struct {
		name      string
		lookback  int
		horizon   time.Duration
		wantHours float64
		truncated bool
	}{
		{"no horizon", 72, 0, 72, false},
		{"horizon covers lookback", 24, 24 * time.Hour, 24, false},
		{"horizon shorter than lookback", 72, 24 * time.Hour, 24, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := verificationWindow(tt.lookback, tt.horizon)
			assert.Equal(t, tt.lookback, w.LookbackHours)
			assert.Equal(t, tt.wantHours, w.PriceHorizonHours)
			assert.Equal(t, tt.truncated, w.Truncated)
		})
	}
}

func TestRunReportsTruncatedPriceWindow(t *testing.T) {
	f := newFixture(articles(2, 0, day1.Add(-time.Hour), "d1"))
	f.coord.opts.PriceHorizon = 24 * time.Hour

	res, err := f.coord.Run(context.Background(), RunOptions{Now: day1, LookbackHours: 72})
	assert.Equal(t, nil, err)
	assert.Equal(t, true, res.Window.Truncated)
	assert.Equal(t, 72, res.Window.LookbackHours)
	assert.Equal(t, float64(24), res.Window.PriceHorizonHours)
}
