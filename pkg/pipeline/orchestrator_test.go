package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"NewsRadar/pkg/llm"
	"NewsRadar/pkg/logging"
	"NewsRadar/pkg/model"
	"NewsRadar/pkg/verify"
)

// fakeInvoker 按阶段返回脚本化的响应，并记录调用次数
type fakeInvoker struct {
	mu    sync.Mutex
	calls map[llm.Stage]int

	screen  func(p screenPayload, call int) (string, error)
	analyze func(p analyzePayload, call int) (string, error)
	rank    func(p rankPayload, call int) (string, error)
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		calls:   make(map[llm.Stage]int),
		screen:  selectAll,
		analyze: analyzeOK,
		rank:    rankReversed,
	}
}

func (f *fakeInvoker) Invoke(ctx context.Context, stage llm.Stage, payload any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls[stage]++
	call := f.calls[stage]
	f.mu.Unlock()

	var (
		out string
		err error
	)
	switch stage {
	case llm.StageScreen:
		out, err = f.screen(payload.(screenPayload), call)
	case llm.StageAnalyze:
		out, err = f.analyze(payload.(analyzePayload), call)
	case llm.StageRank:
		out, err = f.rank(payload.(rankPayload), call)
	default:
		err = fmt.Errorf("unexpected stage %s", stage)
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

func (f *fakeInvoker) count(stage llm.Stage) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stage]
}

func selectAll(p screenPayload, _ int) (string, error) {
	var resp ScreenResponse
	for _, it := range p.Items {
		resp.Selected = append(resp.Selected, ScreenPick{Index: it.Index, RelevanceScore: 7, Category: "Earnings"})
	}
	b, err := json.Marshal(resp)
	return string(b), err
}

func analyzeOK(p analyzePayload, _ int) (string, error) {
	resp := AnalysisResponse{
		Summary:         "summary of " + p.News.Title,
		ImportanceScore: 8,
		ImpactTier:      "high",
		ImpactDirection: "positive",
		AffectedSymbols: []SymbolImpactOut{{Symbol: "aapl", Direction: "positive", Confidence: 0.8}},
		IndirectImpacts: []IndirectOut{{Symbol: "TSM", Via: "AAPL", Direction: "positive"}},
		Predictions:     []PredictionOut{{Symbol: "AAPL", ExpectedDirection: "up"}},
	}
	b, err := json.Marshal(resp)
	return string(b), err
}

// rankReversed 逆序排名，名次间隔 10 以检验重新编号
func rankReversed(p rankPayload, _ int) (string, error) {
	var resp RankResponse
	n := len(p.Items)
	for i, it := range p.Items {
		resp.Rankings = append(resp.Rankings, RankItem{TopicID: it.TopicID, Rank: (n - i) * 10, Commentary: "c"})
	}
	b, err := json.Marshal(resp)
	return string(b), err
}

type staticVerifier struct {
	tv verify.TopicVerification
}

func (s staticVerifier) VerifyTopic(ctx context.Context, predictions []model.Prediction, window verify.Window) verify.TopicVerification {
	tv := s.tv
	tv.Total = len(predictions)
	tv.Matched = len(predictions)
	return tv
}

func highConfidence() staticVerifier {
	return staticVerifier{tv: verify.TopicVerification{Rate: 1, Confidence: model.ConfidenceHigh, Multiplier: 1.2}}
}

func topics(n int) []model.MergedNews {
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	out := make([]model.MergedNews, n)
	for i := range out {
		out[i] = model.MergedNews{
			ID:              fmt.Sprintf("topic-%02d", i),
			Title:           fmt.Sprintf("Headline number %d", i),
			URL:             fmt.Sprintf("https://example.com/%d", i),
			Source:          "Reuters",
			Region:          "us",
			PublishedAt:     base.Add(time.Duration(i) * time.Minute),
			SourceCount:     1,
			ImportanceBoost: 1.0,
		}
	}
	return out
}

func newTestOrchestrator(inv Invoker, v Verifier) *Orchestrator {
	return NewOrchestrator(inv, v, nil, Options{
		ScreenCap:       30,
		ScreenBatchSize: 20,
		Concurrency:     4,
		MaxAttempts:     2,
		BackoffBase:     0,
	}, logging.Discard())
}

func newBatch(n int) *BatchContext {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	return NewBatchContext("batch-1", day, []string{"aapl", "NVDA", "AAPL"}, verify.Window{From: day, To: day.Add(24 * time.Hour)}, topics(n))
}

func TestNewBatchContextNormalizesWatchlist(t *testing.T) {
	bc := newBatch(3)
	assert.Equal(t, []string{"AAPL", "NVDA"}, bc.Watchlist)
	assert.Equal(t, 3, len(bc.Topics))
	assert.Equal(t, "topic-00", bc.Topics[0].Topic.ID)
}

func TestRunEndToEnd(t *testing.T) {
	inv := newFakeInvoker()
	o := newTestOrchestrator(inv, highConfidence())
	bc := newBatch(45)

	res, err := o.Run(context.Background(), bc)
	assert.Equal(t, nil, err)

	// 45 个主题分 3 批筛选，全部入选后按原始顺序截断到 30
	assert.Equal(t, 3, inv.count(llm.StageScreen))
	assert.Equal(t, 30, len(res.Screened))
	assert.Equal(t, "topic-00", res.Screened[0].Topic.ID)
	assert.Equal(t, "topic-29", res.Screened[29].Topic.ID)
	assert.Equal(t, 30, inv.count(llm.StageAnalyze))
	assert.Equal(t, 1, inv.count(llm.StageRank))

	assert.Equal(t, 30, len(res.Curated))
	assert.Equal(t, 0, len(res.Incomplete))
	for i, ts := range res.Curated {
		assert.Equal(t, i+1, ts.Ranking.Rank)
	}
	assert.Equal(t, "topic-29", res.Curated[0].Topic.ID)
	assert.Equal(t, "topic-00", res.Curated[29].Topic.ID)

	top := res.Curated[0]
	assert.Equal(t, "earnings", top.Category)
	assert.Equal(t, 8.0, top.ImpactScore)
	assert.Equal(t, true, top.BaseScore > 9.59 && top.BaseScore < 9.61)
	assert.Equal(t, []string{"AAPL"}, top.DirectSymbols())
	assert.Equal(t, 1, len(top.Indirect))
	assert.Equal(t, "supply_chain", top.Indirect[0].Relationship)
	assert.Equal(t, "AAPL", top.Indirect[0].Via)
	assert.Equal(t, 1, top.Verification.Total)
}

func TestCuratedCarriesAllStages(t *testing.T) {
	inv := newFakeInvoker()
	o := newTestOrchestrator(inv, highConfidence())
	bc := newBatch(2)

	res, err := o.Run(context.Background(), bc)
	assert.Equal(t, nil, err)

	c := res.Curated[0].Curated(bc.DigestDate)
	assert.Equal(t, "topic-01", c.MergedNewsID)
	assert.Equal(t, 1, c.Rank)
	assert.Equal(t, "earnings", c.Category)
	assert.Equal(t, model.ImpactHigh, c.ImpactTier)
	assert.Equal(t, model.ConfidenceHigh, c.Confidence)
	assert.Equal(t, 1.2, c.ConfidenceMultiplier)
	assert.Equal(t, 1, c.PredictionCount)
	assert.Equal(t, true, len(c.AnalysisStage1) > 0)
	assert.Equal(t, true, len(c.AnalysisStage2) > 0)
	assert.Equal(t, true, len(c.AnalysisStage3) > 0)
	assert.Equal(t, true, len(c.AnalysisStage4) > 0)
}

func TestScreenKeepsOnlySelected(t *testing.T) {
	inv := newFakeInvoker()
	inv.screen = func(p screenPayload, _ int) (string, error) {
		return `{"selected":[{"index":3,"relevance_score":9,"category":"unknown-kind"},{"index":1,"relevance_score":5}]}`, nil
	}
	o := newTestOrchestrator(inv, highConfidence())
	bc := newBatch(5)
	bc.Topics[0].Topic.Category = "regulation"

	got, err := o.Screen(context.Background(), bc)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(got))
	assert.Equal(t, "topic-00", got[0].Topic.ID)
	assert.Equal(t, "topic-02", got[1].Topic.ID)
	assert.Equal(t, "regulation", got[0].Category)
}

func TestScreenRetriesOutOfRangeIndex(t *testing.T) {
	inv := newFakeInvoker()
	inv.screen = func(p screenPayload, call int) (string, error) {
		if call == 1 {
			return `{"selected":[{"index":99}]}`, nil
		}
		return selectAll(p, call)
	}
	o := newTestOrchestrator(inv, highConfidence())

	got, err := o.Screen(context.Background(), newBatch(4))
	assert.Equal(t, nil, err)
	assert.Equal(t, 4, len(got))
	assert.Equal(t, 2, inv.count(llm.StageScreen))
}

func TestScreenPartialBatchFailure(t *testing.T) {
	inv := newFakeInvoker()
	inv.screen = func(p screenPayload, call int) (string, error) {
		if len(p.Items) < 20 {
			return "", errors.New("upstream timeout")
		}
		return selectAll(p, call)
	}
	o := newTestOrchestrator(inv, highConfidence())
	bc := newBatch(25)

	got, err := o.Screen(context.Background(), bc)
	assert.Equal(t, nil, err)
	assert.Equal(t, 20, len(got))
	for _, ts := range bc.Topics[20:] {
		assert.Equal(t, true, ts.Incomplete)
	}
	assert.Equal(t, false, bc.Topics[0].Incomplete)
}

func TestRunAbortsWhenStageFails(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fakeInvoker)
	}{
		{"screen", func(f *fakeInvoker) {
			f.screen = func(screenPayload, int) (string, error) { return "", errors.New("down") }
		}},
		{"analyze", func(f *fakeInvoker) {
			f.analyze = func(analyzePayload, int) (string, error) { return `{"summary":""}`, nil }
		}},
		{"rank", func(f *fakeInvoker) {
			f.rank = func(rankPayload, int) (string, error) { return `not json`, nil }
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := newFakeInvoker()
			tt.setup(inv)
			o := newTestOrchestrator(inv, highConfidence())

			res, err := o.Run(context.Background(), newBatch(3))
			assert.Equal(t, true, errors.Is(err, ErrStageFailed))
			assert.Equal(t, true, res == nil)
		})
	}
}

func TestAnalyzeMarksMalformedTopicIncomplete(t *testing.T) {
	inv := newFakeInvoker()
	inv.analyze = func(p analyzePayload, call int) (string, error) {
		if p.News.Title == "Headline number 1" {
			return `{"summary":"x","importance_score":42,"impact_tier":"high"}`, nil
		}
		return analyzeOK(p, call)
	}
	o := newTestOrchestrator(inv, highConfidence())
	bc := newBatch(3)

	res, err := o.Run(context.Background(), bc)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(res.Curated))
	assert.Equal(t, 1, len(res.Incomplete))
	assert.Equal(t, "topic-01", res.Incomplete[0].Topic.ID)
	// 失败主题重试 MaxAttempts 次
	assert.Equal(t, 4, inv.count(llm.StageAnalyze))
}

func TestRankRetriesDuplicateRanks(t *testing.T) {
	inv := newFakeInvoker()
	inv.rank = func(p rankPayload, call int) (string, error) {
		if call == 1 {
			var resp RankResponse
			for _, it := range p.Items {
				resp.Rankings = append(resp.Rankings, RankItem{TopicID: it.TopicID, Rank: 1})
			}
			b, _ := json.Marshal(resp)
			return string(b), nil
		}
		return rankReversed(p, call)
	}
	o := newTestOrchestrator(inv, highConfidence())

	res, err := o.Run(context.Background(), newBatch(3))
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, inv.count(llm.StageRank))
	assert.Equal(t, 3, len(res.Curated))
}

func TestRankMissingTopicIsIncomplete(t *testing.T) {
	inv := newFakeInvoker()
	inv.rank = func(p rankPayload, _ int) (string, error) {
		return fmt.Sprintf(`{"rankings":[{"topic_id":%q,"rank":5},{"topic_id":%q,"rank":2}]}`, p.Items[0].TopicID, p.Items[2].TopicID), nil
	}
	o := newTestOrchestrator(inv, highConfidence())

	res, err := o.Run(context.Background(), newBatch(3))
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(res.Curated))
	assert.Equal(t, "topic-02", res.Curated[0].Topic.ID)
	assert.Equal(t, 1, res.Curated[0].Ranking.Rank)
	assert.Equal(t, 2, res.Curated[1].Ranking.Rank)
	assert.Equal(t, 1, len(res.Incomplete))
	assert.Equal(t, "topic-01", res.Incomplete[0].Topic.ID)
	// 不完整的排名先重试，最后一次仍缺少才记为未完成
	assert.Equal(t, 2, inv.count(llm.StageRank))
}

func TestRankRetriesIncompleteRanking(t *testing.T) {
	tests := []struct {
		name  string
		first string
	}{
		{"empty rankings", `{"rankings":[]}`},
		{"one topic missing", `{"rankings":[{"topic_id":"topic-00","rank":1},{"topic_id":"topic-01","rank":2}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := newFakeInvoker()
			inv.rank = func(p rankPayload, call int) (string, error) {
				if call == 1 {
					return tt.first, nil
				}
				return rankReversed(p, call)
			}
			o := newTestOrchestrator(inv, highConfidence())

			res, err := o.Run(context.Background(), newBatch(3))
			assert.Equal(t, nil, err)
			assert.Equal(t, 2, inv.count(llm.StageRank))
			assert.Equal(t, 3, len(res.Curated))
			assert.Equal(t, 0, len(res.Incomplete))
		})
	}
}

func TestRankEmptyOnEveryAttemptFails(t *testing.T) {
	inv := newFakeInvoker()
	inv.rank = func(rankPayload, int) (string, error) { return `{"rankings":[]}`, nil }
	o := newTestOrchestrator(inv, highConfidence())

	_, err := o.Run(context.Background(), newBatch(3))
	assert.Equal(t, true, errors.Is(err, ErrStageFailed))
	assert.Equal(t, 2, inv.count(llm.StageRank))
}

func TestBaseScoreUsesVerificationMultiplier(t *testing.T) {
	tests := []struct {
		name     string
		verifier staticVerifier
		boost    float64
		want     float64
	}{
		{"high", highConfidence(), 1.0, 9.6},
		{"low", staticVerifier{tv: verify.TopicVerification{Confidence: model.ConfidenceLow, Multiplier: 0.7}}, 1.0, 5.6},
		{"capped", highConfidence(), 1.5, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(newFakeInvoker(), tt.verifier)
			bc := newBatch(1)
			bc.Topics[0].Topic.ImportanceBoost = tt.boost

			res, err := o.Run(context.Background(), bc)
			assert.Equal(t, nil, err)
			got := res.Curated[0].BaseScore
			assert.Equal(t, true, got > tt.want-0.001 && got < tt.want+0.001)
		})
	}
}

func TestCheckRankings(t *testing.T) {
	byID := map[string]*TopicState{"a": {}, "b": {}}
	tests := []struct {
		name      string
		items     []RankItem
		partialOK bool
		wantErr   bool
	}{
		{"ok", []RankItem{{TopicID: "a", Rank: 2}, {TopicID: "b", Rank: 1}}, false, false},
		{"unknown topic", []RankItem{{TopicID: "c", Rank: 1}}, true, true},
		{"duplicate rank", []RankItem{{TopicID: "a", Rank: 1}, {TopicID: "b", Rank: 1}}, true, true},
		{"duplicate topic", []RankItem{{TopicID: "a", Rank: 1}, {TopicID: "a", Rank: 2}}, true, true},
		{"missing topic", []RankItem{{TopicID: "a", Rank: 1}}, false, true},
		{"missing topic on final attempt", []RankItem{{TopicID: "a", Rank: 1}}, true, false},
		{"empty", nil, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkRankings(tt.items, byID, tt.partialOK)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inv := newFakeInvoker()
	inv.screen = func(screenPayload, int) (string, error) { return "", context.Canceled }
	o := newTestOrchestrator(inv, highConfidence())

	_, err := o.Run(ctx, newBatch(2))
	assert.Equal(t, true, errors.Is(err, context.Canceled))
}
