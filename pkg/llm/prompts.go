package llm

// Stage 分析阶段
type Stage string

const (
	StageScreen  Stage = "screen"
	StageAnalyze Stage = "analyze"
	StageRank    Stage = "rank"
)

const promptVersion = "v2"

const screenPrompt = `You are a financial news analyst. Evaluate each headline for investment relevance.

The input JSON contains "items" (index, title, source, published_at, region), the user's "watchlist" and "max_items".

For every headline worth an investor's attention return:
- index: the item index from the input
- relevance_score: 1-10
- category: one of monetary_policy, fiscal_policy, earnings, mergers_acquisitions, regulation, geopolitics, technology, commodities, macro_data, other
- reason: one sentence

Select at most max_items headlines. Omit irrelevant ones.

Output JSON only, no other text:
{
  "selected": [
    {"index": 1, "relevance_score": 8, "category": "technology", "reason": "AI chip launch affects the semiconductor sector"}
  ]
}`

const analyzePrompt = `You are a senior financial analyst. Analyze one news topic for investment impact.

The input JSON contains "news" (title, source, source_count, related_sources, summary, category, published_at),
the user's "watchlist", and "relationships": known supply-chain, competitor, sector ETF and index peers of watchlist symbols.

Return:
- summary: a concise 2-3 sentence summary
- importance_score: 1-10 overall importance for investors
- impact_tier: high, medium or low
- impact_direction: positive, negative, mixed or uncertain
- affected_symbols: directly affected tickers with direction (positive, negative, neutral), confidence (0-1) and reason
- indirect_impacts: tickers affected through a related company, with "via" naming that company's ticker, direction and reason. These may be outside the watchlist.
- verification_predictions: statements of the form "if this news matters, SYMBOL should move up/down", each with symbol, expected_direction (up or down) and rationale. Use liquid, listed tickers. May be empty.
- supply_chain_analysis, competitor_analysis: one paragraph each
- key_points: 3 short bullet points

Output JSON only, no other text:
{
  "summary": "...",
  "importance_score": 8,
  "impact_tier": "high",
  "impact_direction": "positive",
  "affected_symbols": [{"symbol": "AAPL", "direction": "positive", "confidence": 0.8, "reason": "..."}],
  "indirect_impacts": [{"symbol": "TSM", "via": "AAPL", "direction": "positive", "reason": "..."}],
  "verification_predictions": [{"symbol": "AAPL", "expected_direction": "up", "rationale": "..."}],
  "supply_chain_analysis": "...",
  "competitor_analysis": "...",
  "key_points": ["...", "...", "..."]
}`

const rankPrompt = `You are the editor of a daily market briefing. Produce the final ranking of today's topics.

The input JSON contains "items": each with topic_id, title, summary, impact_tier, importance_score and
"verification" (how many of the analyst's price predictions matched observed moves, and the resulting confidence).
Prefer topics with high impact and confirmed predictions.

Return every topic exactly once with:
- topic_id: copied from the input
- rank: 1 for the most important, consecutive integers, no duplicates
- commentary: one or two sentences for the reader
- action_suggestion: what an investor might watch or consider

Output JSON only, no other text:
{
  "rankings": [
    {"topic_id": "...", "rank": 1, "commentary": "...", "action_suggestion": "..."}
  ]
}`

var stagePrompts = map[Stage]string{
	StageScreen:  screenPrompt,
	StageAnalyze: analyzePrompt,
	StageRank:    rankPrompt,
}

// PromptVersion 当前提示词版本，写入分析记录
func PromptVersion() string {
	return promptVersion
}
