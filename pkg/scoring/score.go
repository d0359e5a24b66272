package scoring

import (
	"math"
	"sort"
	"time"

	"NewsRadar/pkg/model"
)

const (
	MaxScore     = 10.0
	dayBoostStep = 0.3
	maxDayBoost  = 1.0
)

// Recommendation 展示建议
type Recommendation string

const (
	MustRead  Recommendation = "must_read"
	Important Recommendation = "important"
	Reference Recommendation = "reference"
	Low       Recommendation = "low"
)

// BaseScore 基础分 = min(10, 影响分 × 来源加成 × 置信度系数)
func BaseScore(impact, boost, multiplier float64) float64 {
	s := impact * boost * multiplier
	if s < 0 {
		return 0
	}
	return math.Min(MaxScore, s)
}

// DayBoost 连续报道加成，每多一天 +0.3，上限 1.0
func DayBoost(reportingDays int) float64 {
	if reportingDays <= 1 {
		return 0
	}
	return math.Min(maxDayBoost, dayBoostStep*float64(reportingDays-1))
}

// TimeDecay 时间衰减，按 24/48/72 小时分档
func TimeDecay(age time.Duration) float64 {
	switch {
	case age < 24*time.Hour:
		return 0
	case age < 48*time.Hour:
		return 0.5
	case age < 72*time.Hour:
		return 1.0
	default:
		return 1.5
	}
}

// EffectiveScore 有效分数，内部使用时不截断负值；置顶不衰减
func EffectiveScore(base float64, reportingDays int, pinned bool, age time.Duration) float64 {
	score := base + DayBoost(reportingDays)
	if !pinned {
		score -= TimeDecay(age)
	}
	return score
}

// Effective 由记录字段重算有效分数
func Effective(n *model.CuratedNews, now time.Time) float64 {
	return EffectiveScore(n.BaseScore, n.ReportingDays, n.IsPinned, now.Sub(n.FirstSeenAt))
}

// DisplayScore 展示用分数，截断到 0
func DisplayScore(effective float64) float64 {
	return math.Max(0, effective)
}

// DisplayWindow 非置顶记录自首次出现起的展示时长，0 表示不展示
func DisplayWindow(effective float64) time.Duration {
	switch {
	case effective >= 8:
		return 7 * 24 * time.Hour
	case effective >= 6:
		return 3 * 24 * time.Hour
	case effective >= 4:
		return 24 * time.Hour
	default:
		return 0
	}
}

// DisplayDays 展示天数：7、3、1 或 0
func DisplayDays(effective float64) int {
	return int(DisplayWindow(effective) / (24 * time.Hour))
}

// Label 按有效分数给出展示建议
func Label(effective float64) Recommendation {
	switch {
	case effective >= 8:
		return MustRead
	case effective >= 6:
		return Important
	case effective >= 4:
		return Reference
	default:
		return Low
	}
}

// IsDisplayed 判断记录此刻是否展示
func IsDisplayed(n *model.CuratedNews, now time.Time) bool {
	if n.IsPinned {
		return true
	}
	window := DisplayWindow(Effective(n, now))
	return window > 0 && now.Sub(n.FirstSeenAt) < window
}

// RemainingDisplay 剩余展示时长；置顶返回 unlimited=true
func RemainingDisplay(n *model.CuratedNews, now time.Time) (remaining time.Duration, unlimited bool) {
	if n.IsPinned {
		return 0, true
	}
	window := DisplayWindow(Effective(n, now))
	if window == 0 {
		return 0, false
	}
	left := n.FirstSeenAt.Add(window).Sub(now)
	if left < 0 {
		left = 0
	}
	return left, false
}

// Today 重算有效分数并筛选此刻展示的记录，按置顶、有效分数、首次出现倒序
func Today(items []model.CuratedNews, now time.Time) []model.CuratedNews {
	result := make([]model.CuratedNews, 0, len(items))
	for i := range items {
		n := items[i]
		n.EffectiveScore = Effective(&n, now)
		if !IsDisplayed(&n, now) {
			continue
		}
		n.DisplayRecommendation = string(Label(n.EffectiveScore))
		result = append(result, n)
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if a.EffectiveScore != b.EffectiveScore {
			return a.EffectiveScore > b.EffectiveScore
		}
		return a.FirstSeenAt.After(b.FirstSeenAt)
	})
	return result
}
