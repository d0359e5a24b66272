package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"NewsRadar/pkg/model"
)

var now = time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC)

func almost(t *testing.T, want, got float64) {
	t.Helper()
	if math.Abs(want-got) > 1e-9 {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestBaseScore(t *testing.T) {
	tests := []struct {
		name                      string
		impact, boost, multiplier float64
		want                      float64
	}{
		{"plain", 5, 1.0, 1.0, 5},
		{"capped at ten", 8, 1.2, 1.2, 10},
		{"low confidence", 5, 1.4, 0.7, 4.9},
		{"unknown confidence", 6, 1.0, 0.9, 5.4},
		{"negative impact", -2, 1.0, 1.0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			almost(t, tt.want, BaseScore(tt.impact, tt.boost, tt.multiplier))
		})
	}
}

func TestDayBoost(t *testing.T) {
	almost(t, 0, DayBoost(0))
	almost(t, 0, DayBoost(1))
	almost(t, 0.3, DayBoost(2))
	almost(t, 0.6, DayBoost(3))
	almost(t, 0.9, DayBoost(4))
	almost(t, 1.0, DayBoost(5))
	almost(t, 1.0, DayBoost(30))
}

func TestTimeDecaySteps(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want float64
	}{
		{0, 0},
		{23*time.Hour + 59*time.Minute, 0},
		{24 * time.Hour, 0.5},
		{47 * time.Hour, 0.5},
		{48 * time.Hour, 1.0},
		{71 * time.Hour, 1.0},
		{72 * time.Hour, 1.5},
		{30 * 24 * time.Hour, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.age.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, TimeDecay(tt.age))
		})
	}
}

func TestEffectiveScoreIsNonIncreasingWithAge(t *testing.T) {
	ages := []time.Duration{0, 12 * time.Hour, 24 * time.Hour, 36 * time.Hour, 48 * time.Hour, 60 * time.Hour, 72 * time.Hour, 200 * time.Hour}
	prev := math.Inf(1)
	for _, age := range ages {
		eff := EffectiveScore(7, 1, false, age)
		if eff > prev {
			t.Fatalf("score rose at %s: %v > %v", age, eff, prev)
		}
		prev = eff
	}
	assert.Equal(t, 7.0, EffectiveScore(7, 1, false, 23*time.Hour))
	assert.Equal(t, 6.5, EffectiveScore(7, 1, false, 24*time.Hour))
	assert.Equal(t, 6.0, EffectiveScore(7, 1, false, 48*time.Hour))
	assert.Equal(t, 5.5, EffectiveScore(7, 1, false, 72*time.Hour))
}

func TestEffectiveScorePinnedSkipsDecay(t *testing.T) {
	assert.Equal(t, 7.0, EffectiveScore(7, 1, true, 100*time.Hour))
	// negative values stay internal
	assert.Equal(t, -1.0, EffectiveScore(0.5, 1, false, 80*time.Hour))
	assert.Equal(t, 0.0, DisplayScore(-1))
}

func TestDisplayWindowAndLabel(t *testing.T) {
	tests := []struct {
		eff    float64
		window time.Duration
		days   int
		label  Recommendation
	}{
		{9.1, 7 * 24 * time.Hour, 7, MustRead},
		{8.0, 7 * 24 * time.Hour, 7, MustRead},
		{7.99, 3 * 24 * time.Hour, 3, Important},
		{6.0, 3 * 24 * time.Hour, 3, Important},
		{4.0, 24 * time.Hour, 1, Reference},
		{3.9, 0, 0, Low},
		{-0.5, 0, 0, Low},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.window, DisplayWindow(tt.eff))
		assert.Equal(t, tt.days, DisplayDays(tt.eff))
		assert.Equal(t, tt.label, Label(tt.eff))
	}
}

func TestIsDisplayedBoundary(t *testing.T) {
	pinned := &model.CuratedNews{BaseScore: 0, ReportingDays: 1, IsPinned: true, FirstSeenAt: now.Add(-240 * time.Hour)}
	low := &model.CuratedNews{BaseScore: 3.9, ReportingDays: 1, FirstSeenAt: now.Add(-time.Hour)}
	mid := &model.CuratedNews{BaseScore: 4.5, ReportingDays: 1, FirstSeenAt: now.Add(-time.Hour)}
	expired := &model.CuratedNews{BaseScore: 4.5, ReportingDays: 1, FirstSeenAt: now.Add(-25 * time.Hour)}

	assert.Equal(t, true, IsDisplayed(pinned, now))
	assert.Equal(t, false, IsDisplayed(low, now))
	assert.Equal(t, true, IsDisplayed(mid, now))
	// 4.5 - 0.5 decay still ≥ 4, but the one-day window has elapsed
	assert.Equal(t, false, IsDisplayed(expired, now))
}

func TestRemainingDisplay(t *testing.T) {
	item := &model.CuratedNews{BaseScore: 8.5, ReportingDays: 1, FirstSeenAt: now.Add(-2 * time.Hour)}
	left, unlimited := RemainingDisplay(item, now)
	assert.Equal(t, false, unlimited)
	assert.Equal(t, 7*24*time.Hour-2*time.Hour, left)

	item.IsPinned = true
	_, unlimited = RemainingDisplay(item, now)
	assert.Equal(t, true, unlimited)

	hidden := &model.CuratedNews{BaseScore: 2, ReportingDays: 1, FirstSeenAt: now}
	left, unlimited = RemainingDisplay(hidden, now)
	assert.Equal(t, time.Duration(0), left)
	assert.Equal(t, false, unlimited)
}

func TestTodayOrdering(t *testing.T) {
	items := []model.CuratedNews{
		{ID: 1, BaseScore: 6.5, ReportingDays: 1, FirstSeenAt: now.Add(-3 * time.Hour)},
		{ID: 2, BaseScore: 0, ReportingDays: 1, IsPinned: true, FirstSeenAt: now.Add(-90 * time.Hour)},
		{ID: 3, BaseScore: 9, ReportingDays: 1, FirstSeenAt: now.Add(-1 * time.Hour)},
		{ID: 4, BaseScore: 6.5, ReportingDays: 1, FirstSeenAt: now.Add(-1 * time.Hour)},
		{ID: 5, BaseScore: 3.9, ReportingDays: 1, FirstSeenAt: now.Add(-1 * time.Hour)},
	}
	got := Today(items, now)

	ids := make([]uint, len(got))
	for i, n := range got {
		ids[i] = n.ID
	}
	assert.Equal(t, []uint{2, 3, 4, 1}, ids)
	assert.Equal(t, string(MustRead), got[1].DisplayRecommendation)
}
