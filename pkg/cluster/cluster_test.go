package cluster

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"NewsRadar/pkg/model"
)

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func article(id, title, source string, minutes int) model.RawNews {
	return model.RawNews{
		ID:          id,
		Title:       title,
		URL:         "https://example.com/" + id,
		Source:      source,
		Region:      "north_america",
		PublishedAt: base.Add(time.Duration(minutes) * time.Minute),
		BatchID:     "batch-1",
	}
}

const (
	titleA = "apple unveils new iphone with ai chip"
	titleB = "apple unveils new iphone with ai chip today"
	titleC = "apple unveils new iphone with ai chip today reports"
)

func TestImportanceBoost(t *testing.T) {
	tests := []struct {
		count int
		want  float64
	}{
		{1, 1.0}, {2, 1.2}, {3, 1.4}, {4, 1.6}, {5, 1.6}, {12, 1.6}, {0, 1.0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("count_%d", tt.count), func(t *testing.T) {
			assert.Equal(t, tt.want, ImportanceBoost(tt.count))
		})
	}
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 10, Priority("Reuters"))
	assert.Equal(t, 10, Priority("Reuters Japan"))
	assert.Equal(t, 5, Priority("Google News - Business"))
	assert.Equal(t, 0, Priority("Some Blog"))
}

func TestClusterTransitiveMerge(t *testing.T) {
	c := NewClusterer(0, nil)
	topics := c.Cluster([]model.RawNews{
		article("1", titleA, "CNBC", 10),
		article("2", "oil prices slide as opec output rises", "MarketWatch", 5),
		article("3", titleB, "Google News", 0),
		article("4", titleC, "Reuters", 30),
	})

	assert.Equal(t, 2, len(topics))
	assert.Equal(t, titleC, topics[0].Title)
	assert.Equal(t, "Reuters", topics[0].Source)
	assert.Equal(t, 3, topics[0].SourceCount)
	assert.Equal(t, 1.4, topics[0].ImportanceBoost)
	assert.Equal(t, []string{"CNBC", "Google News"}, []string(topics[0].RelatedSources))
	assert.Equal(t, 1, topics[1].SourceCount)
	assert.Equal(t, 1.0, topics[1].ImportanceBoost)
}

func TestClusterTieBreaksOnEarliestPublished(t *testing.T) {
	c := NewClusterer(0, nil)
	topics := c.Cluster([]model.RawNews{
		article("1", titleA, "Bloomberg", 20),
		article("2", titleA, "Reuters", 5),
	})

	assert.Equal(t, 1, len(topics))
	assert.Equal(t, "Reuters", topics[0].Source)
	assert.Equal(t, []string{"Bloomberg"}, []string(topics[0].RelatedSources))
}

func TestClusterFoldsSameURL(t *testing.T) {
	c := NewClusterer(0, nil)
	a := article("1", "fed holds rates steady", "Reuters", 0)
	b := article("2", "markets rally on central bank pause", "CNBC", 1)
	b.URL = a.URL

	topics := c.Cluster([]model.RawNews{a, b})
	assert.Equal(t, 1, len(topics))
	assert.Equal(t, 2, topics[0].SourceCount)
}

func TestClusterIsIdempotent(t *testing.T) {
	c := NewClusterer(0, nil)
	first := c.Cluster([]model.RawNews{
		article("1", titleA, "CNBC", 0),
		article("2", titleB, "Reuters", 1),
		article("3", titleC, "Bloomberg", 2),
		article("4", "oil prices slide as opec output rises", "MarketWatch", 3),
		article("5", "oil prices slide as opec output rises sharply", "Reuters", 4),
		article("6", "yen weakens past 150 per dollar", "Nikkei Asia", 5),
	})

	second := c.Cluster(AsRaw(first))
	assert.Equal(t, len(first), len(second))
	for _, topic := range second {
		assert.Equal(t, 1, topic.SourceCount)
	}
}

func TestClusterEmpty(t *testing.T) {
	c := NewClusterer(0, nil)
	assert.Equal(t, 0, len(c.Cluster(nil)))
}

func TestStats(t *testing.T) {
	s := Stats(100, 65)
	assert.Equal(t, 35, s.DuplicatesRemoved)
	assert.Equal(t, 0.35, s.DedupRatio)
	assert.Equal(t, 0.0, Stats(0, 0).DedupRatio)
}
