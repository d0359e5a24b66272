package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestMemoryPublisher(t *testing.T) {
	p := NewMemoryPublisher()
	ctx := context.Background()

	assert.Equal(t, nil, p.Publish(ctx, SubjectDigestCompleted, DigestEvent{DigestDate: "2025-03-10", TotalCurated: 3}))
	assert.Equal(t, nil, p.Publish(ctx, SubjectNewsCurated, CuratedEvent{ID: 7, Title: "t"}))
	assert.Equal(t, nil, p.Publish(ctx, SubjectNewsCurated, "raw"))

	assert.Equal(t, 3, len(p.Messages("")))
	curated := p.Messages(SubjectNewsCurated)
	assert.Equal(t, 2, len(curated))
	assert.Equal(t, "raw", string(curated[1].Data))

	var evt DigestEvent
	assert.Equal(t, nil, json.Unmarshal(p.Messages(SubjectDigestCompleted)[0].Data, &evt))
	assert.Equal(t, 3, evt.TotalCurated)
}

func TestEncodeRejectsUnsupported(t *testing.T) {
	_, err := encode(make(chan int))
	assert.NotEqual(t, nil, err)
}
