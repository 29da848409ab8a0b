package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordPersist(ctx, 1, 10, time.Millisecond, nil)
		m.RecordPersist(ctx, 1, 0, 0, errors.New("test"))
		m.RecordLoad(ctx, 0, nil)
		m.RecordResume(ctx, ResumeFound)
		m.RecordDecay(ctx, 0.1)
	})
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}
	ctx := context.Background()

	newCtx, span := sm.StartSpan(ctx, "persist", attribute.Int("epoch", 1))
	assert.Equal(t, ctx, newCtx)
	assert.NotNil(t, span)
	assert.False(t, span.IsRecording())

	assert.NotPanics(t, func() {
		sm.AddSpanEvent(ctx, "event")
		sm.EndSpanWithError(span, errors.New("test"))
	})
}
