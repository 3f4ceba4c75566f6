package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFanOut(t *testing.T) {
	b := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan Wakeup, 4)
	require.NoError(t, b.StartForwarder(ctx, func(m Wakeup) { got <- m }))
	require.NoError(t, b.StartForwarder(ctx, func(m Wakeup) { got <- m }))

	require.NoError(t, b.Publish(context.Background(), Wakeup{StudentID: "s1"}))
	assert.Equal(t, "s1", (<-got).StudentID)
	assert.Equal(t, "s1", (<-got).StudentID)

	cancel()
	require.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return len(b.subs) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestNoop(t *testing.T) {
	var b Bus = Noop{}
	assert.NoError(t, b.Publish(context.Background(), Wakeup{}))
	assert.NoError(t, b.StartForwarder(context.Background(), nil))
	assert.NoError(t, b.Close())
}
