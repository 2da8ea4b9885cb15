package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferDrainPreservesOrder(t *testing.T) {
	b := NewMessageBuffer()

	for i := 0; i < 5; i++ {
		b.Push("user1", Item{Type: ItemText, Content: fmt.Sprintf("msg-%d", i)})
	}

	items := b.Drain("user1")
	require.Len(t, items, 5)
	for i, item := range items {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), item.Content)
	}

	// Drain clears atomically: a second drain is empty.
	assert.Empty(t, b.Drain("user1"))
}

func TestCollectorLockAtMostOne(t *testing.T) {
	b := NewMessageBuffer()

	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.TryAcquireCollector("user1") {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, acquired, "concurrent enqueues must not double-schedule")

	// Released lock can be taken again.
	b.ReleaseCollector("user1")
	assert.True(t, b.TryAcquireCollector("user1"))
}

func TestCollectorLockExpires(t *testing.T) {
	b := NewMessageBuffer()
	now := time.Now()
	b.now = func() time.Time { return now }

	require.True(t, b.TryAcquireCollector("user1"))
	assert.False(t, b.TryAcquireCollector("user1"))

	// A crashed collector never releases; the TTL unblocks future batches.
	now = now.Add(21 * time.Second)
	assert.True(t, b.TryAcquireCollector("user1"))
}

func TestQueueStalenessTTL(t *testing.T) {
	b := NewMessageBuffer()
	now := time.Now()
	b.now = func() time.Time { return now }

	b.Push("user1", Item{Type: ItemText, Content: "orphaned"})

	now = now.Add(61 * time.Second)
	assert.Empty(t, b.Drain("user1"), "stale queue must drain as empty")
}

func TestMarkSeenDeduplicates(t *testing.T) {
	b := NewMessageBuffer()

	assert.True(t, b.MarkSeen("wamid.XYZ"))
	assert.False(t, b.MarkSeen("wamid.XYZ"), "redelivery within TTL is dropped")
	assert.True(t, b.MarkSeen("wamid.ABC"))

	// Empty ids are never deduplicated.
	assert.True(t, b.MarkSeen(""))
	assert.True(t, b.MarkSeen(""))
}

func TestMarkSeenExpiry(t *testing.T) {
	b := NewMessageBuffer()
	now := time.Now()
	b.now = func() time.Time { return now }

	assert.True(t, b.MarkSeen("wamid.XYZ"))
	now = now.Add(49 * time.Hour)
	assert.True(t, b.MarkSeen("wamid.XYZ"), "marker expired after 48h")
}

func TestSweepExpired(t *testing.T) {
	b := NewMessageBuffer()
	now := time.Now()
	b.now = func() time.Time { return now }

	b.Push("user1", Item{Type: ItemText, Content: "hello"})
	b.TryAcquireCollector("user2")
	b.MarkSeen("wamid.OLD")

	queues, locks, markers := b.SweepExpired()
	assert.Zero(t, queues+locks+markers, "nothing expired yet")

	now = now.Add(49 * time.Hour)
	queues, locks, markers = b.SweepExpired()
	assert.Equal(t, 1, queues)
	assert.Equal(t, 1, locks)
	assert.Equal(t, 1, markers)
}
