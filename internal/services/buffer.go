package services

import (
	"sync"
	"time"
)

// ItemType identifies the kind of a buffered inbound item.
type ItemType string

const (
	ItemText     ItemType = "text"
	ItemImage    ItemType = "image"
	ItemAudio    ItemType = "audio"
	ItemDocument ItemType = "document"
)

// Item is one raw inbound message waiting in a user's pending queue.
type Item struct {
	Type       ItemType  `json:"type"`
	Content    string    `json:"content"` // message body or media reference
	Extra      string    `json:"extra,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type userQueue struct {
	items     []Item
	expiresAt time.Time
}

// MessageBuffer holds per-user pending queues, the per-user collector locks
// and the inbound message dedup markers. All three need atomic
// check-and-act semantics under concurrent webhook deliveries, so a single
// mutex guards them.
type MessageBuffer struct {
	mu     sync.Mutex
	queues map[string]*userQueue
	locks  map[string]time.Time // collector lock expiry per user
	seen   map[string]time.Time // dedup marker expiry per message id

	queueTTL time.Duration
	lockTTL  time.Duration
	dedupTTL time.Duration

	now func() time.Time
}

// NewMessageBuffer creates a buffer with the production TTLs: 60s queue
// staleness, 20s collector lock, 48h dedup markers.
func NewMessageBuffer() *MessageBuffer {
	return &MessageBuffer{
		queues:   make(map[string]*userQueue),
		locks:    make(map[string]time.Time),
		seen:     make(map[string]time.Time),
		queueTTL: 60 * time.Second,
		lockTTL:  20 * time.Second,
		dedupTTL: 48 * time.Hour,
		now:      time.Now,
	}
}

// Push appends item to the user's pending queue and refreshes the queue
// staleness TTL.
func (b *MessageBuffer) Push(userID string, item Item) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	q, exists := b.queues[userID]
	if !exists || now.After(q.expiresAt) {
		q = &userQueue{}
		b.queues[userID] = q
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = now
	}
	q.items = append(q.items, item)
	q.expiresAt = now.Add(b.queueTTL)
}

// TryAcquireCollector atomically checks the user's collector lock and sets
// it when absent or expired. It returns true only for the caller that won
// the lock, so at most one collector is scheduled per user at a time.
func (b *MessageBuffer) TryAcquireCollector(userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if expiry, held := b.locks[userID]; held && now.Before(expiry) {
		return false
	}
	b.locks[userID] = now.Add(b.lockTTL)
	return true
}

// ReleaseCollector clears the user's collector lock so a future enqueue can
// schedule a new batch.
func (b *MessageBuffer) ReleaseCollector(userID string) {
	b.mu.Lock()
	delete(b.locks, userID)
	b.mu.Unlock()
}

// Drain atomically reads and clears the user's pending queue, preserving
// enqueue order. A stale queue (past its TTL) drains as empty.
func (b *MessageBuffer) Drain(userID string) []Item {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, exists := b.queues[userID]
	if !exists {
		return nil
	}
	delete(b.queues, userID)

	if b.now().After(q.expiresAt) {
		return nil
	}
	return q.items
}

// MarkSeen records a message id as accepted. It returns false when the id
// was already recorded within the dedup TTL, i.e. a redelivered webhook
// event that must not be enqueued again.
func (b *MessageBuffer) MarkSeen(messageID string) bool {
	if messageID == "" {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if expiry, exists := b.seen[messageID]; exists && now.Before(expiry) {
		return false
	}
	b.seen[messageID] = now.Add(b.dedupTTL)
	return true
}

// PendingCount returns the number of buffered items for a user (for
// monitoring and tests).
func (b *MessageBuffer) PendingCount(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, exists := b.queues[userID]
	if !exists || b.now().After(q.expiresAt) {
		return 0
	}
	return len(q.items)
}

// SweepExpired drops stale queues, expired collector locks and expired
// dedup markers. It returns the number of each removed so the maintenance
// job can log its work.
func (b *MessageBuffer) SweepExpired() (queues, locks, markers int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for userID, q := range b.queues {
		if now.After(q.expiresAt) {
			delete(b.queues, userID)
			queues++
		}
	}
	for userID, expiry := range b.locks {
		if now.After(expiry) {
			delete(b.locks, userID)
			locks++
		}
	}
	for id, expiry := range b.seen {
		if now.After(expiry) {
			delete(b.seen, id)
			markers++
		}
	}
	return queues, locks, markers
}
