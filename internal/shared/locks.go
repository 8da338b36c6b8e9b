package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DocumentLockKey builds redis keys for per-document generation critical
// sections.
func DocumentLockKey(documentID string) string {
	return fmt.Sprintf("ledger:document:%s:lock", documentID)
}

// DocumentLocker narrows the window in which two concurrent generation
// requests for the same document both pass the journal_entry_id nil check.
// The conditional link update remains the hard guarantee, so a redis outage
// degrades to unlocked operation.
type DocumentLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDocumentLocker returns a locker with the supplied TTL (expired locks
// are reclaimed automatically).
func NewDocumentLocker(client *redis.Client, ttl time.Duration) *DocumentLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DocumentLocker{client: client, ttl: ttl}
}

// TryLock attempts to acquire the lock for documentID. It returns true when
// acquired, false when another holder owns it. Redis errors report the lock
// as acquired so generation is never blocked by cache unavailability.
func (l *DocumentLocker) TryLock(ctx context.Context, documentID string) (bool, error) {
	if l == nil || l.client == nil {
		return true, nil
	}
	ok, err := l.client.SetNX(ctx, DocumentLockKey(documentID), 1, l.ttl).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}

// Unlock releases the lock for documentID.
func (l *DocumentLocker) Unlock(ctx context.Context, documentID string) {
	if l == nil || l.client == nil {
		return
	}
	_ = l.client.Del(ctx, DocumentLockKey(documentID)).Err()
}
