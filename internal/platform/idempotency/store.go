package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// DefaultTTL is the default retention for applied-event records.
const DefaultTTL = 72 * time.Hour

// Store records which external events have already been applied. Reserving a
// key that was applied before reports a replay so callers can skip
// re-application without racing a read-then-compare on the target record.
type Store interface {
	// MarkApplied records the key as applied. It returns false when the key
	// was already present, i.e. the event is a replay.
	MarkApplied(ctx context.Context, key string, now time.Time, ttl time.Duration) (bool, error)
	// Forget removes the record for key. Callers release a reservation this
	// way when applying the event failed after MarkApplied.
	Forget(ctx context.Context, key string) error
	// CleanupExpired removes up to limit expired records and returns the count.
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// EventKey derives the dedup key for a payment reconciliation outcome. Keyed
// by payment id plus resulting status: the same gateway outcome is applied at
// most once, while a later, different outcome for the same payment still goes
// through.
func EventKey(paymentID, status string) string {
	return hash(fmt.Sprintf("payment:%s:%s", strings.TrimSpace(paymentID), strings.TrimSpace(strings.ToLower(status))))
}

func hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
