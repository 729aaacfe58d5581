package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/hexdecor/api/internal/platform/firestore"
)

const defaultCollection = "appliedEvents"

type appliedEventDocument struct {
	AppliedAt time.Time `firestore:"appliedAt"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

// FirestoreStore persists applied-event records in a Firestore collection.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection string
}

// NewFirestoreStore constructs a Firestore-backed Store.
func NewFirestoreStore(provider *pfirestore.Provider, collection string) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("idempotency: firestore provider is required")
	}
	if collection == "" {
		collection = defaultCollection
	}
	return &FirestoreStore{provider: provider, collection: collection}, nil
}

// MarkApplied implements Store. The create-or-fail transaction makes the
// replay check atomic across instances.
func (s *FirestoreStore) MarkApplied(ctx context.Context, key string, now time.Time, ttl time.Duration) (bool, error) {
	if s == nil || s.provider == nil {
		return false, errors.New("idempotency: store not initialised")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return false, err
	}
	ref := client.Collection(s.collection).Doc(key)

	applied := false
	err = s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err == nil {
			var doc appliedEventDocument
			if decodeErr := snap.DataTo(&doc); decodeErr != nil {
				return decodeErr
			}
			if doc.ExpiresAt.After(now) {
				applied = false
				return nil
			}
			// Expired record: the event may be re-applied.
		} else if status.Code(err) != codes.NotFound {
			return err
		}

		applied = true
		return tx.Set(ref, appliedEventDocument{
			AppliedAt: now.UTC(),
			ExpiresAt: now.Add(ttl).UTC(),
		})
	})
	if err != nil {
		return false, pfirestore.WrapError("appliedEvents.mark", err)
	}
	return applied, nil
}

// Forget implements Store. Deleting a missing document is not an error.
func (s *FirestoreStore) Forget(ctx context.Context, key string) error {
	if s == nil || s.provider == nil {
		return errors.New("idempotency: store not initialised")
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return err
	}
	if _, err := client.Collection(s.collection).Doc(key).Delete(ctx); err != nil {
		return pfirestore.WrapError("appliedEvents.forget", err)
	}
	return nil
}

// CleanupExpired implements Store.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if s == nil || s.provider == nil {
		return 0, errors.New("idempotency: store not initialised")
	}
	if limit <= 0 {
		limit = 200
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}

	iter := client.Collection(s.collection).
		Where("expiresAt", "<=", now.UTC()).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	removed := 0
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return removed, pfirestore.WrapError("appliedEvents.cleanup", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return removed, pfirestore.WrapError("appliedEvents.cleanup", err)
		}
		removed++
	}
	return removed, nil
}
