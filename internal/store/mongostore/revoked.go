package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskhub/internal/store"
)

func (s *Store) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	d := revokedDoc{Digest: store.TokenDigest(token), ExpiresAt: expiresAt}
	_, err := s.revoked().ReplaceOne(ctx, bson.M{"_id": d.Digest}, d, options.Replace().SetUpsert(true))
	return mapErr(err)
}

// IsRevoked also checks the expiry itself: the TTL monitor only runs about
// once a minute.
func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.revoked().CountDocuments(ctx, bson.M{
		"_id":       store.TokenDigest(token),
		"expiresAt": bson.M{"$gt": time.Now()},
	})
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}
