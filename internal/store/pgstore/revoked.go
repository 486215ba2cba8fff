package pgstore

import (
	"context"
	"time"

	"taskhub/internal/store"
)

func (s *Store) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO revoked_tokens (digest, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (digest) DO NOTHING
	`, store.TokenDigest(token), expiresAt)
	return mapErr(err)
}

func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	var revoked bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE digest = $1 AND expires_at > now())
	`, store.TokenDigest(token)).Scan(&revoked)
	return revoked, mapErr(err)
}

// PurgeExpiredRevocations deletes markers whose token has expired anyway.
func (s *Store) PurgeExpiredRevocations(ctx context.Context) (int64, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, mapErr(err)
	}
	return ct.RowsAffected(), nil
}
