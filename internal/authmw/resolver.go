package authmw

import (
	"context"
	"errors"
	"time"

	"taskhub/internal/apperr"
	"taskhub/internal/model"
	"taskhub/internal/store"
)

// Session is a resolved request identity together with the token it came
// from.
type Session struct {
	Principal model.Principal
	Token     string
	ExpiresAt time.Time
}

// Resolver turns a bearer token into a Principal built from the current
// stored user record.
type Resolver struct {
	revoked  store.RevocationStore
	users    store.UserStore
	verifier Verifier
}

func NewResolver(revoked store.RevocationStore, users store.UserStore, verifiers ...Verifier) *Resolver {
	return &Resolver{revoked: revoked, users: users, verifier: Chain(verifiers)}
}

// Resolve runs the checks in order and stops at the first failure: token
// present, not revoked, valid signature and expiry, user still exists.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperr.Unauthenticated("no token provided")
	}

	revoked, err := r.revoked.IsRevoked(ctx, token)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if revoked {
		return nil, apperr.Unauthenticated("token has been revoked")
	}

	id, err := r.verifier.Verify(token)
	if err != nil {
		return nil, apperr.Unauthenticated("invalid or expired token")
	}

	var u *model.User
	if id.UserID != "" {
		u, err = r.users.GetUser(ctx, id.UserID)
	} else {
		u, err = r.users.GetUserByEmail(ctx, id.Email)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Unauthenticated("user not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &Session{Principal: u.Principal(), Token: token, ExpiresAt: id.ExpiresAt}, nil
}
