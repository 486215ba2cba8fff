package authmw

import (
	"errors"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// KeySet verifies RS256 tokens from an external OpenID issuer against its
// published JWKS. Bearers are matched to local users by email.
type KeySet struct {
	Issuer   string
	Audience string // skipped when empty

	JWKS   *keyfunc.JWKS
	Leeway time.Duration
}

// NewKeySet fetches the JWKS once and keeps it refreshed in the background.
func NewKeySet(jwksURL, issuer, audience string) (*KeySet, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:  time.Hour,
		RefreshRateLimit: time.Minute * 5,
		RefreshTimeout:   time.Second * 10,
	})
	if err != nil {
		return nil, err
	}
	return &KeySet{
		Issuer:   issuer,
		Audience: audience,
		JWKS:     jwks,
		Leeway:   30 * time.Second,
	}, nil
}

type OIDCClaims struct {
	jwt.RegisteredClaims

	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (k *KeySet) Verify(token string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithIssuer(k.Issuer),
		jwt.WithLeeway(k.Leeway),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	}
	if k.Audience != "" {
		opts = append(opts, jwt.WithAudience(k.Audience))
	}

	claims := &OIDCClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, k.JWKS.Keyfunc, opts...); err != nil {
		return Identity{}, err
	}
	if claims.Email == "" || !claims.EmailVerified {
		return Identity{}, errors.New("token carries no verified email")
	}
	return Identity{Email: claims.Email, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Close stops the background JWKS refresh.
func (k *KeySet) Close() {
	k.JWKS.EndBackground()
}
