// Package jwt issues and verifies HS256 session tokens.
package jwt

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ports"
)

const (
	// SigningKeySecret is the secret store key of the signing key.
	SigningKeySecret = "host/jwt_signing_key"

	defaultIssuer = "odfops"
	defaultTTL    = 24 * time.Hour
)

var _ ports.TokenIssuer = (*Issuer)(nil)

var errEmptyKey = errors.New("signing key is empty")

type Issuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	clock  ports.Clock
}

type Option func(*Issuer)

func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

func WithClock(clock ports.Clock) Option {
	return func(i *Issuer) {
		if clock != nil {
			i.clock = clock
		}
	}
}

func WithIssuer(issuer string) Option {
	return func(i *Issuer) {
		if issuer != "" {
			i.issuer = issuer
		}
	}
}

func NewIssuer(key []byte, opts ...Option) (*Issuer, error) {
	if len(key) == 0 {
		return nil, errEmptyKey
	}

	i := &Issuer{
		key:    key,
		issuer: defaultIssuer,
		ttl:    defaultTTL,
		clock:  ports.SystemClock{},
	}
	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

// LoadSigningKey reads the host signing key, generating one on first use.
func LoadSigningKey(ctx context.Context, store ports.SecretStore) ([]byte, error) {
	encoded, err := store.GetOrCreate(ctx, SigningKeySecret, GenerateKey)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	key, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	return key, nil
}

func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

func (i *Issuer) Issue(ctx context.Context, userID domain.UserID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := i.clock.Now()
	claims := gojwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   string(userID),
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(i.ttl)),
		ID:        uuid.NewString(),
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) Verify(ctx context.Context, token string) (domain.UserID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var claims gojwt.RegisteredClaims
	_, err := gojwt.ParseWithClaims(token, &claims, func(*gojwt.Token) (any, error) {
		return i.key, nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(i.issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", domain.ErrInvalidToken)
	}

	return domain.UserID(claims.Subject), nil
}
