package ports

import "context"

// SecretStore keeps host secrets such as the token signing key. Get returns
// domain.ErrSecretNotFound for a missing key.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	// GetOrCreate returns the stored value, storing generate's result first
	// when there is none.
	GetOrCreate(ctx context.Context, key string, generate func() (string, error)) (string, error)
}
