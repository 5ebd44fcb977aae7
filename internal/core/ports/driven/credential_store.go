package driven

import "context"

// CredentialStore persists opaque credential values under fixed logical
// keys (domain.AccessTokenKey, domain.RefreshTokenKey). The keys are never
// renamed or rotated, only overwritten.
type CredentialStore interface {
	// Get retrieves a stored value. Returns ok=false if the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Put stores a value, overwriting any previous one.
	Put(ctx context.Context, key, value string) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
