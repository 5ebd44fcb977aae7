package domain

// Fixed credential storage keys. These are never renamed or rotated; a
// token refresh overwrites the pair in place.
const (
	AccessTokenKey  = "access-token"
	RefreshTokenKey = "refresh-token"
)

// TokenPair is the credential pair returned by a refresh-token exchange.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
