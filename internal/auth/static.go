package auth

import (
	"context"
	"errors"
	"net/http"
)

// ErrEmptyToken is returned when a static provider has no token to send.
var ErrEmptyToken = errors.New("auth: static token is empty")

// StaticTokenProvider sends a pre-configured bearer token. The token is
// obtained outside checkfire and is never refreshed.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a new static token provider with the given token.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{
		token: token,
	}
}

// Token returns the static token immediately without any network calls.
func (p *StaticTokenProvider) Token(ctx context.Context) (string, error) {
	if p.token == "" {
		return "", ErrEmptyToken
	}
	return p.token, nil
}

// InjectHeader sets "Authorization: Bearer <token>", replacing any value
// already present.
func (p *StaticTokenProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	token, err := p.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Close is a no-op for static token providers.
func (p *StaticTokenProvider) Close() error {
	return nil
}
