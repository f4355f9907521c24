// Package auth attaches pre-issued credentials to outgoing requests.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/torosent/checkfire/internal/config"
)

// Provider defines the interface for authentication providers that inject
// credentials into HTTP requests.
type Provider interface {
	// Token returns the credential sent with every request.
	Token(ctx context.Context) (string, error)

	// InjectHeader injects the credential into the Authorization header of
	// the provided HTTP request.
	InjectHeader(ctx context.Context, req *http.Request) error

	// Close releases any resources held by the provider.
	Close() error
}

// FromConfig builds the provider described by cfg. It returns a nil Provider
// when no credential is configured.
func FromConfig(cfg config.AuthConfig) (Provider, error) {
	token := strings.TrimSpace(cfg.StaticToken)
	if token == "" {
		return nil, nil
	}
	return NewStaticTokenProvider(token), nil
}

// Redact masks a credential for logs, keeping at most the first four characters.
func Redact(token string) string {
	token = strings.TrimSpace(token)
	switch {
	case token == "":
		return ""
	case len(token) <= 8:
		return "****"
	default:
		return token[:4] + "****"
	}
}
