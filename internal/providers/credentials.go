package providers

import (
	"context"
	"strings"
)

// Credentials risolve la credenziale da usare per un provider
type Credentials interface {
	Credential(ctx context.Context, name Name) (string, error)
}

type credentialKey struct{ name Name }

// WithCredential associa al context una credenziale request-scoped per name,
// che ha precedenza sulla configurazione.
func WithCredential(ctx context.Context, name Name, credential string) context.Context {
	return context.WithValue(ctx, credentialKey{name}, credential)
}

// StaticCredentials legge le credenziali dalla configurazione, con override dal context
type StaticCredentials map[Name]string

// Credential implementa Credentials
func (s StaticCredentials) Credential(ctx context.Context, name Name) (string, error) {
	if v, ok := ctx.Value(credentialKey{name}).(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), nil
	}

	if v := strings.TrimSpace(s[name]); v != "" {
		return v, nil
	}

	return "", &Error{Kind: KindMissingCredential, Provider: name, Message: displayName(name) + " token missing"}
}
