package domain

import "context"

// Transport sends one prompt to a remote model and returns its raw text.
// Failures are reported as *TransportError.
type Transport interface {
	Name() string
	Request(ctx context.Context, systemPrompt, contextPayload string, temperature float32) (string, error)

	// CheckCredential applies the vendor's literal format check to key.
	CheckCredential(key string) error
}

// CredentialStore keeps the single opaque bearer credential in a local slot.
type CredentialStore interface {
	// Load returns ErrCredentialMissing when the slot is empty.
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, key string) error
	Purge(ctx context.Context) error
}
