package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PabloGalante/quiet-room/internal/domain"
)

// Vendor names a supported remote model family.
type Vendor string

const (
	VendorAnthropic Vendor = "anthropic"
	VendorOpenAI    Vendor = "openai"
	VendorGemini    Vendor = "gemini"
	VendorMock      Vendor = "mock"
)

// ParseVendor accepts a vendor name in any case.
func ParseVendor(s string) (Vendor, error) {
	switch v := Vendor(strings.ToLower(strings.TrimSpace(s))); v {
	case VendorAnthropic, VendorOpenAI, VendorGemini, VendorMock:
		return v, nil
	default:
		return "", fmt.Errorf("unknown vendor %q", s)
	}
}

// keyPrefixes holds the literal prefix each vendor's keys carry.
var keyPrefixes = map[Vendor]string{
	VendorAnthropic: "sk-ant-",
	VendorOpenAI:    "sk-",
	VendorGemini:    "AIza",
}

// DefaultModels are used when no model is configured.
var DefaultModels = map[Vendor]string{
	VendorAnthropic: "claude-haiku-4-5-20251001",
	VendorOpenAI:    "gpt-4.1-mini",
	VendorGemini:    "gemini-2.5-flash",
	VendorMock:      "mock",
}

// SlotName is the fixed key the vendor credential is stored under.
func SlotName(v Vendor) string {
	return "QUIET_ROOM_" + strings.ToUpper(string(v)) + "_KEY"
}

// CheckKey applies the vendor's literal prefix check.
func CheckKey(v Vendor, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrCredentialMissing
	}
	prefix, ok := keyPrefixes[v]
	if !ok {
		return nil
	}
	if !strings.HasPrefix(key, prefix) {
		return fmt.Errorf("%w: %s keys start with %q", domain.ErrCredentialFormat, v, prefix)
	}
	return nil
}

// Options configures a transport.
type Options struct {
	Vendor  Vendor
	Model   string
	BaseURL string
	// Timeout bounds a single HTTP exchange; zero means none.
	Timeout   time.Duration
	MaxTokens int
}

// New builds the transport for opts.Vendor. Credentials are read from creds
// on every request so a reset takes effect immediately.
func New(ctx context.Context, opts Options, creds domain.CredentialStore) (domain.Transport, error) {
	if opts.Model == "" {
		opts.Model = DefaultModels[opts.Vendor]
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 8192
	}

	switch opts.Vendor {
	case VendorAnthropic:
		return NewAnthropicClient(opts, creds), nil
	case VendorOpenAI:
		return NewOpenAIClient(opts, creds), nil
	case VendorGemini:
		return NewGeminiClient(ctx, opts, creds)
	case VendorMock:
		return NewMockTransport(), nil
	default:
		return nil, fmt.Errorf("unknown vendor %q", opts.Vendor)
	}
}

// loadKey fetches and checks the stored credential before any network call.
func loadKey(ctx context.Context, v Vendor, creds domain.CredentialStore) (string, error) {
	key, err := creds.Load(ctx)
	if errors.Is(err, domain.ErrCredentialMissing) {
		return "", &domain.TransportError{Kind: domain.TransportAuthMissing, Vendor: string(v), Err: err}
	}
	if err != nil {
		// a busy or failing store says nothing about the key itself
		return "", &domain.TransportError{Kind: domain.TransportCredentialStore, Vendor: string(v), Err: err}
	}
	if err := CheckKey(v, key); err != nil {
		return "", &domain.TransportError{Kind: domain.TransportAuthInvalid, Vendor: string(v), Err: err}
	}
	return key, nil
}

// classifyStatus maps a non-2xx HTTP status to a transport error kind.
func classifyStatus(code int) domain.TransportErrorKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.TransportAuthInvalid
	default:
		return domain.TransportRateOrServer
	}
}

// classifyNetwork wraps a failed round trip.
func classifyNetwork(v Vendor, err error) error {
	var te *domain.TransportError
	if errors.As(err, &te) {
		return err
	}
	return &domain.TransportError{Kind: domain.TransportNetwork, Vendor: string(v), Err: err}
}
