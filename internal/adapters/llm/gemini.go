package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/PabloGalante/quiet-room/internal/domain"
)

// GeminiClient implements domain.Transport on the Gemini API through genai.
// The genai client is rebuilt whenever the stored key changes.
type GeminiClient struct {
	creds     domain.CredentialStore
	modelName string
	maxTokens int32
	baseURL   string

	mu     sync.Mutex
	key    string
	client *genai.Client
}

// NewGeminiClient creates a Gemini transport. No network call happens until
// the first Request.
func NewGeminiClient(ctx context.Context, opts Options, creds domain.CredentialStore) (*GeminiClient, error) {
	if creds == nil {
		return nil, fmt.Errorf("gemini transport needs a credential store")
	}
	return &GeminiClient{
		creds:     creds,
		modelName: opts.Model,
		maxTokens: int32(opts.MaxTokens),
		baseURL:   opts.BaseURL,
	}, nil
}

func (g *GeminiClient) Name() string { return string(VendorGemini) }

func (g *GeminiClient) CheckCredential(key string) error {
	return CheckKey(VendorGemini, key)
}

func (g *GeminiClient) clientFor(ctx context.Context, key string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil && g.key == key {
		return g.client, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	g.client = client
	g.key = key
	return client, nil
}

// Request implements domain.Transport.
func (g *GeminiClient) Request(ctx context.Context, systemPrompt, contextPayload string, temperature float32) (string, error) {
	key, err := loadKey(ctx, VendorGemini, g.creds)
	if err != nil {
		return "", err
	}

	client, err := g.clientFor(ctx, key)
	if err != nil {
		return "", &domain.TransportError{Kind: domain.TransportNetwork, Vendor: string(VendorGemini), Err: err}
	}

	temp := temperature
	cfg := &genai.GenerateContentConfig{
		// genai expects the user role on system instructions
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   g.maxTokens,
	}
	contents := []*genai.Content{genai.NewContentFromText(contextPayload, genai.RoleUser)}

	res, err := client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return "", classifyGemini(err)
	}
	return res.Text(), nil
}

func classifyGemini(err error) error {
	var apiErr genai.APIError
	if ptr := new(genai.APIError); errors.As(err, &ptr) {
		apiErr = *ptr
	} else if !errors.As(err, &apiErr) {
		return classifyNetwork(VendorGemini, err)
	}

	kind := classifyStatus(apiErr.Code)
	// an unknown key comes back as 400 INVALID_ARGUMENT
	if apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "api key") {
		kind = domain.TransportAuthInvalid
	}
	return &domain.TransportError{Kind: kind, Vendor: string(VendorGemini), Status: apiErr.Code, Err: err}
}
