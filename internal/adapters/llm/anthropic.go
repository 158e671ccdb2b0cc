package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/PabloGalante/quiet-room/internal/domain"
)

// AnthropicClient talks to the Anthropic messages API through the official SDK.
type AnthropicClient struct {
	http      *http.Client
	creds     domain.CredentialStore
	baseURL   string
	modelName string
	maxTokens int64
}

func NewAnthropicClient(opts Options, creds domain.CredentialStore) *AnthropicClient {
	return &AnthropicClient{
		http:      &http.Client{Timeout: opts.Timeout},
		creds:     creds,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		modelName: opts.Model,
		maxTokens: int64(opts.MaxTokens),
	}
}

func (c *AnthropicClient) Name() string { return string(VendorAnthropic) }

func (c *AnthropicClient) CheckCredential(key string) error {
	return CheckKey(VendorAnthropic, key)
}

// client is built per request so a replaced key is picked up immediately.
func (c *AnthropicClient) client(key string) anthropic.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(c.http),
		option.WithMaxRetries(0),
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL+"/"))
	}
	return anthropic.NewClient(opts...)
}

// Request implements domain.Transport.
func (c *AnthropicClient) Request(ctx context.Context, systemPrompt, contextPayload string, temperature float32) (string, error) {
	key, err := loadKey(ctx, VendorAnthropic, c.creds)
	if err != nil {
		return "", err
	}

	client := c.client(key)
	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.modelName),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(float64(temperature)),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(contextPayload)),
		},
	})
	if err != nil {
		return "", classifyAnthropic(err)
	}

	// The core only ever sees text; empty content is handed on as "".
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

func classifyAnthropic(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return classifyNetwork(VendorAnthropic, err)
	}
	return &domain.TransportError{
		Kind:   classifyStatus(apiErr.StatusCode),
		Vendor: string(VendorAnthropic),
		Status: apiErr.StatusCode,
		Err:    err,
	}
}
