package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/PabloGalante/quiet-room/internal/domain"
)

// OpenAIClient talks to the chat completions API through the official SDK.
type OpenAIClient struct {
	http      *http.Client
	creds     domain.CredentialStore
	baseURL   string
	modelName string
	maxTokens int64
}

// NewOpenAIClient builds the transport. A configured base URL names the host;
// the /v1 prefix is added here.
func NewOpenAIClient(opts Options, creds domain.CredentialStore) *OpenAIClient {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base != "" && !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return &OpenAIClient{
		http:      &http.Client{Timeout: opts.Timeout},
		creds:     creds,
		baseURL:   base,
		modelName: opts.Model,
		maxTokens: int64(opts.MaxTokens),
	}
}

func (c *OpenAIClient) Name() string { return string(VendorOpenAI) }

func (c *OpenAIClient) CheckCredential(key string) error {
	return CheckKey(VendorOpenAI, key)
}

func (c *OpenAIClient) client(key string) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(c.http),
		option.WithMaxRetries(0),
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL+"/"))
	}
	return openai.NewClient(opts...)
}

// Request implements domain.Transport.
func (c *OpenAIClient) Request(ctx context.Context, systemPrompt, contextPayload string, temperature float32) (string, error) {
	key, err := loadKey(ctx, VendorOpenAI, c.creds)
	if err != nil {
		return "", err
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(contextPayload),
		},
		Temperature: openai.Float(float64(temperature)),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.maxTokens)
	}

	client := c.client(key)
	res, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(res.Choices) == 0 {
		return "", nil
	}
	return res.Choices[0].Message.Content, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return classifyNetwork(VendorOpenAI, err)
	}
	return &domain.TransportError{
		Kind:   classifyStatus(apiErr.StatusCode),
		Vendor: string(VendorOpenAI),
		Status: apiErr.StatusCode,
		Err:    err,
	}
}
