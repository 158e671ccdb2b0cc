package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/genai"

	"github.com/PabloGalante/quiet-room/internal/adapters/storage/memory"
	"github.com/PabloGalante/quiet-room/internal/app/protocol"
	"github.com/PabloGalante/quiet-room/internal/domain"
)

func storeWith(t *testing.T, v Vendor, key string) *memory.CredentialStore {
	t.Helper()
	s := memory.NewCredentialStore(SlotName(v))
	if key != "" {
		if err := s.Save(context.Background(), key); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	return s
}

func kindOf(t *testing.T, err error) domain.TransportErrorKind {
	t.Helper()
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	return te.Kind
}

func TestCheckKey(t *testing.T) {
	tests := []struct {
		vendor Vendor
		key    string
		want   error
	}{
		{VendorAnthropic, "sk-ant-abc", nil},
		{VendorAnthropic, "sk-abc", domain.ErrCredentialFormat},
		{VendorOpenAI, "sk-proj-abc", nil},
		{VendorOpenAI, "AIzaabc", domain.ErrCredentialFormat},
		{VendorGemini, "AIzaSyabc", nil},
		{VendorGemini, "  ", domain.ErrCredentialMissing},
		{VendorMock, "anything", nil},
	}
	for _, tt := range tests {
		err := CheckKey(tt.vendor, tt.key)
		if tt.want == nil && err != nil {
			t.Fatalf("%s %q: unexpected error %v", tt.vendor, tt.key, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Fatalf("%s %q: expected %v, got %v", tt.vendor, tt.key, tt.want, err)
		}
	}
}

func TestSlotName(t *testing.T) {
	if got := SlotName(VendorAnthropic); got != "QUIET_ROOM_ANTHROPIC_KEY" {
		t.Fatalf("unexpected slot %q", got)
	}
}

func TestParseVendor(t *testing.T) {
	if v, err := ParseVendor(" OpenAI "); err != nil || v != VendorOpenAI {
		t.Fatalf("expected openai, got %s %v", v, err)
	}
	if _, err := ParseVendor("acme"); err == nil {
		t.Fatalf("expected unknown vendor error")
	}
}

func TestAnthropicRequest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-ant-test" || r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing auth headers")
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"[[PROCEED: "},{"type":"text","text":"ok]]"}]}`))
	}))
	defer srv.Close()

	tr, err := New(context.Background(), Options{Vendor: VendorAnthropic, BaseURL: srv.URL}, storeWith(t, VendorAnthropic, "sk-ant-test"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	text, err := tr.Request(context.Background(), "system", "payload", 0.5)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if text != "[[PROCEED: ok]]" {
		t.Fatalf("unexpected text %q", text)
	}
	if got["model"] != DefaultModels[VendorAnthropic] || got["max_tokens"] != float64(8192) {
		t.Fatalf("unexpected request %v", got)
	}
	system, _ := got["system"].([]any)
	if len(system) != 1 || system[0].(map[string]any)["text"] != "system" {
		t.Fatalf("unexpected system blocks %v", got["system"])
	}
	messages, _ := got["messages"].([]any)
	if len(messages) != 1 || messages[0].(map[string]any)["role"] != "user" {
		t.Fatalf("unexpected messages %v", got["messages"])
	}
}

func TestOpenAIRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "m" || len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"message\":\"hi\"}"}}]}`))
	}))
	defer srv.Close()

	tr := NewOpenAIClient(Options{Model: "m", BaseURL: srv.URL}, storeWith(t, VendorOpenAI, "sk-test"))
	text, err := tr.Request(context.Background(), "sys", "payload", 0.7)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if text != `{"message":"hi"}` {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestHTTPStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   domain.TransportErrorKind
	}{
		{http.StatusUnauthorized, domain.TransportAuthInvalid},
		{http.StatusForbidden, domain.TransportAuthInvalid},
		{http.StatusTooManyRequests, domain.TransportRateOrServer},
		{http.StatusInternalServerError, domain.TransportRateOrServer},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"x","message":"nope"}}`))
		}))

		clients := []domain.Transport{
			NewAnthropicClient(Options{BaseURL: srv.URL}, storeWith(t, VendorAnthropic, "sk-ant-x")),
			NewOpenAIClient(Options{BaseURL: srv.URL}, storeWith(t, VendorOpenAI, "sk-x")),
		}
		for _, tr := range clients {
			_, err := tr.Request(context.Background(), "s", "p", 0)
			if got := kindOf(t, err); got != tt.want {
				t.Fatalf("%s status %d: expected %s, got %s", tr.Name(), tt.status, tt.want, got)
			}
			var te *domain.TransportError
			errors.As(err, &te)
			if te.Status != tt.status || te.Vendor != tr.Name() {
				t.Fatalf("%s status %d: unexpected error %+v", tr.Name(), tt.status, te)
			}
		}
		srv.Close()
	}
}

func TestNetworkFailureClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr := NewOpenAIClient(Options{BaseURL: url}, storeWith(t, VendorOpenAI, "sk-x"))
	_, err := tr.Request(context.Background(), "s", "p", 0)
	if got := kindOf(t, err); got != domain.TransportNetwork {
		t.Fatalf("expected NETWORK, got %s", got)
	}
}

func TestMissingAndMalformedStoredKey(t *testing.T) {
	tr := NewAnthropicClient(Options{BaseURL: "http://127.0.0.1:0"}, storeWith(t, VendorAnthropic, ""))
	if _, err := tr.Request(context.Background(), "s", "p", 0); kindOf(t, err) != domain.TransportAuthMissing {
		t.Fatalf("expected AUTH_MISSING, got %v", err)
	}

	tr = NewAnthropicClient(Options{BaseURL: "http://127.0.0.1:0"}, storeWith(t, VendorAnthropic, "AIza-wrong-vendor"))
	_, err := tr.Request(context.Background(), "s", "p", 0)
	if kindOf(t, err) != domain.TransportAuthInvalid {
		t.Fatalf("expected AUTH_INVALID, got %v", err)
	}
	if !domain.IsCredentialFault(err) {
		t.Fatalf("expected a credential fault")
	}
}

// flakyStore fails Load with a store error while failing is set.
type flakyStore struct {
	*memory.CredentialStore
	failing bool
}

func (f *flakyStore) Load(ctx context.Context) (string, error) {
	if f.failing {
		return "", errors.New("database is locked (SQLITE_BUSY)")
	}
	return f.CredentialStore.Load(ctx)
}

func TestStoreFailureIsNotCredentialFault(t *testing.T) {
	store := &flakyStore{CredentialStore: storeWith(t, VendorAnthropic, "sk-ant-x"), failing: true}
	tr := NewAnthropicClient(Options{BaseURL: "http://127.0.0.1:0"}, store)

	_, err := tr.Request(context.Background(), "s", "p", 0)
	if kindOf(t, err) != domain.TransportCredentialStore {
		t.Fatalf("expected CREDENTIAL_STORE, got %v", err)
	}
	if domain.IsCredentialFault(err) {
		t.Fatalf("a store failure must not count as a credential fault")
	}
}

func TestClassifyGemini(t *testing.T) {
	tests := []struct {
		err  error
		want domain.TransportErrorKind
	}{
		{genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key."}, domain.TransportAuthInvalid},
		{genai.APIError{Code: 403, Message: "permission denied"}, domain.TransportAuthInvalid},
		{genai.APIError{Code: 400, Message: "bad request"}, domain.TransportRateOrServer},
		{genai.APIError{Code: 503, Message: "overloaded"}, domain.TransportRateOrServer},
		{errors.New("dial tcp: connection refused"), domain.TransportNetwork},
	}
	for _, tt := range tests {
		if got := kindOf(t, classifyGemini(tt.err)); got != tt.want {
			t.Fatalf("%v: expected %s, got %s", tt.err, tt.want, got)
		}
	}
}

func TestGeminiRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"message\":\"hi\"}"}]}}]}`))
	}))
	defer srv.Close()

	tr, err := NewGeminiClient(context.Background(), Options{Model: "gemini-test", BaseURL: srv.URL, MaxTokens: 100}, storeWith(t, VendorGemini, "AIzaTest"))
	if err != nil {
		t.Fatalf("NewGeminiClient failed: %v", err)
	}
	text, err := tr.Request(context.Background(), "sys", "payload", 0.7)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if text != `{"message":"hi"}` {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestMockScriptAndDefaults(t *testing.T) {
	m := NewMockTransport()
	m.Reply("first").Fail(errors.New("boom"))

	ctx := context.Background()
	if got, _ := m.Request(ctx, "s", "p", 0); got != "first" {
		t.Fatalf("expected scripted reply, got %q", got)
	}
	if _, err := m.Request(ctx, "s", "p", 0); err == nil {
		t.Fatalf("expected scripted failure")
	}

	admission, _ := m.Request(ctx, "s", protocol.AdmissionPayload, 0)
	if protocol.ParseAdmission(admission).Decision != domain.DecisionProceed {
		t.Fatalf("default admission should proceed")
	}
	turn, _ := m.Request(ctx, "s", "HISTORY:\n", 0)
	if res := protocol.Decode(turn); res.Degraded || res.Atmosphere != domain.AtmosphereMystery {
		t.Fatalf("default turn should decode cleanly, got %+v", res)
	}
	if len(m.Calls()) != 4 {
		t.Fatalf("expected 4 recorded calls, got %d", len(m.Calls()))
	}
}
