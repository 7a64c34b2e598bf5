package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/allocai/backend/internal/metrics"
	"github.com/allocai/backend/internal/utils"
)

//go:generate mockgen -source=assistant.go -destination=mocks/mock_assistant.go -package=mocks Assistant

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Assistant interface {
	Ask(ctx context.Context, prompt string, history []ChatMessage) (string, error)
}

var ErrNotConfigured = errors.New("assistant is not configured")

const (
	defaultTimeout  = 45 * time.Second
	defaultCacheTTL = 60 * time.Second
)

// OpenAICompatAssistant talks to any /chat/completions endpoint that follows
// the OpenAI wire format.
type OpenAICompatAssistant struct {
	BaseURL   string
	Model     string
	APIKey    string
	MaxTokens int
	// JSONMode asks the model for a single JSON object reply.
	JSONMode bool
	Client   *http.Client
	CacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value string
	exp   time.Time
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (r RateLimitError) Error() string {
	if r.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", r.RetryAfter)
	}
	return "rate limited"
}

func (a *OpenAICompatAssistant) Ask(ctx context.Context, prompt string, history []ChatMessage) (string, error) {
	if strings.TrimSpace(a.APIKey) == "" || strings.TrimSpace(a.BaseURL) == "" {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(a.Model) == "" {
		return "", fmt.Errorf("%w: model is not set", ErrNotConfigured)
	}

	key := a.cacheKey(prompt, history)
	if v, ok := a.cacheGet(key); ok {
		return v, nil
	}

	type responseFormat struct {
		Type string `json:"type"`
	}
	payload := struct {
		Model          string          `json:"model"`
		MaxTokens      int             `json:"max_tokens,omitempty"`
		Messages       []ChatMessage   `json:"messages"`
		ResponseFormat *responseFormat `json:"response_format,omitempty"`
	}{
		Model:     a.Model,
		MaxTokens: a.MaxTokens,
		Messages:  append(append([]ChatMessage{}, history...), ChatMessage{Role: "user", Content: prompt}),
	}
	if a.JSONMode {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	url := strings.TrimRight(a.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)

	start := time.Now()
	resp, err := a.client(ctx).Do(req)
	metrics.AssistantLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("assistant request timed out")
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", fmt.Errorf("assistant request timed out")
		}
		return "", fmt.Errorf("assistant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", RateLimitError{RetryAfter: retryAfter(resp.Header.Get("Retry-After"), errBody)}
		}
		return "", fmt.Errorf("assistant http error: %s: %v", resp.Status, errBody)
	}

	var res struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode assistant response: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("empty assistant response")
	}
	answer := res.Choices[0].Message.Content
	a.cacheSet(key, answer)
	return answer, nil
}

func (a *OpenAICompatAssistant) client(ctx context.Context) *http.Client {
	if a.Client != nil {
		return a.Client
	}
	timeout := defaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
			timeout = remaining
		}
	}
	return &http.Client{Timeout: timeout}
}

func (a *OpenAICompatAssistant) cacheKey(prompt string, history []ChatMessage) string {
	parts := make([]string, 0, 2+2*len(history))
	parts = append(parts, a.Model, prompt)
	for _, m := range history {
		parts = append(parts, m.Role, m.Content)
	}
	return utils.FingerprintHex(parts...)
}

func (a *OpenAICompatAssistant) cacheGet(key string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.cache[key]; ok {
		if time.Now().Before(e.exp) {
			return e.value, true
		}
		delete(a.cache, key)
	}
	return "", false
}

func (a *OpenAICompatAssistant) cacheSet(key, value string) {
	ttl := a.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	if ttl < 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cache == nil {
		a.cache = map[string]cacheEntry{}
	}
	a.cache[key] = cacheEntry{value: value, exp: time.Now().Add(ttl)}
}

// retryAfter prefers the Retry-After header (seconds) and falls back to a
// RetryInfo detail in the error body.
func retryAfter(header string, errBody map[string]any) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	errObj, ok := errBody["error"].(map[string]any)
	if !ok {
		return 0
	}
	details, ok := errObj["details"].([]any)
	if !ok {
		return 0
	}
	for _, d := range details {
		m, ok := d.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := m["@type"].(string); ok && strings.Contains(t, "RetryInfo") {
			if s, ok := m["retryDelay"].(string); ok {
				if dur, err := time.ParseDuration(s); err == nil {
					return dur
				}
			}
		}
	}
	return 0
}
