package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/flexxlabs/agenthub-backend/internal/logger"
	"github.com/flexxlabs/agenthub-backend/internal/utils"
)

// ThreadMessage is one turn of a provider-side conversation thread.
type ThreadMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client wraps the OpenAI Assistants API. Each operator brings their own API
// key, so clients are built per key via a Factory rather than from a single
// process-wide credential.
type Client interface {
	CreateAssistant(ctx context.Context, name, instructions, model string) (string, error)
	UpdateAssistant(ctx context.Context, assistantID, name, instructions, model string) error
	DeleteAssistant(ctx context.Context, assistantID string) error
	CreateThread(ctx context.Context) (string, error)
	// SendMessage posts text into the thread, starts a run and blocks until
	// the run reaches a terminal state, then returns the newest assistant
	// reply.
	SendMessage(ctx context.Context, threadID, assistantID, text string) (string, error)
	ListThreadMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)
}

// Factory builds a Client for one operator's API key. Services depend on the
// factory so tests can substitute a stub bridge.
type Factory func(apiKey string) Client

func NewFactory(log *logger.Logger) Factory {
	return func(apiKey string) Client {
		return NewClient(log, apiKey)
	}
}

type client struct {
	log          *logger.Logger
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	maxRetries   int
	pollInterval time.Duration
	runTimeout   time.Duration
}

func NewClient(log *logger.Logger, apiKey string) Client {
	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeoutSec := utils.GetEnvAsInt("OPENAI_HTTP_TIMEOUT_SECONDS", 30, nil)
	runTimeoutSec := utils.GetEnvAsInt("OPENAI_RUN_TIMEOUT_SECONDS", 60, nil)
	pollMillis := utils.GetEnvAsInt("OPENAI_RUN_POLL_INTERVAL_MS", 1000, nil)
	maxRetries := utils.GetEnvAsInt("OPENAI_MAX_RETRIES", 2, nil)

	return &client{
		log:          log.With("client", "OpenAIClient"),
		baseURL:      baseURL,
		apiKey:       strings.TrimSpace(apiKey),
		httpClient:   &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries:   maxRetries,
		pollInterval: time.Duration(pollMillis) * time.Millisecond,
		runTimeout:   time.Duration(runTimeoutSec) * time.Second,
	}
}

type apiErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, err
	}
	return resp, raw, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil || len(raw) == 0 {
				return nil
			}
			return json.Unmarshal(raw, out)
		}

		var envelope apiErrorEnvelope
		_ = json.Unmarshal(raw, &envelope)
		msg := envelope.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		lastErr = fmt.Errorf("openai %s %s: status %d: %s", method, path, resp.StatusCode, msg)
		if !retryable(resp.StatusCode) {
			return lastErr
		}
	}
	return lastErr
}

type assistantResponse struct {
	ID string `json:"id"`
}

func (c *client) CreateAssistant(ctx context.Context, name, instructions, model string) (string, error) {
	var out assistantResponse
	err := c.do(ctx, http.MethodPost, "/v1/assistants", map[string]any{
		"name":         name,
		"instructions": instructions,
		"model":        model,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *client) UpdateAssistant(ctx context.Context, assistantID, name, instructions, model string) error {
	return c.do(ctx, http.MethodPost, "/v1/assistants/"+assistantID, map[string]any{
		"name":         name,
		"instructions": instructions,
		"model":        model,
	}, nil)
}

func (c *client) DeleteAssistant(ctx context.Context, assistantID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/assistants/"+assistantID, nil, nil)
}

type threadResponse struct {
	ID string `json:"id"`
}

func (c *client) CreateThread(ctx context.Context) (string, error) {
	var out threadResponse
	if err := c.do(ctx, http.MethodPost, "/v1/threads", map[string]any{}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

type runResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

func runPending(status string) bool {
	switch status {
	case "queued", "in_progress", "cancelling":
		return true
	}
	return false
}

func (c *client) SendMessage(ctx context.Context, threadID, assistantID, text string) (string, error) {
	if err := c.do(ctx, http.MethodPost, "/v1/threads/"+threadID+"/messages", map[string]any{
		"role":    "user",
		"content": text,
	}, nil); err != nil {
		return "", fmt.Errorf("post thread message: %w", err)
	}

	var run runResponse
	if err := c.do(ctx, http.MethodPost, "/v1/threads/"+threadID+"/runs", map[string]any{
		"assistant_id": assistantID,
	}, &run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	status, err := c.waitForRun(ctx, threadID, run.ID, run.Status)
	if err != nil {
		return "", err
	}
	if status != "completed" {
		return "", fmt.Errorf("run %s finished with status %q", run.ID, status)
	}

	return c.latestAssistantReply(ctx, threadID)
}

// waitForRun polls the run at a fixed interval until it leaves the pending
// states. The overall wait is bounded by runTimeout on top of whatever
// deadline the caller's context carries, so an aborted request stops the
// loop.
func (c *client) waitForRun(ctx context.Context, threadID, runID, status string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.runTimeout)
	defer cancel()

	for runPending(status) {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for run %s: %w", runID, ctx.Err())
		case <-time.After(c.pollInterval):
		}
		var run runResponse
		if err := c.do(ctx, http.MethodGet, "/v1/threads/"+threadID+"/runs/"+runID, nil, &run); err != nil {
			return "", fmt.Errorf("poll run: %w", err)
		}
		status = run.Status
		if !runPending(status) && run.LastError != nil {
			return status, fmt.Errorf("run %s failed: %s: %s", runID, run.LastError.Code, run.LastError.Message)
		}
	}
	return status, nil
}

type threadMessagesResponse struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

func (c *client) latestAssistantReply(ctx context.Context, threadID string) (string, error) {
	var out threadMessagesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/threads/"+threadID+"/messages?order=desc&limit=1", nil, &out); err != nil {
		return "", fmt.Errorf("list thread messages: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Content) == 0 || out.Data[0].Content[0].Type != "text" {
		return "", fmt.Errorf("unexpected message format from provider")
	}
	return out.Data[0].Content[0].Text.Value, nil
}

func (c *client) ListThreadMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	var out threadMessagesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/threads/"+threadID+"/messages?order=asc&limit=100", nil, &out); err != nil {
		return nil, fmt.Errorf("list thread messages: %w", err)
	}
	msgs := make([]ThreadMessage, 0, len(out.Data))
	for _, m := range out.Data {
		if len(m.Content) == 0 || m.Content[0].Type != "text" {
			return nil, fmt.Errorf("unexpected message format from provider")
		}
		msgs = append(msgs, ThreadMessage{Role: m.Role, Content: m.Content[0].Text.Value})
	}
	return msgs, nil
}
