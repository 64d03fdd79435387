package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flexxlabs/agenthub-backend/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func newTestClient(t *testing.T, serverURL string) Client {
	t.Helper()
	t.Setenv("OPENAI_BASE_URL", serverURL)
	t.Setenv("OPENAI_RUN_POLL_INTERVAL_MS", "5")
	t.Setenv("OPENAI_RUN_TIMEOUT_SECONDS", "2")
	t.Setenv("OPENAI_MAX_RETRIES", "0")
	return NewClient(testLogger(t), "sk-test")
}

func TestSendMessagePollsUntilCompleted(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/threads/th_1/messages", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization=%q", got)
		}
		if got := r.Header.Get("OpenAI-Beta"); got != "assistants=v2" {
			t.Errorf("OpenAI-Beta=%q", got)
		}
		fmt.Fprint(w, `{"id":"msg_1"}`)
	})
	mux.HandleFunc("POST /v1/threads/th_1/runs", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["assistant_id"] != "asst_1" {
			t.Errorf("assistant_id=%v", body["assistant_id"])
		}
		fmt.Fprint(w, `{"id":"run_1","status":"queued"}`)
	})
	mux.HandleFunc("GET /v1/threads/th_1/runs/run_1", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&polls, 1)
		if n < 3 {
			fmt.Fprint(w, `{"id":"run_1","status":"in_progress"}`)
			return
		}
		fmt.Fprint(w, `{"id":"run_1","status":"completed"}`)
	})
	mux.HandleFunc("GET /v1/threads/th_1/messages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"role":"assistant","content":[{"type":"text","text":{"value":"happy to help"}}]}]}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	reply, err := c.SendMessage(context.Background(), "th_1", "asst_1", "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply != "happy to help" {
		t.Fatalf("reply=%q", reply)
	}
	if atomic.LoadInt32(&polls) < 3 {
		t.Fatalf("expected at least 3 polls, got %d", polls)
	}
}

func TestSendMessageFailedRunIsAnError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/threads/th_1/messages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"msg_1"}`)
	})
	mux.HandleFunc("POST /v1/threads/th_1/runs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"run_1","status":"queued"}`)
	})
	mux.HandleFunc("GET /v1/threads/th_1/runs/run_1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"run_1","status":"failed","last_error":{"code":"rate_limit_exceeded","message":"quota"}}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.SendMessage(context.Background(), "th_1", "asst_1", "hello")
	if err == nil {
		t.Fatal("expected error for failed run")
	}
	if !strings.Contains(err.Error(), "rate_limit_exceeded") {
		t.Fatalf("error should carry the provider code, got: %v", err)
	}
}

func TestSendMessageHonorsContextCancellation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/threads/th_1/messages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"msg_1"}`)
	})
	mux.HandleFunc("POST /v1/threads/th_1/runs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"run_1","status":"queued"}`)
	})
	mux.HandleFunc("GET /v1/threads/th_1/runs/run_1", func(w http.ResponseWriter, r *http.Request) {
		// Never terminal; the caller has to bail out on its own.
		fmt.Fprint(w, `{"id":"run_1","status":"in_progress"}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.SendMessage(ctx, "th_1", "asst_1", "hello")
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("poll loop did not stop promptly after cancellation (took %s)", elapsed)
	}
}

func TestCreateThread(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/threads", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"th_42"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	id, err := c.CreateThread(context.Background())
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	if id != "th_42" {
		t.Fatalf("thread id=%q", id)
	}
}

func TestCreateAssistantSurfacesAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/assistants", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateAssistant(context.Background(), "Closer", "be nice", "gpt-4o")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Incorrect API key") {
		t.Fatalf("error should carry the provider message, got: %v", err)
	}
}
