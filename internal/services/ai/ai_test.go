package ai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tg-sentinel-go/internal/config"
	"github.com/tg-sentinel-go/internal/middleware"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *OpenAIService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)

	return NewOpenAIService(&config.AIConfig{
		Enabled:    true,
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/v1",
		Model:      "test-model",
		Timeout:    time.Second,
		MaxRetries: 1,
	}, middleware.NewMetrics(), log)
}

const completionBody = `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  yes  "}}]}`

func TestJudgeReturnsTrimmedContent(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody))
	})

	got, err := s.Judge(context.Background(), "is this spam?")
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if got != "yes" {
		t.Fatalf("Judge() = %q, want trimmed content", got)
	}
}

func TestCompleteFailsAfterRetries(t *testing.T) {
	calls := 0
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
	})

	if _, err := s.GenerateReply(context.Background(), "hello"); err == nil {
		t.Fatal("GenerateReply() against a failing endpoint should error")
	}
	if calls != 1 {
		t.Fatalf("endpoint called %d times, want 1", calls)
	}
}

func TestDisabledServiceReturnsEmpty(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := NewOpenAIService(&config.AIConfig{Enabled: false}, middleware.NewMetrics(), log)

	if s.Configured() {
		t.Fatal("disabled service must report unconfigured")
	}
	resp, err := s.Judge(context.Background(), "anything")
	if err != nil || resp != "" {
		t.Fatalf("Judge() = (%q, %v), want empty and nil", resp, err)
	}
}
