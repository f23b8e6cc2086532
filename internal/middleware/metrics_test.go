package middleware

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordStorageOperationCounts(t *testing.T) {
	m := NewMetrics()
	c := storageOperations.WithLabelValues("save_monitors", "ok")

	before := testutil.ToFloat64(c)
	m.RecordStorageOperation("save_monitors", "ok")
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Fatalf("storage operation counter moved by %v, want 1", got)
	}
}

func TestRecordAIRequestCounts(t *testing.T) {
	m := NewMetrics()
	c := aiRequestsTotal.WithLabelValues("test-model", "ok")

	before := testutil.ToFloat64(c)
	m.RecordAIRequest("test-model", "ok", 20*time.Millisecond)
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Fatalf("ai request counter moved by %v, want 1", got)
	}
}
