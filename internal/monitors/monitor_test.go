package monitors

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/tg-sentinel-go/internal/models"
)

func TestEvaluatePipelineOrder(t *testing.T) {
	deps, _, _ := testDeps(t)
	spec := &models.KeywordSpec{Keyword: "hit", MatchKind: models.MatchPartial}
	spec.Active = true
	m, err := NewKeyword(spec, deps)
	if err != nil {
		t.Fatalf("NewKeyword() error = %v", err)
	}
	msg := textMessage("a hit message")

	if _, result := Evaluate(context.Background(), m, msg, 0); result != ResultMatched {
		t.Fatalf("result = %v, want matched", result)
	}

	// Inactive wins over everything else.
	m.cfg.SetActive(false)
	if _, result := Evaluate(context.Background(), m, msg, 0); result != ResultInactive {
		t.Fatalf("result = %v, want inactive", result)
	}
	m.cfg.SetActive(true)

	// Scope filter comes before block list and quota.
	m.cfg.Chats = []int64{-999}
	if _, result := Evaluate(context.Background(), m, msg, 0); result != ResultFiltered {
		t.Fatalf("result = %v, want filtered", result)
	}
	m.cfg.Chats = nil

	m.cfg.BlockedUsers = []int64{msg.Sender.ID}
	if _, result := Evaluate(context.Background(), m, msg, 0); result != ResultBlocked {
		t.Fatalf("result = %v, want blocked", result)
	}
	m.cfg.BlockedUsers = nil

	limit := 0
	m.cfg.MaxExecutions = &limit
	if _, result := Evaluate(context.Background(), m, msg, 0); result != ResultLimitReached {
		t.Fatalf("result = %v, want limit_reached", result)
	}
	m.cfg.MaxExecutions = nil

	if _, result := Evaluate(context.Background(), m, textMessage("miss"), 0); result != ResultNoMatch {
		t.Fatalf("result = %v, want no_match", result)
	}
}

func TestAllMessagesChatScope(t *testing.T) {
	deps, _, _ := testDeps(t)
	spec := &models.AllMessagesSpec{ChatID: -1001234567890}
	spec.Active = true
	m := NewAllMessages(spec, deps)

	msg := textMessage("anything")
	msg.ChatID = -1001234567890
	if match, _ := m.Examine(context.Background(), msg); match == nil {
		t.Fatal("configured chat should match")
	}

	// The bare form of the same channel id matches too.
	msg.ChatID = 1234567890
	if match, _ := m.Examine(context.Background(), msg); match == nil {
		t.Fatal("bare channel id form should match")
	}

	msg.ChatID = -42
	if match, _ := m.Examine(context.Background(), msg); match != nil {
		t.Fatal("other chats must not match")
	}

	// Zero chat id captures everything.
	spec2 := &models.AllMessagesSpec{}
	spec2.Active = true
	m2 := NewAllMessages(spec2, deps)
	if match, _ := m2.Examine(context.Background(), msg); match == nil {
		t.Fatal("unscoped monitor should capture every chat")
	}
}

func TestFactoryBuildsEveryVariant(t *testing.T) {
	deps, _, _ := testDeps(t)
	cases := []struct {
		typ models.MonitorType
		raw string
	}{
		{models.MonitorKeyword, `{"keyword":"hi","match_type":"partial","active":true}`},
		{models.MonitorFile, `{"file_extension":"pdf","active":true}`},
		{models.MonitorButton, `{"button_keyword":"ok","mode":"manual","active":true}`},
		{models.MonitorAllMessages, `{"chat_id":-100,"active":true}`},
		{models.MonitorAI, `{"ai_prompt":"spam","active":true}`},
		{models.MonitorImageButton, `{"active":true}`},
	}

	for _, c := range cases {
		m, err := New(c.typ, json.RawMessage(c.raw), deps)
		if err != nil {
			t.Fatalf("New(%s) error = %v", c.typ, err)
		}
		if m.Type() != c.typ {
			t.Errorf("New(%s).Type() = %s", c.typ, m.Type())
		}
		if m.ID() == "" {
			t.Errorf("New(%s) produced an empty instance id", c.typ)
		}
		// Defaults are filled in during construction.
		if m.Base().Priority != models.DefaultPriority {
			t.Errorf("New(%s) priority = %d, want default", c.typ, m.Base().Priority)
		}
	}

	if _, err := New("bogus", json.RawMessage(`{}`), deps); err == nil {
		t.Fatal("unknown monitor type should be rejected")
	}
	if _, err := New(models.MonitorKeyword, json.RawMessage(`not json`), deps); err == nil {
		t.Fatal("broken config payload should be rejected")
	}
}
