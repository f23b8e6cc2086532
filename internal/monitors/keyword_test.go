package monitors

import (
	"context"
	"testing"

	"github.com/tg-sentinel-go/internal/models"
)

func newKeywordMonitor(t *testing.T, spec *models.KeywordSpec) (*KeywordMonitor, *fakeClient) {
	t.Helper()
	deps, client, _ := testDeps(t)
	spec.Active = true
	m, err := NewKeyword(spec, deps)
	if err != nil {
		t.Fatalf("NewKeyword() error = %v", err)
	}
	return m, client
}

func TestKeywordExact(t *testing.T) {
	m, _ := newKeywordMonitor(t, &models.KeywordSpec{Keyword: "Airdrop", MatchKind: models.MatchExact})

	match, err := m.Examine(context.Background(), textMessage("  AIRDROP  "))
	if err != nil {
		t.Fatalf("Examine() error = %v", err)
	}
	if match == nil || match.MatchedText != "Airdrop" {
		t.Fatalf("Examine() match = %+v, want keyword", match)
	}

	if match, _ := m.Examine(context.Background(), textMessage("airdrop now")); match != nil {
		t.Fatal("exact mode must not match extra text")
	}
}

func TestKeywordPartial(t *testing.T) {
	m, _ := newKeywordMonitor(t, &models.KeywordSpec{Keyword: "free", MatchKind: models.MatchPartial})

	if match, _ := m.Examine(context.Background(), textMessage("Get FREE tokens")); match == nil {
		t.Fatal("partial mode should match case-insensitively inside text")
	}
	if match, _ := m.Examine(context.Background(), textMessage("paid only")); match != nil {
		t.Fatal("partial mode must not match absent keyword")
	}
	if match, _ := m.Examine(context.Background(), textMessage("")); match != nil {
		t.Fatal("empty text never matches")
	}
}

func TestKeywordRegex(t *testing.T) {
	m, _ := newKeywordMonitor(t, &models.KeywordSpec{Keyword: `code:\s*(\d+)`, MatchKind: models.MatchRegex})

	match, err := m.Examine(context.Background(), textMessage("Your CODE: 4711 is ready"))
	if err != nil {
		t.Fatalf("Examine() error = %v", err)
	}
	if match == nil || match.MatchedText != "CODE: 4711" {
		t.Fatalf("Examine() match = %+v, want the regex hit", match)
	}
}

func TestKeywordRegexCompileError(t *testing.T) {
	deps, _, _ := testDeps(t)
	_, err := NewKeyword(&models.KeywordSpec{Keyword: `([unclosed`, MatchKind: models.MatchRegex}, deps)
	if err == nil {
		t.Fatal("NewKeyword() with a broken pattern should fail")
	}
}

func TestKeywordRegexSendAction(t *testing.T) {
	spec := &models.KeywordSpec{
		Keyword:           `\d{4}`,
		MatchKind:         models.MatchRegex,
		RegexSendTargetID: 555,
	}
	m, client := newKeywordMonitor(t, spec)

	actions := m.Act(context.Background(), textMessage("codes 1234 and 5678"))
	if len(actions) != 1 {
		t.Fatalf("Act() = %v, want one action", actions)
	}

	sent := client.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].Target != 555 {
		t.Errorf("sent to %d, want 555", sent[0].Target)
	}
	if sent[0].Text != "1234\n5678" {
		t.Errorf("sent text = %q, want joined captures", sent[0].Text)
	}
}

func TestKeywordActNoopWithoutRegexTarget(t *testing.T) {
	m, client := newKeywordMonitor(t, &models.KeywordSpec{Keyword: "x", MatchKind: models.MatchPartial})
	if actions := m.Act(context.Background(), textMessage("x")); actions != nil {
		t.Fatalf("Act() = %v, want nil for non-regex monitor", actions)
	}
	if len(client.sentMessages()) != 0 {
		t.Fatal("non-regex monitor must not send anything")
	}
}

func TestKeywordReplyTexts(t *testing.T) {
	m, _ := newKeywordMonitor(t, &models.KeywordSpec{Keyword: "hello", MatchKind: models.MatchPartial})

	// No fixed texts: the matched keyword itself is the reply.
	got := m.ReplyTexts(&Match{MatchedText: "hello"})
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("ReplyTexts() = %v, want the matched keyword", got)
	}

	m.cfg.ReplyTexts = []string{"hi", "hey"}
	got = m.ReplyTexts(&Match{MatchedText: "hello"})
	if len(got) != 2 {
		t.Fatalf("ReplyTexts() = %v, want fixed texts", got)
	}

	// AI content source with a prompt defers to the executor.
	m.cfg.ReplyContentSource = models.ReplyContentAI
	m.cfg.AIReplyPrompt = "be nice"
	if got := m.ReplyTexts(&Match{MatchedText: "hello"}); got != nil {
		t.Fatalf("ReplyTexts() = %v, want nil for ai source", got)
	}
}
