package monitors

import (
	"context"
	"strings"
	"testing"

	"github.com/tg-sentinel-go/internal/models"
)

func TestParseVerdictStructured(t *testing.T) {
	matched, reply := parseVerdict("判断: yes\n回复: 欢迎加入")
	if !matched || reply != "欢迎加入" {
		t.Fatalf("parseVerdict() = (%v, %q)", matched, reply)
	}

	matched, reply = parseVerdict("判断: no\n回复: 无")
	if matched || reply != "" {
		t.Fatalf("parseVerdict() = (%v, %q), want no match and no reply", matched, reply)
	}

	// The Chinese affirmative counts too.
	matched, _ = parseVerdict("判断: 是\n回复: 好的")
	if !matched {
		t.Fatal("判断: 是 should be a positive verdict")
	}
}

func TestParseVerdictFallback(t *testing.T) {
	positives := []string{"yes", "Yes.", "  TRUE ", "符合", "match!"}
	for _, in := range positives {
		if matched, _ := parseVerdict(in); !matched {
			t.Errorf("parseVerdict(%q) should match", in)
		}
	}

	negatives := []string{"no", "不符合", "false", "garbage answer"}
	for _, in := range negatives {
		if matched, _ := parseVerdict(in); matched {
			t.Errorf("parseVerdict(%q) should not match", in)
		}
	}
}

func TestCleanVerdictReply(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"yes", ""},
		{"是", ""},
		{"yes, the price dropped below 100", "the price dropped below 100"},
		{"plain answer without verdict words", "plain answer without verdict words"},
	}
	for _, c := range cases {
		if got := cleanVerdictReply(c.in); got != c.want {
			t.Errorf("cleanVerdictReply(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func newAIMonitor(t *testing.T, spec *models.AISpec) (*AIMonitor, *fakeAI) {
	t.Helper()
	deps, _, aiSvc := testDeps(t)
	spec.Active = true
	return NewAI(spec, deps), aiSvc
}

func TestAIMonitorExamine(t *testing.T) {
	m, aiSvc := newAIMonitor(t, &models.AISpec{AIPrompt: "messages about payments"})
	aiSvc.judgeResp = "yes"

	match, err := m.Examine(context.Background(), textMessage("payment received"))
	if err != nil {
		t.Fatalf("Examine() error = %v", err)
	}
	if match == nil {
		t.Fatal("positive verdict should match")
	}

	aiSvc.judgeResp = "no"
	if match, _ := m.Examine(context.Background(), textMessage("weather report")); match != nil {
		t.Fatal("negative verdict must not match")
	}
}

func TestAIMonitorExamineUnconfigured(t *testing.T) {
	m, aiSvc := newAIMonitor(t, &models.AISpec{AIPrompt: "anything"})
	aiSvc.configured = false

	match, err := m.Examine(context.Background(), textMessage("hello"))
	if err != nil || match != nil {
		t.Fatalf("unconfigured AI should yield no match, got (%+v, %v)", match, err)
	}
}

func TestAIMonitorStructuredPromptWhenReplying(t *testing.T) {
	m, aiSvc := newAIMonitor(t, &models.AISpec{AIPrompt: "greetings"})
	m.cfg.ReplyEnabled = true
	aiSvc.judgeResp = "判断: yes\n回复: 你好"

	match, err := m.Examine(context.Background(), textMessage("hi there"))
	if err != nil {
		t.Fatalf("Examine() error = %v", err)
	}
	if match == nil || match.AIResponse != "你好" {
		t.Fatalf("match = %+v, want the structured reply", match)
	}

	// The prompt must request the structured form.
	if len(aiSvc.judgePrompts) != 1 || !strings.Contains(aiSvc.judgePrompts[0], "判断:") {
		t.Fatal("reply-enabled monitor should request a structured verdict")
	}

	// Fixed texts win over the model's reply.
	m.cfg.ReplyTexts = []string{"canned"}
	got := m.ReplyTexts(match)
	if len(got) != 1 || got[0] != "canned" {
		t.Fatalf("ReplyTexts() = %v, want the fixed text", got)
	}

	m.cfg.ReplyTexts = nil
	got = m.ReplyTexts(match)
	if len(got) != 1 || got[0] != "你好" {
		t.Fatalf("ReplyTexts() = %v, want the model reply", got)
	}
}

func TestAIMonitorPromptCarriesContext(t *testing.T) {
	m, aiSvc := newAIMonitor(t, &models.AISpec{AIPrompt: "files"})
	aiSvc.judgeResp = "no"

	msg := textMessage("see attachment")
	msg.Media = &models.Media{Type: "document", FileName: "doc.pdf"}
	msg.IsForwarded = true
	msg.Buttons = [][]models.Button{{{Text: "Open"}}}

	if _, err := m.Examine(context.Background(), msg); err != nil {
		t.Fatalf("Examine() error = %v", err)
	}
	prompt := aiSvc.judgePrompts[0]
	for _, want := range []string{"doc.pdf", "Open", "转发"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
