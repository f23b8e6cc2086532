package engine

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tg-sentinel-go/internal/models"
	"github.com/tg-sentinel-go/internal/services/chat"
)

func testForwarder() *Forwarder {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewForwarder(log)
}

func TestForwardDirect(t *testing.T) {
	f := testForwarder()
	client := &fakeClient{}
	msg := inboundMessage(1, "hello")

	results := f.Forward(context.Background(), client, msg, []int64{10, 20}, false, 0)

	if len(results) != 2 || !results[10] || !results[20] {
		t.Fatalf("results = %v, want both ok", results)
	}
	if targets := client.forwardedTargets(); len(targets) != 2 {
		t.Fatalf("forwarded = %v, want both targets", targets)
	}
}

func TestForwardPlainFailureNoFallback(t *testing.T) {
	f := testForwarder()
	client := &fakeClient{forwardErr: chat.ErrForwardRestricted}
	msg := inboundMessage(1, "hello")

	// Without enhanced mode a restricted forward is just a failure.
	results := f.Forward(context.Background(), client, msg, []int64{10}, false, 0)
	if results[10] {
		t.Fatal("restricted forward without enhanced mode should fail")
	}
	if sent := client.sentMessages(); len(sent) != 0 {
		t.Fatalf("sent = %+v, want no fallback sends", sent)
	}
}

func TestForwardEnhancedTextFallback(t *testing.T) {
	f := testForwarder()
	client := &fakeClient{forwardErr: chat.ErrForwardRestricted}
	msg := inboundMessage(1, "protected text")

	results := f.Forward(context.Background(), client, msg, []int64{10}, true, 0)
	if !results[10] {
		t.Fatal("enhanced forward should recover via text resend")
	}
	sent := client.sentMessages()
	if len(sent) != 1 || sent[0].Text != "protected text" {
		t.Fatalf("sent = %+v, want the original text", sent)
	}
}

func TestForwardEnhancedMediaFallback(t *testing.T) {
	f := testForwarder()
	client := &fakeClient{
		forwardErr:      chat.ErrForwardRestricted,
		downloadContent: []byte("media bytes"),
	}
	msg := inboundMessage(1, "caption")
	msg.Media = &models.Media{Type: "photo", FileSize: 1024}

	results := f.Forward(context.Background(), client, msg, []int64{10}, true, 0)
	if !results[10] {
		t.Fatal("enhanced forward should recover via media resend")
	}
	if len(client.files) != 1 {
		t.Fatalf("files sent = %v, want one upload", client.files)
	}
}

func TestForwardEnhancedMediaCapBlocks(t *testing.T) {
	f := testForwarder()
	client := &fakeClient{
		forwardErr:      chat.ErrForwardRestricted,
		downloadContent: []byte("media bytes"),
	}
	msg := inboundMessage(1, "caption")
	msg.Media = &models.Media{Type: "video", FileSize: 100 * 1024 * 1024}

	results := f.Forward(context.Background(), client, msg, []int64{10}, true, 10)
	if results[10] {
		t.Fatal("media above the download cap must not be resent")
	}
	if len(client.files) != 0 {
		t.Fatalf("files sent = %v, want none", client.files)
	}
}

func TestForwardEnhancedUnrelatedErrorFails(t *testing.T) {
	f := testForwarder()
	client := &fakeClient{forwardErr: errors.New("network down")}
	msg := inboundMessage(1, "hello")

	results := f.Forward(context.Background(), client, msg, []int64{10}, true, 0)
	if results[10] {
		t.Fatal("a non-restricted error must not trigger the fallback")
	}
	if sent := client.sentMessages(); len(sent) != 0 {
		t.Fatalf("sent = %+v, want nothing", sent)
	}
}
