package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcherDeliversAndDrains(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink, nil)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	d.Close()

	if got := len(sink.Events()); got != 5 {
		t.Fatalf("expected 5 delivered events, got %d", got)
	}
	d.Emit(context.Background(), Event{EventType: "after_close"})
	if got := len(sink.Events()); got != 5 {
		t.Fatalf("emit after close should be ignored, got %d", got)
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

type blockingSink struct{ release chan struct{} }

func (b blockingSink) Emit(context.Context, Event) { <-b.release }

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "mfa_verify_failure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a stalled sink")
	}
	close(sink.release)
	d.Close()
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{Timestamp: time.Unix(0, 0).UTC(), EventType: "mfa_reset", AccountID: "acc-1", Success: true})

	line := strings.TrimSpace(buf.String())
	var got map[string]any
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("invalid json line %q: %v", line, err)
	}
	if got["event_type"] != "mfa_reset" || got["account_id"] != "acc-1" {
		t.Fatalf("unexpected payload %v", got)
	}
}

func TestZapAndMultiSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ch := NewChannelSink(1)
	m := MultiSink{NewZapSink(zap.New(core)), nil, ch}

	ev := Event{EventType: "mfa_backup_code_used", AccountID: "acc-9", Success: true}
	m.Emit(context.Background(), ev)

	if logs.Len() != 1 {
		t.Fatalf("expected one log line, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.ContextMap()["event"] != "mfa_backup_code_used" {
		t.Fatalf("unexpected fields %v", entry.ContextMap())
	}
	if got := <-ch.Events(); !got.IsMFA() {
		t.Fatal("expected MFA event forwarded")
	}
}

type panickySink struct{}

func (panickySink) Emit(context.Context, Event) { panic("sink exploded") }

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, panickySink{}, zap.New(core))
	d.Emit(context.Background(), Event{EventType: "mfa_disabled"})
	d.Emit(context.Background(), Event{EventType: "mfa_disabled"})
	d.Close()

	if d.Failed() != 2 {
		t.Fatalf("expected 2 failed deliveries, got %d", d.Failed())
	}
	if logs.Len() != 2 {
		t.Fatalf("expected panics logged, got %d", logs.Len())
	}
}
