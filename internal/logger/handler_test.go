package logger

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"log/slog"
)

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		writer: aw,
		format: formatKV,
	})
	ctx := WithRID(Background(), "42:9:7")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	log := slog.New(handler).With("component", "poller")
	LogEvent(ctx, log, slog.LevelInfo, "poll.cycle",
		slog.String("status", "ok"),
		slog.Int("orders", 3),
	)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	tokens := strings.Split(line, " ")
	if len(tokens) < 6 {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	expected := []string{"ts=", "level=INFO", "component=poller", "event=poll.cycle", "status=ok", "rid=42:9:7"}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		writer: aw,
		format: formatJSON,
	})
	ctx := WithRID(Background(), "11:33:22")
	ctx = WithUpdateMeta(ctx, 11, 22, 33)

	log := slog.New(handler).With("component", "panel")
	LogEvent(ctx, log, slog.LevelError, "panel.request.failed",
		slog.String("status", "error"),
		slog.String("err", "connection refused"),
	)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"panel"`, `"event":"panel.request.failed"`, `"status":"error"`, `"rid":"11:33:22"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerOrderContext(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		writer: aw,
		format: formatKV,
	})
	ctx := WithOrderID(Background(), 1054)
	ctx = WithHandler(ctx, "receipt.photo")

	log := slog.New(handler).With("component", "tg")
	LogEvent(ctx, log, slog.LevelInfo, "receipt.uploaded",
		slog.String("status", "ok"),
	)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "order_id=1054") {
		t.Fatalf("expected order_id in line, got %s", line)
	}
	if !strings.Contains(line, "handler=receipt.photo") {
		t.Fatalf("expected handler in line, got %s", line)
	}
}

func TestStructuredHandlerDurationNormalization(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		writer: aw,
		format: formatKV,
	})

	log := slog.New(handler).With("component", "panel")
	LogEvent(Background(), log, slog.LevelInfo, "panel.request",
		slog.Duration("duration", 1503*1000*1000),
	)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "duration_ms=1503") {
		t.Fatalf("expected duration_ms=1503, got %s", line)
	}
	if strings.Contains(line, "duration=") && !strings.Contains(line, "duration_ms=") {
		t.Fatalf("raw duration key should be renamed, got %s", line)
	}
}

func TestParseRatioSpec(t *testing.T) {
	cases := []struct {
		spec string
		num  int
		den  int
	}{
		{"", 0, 0},
		{"50", 1, 50},
		{"1/10", 1, 10},
		{"3/4", 3, 4},
		{"0", 0, 0},
		{"abc", 0, 0},
	}
	for _, tc := range cases {
		num, den := parseRatioSpec(tc.spec)
		if num != tc.num || den != tc.den {
			t.Errorf("parseRatioSpec(%q) = %d/%d, expected %d/%d", tc.spec, num, den, tc.num, tc.den)
		}
	}
}
