package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-xray-sdk-go/xray"
)

func TestSlogLogger_LogsJSONWithoutTraceContext(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewWithWriter(buf, slog.LevelDebug)

	l.Info(context.Background(), "company provisioned", "company_id", "c1")

	output := buf.String()
	if !strings.Contains(output, "\"msg\":\"company provisioned\"") {
		t.Fatalf("expected message in output: %s", output)
	}
	if !strings.Contains(output, "\"company_id\":\"c1\"") {
		t.Fatalf("expected attribute in output: %s", output)
	}
	if strings.Contains(output, "trace_id") {
		t.Fatalf("did not expect trace_id without segment: %s", output)
	}
}

func TestSlogLogger_LogsWithTraceIDWhenSegmentExists(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewWithWriter(buf, slog.LevelDebug)

	ctx, seg := xray.BeginSegment(context.Background(), "test-segment")
	defer seg.Close(nil)

	l.Warn(ctx, "failed to delete media content")

	output := buf.String()
	if !strings.Contains(output, "trace_id") {
		t.Fatalf("expected trace_id in output: %s", output)
	}
}

func TestSlogLogger_DropsBelowLevel(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewWithWriter(buf, slog.LevelInfo)

	l.Debug(context.Background(), "permission denied", "permission", "view_company")

	if buf.Len() != 0 {
		t.Fatalf("expected debug entry to be dropped: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
