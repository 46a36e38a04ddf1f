package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestInitReplacesGlobal(t *testing.T) {
	var first, second bytes.Buffer
	if err := Init(WithWriter(&first)); err != nil {
		t.Fatalf("init: %v", err)
	}
	Get().Info(context.Background(), "one", String("k", "v"))

	if err := Init(WithWriter(&second)); err != nil {
		t.Fatalf("re-init: %v", err)
	}
	Named("probe").Info(context.Background(), "two")
	if err := Sync(); err != nil {
		t.Errorf("sync: %v", err)
	}

	if !strings.Contains(first.String(), "msg=one") || !strings.Contains(first.String(), "k=v") {
		t.Errorf("text output missing fields: %q", first.String())
	}
	if strings.Contains(first.String(), "two") {
		t.Errorf("second Init should redirect output, first writer got %q", first.String())
	}
	if !strings.Contains(second.String(), "logger=probe") {
		t.Errorf("named logger should tag its lines: %q", second.String())
	}
}

func TestLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat(FormatJSON), WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize json logger: %v", err)
	}
	Get().Info(context.Background(), "stored", Int64("id", 7), Duration("took", 1500*time.Microsecond))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("json output did not parse: %v (%q)", err, buf.String())
	}
	if line["msg"] != "stored" || line["id"] != float64(7) || line["took"] != 1.5 {
		t.Errorf("unexpected json line: %v", line)
	}
	if src, _ := line["source"].(string); !strings.Contains(src, "logger_test.go") {
		t.Errorf("source field should point at the caller, got %q", src)
	}

	buf.Reset()
	if err := Init(WithFormat(FormatConsole), WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize console logger: %v", err)
	}
	Get().Warn(context.Background(), "careful", Error(errors.New("boom")))
	if !strings.Contains(buf.String(), "careful") {
		t.Errorf("console output missing message: %q", buf.String())
	}

	if err := Init(WithFormat("xml")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("warn should be accepted: %v", err)
	}
	Get().Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := SetLevelString("info"); err != nil {
		t.Fatal(err)
	}
	Slog(Named("http")).Info("bridged")
	if !strings.Contains(buf.String(), "msg=bridged") || !strings.Contains(buf.String(), "logger=http") {
		t.Errorf("slog bridge should keep the logger name: %q", buf.String())
	}
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat(FormatJSON), WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := WithFields(context.Background(), String("request_id", "abc"))
	ctx = WithFields(ctx, Int("attempt", 2))
	if got := len(FieldsFrom(ctx)); got != 2 {
		t.Fatalf("expected 2 context fields, got %d", got)
	}
	if WithFields(ctx) != ctx {
		t.Error("WithFields without fields should return ctx unchanged")
	}

	Named("api").Named("measure").Info(ctx, "stored", Bool("cached", true))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("json output did not parse: %v (%q)", err, buf.String())
	}
	if line["request_id"] != "abc" || line["attempt"] != float64(2) || line["cached"] != true {
		t.Errorf("context and call fields should both be present: %v", line)
	}
	if line["logger"] != "api.measure" {
		t.Errorf("expected dotted logger name, got %v", line["logger"])
	}
	if FieldsFrom(context.Background()) != nil {
		t.Error("plain context should carry no fields")
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info(WithFields(context.Background(), String("k", "v")), "dropped")
	if l.Named("x") == nil {
		t.Error("named nop logger is nil")
	}
}
