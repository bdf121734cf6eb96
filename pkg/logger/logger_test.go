package logger

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestNewWithDefaultConfig(t *testing.T) {
	l, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New(DefaultConfig()): %v", err)
	}
	if l == nil {
		t.Fatal("New returned a nil logger")
	}
	l.Info("hello", zap.String("k", "v"))
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "bogus"
	if _, err := New(cfg); err == nil {
		t.Error("New with an invalid level should error")
	}
}

func TestNewRejectsInvalidFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = "xml"
	if _, err := New(cfg); err == nil {
		t.Error("New with an invalid format should error")
	}
}

func TestNewWritesToFileInNestedDirectory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = filepath.Join(t.TempDir(), "nested", "app.log")

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("written to file")
	if err := l.Sync(); err != nil {
		t.Errorf("Sync: %v", err)
	}
}

func TestWithAddsFields(t *testing.T) {
	l, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	child := l.With(zap.String("component", "test"))
	if child == nil {
		t.Fatal("With returned a nil logger")
	}
	child.Info("from child logger")
}

func TestWithRequestIDRoundTrips(t *testing.T) {
	l, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := l.WithRequestID(context.Background(), "req-123")
	fields := getContextFields(ctx)
	if len(fields) != 1 {
		t.Fatalf("expected 1 context field, got %d", len(fields))
	}
}
