package logger

import (
	"testing"
)

func TestLoggerNeverNilBeforeInitialize(t *testing.T) {
	if Logger == nil {
		t.Fatal("package-level Logger should be a no-op logger before Initialize")
	}
	// Must not panic
	Infow("early message", "key", "value")
	Debugw("early debug")
}

func TestInitializeConsole(t *testing.T) {
	if err := Initialize(false); err != nil {
		t.Fatalf("Initialize(false) failed: %v", err)
	}
	if JSONOutput {
		t.Error("JSONOutput should be false for console mode")
	}
	Infow("console logger works", "mode", "console")
}

func TestInitializeJSON(t *testing.T) {
	if err := Initialize(true); err != nil {
		t.Fatalf("Initialize(true) failed: %v", err)
	}
	if !JSONOutput {
		t.Error("JSONOutput should be true for JSON mode")
	}
	Infow("json logger works", "mode", "json")
}

func TestNamed(t *testing.T) {
	if err := Initialize(false); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	sub := Named("scheduler")
	if sub == nil {
		t.Fatal("Named returned nil")
	}
	sub.Infow("named logger works")
}
