package logging

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.expected)
		}
	}
}

func TestInit_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simos.log")
	if err := Init(&Config{Level: "debug", Format: "json", Output: path}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	Info("hello", String("user", "alice"))
	_ = Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `"user":"alice"`) {
		t.Errorf("log output missing field: %s", data)
	}
}

func TestInit_BadOutput(t *testing.T) {
	err := Init(&Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	if err == nil {
		t.Error("Init() should fail for an unwritable output")
	}
}

func TestInit_RedirectsStdLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simos.log")
	if err := Init(&Config{Level: "warn", Format: "json", Output: path}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	log.Print("mount failed")
	Info("dropped")
	_ = Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"message":"mount failed"`) || !strings.Contains(out, `"source":"stdlib"`) {
		t.Errorf("stdlib line not forwarded: %s", out)
	}
	if strings.Contains(out, "dropped") {
		t.Errorf("info entry written at warn level: %s", out)
	}
}
