package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", &buf)
	log.Info().Msg("hidden")
	log.Warn().Str("chunk", "3").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "chunk=") {
		t.Fatalf("warn message missing: %q", out)
	}
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New("chatty", &buf)
	log.Debug().Msg("debug")
	log.Info().Msg("info")
	if out := buf.String(); strings.Contains(out, "debug") || !strings.Contains(out, "info") {
		t.Fatalf("output = %q", out)
	}
}

func TestNew_RegularFileGetsNoColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	if isTerminal(f) {
		t.Fatal("isTerminal(regular file) = true")
	}
	log := New("info", f)
	log.Warn().Str("chunk", "3").Msg("plain")
	if err := f.Close(); err != nil {
		t.Fatalf("close log file: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(data), "\x1b[") {
		t.Fatalf("log file contains ANSI escapes: %q", data)
	}
	if !strings.Contains(string(data), "plain") {
		t.Fatalf("log file = %q, missing message", data)
	}
}
