package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadCheckInput(t *testing.T) {
	got, err := readCheckInput(strings.NewReader("From stdin\n"), "-")
	if err != nil || got != "From stdin" {
		t.Fatalf("stdin input = %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "caption.txt")
	if err := os.WriteFile(path, []byte("From file\r\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err = readCheckInput(strings.NewReader("ignored"), path)
	if err != nil || got != "From file" {
		t.Fatalf("file input = %q, %v", got, err)
	}

	if _, err := readCheckInput(nil, filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestCheckRejectsStrayArgument(t *testing.T) {
	err := runCheck(checkCmd, []string{"caption.txt"})
	if err == nil || !strings.Contains(err.Error(), "use --file") {
		t.Fatalf("err = %v", err)
	}
}
