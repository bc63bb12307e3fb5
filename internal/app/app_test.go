package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dirwatch/internal/config"
	"dirwatch/internal/storage"
	"dirwatch/internal/tracker"
)

func runOnce(t *testing.T, cfg config.Config) tracker.Report {
	t.Helper()
	ctx := context.Background()
	a, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	}()
	if a.RunID() == "" {
		t.Error("RunID() is empty")
	}

	report, err := a.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return report
}

func TestEndToEndScenario(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.txt", "hello")
	write("b.txt", "world")

	cfg := config.Default()
	cfg.Dir = dir
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}

	if got := runOnce(t, cfg).Outcome; got != tracker.FirstRun {
		t.Fatalf("run 1 = %v, want %v", got, tracker.FirstRun)
	}
	if _, err := os.Stat(filepath.Join(dir, storage.DefaultStoreName)); err != nil {
		t.Fatalf("store file not created at directory root: %v", err)
	}

	write("a.txt", "HELLO")
	report := runOnce(t, cfg)
	if report.Outcome != tracker.Changed {
		t.Fatalf("run 2 = %v, want %v", report.Outcome, tracker.Changed)
	}
	if len(report.Changed) != 1 || report.Changed[0].Path != filepath.Join(dir, "a.txt") {
		t.Errorf("Changed = %+v, want a.txt", report.Changed)
	}

	if got := runOnce(t, cfg).Outcome; got != tracker.Unchanged {
		t.Fatalf("run 3 = %v, want %v", got, tracker.Unchanged)
	}
}

func TestCustomStoreName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Dir = dir
	cfg.StoreName = "snapshots.sqlite"
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}

	runOnce(t, cfg)
	report := runOnce(t, cfg)
	if report.Outcome != tracker.Unchanged || report.Files != 1 {
		t.Errorf("second run = %+v, want unchanged with 1 file", report)
	}
}

func TestNewCorruptStore(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, storage.DefaultStoreName), []byte(strings.Repeat("not a database ", 512)), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Dir = dir
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}

	_, err := New(context.Background(), cfg)
	if !errors.Is(err, storage.ErrStore) {
		t.Errorf("New() error = %v, want ErrStore", err)
	}
}
