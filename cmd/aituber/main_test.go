package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harunalabs/aituber/internal/config"
)

func TestRunOnboard_CreatesConfigAndDirs(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := runOnboard(onboardCmd, nil); err != nil {
		t.Fatalf("runOnboard: %v", err)
	}

	if _, err := os.Stat(config.ConfigPath()); err != nil {
		t.Errorf("config not created: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{cfg.Stream.DataDir, cfg.Summary.Dir, cfg.Agent.PromptsDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("dir %s not created: %v", dir, err)
		}
	}

	// Re-running must not fail on the existing config.
	if err := runOnboard(onboardCmd, nil); err != nil {
		t.Errorf("second runOnboard: %v", err)
	}
}

func TestRunStop_WritesMarker(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := runStop(stopCmd, nil); err != nil {
		t.Fatalf("runStop: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	marker := cfg.ShutdownMarkerPath()
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("marker not written at %s: %v", marker, err)
	}
	if filepath.Dir(marker) != cfg.Stream.DataDir {
		t.Errorf("marker dir = %s, want data dir", filepath.Dir(marker))
	}
}

func TestRunStream_FailsWithoutAPIKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AITUBER_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if err := runStream(runCmd, nil); err == nil {
		t.Fatal("expected startup failure without an API key")
	}
}

func TestRunStatus_NoConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := runStatus(statusCmd, nil); err != nil {
		t.Errorf("runStatus: %v", err)
	}
}
