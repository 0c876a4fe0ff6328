package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/agalue/rearfeed/internal/engineerr"
)

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	original := Default()
	original.SourceDevice = "Speakers (Realtek)"
	original.TargetDevice = "Rear Panel Output"
	original.Global.Volume = 0.8
	original.Global.Balance = -0.25
	original.Global.SwapChannels = true
	original.Global.Enabled = true
	original.Global.UpmixAmount = 0.3
	original.Left.Source = SourceRL
	original.Left.Volume = 1.2
	original.Left.DelayMs = 15
	original.Left.EQ.Low.GainDB = 3
	original.Right.Muted = true

	if err := Save(path, original); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	if !loaded.Equal(original) {
		t.Fatalf("round-trip mismatch:\n  wrote: %+v\n  read:  %+v", original, loaded)
	}
}

func TestMissingKeysTakeDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
source_device = "Speakers"
target_device = "Rear"
`)

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Global.Volume != 1.0 {
		t.Errorf("Global.Volume = %v, want default 1.0", cfg.Global.Volume)
	}
	if cfg.Left.Source != SourceRL {
		t.Errorf("Left.Source = %v, want default RL", cfg.Left.Source)
	}
	if cfg.Right.Source != SourceRR {
		t.Errorf("Right.Source = %v, want default RR", cfg.Right.Source)
	}
}

func TestUnknownKeysWarnAndAreIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
source_device = "Speakers"
target_device = "Rear"
some_future_key = true
`)

	_, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want 1 entry for the unknown key", warnings)
	}
}

func TestExplicitZeroVolumeIsNotTreatedAsMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
source_device = "Speakers"
target_device = "Rear"

[left_channel]
volume = 0.0
`)

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Left.Volume != 0.0 {
		t.Fatalf("Left.Volume = %v, want explicit 0.0 to be honored", cfg.Left.Volume)
	}
}

func TestMalformedTomlWrapsErrConfigParse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `source_device = "unterminated string`)

	_, _, err := Load(path)
	if err == nil {
		t.Fatal("Load() error = nil, want a parse error")
	}
	if !errors.Is(err, engineerr.ErrConfigParse) {
		t.Fatalf("Load() error = %v, want errors.Is(err, engineerr.ErrConfigParse)", err)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write test fixture: %v", err)
	}
}
