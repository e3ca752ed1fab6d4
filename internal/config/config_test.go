package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dvh/internal/config"
)

func TestLoadBranchConfigMergesLastWins(t *testing.T) {
	dir := t.TempDir()

	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")
	if err := os.WriteFile(first, []byte(`{"branches":{"historical":{"type":"release"},"dev":{"type":"dev"}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte(`{"branches":{"historical":{"type":"custom"}}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	merged, err := config.LoadBranchConfig(context.Background(), []string{"file://" + first, "file://" + second})
	if err != nil {
		t.Fatalf("LoadBranchConfig: %v", err)
	}

	if merged["historical"].Type != "custom" {
		t.Errorf("expected second source to win for 'historical', got %q", merged["historical"].Type)
	}
	if merged["dev"].Type != "dev" {
		t.Errorf("expected 'dev' branch from the first source to survive, got %q", merged["dev"].Type)
	}
}

func TestLoadBranchConfigRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := config.LoadBranchConfig(context.Background(), []string{"file://" + path}); err == nil {
		t.Error("expected an error for malformed branch config JSON")
	}
}

func TestLoadToolProfileAppliesDefaults(t *testing.T) {
	profile, err := config.LoadToolProfile("")
	if err != nil {
		t.Fatalf("LoadToolProfile: %v", err)
	}
	if profile.Decompiler.Backend != "local" {
		t.Errorf("expected default decompiler backend 'local', got %q", profile.Decompiler.Backend)
	}
	if profile.Decompiler.MemoryMB != 2048 {
		t.Errorf("expected default memory 2048MB, got %d", profile.Decompiler.MemoryMB)
	}
}

func TestLoadToolProfileParsesOverridesAndLegacyMemory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.toml")
	content := `
[decompiler]
backend = "docker"
image = "dvh/decompiler:latest"
memory = "4G"

[remapper]
backend = "modal"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	profile, err := config.LoadToolProfile(path)
	if err != nil {
		t.Fatalf("LoadToolProfile: %v", err)
	}
	if profile.Decompiler.Backend != "docker" || profile.Decompiler.Image != "dvh/decompiler:latest" {
		t.Errorf("unexpected decompiler override: %+v", profile.Decompiler)
	}
	if profile.Decompiler.MemoryMB != 4096 {
		t.Errorf("expected legacy memory string '4G' normalized to 4096MB, got %d", profile.Decompiler.MemoryMB)
	}
	if profile.Remapper.Backend != "modal" {
		t.Errorf("expected remapper backend 'modal', got %q", profile.Remapper.Backend)
	}
	if profile.Merger.Backend != "local" {
		t.Errorf("expected unconfigured merger to default to 'local', got %q", profile.Merger.Backend)
	}
}
