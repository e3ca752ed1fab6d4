package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"dvh/internal/util"
)

// ToolProfile overrides how DVH's external tool collaborators are run.
// It is the direct structural analogue of the teacher's task.toml
// [environment] block (cpus/memory/storage/docker_image), generalized
// from "the task's sandboxed environment" to "the tool's execution
// backend" — loaded with the same library for the same reason.
type ToolProfile struct {
	Decompiler ToolOverride `toml:"decompiler"`
	Remapper   ToolOverride `toml:"remapper"`
	Merger     ToolOverride `toml:"merger"`
	Bundler    ToolOverride `toml:"bundler_extractor"`
}

// ToolOverride configures one tool's execution backend and resource
// envelope. A legacy Memory string is normalized into MemoryMB when
// memory_mb is unset, the same way config/task.go normalizes the
// teacher's legacy fields. BuildToolSet consumes Backend, Image and
// BackendConfig; BinaryPath, TimeoutSec, CPUs and MemoryMB are parsed and
// defaulted but not applied to any tool invocation.
type ToolOverride struct {
	Backend      string         `toml:"backend"` // "local" (default), "docker", "modal", "apple"
	Image        string         `toml:"image,omitempty"`
	BinaryPath   string         `toml:"binary_path,omitempty"`
	TimeoutSec   float64        `toml:"timeout_sec,omitempty"`
	CPUs         float64        `toml:"cpus,omitempty"`
	Memory       string         `toml:"memory,omitempty"` // deprecated: use memory_mb
	MemoryMB     int            `toml:"memory_mb,omitempty"`
	BackendConfig map[string]any `toml:"backend_config,omitempty"`
}

// DefaultToolProfile returns a profile that runs every tool locally.
func DefaultToolProfile() ToolProfile {
	local := ToolOverride{Backend: "local", TimeoutSec: 600, CPUs: 1, MemoryMB: 2048}
	return ToolProfile{
		Decompiler: local,
		Remapper:   local,
		Merger:     local,
		Bundler:    local,
	}
}

// LoadToolProfile loads and parses a tool-profile TOML file, applying
// defaults for any unset fields.
func LoadToolProfile(path string) (ToolProfile, error) {
	if path == "" {
		return DefaultToolProfile(), nil
	}

	var profile ToolProfile

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("reading tool profile: %w", err)
	}

	md, err := toml.Decode(string(data), &profile)
	if err != nil {
		return profile, fmt.Errorf("parsing tool profile: %w", err)
	}

	for _, o := range []*ToolOverride{&profile.Decompiler, &profile.Remapper, &profile.Merger, &profile.Bundler} {
		if o.Backend == "" {
			o.Backend = "local"
		}
		if o.TimeoutSec == 0 {
			o.TimeoutSec = 600
		}
		if o.CPUs == 0 {
			o.CPUs = 1
		}
		if o.MemoryMB == 0 && o.Memory != "" {
			mb, err := util.ParseMemory(o.Memory)
			if err != nil {
				return profile, fmt.Errorf("parsing memory %q: %w", o.Memory, err)
			}
			o.MemoryMB = mb
		}
		if o.MemoryMB == 0 {
			o.MemoryMB = 2048
		}
	}

	_ = md
	return profile, nil
}
