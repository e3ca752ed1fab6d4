package pipeline

import (
	"fmt"

	"dvh/internal/config"
	"dvh/internal/toolrunner"
	"dvh/internal/toolrunner/apple"
	"dvh/internal/toolrunner/docker"
	"dvh/internal/toolrunner/local"
	"dvh/internal/toolrunner/modal"
)

// resolveBackend selects a toolrunner.Backend from a tool override, the
// same switch-on-config-string shape as the teacher's
// executor.NewJobOrchestrator picking an environment.Provider from
// JobEnvironmentConfig.Type.
func resolveBackend(override config.ToolOverride) (toolrunner.Backend, error) {
	switch override.Backend {
	case "", "local":
		return local.New(), nil
	case "docker":
		return docker.New(), nil
	case "modal":
		return modal.New(modal.ParseConfig(override.BackendConfig))
	case "apple":
		return apple.New()
	default:
		return nil, fmt.Errorf("unsupported tool backend %q", override.Backend)
	}
}

// ToolSet bundles the four backend-resolved external collaborators a
// pipeline run drives.
type ToolSet struct {
	Decompiler       *toolrunner.Tool
	Remapper         *toolrunner.Tool
	Merger           *toolrunner.Tool
	BundlerExtractor *toolrunner.Tool
}

// BuildToolSet resolves a backend for each of the four tool overrides and
// wraps it with the tool's declared name/plugins.
func BuildToolSet(profile config.ToolProfile) (ToolSet, error) {
	decompilerBackend, err := resolveBackend(profile.Decompiler)
	if err != nil {
		return ToolSet{}, fmt.Errorf("resolving decompiler backend: %w", err)
	}
	remapperBackend, err := resolveBackend(profile.Remapper)
	if err != nil {
		return ToolSet{}, fmt.Errorf("resolving remapper backend: %w", err)
	}
	mergerBackend, err := resolveBackend(profile.Merger)
	if err != nil {
		return ToolSet{}, fmt.Errorf("resolving merger backend: %w", err)
	}
	bundlerBackend, err := resolveBackend(profile.Bundler)
	if err != nil {
		return ToolSet{}, fmt.Errorf("resolving bundler-extractor backend: %w", err)
	}

	return ToolSet{
		Decompiler: &toolrunner.Tool{
			Name:    "decompiler",
			Plugins: []string{"decompiler-plugin-forge", "decompiler-plugin-preview", "decompiler-plugin-exceptions"},
			Image:   profile.Decompiler.Image,
			Backend: decompilerBackend,
		},
		Remapper: &toolrunner.Tool{
			Name:    "remapper",
			Image:   profile.Remapper.Image,
			Backend: remapperBackend,
		},
		Merger: &toolrunner.Tool{
			Name:    "merger",
			Image:   profile.Merger.Image,
			Backend: mergerBackend,
		},
		BundlerExtractor: &toolrunner.Tool{
			Name:    "bundler-extractor",
			Image:   profile.Bundler.Image,
			Backend: bundlerBackend,
		},
	}, nil
}
