package main

import (
	"fmt"
	"io"

	"github.com/sbuilder/yessfish-builds/internal/domain-adapters/gateways"
	orchestrators "github.com/sbuilder/yessfish-builds/internal/domain-orchestrators"
	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces"
	"github.com/sbuilder/yessfish-builds/internal/domain/services"
	"github.com/sbuilder/yessfish-builds/internal/external-adapters/config"
	"github.com/sbuilder/yessfish-builds/internal/external-adapters/logging"
	"github.com/sbuilder/yessfish-builds/internal/external-adapters/yaml"
)

func loadConfig(file, envFile string, requireSecret bool) (*config.Config, error) {
	opts := config.LoadOptions{File: file, RequireSecret: requireSecret}
	if envFile != "" {
		opts.EnvFiles = []string{envFile}
	}
	return config.Load(opts)
}

func newLogger(cfg *config.Config, console io.Writer, withFile bool) (*logging.Logger, error) {
	opts := logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Console: console,
	}
	if withFile {
		opts.File = cfg.Log.File
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// newBuildOrchestrator wires the build pipeline from configuration
func newBuildOrchestrator(cfg *config.Config, logger interfaces.Logger) (*orchestrators.BuildOrchestrator, *gateways.ScriptExecutor) {
	repo := yaml.NewDescriptorRepository(cfg.Descriptors, yaml.NewDescriptorParser(), logger)
	executor := gateways.NewScriptExecutor(cfg.Build.Script, cfg.Build.WorkingDir, cfg.Build.Timeout, logger)
	checksums := services.NewArtifactChecksumService(gateways.NewChecksumVerifier())

	orch := orchestrators.NewBuildOrchestrator(
		repo,
		services.NewDescriptorValidator(),
		executor,
		gateways.NewArtifactFinder(),
		checksums,
		orchestrators.BuildOrchestratorConfig{
			DefaultDescriptor: cfg.Build.Descriptor,
			ArtifactsDir:      cfg.Build.ArtifactsDir,
		},
		logger,
	)
	return orch, executor
}
