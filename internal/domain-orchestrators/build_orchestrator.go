// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces"
	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces/repositories"
	"github.com/sbuilder/yessfish-builds/internal/domain/services"
)

// ErrDescriptorInvalid is returned when the descriptor revision fails validation
var ErrDescriptorInvalid = errors.New("descriptor failed validation")

// filesystem timestamps are coarser than the wall clock
const mtimeSlack = 2 * time.Second

// ScriptExecutor interface for running the build script
type ScriptExecutor interface {
	ExecuteBuildScript(ctx context.Context, req entities.BuildRequest, def *entities.Descriptor, output io.Writer) error
}

// ArtifactFinder interface for locating produced packages
type ArtifactFinder interface {
	FindSince(artifactsDir string, since int64) ([]string, error)
}

// ChecksumGenerator interface for writing artifact checksums
type ChecksumGenerator interface {
	GenerateAll(paths []string) ([]entities.Artifact, error)
}

// BuildOrchestrator coordinates the complete build workflow for one request
type BuildOrchestrator struct {
	descriptors       repositories.DescriptorRepository
	validator         *services.DescriptorValidator
	scriptExecutor    ScriptExecutor
	artifactFinder    ArtifactFinder
	checksums         ChecksumGenerator
	defaultDescriptor string
	artifactsDir      string
	logger            interfaces.Logger
}

// BuildOrchestratorConfig holds configuration for the orchestrator
type BuildOrchestratorConfig struct {
	DefaultDescriptor string
	// ArtifactsDir is scanned for packages after the script succeeds; empty skips the scan
	ArtifactsDir string
}

// NewBuildOrchestrator creates a new build orchestrator
func NewBuildOrchestrator(
	descriptors repositories.DescriptorRepository,
	validator *services.DescriptorValidator,
	scriptExecutor ScriptExecutor,
	artifactFinder ArtifactFinder,
	checksums ChecksumGenerator,
	config BuildOrchestratorConfig,
	logger interfaces.Logger,
) *BuildOrchestrator {
	if validator == nil {
		validator = services.NewDescriptorValidator()
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	defaultDescriptor := config.DefaultDescriptor
	if defaultDescriptor == "" {
		defaultDescriptor = entities.ReleaseBuildType
	}

	return &BuildOrchestrator{
		descriptors:       descriptors,
		validator:         validator,
		scriptExecutor:    scriptExecutor,
		artifactFinder:    artifactFinder,
		checksums:         checksums,
		defaultDescriptor: defaultDescriptor,
		artifactsDir:      config.ArtifactsDir,
		logger:            logger,
	}
}

// BuildResult contains the result of a build operation
type BuildResult struct {
	Request       entities.BuildRequest
	Descriptor    *entities.Descriptor
	Validation    *services.ValidationReport
	Artifacts     []entities.Artifact
	BuildDuration time.Duration
	TotalDuration time.Duration
	Success       bool
	Error         error
}

// Build executes the complete workflow for a build request, streaming script output to output
func (o *BuildOrchestrator) Build(ctx context.Context, req entities.BuildRequest, output io.Writer) (*BuildResult, error) {
	startTime := time.Now()
	result := &BuildResult{Request: req}
	if output == nil {
		output = io.Discard
	}

	fail := func(err error) (*BuildResult, error) {
		result.Error = err
		result.TotalDuration = time.Since(startTime)
		return result, err
	}

	// Step 1: Load descriptor revision
	name := req.Descriptor
	if name == "" {
		name = o.defaultDescriptor
	}
	def, err := o.descriptors.GetDescriptor(ctx, name)
	if err != nil {
		return fail(fmt.Errorf("failed to load descriptor: %w", err))
	}
	result.Descriptor = def

	// Step 2: Validate it, errors block the build
	report := o.validator.Validate(def)
	result.Validation = report
	for _, w := range report.Warnings() {
		o.logger.Warn("descriptor warning", interfaces.F("descriptor", def.Name), interfaces.F("issue", w.String()))
	}
	if !report.Valid() {
		msgs := make([]string, 0, len(report.Errors()))
		for _, e := range report.Errors() {
			msgs = append(msgs, e.Field+": "+e.Message)
		}
		return fail(fmt.Errorf("%w: %s", ErrDescriptorInvalid, strings.Join(msgs, "; ")))
	}

	buildType := req.BuildType
	if buildType == "" {
		buildType = entities.ReleaseBuildType
		req.BuildType = buildType
		result.Request.BuildType = buildType
	}
	if _, ok := def.BuildTypes[buildType]; !ok {
		return fail(fmt.Errorf("descriptor %s has no build type %q", def.Name, buildType))
	}

	// Step 3: Run the build script
	buildStart := time.Now()
	fmt.Fprintf(output, "==> %s build of %s (%s) commit %s by %s\n",
		buildType, def.ApplicationID, req.Branch, req.Commit, req.Pusher)
	if err := o.scriptExecutor.ExecuteBuildScript(ctx, req, def, output); err != nil {
		result.BuildDuration = time.Since(buildStart)
		return fail(fmt.Errorf("build failed: %w", err))
	}
	result.BuildDuration = time.Since(buildStart)

	// Step 4: Checksum produced packages
	if o.artifactsDir != "" && o.artifactFinder != nil && o.checksums != nil {
		paths, err := o.artifactFinder.FindSince(o.artifactsDir, buildStart.Add(-mtimeSlack).UnixNano())
		if err != nil {
			return fail(fmt.Errorf("failed to locate artifacts: %w", err))
		}
		if len(paths) == 0 {
			o.logger.Warn("build produced no packages", interfaces.F("dir", o.artifactsDir))
		}
		artifacts, err := o.checksums.GenerateAll(paths)
		if err != nil {
			return fail(fmt.Errorf("failed to checksum artifacts: %w", err))
		}
		result.Artifacts = artifacts
	}

	result.Success = true
	result.TotalDuration = time.Since(startTime)
	return result, nil
}

// GetBuildSummary returns a human-readable summary of the build
func (r *BuildResult) GetBuildSummary() string {
	if !r.Success {
		return fmt.Sprintf("Build failed: %v", r.Error)
	}

	summary := fmt.Sprintf(`Build successful!
Application: %s
Descriptor: %s
Branch: %s
Commit: %s
Build: %v
Total: %v`,
		r.Descriptor.ApplicationID,
		r.Descriptor.Name,
		r.Request.Branch,
		r.Request.Commit,
		r.BuildDuration.Round(time.Millisecond),
		r.TotalDuration.Round(time.Millisecond),
	)

	for _, a := range r.Artifacts {
		summary += fmt.Sprintf("\nArtifact: %s (sha256 %s)", a.Name, a.SHA256)
	}

	return summary
}
