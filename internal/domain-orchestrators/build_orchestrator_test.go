package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces/repositories"
)

// Mock implementations for testing
type mockDescriptorRepository struct {
	descriptors map[string]*entities.Descriptor
}

func (m *mockDescriptorRepository) GetDescriptor(_ context.Context, name string) (*entities.Descriptor, error) {
	def, ok := m.descriptors[name]
	if !ok {
		return nil, repositories.ErrDescriptorNotFound
	}
	return def, nil
}

func (m *mockDescriptorRepository) ListDescriptors(_ context.Context) ([]*entities.Descriptor, error) {
	out := make([]*entities.Descriptor, 0, len(m.descriptors))
	for _, d := range m.descriptors {
		out = append(out, d)
	}
	return out, nil
}

type mockScriptExecutor struct {
	err    error
	output string
	calls  int
	last   entities.BuildRequest
}

func (m *mockScriptExecutor) ExecuteBuildScript(_ context.Context, req entities.BuildRequest, _ *entities.Descriptor, output io.Writer) error {
	m.calls++
	m.last = req
	if m.output != "" {
		_, _ = io.WriteString(output, m.output)
	}
	return m.err
}

type mockArtifactFinder struct {
	paths []string
	err   error
}

func (m *mockArtifactFinder) FindSince(_ string, _ int64) ([]string, error) {
	return m.paths, m.err
}

type mockChecksumGenerator struct {
	err error
}

func (m *mockChecksumGenerator) GenerateAll(paths []string) ([]entities.Artifact, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]entities.Artifact, 0, len(paths))
	for _, p := range paths {
		out = append(out, entities.Artifact{Name: p, Path: p, SHA256: "abc123"})
	}
	return out, nil
}

func testDescriptor() *entities.Descriptor {
	return &entities.Descriptor{
		Name:          "release",
		Namespace:     "nl.sbuilder.yessfish_flutter_app",
		ApplicationID: "nl.sbuilder.yessfish_flutter_app",
		SDK: entities.SDKConfig{
			Compile: entities.SDKInherited,
			Min:     entities.SDKInherited,
			Target:  entities.SDKInherited,
		},
		SigningConfigs: map[string]entities.SigningConfig{
			"release": {
				KeyAlias:      "yessfish",
				KeyPassword:   entities.Credential{Value: "pw", EnvRef: "KEY_PW"},
				StoreFile:     "yessfish-release.jks",
				StorePassword: entities.Credential{Value: "pw", EnvRef: "STORE_PW"},
			},
		},
		ABIFilters: []string{"arm64-v8a"},
		BuildTypes: map[string]entities.BuildType{
			"release": {SigningConfig: "release", MinifyEnabled: true, ShrinkResources: true},
		},
	}
}

func testRequest() entities.BuildRequest {
	return entities.BuildRequest{Branch: "main", Commit: "abc1234", Pusher: "octocat", Message: "Bump version"}
}

func newTestOrchestrator(def *entities.Descriptor, exec *mockScriptExecutor, finder *mockArtifactFinder, sums *mockChecksumGenerator) *BuildOrchestrator {
	repo := &mockDescriptorRepository{descriptors: map[string]*entities.Descriptor{}}
	if def != nil {
		repo.descriptors[def.Name] = def
	}
	// Nil mocks must reach the orchestrator as untyped nil interfaces.
	var f ArtifactFinder
	if finder != nil {
		f = finder
	}
	var c ChecksumGenerator
	if sums != nil {
		c = sums
	}
	return NewBuildOrchestrator(repo, nil, exec, f, c,
		BuildOrchestratorConfig{ArtifactsDir: "/builds/outputs"}, nil)
}

func TestBuildOrchestrator_Build_Success(t *testing.T) {
	exec := &mockScriptExecutor{output: "BUILD SUCCESSFUL\n"}
	finder := &mockArtifactFinder{paths: []string{"app-release.apk"}}
	orch := newTestOrchestrator(testDescriptor(), exec, finder, &mockChecksumGenerator{})

	var out bytes.Buffer
	result, err := orch.Build(context.Background(), testRequest(), &out)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !result.Success {
		t.Error("Expected successful build result")
	}
	if exec.calls != 1 {
		t.Errorf("script calls = %d, want 1", exec.calls)
	}
	if exec.last.BuildType != entities.ReleaseBuildType {
		t.Errorf("BuildType = %q, want release default", exec.last.BuildType)
	}
	if len(result.Artifacts) != 1 || result.Artifacts[0].Name != "app-release.apk" {
		t.Errorf("Artifacts = %+v", result.Artifacts)
	}
	if !strings.Contains(out.String(), "commit abc1234") || !strings.Contains(out.String(), "BUILD SUCCESSFUL") {
		t.Errorf("build output = %q", out.String())
	}
}

func TestBuildOrchestrator_DescriptorNotFound(t *testing.T) {
	exec := &mockScriptExecutor{}
	orch := newTestOrchestrator(nil, exec, nil, nil)

	_, err := orch.Build(context.Background(), testRequest(), nil)
	if !errors.Is(err, repositories.ErrDescriptorNotFound) {
		t.Fatalf("error = %v, want ErrDescriptorNotFound", err)
	}
	if exec.calls != 0 {
		t.Error("script must not run without a descriptor")
	}
}

func TestBuildOrchestrator_InvalidDescriptorBlocksBuild(t *testing.T) {
	def := testDescriptor()
	def.ABIFilters = nil
	exec := &mockScriptExecutor{}
	orch := newTestOrchestrator(def, exec, nil, nil)

	result, err := orch.Build(context.Background(), testRequest(), nil)
	if !errors.Is(err, ErrDescriptorInvalid) {
		t.Fatalf("error = %v, want ErrDescriptorInvalid", err)
	}
	if !strings.Contains(err.Error(), "ndk.abi_filters") {
		t.Errorf("error should name the failing field, got %v", err)
	}
	if exec.calls != 0 {
		t.Error("script must not run for an invalid descriptor")
	}
	if result.Validation == nil || result.Validation.Valid() {
		t.Error("expected failing validation report on result")
	}
}

func TestBuildOrchestrator_WarningsDoNotBlock(t *testing.T) {
	def := testDescriptor()
	def.SigningConfigs["release"] = entities.SigningConfig{
		KeyAlias:      "yessfish",
		KeyPassword:   entities.Credential{Value: "literal"},
		StoreFile:     "yessfish-release.jks",
		StorePassword: entities.Credential{Value: "literal"},
	}
	orch := newTestOrchestrator(def, &mockScriptExecutor{}, nil, nil)

	result, err := orch.Build(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(result.Validation.Warnings()) == 0 {
		t.Error("expected plaintext credential warnings")
	}
}

func TestBuildOrchestrator_UnknownBuildType(t *testing.T) {
	orch := newTestOrchestrator(testDescriptor(), &mockScriptExecutor{}, nil, nil)

	req := testRequest()
	req.BuildType = "debug"
	_, err := orch.Build(context.Background(), req, nil)
	if err == nil || !strings.Contains(err.Error(), `"debug"`) {
		t.Errorf("error = %v, want unknown build type", err)
	}
}

func TestBuildOrchestrator_BuildScriptFailure(t *testing.T) {
	exec := &mockScriptExecutor{err: errors.New("exit status 1")}
	orch := newTestOrchestrator(testDescriptor(), exec, &mockArtifactFinder{}, &mockChecksumGenerator{})

	result, err := orch.Build(context.Background(), testRequest(), nil)
	if err == nil || !strings.Contains(err.Error(), "build failed") {
		t.Fatalf("error = %v, want build failed", err)
	}
	if result.Success {
		t.Error("result must not be successful")
	}
}

func TestBuildOrchestrator_ArtifactErrors(t *testing.T) {
	tests := []struct {
		name   string
		finder *mockArtifactFinder
		sums   *mockChecksumGenerator
		want   string
	}{
		{"finder", &mockArtifactFinder{err: errors.New("permission denied")}, &mockChecksumGenerator{}, "failed to locate artifacts"},
		{"checksum", &mockArtifactFinder{paths: []string{"a.apk"}}, &mockChecksumGenerator{err: errors.New("disk full")}, "failed to checksum artifacts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := newTestOrchestrator(testDescriptor(), &mockScriptExecutor{}, tt.finder, tt.sums)
			_, err := orch.Build(context.Background(), testRequest(), nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestBuildResult_GetBuildSummary_Success(t *testing.T) {
	result := &BuildResult{
		Request:    testRequest(),
		Descriptor: testDescriptor(),
		Artifacts:  []entities.Artifact{{Name: "app-release.apk", SHA256: "deadbeef"}},
		Success:    true,
	}

	summary := result.GetBuildSummary()

	for _, want := range []string{"Build successful", "nl.sbuilder.yessfish_flutter_app", "abc1234", "app-release.apk", "deadbeef"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary should contain %q, got: %s", want, summary)
		}
	}
}

func TestBuildResult_GetBuildSummary_Failure(t *testing.T) {
	result := &BuildResult{
		Success: false,
		Error:   errors.New("keystore not found"),
	}

	summary := result.GetBuildSummary()

	if !strings.Contains(summary, "Build failed") || !strings.Contains(summary, "keystore not found") {
		t.Errorf("Summary = %s", summary)
	}
}

func TestBuildOrchestrator_SkipsArtifactScanWithoutFinder(t *testing.T) {
	orch := newTestOrchestrator(testDescriptor(), &mockScriptExecutor{}, nil, nil)

	result, err := orch.Build(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !result.Success || len(result.Artifacts) != 0 {
		t.Errorf("result = %+v, want success without artifacts", result)
	}
}
