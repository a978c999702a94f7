// Package gateways implements domain gateways on top of the local system.
package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces"
)

// DefaultBuildTimeout bounds a single build script run
const DefaultBuildTimeout = 30 * time.Minute

// ScriptExecutor handles execution of build scripts
type ScriptExecutor struct {
	scriptPath     string
	workingDir     string
	defaultTimeout time.Duration
	logger         interfaces.Logger
}

// NewScriptExecutor creates a script executor for the given build script
func NewScriptExecutor(scriptPath, workingDir string, timeout time.Duration, logger interfaces.Logger) *ScriptExecutor {
	if timeout <= 0 {
		timeout = DefaultBuildTimeout
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ScriptExecutor{
		scriptPath:     scriptPath,
		workingDir:     workingDir,
		defaultTimeout: timeout,
		logger:         logger,
	}
}

// ExecuteScriptConfig contains configuration for executing a command.
type ExecuteScriptConfig struct {
	// Command is the argv of the process; Command[0] is the executable
	Command     []string
	WorkingDir  string
	Env         map[string]string
	Timeout     time.Duration
	Description string
	// Output receives combined stdout and stderr instead of in-memory capture
	Output io.Writer
}

// ExecuteResult contains the result of script execution
type ExecuteResult struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Error    error
}

// ExecuteScript runs a command with the given configuration
func (se *ScriptExecutor) ExecuteScript(ctx context.Context, config ExecuteScriptConfig) *ExecuteResult {
	startTime := time.Now()
	result := &ExecuteResult{}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = se.defaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := config.Command
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		result.Error = errors.New("nothing to execute")
		result.ExitCode = -1
		return result
	}

	//nolint:gosec // G204: the build script path comes from service configuration
	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	configureProcessGroup(cmd)
	cmd.WaitDelay = 5 * time.Second

	if config.WorkingDir != "" {
		cmd.Dir = config.WorkingDir
	}

	env := scriptEnviron(os.Environ())
	for key, value := range config.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	if config.Output != nil {
		cmd.Stdout = config.Output
		cmd.Stderr = config.Output
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	if config.Description != "" {
		se.logger.Debug("executing", interfaces.F("step", config.Description), interfaces.F("command", argv[0]))
	}

	err := cmd.Run()
	result.Duration = time.Since(startTime)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		result.Error = err
		result.ExitCode = -1
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			result.Error = fmt.Errorf("script execution timeout after %v", timeout)
		case errors.Is(ctx.Err(), context.Canceled):
			result.Error = fmt.Errorf("script execution canceled: %w", ctx.Err())
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		}
		return result
	}

	result.Success = true
	result.ExitCode = 0
	return result
}

// ExecuteBuildScript runs the configured build script as `<script> <branch> <commit>`
// with the descriptor exported through the environment
func (se *ScriptExecutor) ExecuteBuildScript(
	ctx context.Context,
	req entities.BuildRequest,
	def *entities.Descriptor,
	output io.Writer,
) error {
	if err := se.ValidateScriptPath(); err != nil {
		return err
	}

	result := se.ExecuteScript(ctx, ExecuteScriptConfig{
		Command:     []string{se.scriptPath, req.Branch, req.Commit},
		WorkingDir:  se.workingDir,
		Env:         BuildEnvironment(req, def),
		Timeout:     se.defaultTimeout,
		Description: "build",
		Output:      output,
	})

	if !result.Success {
		return fmt.Errorf("build script failed (exit %d): %w", result.ExitCode, result.Error)
	}

	se.logger.Info("build script completed", interfaces.F("duration", result.Duration.Round(time.Second)))
	return nil
}

// BuildEnvironment exports the descriptor settings the build script reads
func BuildEnvironment(req entities.BuildRequest, def *entities.Descriptor) map[string]string {
	buildType := req.BuildType
	if buildType == "" {
		buildType = entities.ReleaseBuildType
	}

	env := map[string]string{
		"BRANCH":         req.Branch,
		"COMMIT":         req.Commit,
		"BUILD_TYPE":     buildType,
		"APPLICATION_ID": def.ApplicationID,
		"NAMESPACE":      def.Namespace,
		"DESCRIPTOR":     def.Name,
		"ABI_FILTERS":    strings.Join(def.ABIFilters, ","),
	}

	if bt, ok := def.BuildTypes[buildType]; ok {
		env["MINIFY"] = strconv.FormatBool(bt.MinifyEnabled)
		env["SHRINK_RESOURCES"] = strconv.FormatBool(bt.ShrinkResources)
	}

	if sc, ok := def.SigningConfigFor(buildType); ok {
		env["SIGNING_KEY_ALIAS"] = sc.KeyAlias
		env["SIGNING_STORE_FILE"] = sc.StoreFile
		env["SIGNING_KEY_PASSWORD"] = sc.KeyPassword.Value
		env["SIGNING_STORE_PASSWORD"] = sc.StorePassword.Value
	}

	return env
}

// WebhookSecretEnv holds the webhook signing secret; the build script never needs it
const WebhookSecretEnv = "YESSFISH_WEBHOOK_SECRET"

// scriptEnviron drops service secrets from the inherited environment
func scriptEnviron(environ []string) []string {
	out := make([]string, 0, len(environ))
	for _, kv := range environ {
		if strings.HasPrefix(kv, WebhookSecretEnv+"=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// ValidateScriptPath checks that the build script exists and is executable
func (se *ScriptExecutor) ValidateScriptPath() error {
	info, err := os.Stat(se.scriptPath)
	if err != nil {
		return fmt.Errorf("build script %s: %w", se.scriptPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("build script %s is a directory", se.scriptPath)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("build script %s is not executable", se.scriptPath)
	}
	return nil
}
