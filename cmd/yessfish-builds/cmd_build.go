package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"syscall"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
)

func runBuild(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	var (
		configFile = fs.String("config", "", "Path to YAML config file")
		envFile    = fs.String("env-file", ".env", "Optional .env file loaded before reading the environment")
		branch     = fs.String("branch", "main", "Branch to build")
		commit     = fs.String("commit", "HEAD", "Commit SHA to build")
		descriptor = fs.String("descriptor", "", "Descriptor revision (default from config)")
		buildType  = fs.String("build-type", entities.ReleaseBuildType, "Build type to package")
		message    = fs.String("message", "Manual build", "Build message recorded in the log")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: yessfish-builds build [options]

Run one build in the foreground, the same way a webhook push would.

Examples:
  yessfish-builds build
  yessfish-builds build --commit 9f1c2d3
  yessfish-builds build --commit 9f1c2d3 --descriptor release-unshrunk

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	req := entities.BuildRequest{
		Branch:     *branch,
		Commit:     shortCommit(*commit),
		Pusher:     currentUser(),
		Message:    *message,
		Descriptor: *descriptor,
		BuildType:  *buildType,
	}

	if err := buildOnce(ctx, *configFile, *envFile, req); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildOnce(ctx context.Context, configFile, envFile string, req entities.BuildRequest) error {
	cfg, err := loadConfig(configFile, envFile, false)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, os.Stderr, false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, _ := newBuildOrchestrator(cfg, logger)
	result, err := orch.Build(ctx, req, os.Stdout)
	fmt.Println()
	fmt.Println(result.GetBuildSummary())
	if err != nil {
		return fmt.Errorf("build of %s failed", req.Commit)
	}
	return nil
}

// shortCommit abbreviates a SHA to seven characters; empty means HEAD
func shortCommit(commit string) string {
	commit = strings.TrimSpace(commit)
	if commit == "" {
		return "HEAD"
	}
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "Unknown"
}
