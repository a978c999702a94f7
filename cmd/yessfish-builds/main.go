// Package main provides the yessfish-builds CLI for the Flutter Android build service.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	command := os.Args[1]

	// Dispatch to subcommand
	switch command {
	case "serve":
		runServe(ctx, os.Args[2:])
	case "validate":
		runValidate(ctx, os.Args[2:])
	case "show":
		runShow(ctx, os.Args[2:])
	case "build":
		runBuild(ctx, os.Args[2:])
	case "verify":
		runVerify(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`yessfish-builds - Push-triggered Android builds for the YessFish Flutter app

Usage:
  yessfish-builds <command> [options]

Commands:
  serve      Run the webhook listener and build queue
  validate   Validate build descriptor revisions
  show       Print a resolved descriptor with credentials masked
  build      Run one build synchronously
  verify     Verify checksums and signatures of built packages

Use "yessfish-builds <command> --help" for more information about a command.`)
}
