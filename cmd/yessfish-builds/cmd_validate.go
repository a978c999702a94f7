package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces"
	"github.com/sbuilder/yessfish-builds/internal/domain/services"
	"github.com/sbuilder/yessfish-builds/internal/external-adapters/yaml"
)

func runValidate(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	var (
		descriptorsDir = fs.String("descriptors-dir", "descriptors", "Path to descriptors directory")
		name           = fs.String("name", "", "Validate a single revision (default: all)")
		checkKeystore  = fs.Bool("check-keystore", false, "Fail when the signing keystore file is missing")
		keystoreDir    = fs.String("keystore-dir", "", "Directory keystore paths are relative to (default: descriptors dir)")
		strict         = fs.Bool("strict", false, "Treat warnings as errors")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: yessfish-builds validate [options]

Validate Android build descriptor revisions: signing references, ABI filters,
SDK levels, shrinking flags and credential hygiene.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	validator := services.NewDescriptorValidator()
	if *checkKeystore {
		dir := *keystoreDir
		if dir == "" {
			dir = *descriptorsDir
		}
		validator = services.NewDescriptorValidatorWithKeystoreCheck(dir)
	}

	ok, err := validateDescriptors(ctx, os.Stdout, *descriptorsDir, *name, validator, *strict)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

func validateDescriptors(ctx context.Context, w io.Writer, dir, name string, validator *services.DescriptorValidator, strict bool) (bool, error) {
	repo := yaml.NewDescriptorRepository(dir, yaml.NewDescriptorParser(), &interfaces.NoOpLogger{})

	var defs []*entities.Descriptor
	if name != "" {
		def, err := repo.GetDescriptor(ctx, name)
		if err != nil {
			return false, err
		}
		defs = []*entities.Descriptor{def}
	} else {
		all, err := repo.ListDescriptors(ctx)
		if err != nil {
			return false, err
		}
		if len(all) == 0 {
			return false, fmt.Errorf("no descriptors found in %s", dir)
		}
		defs = all
	}

	reports, allValid := validator.ValidateAll(defs)
	failed := 0
	for _, report := range reports {
		status := "OK"
		switch {
		case !report.Valid():
			status = "FAILED"
			failed++
		case strict && len(report.Warnings()) > 0:
			status = "FAILED (strict)"
			failed++
			allValid = false
		}

		fmt.Fprintf(w, "%s: %s\n", report.Descriptor, status)
		for _, issue := range report.Issues {
			fmt.Fprintf(w, "  %s\n", issue.String())
		}
	}

	fmt.Fprintf(w, "\n%d revision(s) checked, %d failed\n", len(reports), failed)
	return allValid, nil
}
