package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces"
	"github.com/sbuilder/yessfish-builds/internal/external-adapters/yaml"
)

func runShow(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	var (
		descriptorsDir = fs.String("descriptors-dir", "descriptors", "Path to descriptors directory")
		name           = fs.String("name", entities.ReleaseBuildType, "Descriptor revision to show")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: yessfish-builds show [--name <revision>] [options]

Print a descriptor revision after environment resolution. Signing
passwords are never printed.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	repo := yaml.NewDescriptorRepository(*descriptorsDir, yaml.NewDescriptorParser(), &interfaces.NoOpLogger{})
	def, err := repo.GetDescriptor(ctx, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printDescriptor(os.Stdout, def)
}

func printDescriptor(w io.Writer, def *entities.Descriptor) {
	fmt.Fprintf(w, "Revision:        %s\n", def.Name)
	fmt.Fprintf(w, "Namespace:       %s\n", def.Namespace)
	fmt.Fprintf(w, "Application ID:  %s\n", def.ApplicationID)
	fmt.Fprintf(w, "SDK:             compile=%s min=%s target=%s ndk=%s\n",
		def.SDK.Compile, def.SDK.Min, def.SDK.Target, orNone(def.SDK.NDK))
	fmt.Fprintf(w, "Java:            %d (desugaring %t)\n", def.JavaVersion, def.CoreLibraryDesugaring)
	fmt.Fprintf(w, "ABI filters:     %s\n", strings.Join(def.ABIFilters, ", "))
	if def.FlutterSource != "" {
		fmt.Fprintf(w, "Flutter source:  %s\n", def.FlutterSource)
	}

	fmt.Fprintln(w, "\nSigning configs:")
	for _, name := range sortedNames(def.SigningConfigs) {
		sc := def.SigningConfigs[name]
		fmt.Fprintf(w, "  %s: alias=%s store=%s key_password=%s store_password=%s\n",
			name, sc.KeyAlias, sc.StoreFile, orNone(sc.KeyPassword.Masked()), orNone(sc.StorePassword.Masked()))
	}

	fmt.Fprintln(w, "\nBuild types:")
	for _, name := range sortedNames(def.BuildTypes) {
		bt := def.BuildTypes[name]
		fmt.Fprintf(w, "  %s: signing=%s minify=%t shrink_resources=%t\n",
			name, orNone(bt.SigningConfig), bt.MinifyEnabled, bt.ShrinkResources)
		for _, pf := range bt.ProguardFiles {
			fmt.Fprintf(w, "    proguard: %s\n", pf)
		}
	}

	if len(def.Dependencies) > 0 {
		fmt.Fprintln(w, "\nDependencies:")
		for _, dep := range def.Dependencies {
			fmt.Fprintf(w, "  %s\n", dep)
		}
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
