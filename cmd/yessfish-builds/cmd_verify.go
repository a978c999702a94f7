package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbuilder/yessfish-builds/internal/domain-adapters/gateways"
	"github.com/sbuilder/yessfish-builds/internal/domain/services"
)

func runVerify(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	var (
		checksumFile = fs.String("checksum", "", "Checksum file to verify against (.sha256)")
		gpgSig       = fs.String("gpg-sig", "", "Detached GPG signature file (.asc or .sig)")
		gpgKey       = fs.String("gpg-key", "", "Public key file used to verify the signature")
		gpgKeysURL   = fs.String("gpg-keys-url", "", "URL to KEYS file for GPG verification")
		verifyAll    = fs.Bool("all", false, "Pick up <file>.sha256 and <file>.asc automatically")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: yessfish-builds verify <file> [options]

Verify a built APK or App Bundle against its checksum and detached
OpenPGP signature.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  yessfish-builds verify app-release.apk --checksum app-release.apk.sha256
  yessfish-builds verify app-release.aab --gpg-sig app-release.aab.asc --gpg-key release-key.asc
  yessfish-builds verify app-release.apk --all --gpg-key release-key.asc
`)
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: file path is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	filePath := fs.Arg(0)
	if *verifyAll {
		if *checksumFile == "" && fileExists(filePath+".sha256") {
			*checksumFile = filePath + ".sha256"
		}
		if *gpgSig == "" && fileExists(filePath+".asc") {
			*gpgSig = filePath + ".asc"
		}
	}

	if err := executeVerify(ctx, filePath, *checksumFile, *gpgSig, *gpgKey, *gpgKeysURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func executeVerify(ctx context.Context, filePath, checksumFile, gpgSig, gpgKey, gpgKeysURL string) error {
	svc := services.NewArtifactVerificationService(gateways.NewChecksumVerifier(), gateways.NewGPGVerifier())

	report, err := svc.Verify(ctx, services.VerificationRequest{
		FilePath:      filePath,
		ChecksumFile:  checksumFile,
		SignatureFile: gpgSig,
		KeyFile:       gpgKey,
		KeysURL:       gpgKeysURL,
	})
	if err != nil {
		return fmt.Errorf("%w (specify --checksum or --gpg-sig)", err)
	}

	fmt.Printf("Verifying %s\n\n", filepath.Base(filePath))
	for _, check := range report.Checks {
		if check.Passed() {
			fmt.Printf("  %-9s ok\n", check.Name)
			continue
		}
		fmt.Printf("  %-9s FAILED: %v\n", check.Name, check.Err)
	}
	fmt.Printf("\nVerified: %d, failed: %d\n", len(report.Checks)-report.Failed(), report.Failed())

	if report.Failed() > 0 {
		return fmt.Errorf("%d verification checks failed", report.Failed())
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
