package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces/gateways"
)

// ErrNoChecks is returned when a verification request selects nothing to check
var ErrNoChecks = errors.New("no verification checks requested")

// VerificationRequest selects the checks run against one artifact
type VerificationRequest struct {
	FilePath      string
	ChecksumFile  string // sidecar in "hash  name" format
	SignatureFile string // detached OpenPGP signature
	KeyFile       string
	KeysURL       string
}

// VerificationCheck is the outcome of a single check
type VerificationCheck struct {
	Name string
	Err  error
}

// Passed reports whether the check succeeded
func (c VerificationCheck) Passed() bool { return c.Err == nil }

// VerificationReport collects the checks run on an artifact
type VerificationReport struct {
	FilePath string
	Checks   []VerificationCheck
}

// Failed returns the number of failed checks
func (r *VerificationReport) Failed() int {
	n := 0
	for _, c := range r.Checks {
		if !c.Passed() {
			n++
		}
	}
	return n
}

// ArtifactVerificationService verifies built packages against checksums and signatures
type ArtifactVerificationService struct {
	checksums  gateways.ChecksumVerifier
	signatures gateways.SignatureVerifier
}

// NewArtifactVerificationService creates a verification service
func NewArtifactVerificationService(checksums gateways.ChecksumVerifier, signatures gateways.SignatureVerifier) *ArtifactVerificationService {
	return &ArtifactVerificationService{checksums: checksums, signatures: signatures}
}

// Verify runs every check selected by req. Individual failures are recorded in the report.
func (s *ArtifactVerificationService) Verify(ctx context.Context, req VerificationRequest) (*VerificationReport, error) {
	if req.ChecksumFile == "" && req.SignatureFile == "" {
		return nil, ErrNoChecks
	}

	report := &VerificationReport{FilePath: req.FilePath}

	if req.ChecksumFile != "" {
		report.Checks = append(report.Checks, VerificationCheck{
			Name: "checksum",
			Err:  s.verifyChecksum(ctx, req.FilePath, req.ChecksumFile),
		})
	}

	if req.SignatureFile != "" {
		report.Checks = append(report.Checks, VerificationCheck{
			Name: "gpg",
			Err:  s.verifySignature(ctx, req),
		})
	}

	return report, nil
}

func (s *ArtifactVerificationService) verifyChecksum(ctx context.Context, filePath, checksumFile string) error {
	//nolint:gosec // G304: checksum file is a user-provided path
	data, err := os.ReadFile(checksumFile)
	if err != nil {
		return fmt.Errorf("failed to read checksum file: %w", err)
	}

	parts := strings.Fields(string(data))
	if len(parts) < 1 {
		return fmt.Errorf("invalid checksum file format")
	}

	return s.checksums.VerifyChecksum(ctx, filePath, parts[0])
}

func (s *ArtifactVerificationService) verifySignature(ctx context.Context, req VerificationRequest) error {
	if req.KeyFile != "" {
		if err := s.signatures.ImportGPGKeyFromFile(req.KeyFile); err != nil {
			return err
		}
	}
	if req.KeysURL != "" {
		if err := s.signatures.ImportGPGKeysFromURL(ctx, req.KeysURL); err != nil {
			return err
		}
	}

	if s.signatures.KeyringSize() == 0 {
		return fmt.Errorf("no GPG keys imported for verification (use --gpg-key or --gpg-keys-url)")
	}

	return s.signatures.VerifyGPGSignatureFromFile(req.FilePath, req.SignatureFile)
}
