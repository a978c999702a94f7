package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeVerifyChecksums struct {
	want string
	got  string
}

func (f *fakeVerifyChecksums) VerifyChecksum(_ context.Context, _, expected string) error {
	f.got = expected
	if expected != f.want {
		return errors.New("checksum mismatch")
	}
	return nil
}

func (f *fakeVerifyChecksums) CalculateChecksum(_ string) (string, error) { return f.want, nil }

type fakeSignatures struct {
	keys      int
	imported  []string
	verifyErr error
}

func (f *fakeSignatures) ImportGPGKeyFromFile(path string) error {
	f.imported = append(f.imported, path)
	f.keys++
	return nil
}

func (f *fakeSignatures) ImportGPGKeysFromURL(_ context.Context, url string) error {
	f.imported = append(f.imported, url)
	f.keys++
	return nil
}

func (f *fakeSignatures) VerifyGPGSignatureFromFile(_, _ string) error { return f.verifyErr }

func (f *fakeSignatures) KeyringSize() int { return f.keys }

func writeSidecar(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app-release.apk.sha256")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestArtifactVerificationService_Verify(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) VerificationRequest
		signatures *fakeSignatures
		wantChecks int
		wantFailed int
	}{
		{
			name: "checksum ok",
			req: func(t *testing.T) VerificationRequest {
				return VerificationRequest{FilePath: "app.apk", ChecksumFile: writeSidecar(t, "abc123  app.apk\n")}
			},
			signatures: &fakeSignatures{},
			wantChecks: 1,
		},
		{
			name: "checksum mismatch",
			req: func(t *testing.T) VerificationRequest {
				return VerificationRequest{FilePath: "app.apk", ChecksumFile: writeSidecar(t, "ffff  app.apk\n")}
			},
			signatures: &fakeSignatures{},
			wantChecks: 1,
			wantFailed: 1,
		},
		{
			name: "empty sidecar",
			req: func(t *testing.T) VerificationRequest {
				return VerificationRequest{FilePath: "app.apk", ChecksumFile: writeSidecar(t, "  \n")}
			},
			signatures: &fakeSignatures{},
			wantChecks: 1,
			wantFailed: 1,
		},
		{
			name: "signature with key file",
			req: func(_ *testing.T) VerificationRequest {
				return VerificationRequest{FilePath: "app.apk", SignatureFile: "app.apk.asc", KeyFile: "release.asc"}
			},
			signatures: &fakeSignatures{},
			wantChecks: 1,
		},
		{
			name: "signature without keys",
			req: func(_ *testing.T) VerificationRequest {
				return VerificationRequest{FilePath: "app.apk", SignatureFile: "app.apk.asc"}
			},
			signatures: &fakeSignatures{},
			wantChecks: 1,
			wantFailed: 1,
		},
		{
			name: "both, bad signature",
			req: func(t *testing.T) VerificationRequest {
				return VerificationRequest{
					FilePath:      "app.apk",
					ChecksumFile:  writeSidecar(t, "abc123  app.apk\n"),
					SignatureFile: "app.apk.asc",
					KeysURL:       "https://example.invalid/KEYS",
				}
			},
			signatures: &fakeSignatures{verifyErr: errors.New("bad signature")},
			wantChecks: 2,
			wantFailed: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewArtifactVerificationService(&fakeVerifyChecksums{want: "abc123"}, tt.signatures)

			report, err := svc.Verify(context.Background(), tt.req(t))
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if len(report.Checks) != tt.wantChecks {
				t.Errorf("checks = %d, want %d", len(report.Checks), tt.wantChecks)
			}
			if report.Failed() != tt.wantFailed {
				t.Errorf("failed = %d, want %d (%+v)", report.Failed(), tt.wantFailed, report.Checks)
			}
		})
	}
}

func TestArtifactVerificationService_NoChecks(t *testing.T) {
	svc := NewArtifactVerificationService(&fakeVerifyChecksums{}, &fakeSignatures{})

	if _, err := svc.Verify(context.Background(), VerificationRequest{FilePath: "app.apk"}); !errors.Is(err, ErrNoChecks) {
		t.Errorf("Verify() error = %v, want ErrNoChecks", err)
	}
}
