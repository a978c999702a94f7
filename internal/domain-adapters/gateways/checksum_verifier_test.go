package gateways

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestChecksumVerifier(t *testing.T) {
	tmpDir := t.TempDir()
	apk := filepath.Join(tmpDir, "app-release.apk")
	if err := os.WriteFile(apk, []byte("hello"), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	// sha256("hello")
	const helloSum = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	verifier := NewChecksumVerifier()
	ctx := context.Background()

	sum, err := verifier.CalculateChecksum(apk)
	if err != nil {
		t.Fatalf("CalculateChecksum() error = %v", err)
	}
	if sum != helloSum {
		t.Errorf("CalculateChecksum() = %s, want %s", sum, helloSum)
	}

	t.Run("valid checksum", func(t *testing.T) {
		if err := verifier.VerifyChecksum(ctx, apk, helloSum); err != nil {
			t.Errorf("VerifyChecksum() error = %v", err)
		}
	})

	t.Run("uppercase checksum", func(t *testing.T) {
		upper := "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824"
		if err := verifier.VerifyChecksum(ctx, apk, upper); err != nil {
			t.Errorf("VerifyChecksum() error = %v", err)
		}
	})

	t.Run("invalid checksum", func(t *testing.T) {
		if err := verifier.VerifyChecksum(ctx, apk, "00"); err == nil {
			t.Error("VerifyChecksum() with invalid checksum should return error")
		}
	})

	t.Run("non-existent file", func(t *testing.T) {
		if err := verifier.VerifyChecksum(ctx, "/nonexistent/app.apk", helloSum); err == nil {
			t.Error("VerifyChecksum() with non-existent file should return error")
		}
	})
}
