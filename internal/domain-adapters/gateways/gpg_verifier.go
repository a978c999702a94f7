package gateways

import (
	"context"
	"fmt"

	"github.com/sbuilder/yessfish-builds/internal/external-adapters/gpg"
)

// gpgVerifier wraps the OpenPGP adapter to implement the domain SignatureVerifier
type gpgVerifier struct {
	verifier *gpg.Verifier
}

// NewGPGVerifier creates a new GPG verifier gateway
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewGPGVerifier() *gpgVerifier {
	return &gpgVerifier{
		verifier: gpg.NewVerifier(),
	}
}

// ImportGPGKeysFromURL imports all keys from a published KEYS file
func (g *gpgVerifier) ImportGPGKeysFromURL(ctx context.Context, keysURL string) error {
	if err := g.verifier.ImportKeysFromURL(ctx, keysURL); err != nil {
		return fmt.Errorf("failed to import GPG keys from URL: %w", err)
	}
	return nil
}

// ImportGPGKeyFromFile imports keys from a local armored or binary keyring
func (g *gpgVerifier) ImportGPGKeyFromFile(keyPath string) error {
	if err := g.verifier.ImportKeyFromFile(keyPath); err != nil {
		return fmt.Errorf("failed to import GPG key from file: %w", err)
	}
	return nil
}

// VerifyGPGSignatureFromFile verifies a detached signature stored next to an artifact
func (g *gpgVerifier) VerifyGPGSignatureFromFile(filePath, sigPath string) error {
	_, err := g.Signer(filePath, sigPath)
	return err
}

// Signer verifies a detached signature and returns the signing key fingerprint
func (g *gpgVerifier) Signer(filePath, sigPath string) (string, error) {
	signer, err := g.verifier.VerifySignatureFromFile(filePath, sigPath)
	if err != nil {
		return "", fmt.Errorf("GPG signature verification failed: %w", err)
	}
	return signer, nil
}

// KeyringSize returns the number of keys loaded
func (g *gpgVerifier) KeyringSize() int {
	return g.verifier.KeyringSize()
}
