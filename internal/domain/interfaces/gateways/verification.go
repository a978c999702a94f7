// Package gateways defines interfaces for external service adapters.
package gateways

import "context"

// ChecksumVerifier computes and checks SHA256 digests of files
type ChecksumVerifier interface {
	VerifyChecksum(ctx context.Context, filePath, expectedSum string) error
	CalculateChecksum(filePath string) (string, error)
}

// SignatureVerifier checks OpenPGP detached signatures
type SignatureVerifier interface {
	ImportGPGKeyFromFile(keyPath string) error
	ImportGPGKeysFromURL(ctx context.Context, keysURL string) error
	VerifyGPGSignatureFromFile(filePath, sigPath string) error
	KeyringSize() int
}
