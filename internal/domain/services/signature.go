package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignaturePrefix is the scheme prefix of the X-Hub-Signature-256 header
const SignaturePrefix = "sha256="

// ErrInvalidSignature is returned when a webhook signature is missing or does not match
var ErrInvalidSignature = errors.New("invalid webhook signature")

// SignPayload returns the X-Hub-Signature-256 value for payload
func SignPayload(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC-SHA256 of payload in constant time
func VerifySignature(secret, payload []byte, header string) error {
	if len(secret) == 0 || !strings.HasPrefix(header, SignaturePrefix) {
		return ErrInvalidSignature
	}
	expected := SignPayload(secret, payload)
	if !hmac.Equal([]byte(expected), []byte(header)) {
		return ErrInvalidSignature
	}
	return nil
}
