package gpg

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// testKey generates a signing key and returns it with its armored public keyring
func testKey(t *testing.T) (*openpgp.Entity, []byte) {
	t.Helper()

	entity, err := openpgp.NewEntity("YessFish Builds", "test", "builds@example.com", nil)
	if err != nil {
		t.Fatalf("NewEntity() error = %v", err)
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor.Encode() error = %v", err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("armor close error = %v", err)
	}

	return entity, buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return p
}

func TestVerifier_VerifySignatureFromFile(t *testing.T) {
	entity, pub := testKey(t)
	dir := t.TempDir()
	content := []byte("apk bytes")
	apk := writeFile(t, dir, "app-release.apk", content)
	keys := writeFile(t, dir, "KEYS.asc", pub)

	var armored bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&armored, entity, bytes.NewReader(content), nil); err != nil {
		t.Fatalf("ArmoredDetachSign() error = %v", err)
	}
	var binary bytes.Buffer
	if err := openpgp.DetachSign(&binary, entity, bytes.NewReader(content), nil); err != nil {
		t.Fatalf("DetachSign() error = %v", err)
	}

	v := NewVerifier()
	if err := v.ImportKeyFromFile(keys); err != nil {
		t.Fatalf("ImportKeyFromFile() error = %v", err)
	}
	if v.KeyringSize() != 1 {
		t.Errorf("KeyringSize() = %d, want 1", v.KeyringSize())
	}

	wantFingerprint := strings.ToUpper(hex.EncodeToString(entity.PrimaryKey.Fingerprint))

	for name, sig := range map[string][]byte{"armored": armored.Bytes(), "binary": binary.Bytes()} {
		t.Run(name, func(t *testing.T) {
			sigPath := writeFile(t, dir, "app-release.apk."+name, sig)
			fp, err := v.VerifySignatureFromFile(apk, sigPath)
			if err != nil {
				t.Fatalf("VerifySignatureFromFile() error = %v", err)
			}
			if fp != wantFingerprint {
				t.Errorf("fingerprint = %s, want %s", fp, wantFingerprint)
			}
		})
	}

	t.Run("tampered", func(t *testing.T) {
		tampered := writeFile(t, dir, "tampered.apk", []byte("apk bytes!"))
		sigPath := writeFile(t, dir, "sig.asc", armored.Bytes())
		if _, err := v.VerifySignatureFromFile(tampered, sigPath); err == nil {
			t.Error("VerifySignatureFromFile() should fail for modified content")
		}
	})
}

func TestVerifier_NoKeys(t *testing.T) {
	v := NewVerifier()

	_, err := v.Verify(strings.NewReader("data"), []byte("sig"))
	if !errors.Is(err, ErrNoKeys) {
		t.Errorf("Verify() error = %v, want ErrNoKeys", err)
	}
}

func TestVerifier_ImportKeyFromFile_Errors(t *testing.T) {
	v := NewVerifier()
	dir := t.TempDir()

	err := v.ImportKeyFromFile("/nonexistent/key.asc")
	if err == nil || !strings.Contains(err.Error(), "failed to open key file") {
		t.Errorf("missing file error = %v", err)
	}

	garbage := writeFile(t, dir, "garbage.asc", []byte("not a key"))
	err = v.ImportKeyFromFile(garbage)
	if err == nil || !strings.Contains(err.Error(), "failed to read key") {
		t.Errorf("garbage key error = %v", err)
	}
}

func TestVerifier_ImportKeysFromURL(t *testing.T) {
	_, pub := testKey(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/KEYS" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(pub)
	}))
	defer server.Close()

	v := NewVerifier()
	if err := v.ImportKeysFromURL(context.Background(), server.URL+"/KEYS"); err != nil {
		t.Fatalf("ImportKeysFromURL() error = %v", err)
	}
	if v.KeyringSize() != 1 {
		t.Errorf("KeyringSize() = %d, want 1", v.KeyringSize())
	}

	if err := v.ImportKeysFromURL(context.Background(), server.URL+"/missing"); err == nil {
		t.Error("ImportKeysFromURL() should fail on 404")
	}
}
