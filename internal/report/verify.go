package report

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// VerifyChecksum recomputes the SHA-256 of the artifact at path and compares
// it with the <path>.sha256 sidecar written at save time.
func VerifyChecksum(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- artifact path is operator input
	if err != nil {
		return fmt.Errorf("read artifact %s: %w", path, err)
	}

	sidecar, err := os.ReadFile(path + ".sha256") // #nosec G304
	if err != nil {
		return fmt.Errorf("read checksum sidecar: %w", err)
	}

	fields := strings.Fields(string(sidecar))
	if len(fields) == 0 {
		return fmt.Errorf("checksum sidecar %s.sha256 is empty", path)
	}

	want := strings.ToLower(fields[0])
	got := fmt.Sprintf("%x", sha256.Sum256(data))
	if got != want {
		return fmt.Errorf("checksum mismatch for %s: sidecar has %s, artifact is %s", path, want, got)
	}
	return nil
}

// VerifySignature checks a detached PGP signature (armored or binary) over
// the artifact against an armored keyring file. It returns an identity of
// the signing key on success.
func VerifySignature(path, sigPath, keyringPath string) (string, error) {
	keyring, err := loadKeyring(keyringPath)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", path, err)
	}

	sig, err := os.ReadFile(sigPath) // #nosec G304
	if err != nil {
		return "", fmt.Errorf("read signature %s: %w", sigPath, err)
	}

	signer, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(sig), nil)
	if err != nil {
		signer, err = openpgp.CheckDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(sig), nil)
	}
	if err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}

	for identity := range signer.Identities {
		return identity, nil
	}
	return fmt.Sprintf("%X", signer.PrimaryKey.Fingerprint), nil
}

func loadKeyring(path string) (openpgp.EntityList, error) {
	f, err := os.Open(path) // #nosec G304 -- keyring path is operator input
	if err != nil {
		return nil, fmt.Errorf("open keyring %s: %w", path, err)
	}
	defer f.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		if _, seekErr := f.Seek(0, 0); seekErr != nil {
			return nil, fmt.Errorf("rewind keyring: %w", seekErr)
		}
		keyring, err = openpgp.ReadKeyRing(f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse keyring %s: %w", path, err)
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring %s holds no keys", path)
	}
	return keyring, nil
}
