package lockfile

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// integrityPrefix tags the hash algorithm in integrity strings.
const integrityPrefix = "sha256-"

// CreateIntegrityHash computes the integrity string for a payload:
// "sha256-" followed by the standard-base64 SHA-256 digest.
func CreateIntegrityHash(buf []byte) string {
	sum := sha256.Sum256(buf)
	return integrityPrefix + base64.StdEncoding.EncodeToString(sum[:])
}

// VerifyIntegrity reports whether buf matches the given integrity string.
// Malformed integrity strings verify as false rather than erroring: a
// corrupt lockfile entry must never pass the gate.
func VerifyIntegrity(buf []byte, integrity string) bool {
	expected, err := integrityToDigest(integrity)
	if err != nil {
		return false
	}
	actual := sha256.Sum256(buf)
	return subtle.ConstantTimeCompare(expected, actual[:]) == 1
}

// IntegrityToHex converts "sha256-<base64>" to the hex digest form used by
// registry APIs and the content store.
func IntegrityToHex(integrity string) (string, error) {
	digest, err := integrityToDigest(integrity)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(digest), nil
}

// HexToIntegrity converts a hex SHA-256 digest to "sha256-<base64>" form.
func HexToIntegrity(hexDigest string) (string, error) {
	digest, err := hex.DecodeString(hexDigest)
	if err != nil {
		return "", fmt.Errorf("invalid hex digest %q: %w", hexDigest, err)
	}
	if len(digest) != sha256.Size {
		return "", fmt.Errorf("invalid digest length %d, want %d", len(digest), sha256.Size)
	}
	return integrityPrefix + base64.StdEncoding.EncodeToString(digest), nil
}

func integrityToDigest(integrity string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(integrity, integrityPrefix)
	if !ok {
		return nil, fmt.Errorf("unsupported integrity format %q", integrity)
	}
	digest, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid integrity encoding: %w", err)
	}
	if len(digest) != sha256.Size {
		return nil, fmt.Errorf("invalid digest length %d, want %d", len(digest), sha256.Size)
	}
	return digest, nil
}
