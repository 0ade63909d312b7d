// ABOUTME: Digest helper used to label spilled output with an integrity checksum
// ABOUTME: Supports the same algorithm set the workflow engine's file checksums used

package checksum

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// Algorithm identifies a supported digest.
type Algorithm string

const (
	SHA256  Algorithm = "sha256"
	SHA512  Algorithm = "sha512"
	MD5     Algorithm = "md5"
	Blake2b Algorithm = "blake2b"
)

func newHasher(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case SHA256, "":
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case MD5:
		return md5.New(), nil
	case Blake2b:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", algo)
	}
}

// Digest reads r fully and returns the hex-encoded digest under algo.
func Digest(r io.Reader, algo Algorithm) (string, error) {
	h, err := newHasher(algo)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("reading content for checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestBytes is a convenience wrapper for in-memory content.
func DigestBytes(data []byte, algo Algorithm) (string, error) {
	h, err := newHasher(algo)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
