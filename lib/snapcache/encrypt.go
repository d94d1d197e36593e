// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapcache

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/bureau-foundation/reef/lib/secret"
)

// KeySize is the size of the cache key file contents.
const KeySize = 32

// hkdfInfo separates the cache cipher key from any other use of the
// same key file. Changing it invalidates every encrypted cache.
var hkdfInfo = []byte("reef.snapcache.v1")

// ErrKeyRequired is returned by Decode and Load when the cache is
// encrypted and no key was supplied.
var ErrKeyRequired = errors.New("snapcache: cache is encrypted and no key was supplied")

// deriveKey expands the configured key into the cipher key. The
// master key is borrowed. The returned Buffer must be closed.
func deriveKey(master *secret.Buffer) (*secret.Buffer, error) {
	if master.Len() != KeySize {
		return nil, fmt.Errorf("snapcache: key is %d bytes, want %d", master.Len(), KeySize)
	}
	reader := hkdf.New(sha256.New, master.Bytes(), nil, hkdfInfo)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("snapcache: deriving cipher key: %w", err)
	}
	return secret.NewFromBytes(derived)
}

// seal returns nonce || ciphertext || tag with header as AAD.
func seal(plaintext []byte, master *secret.Buffer, header []byte) ([]byte, error) {
	key, err := deriveKey(master)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("snapcache: creating cipher: %w", err)
	}
	output := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, output); err != nil {
		return nil, fmt.Errorf("snapcache: generating nonce: %w", err)
	}
	return aead.Seal(output, output[:chacha20poly1305.NonceSizeX], plaintext, header), nil
}

func open(body []byte, master *secret.Buffer, header []byte) ([]byte, error) {
	if len(body) < chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("snapcache: encrypted body too short (%d bytes)", len(body))
	}
	key, err := deriveKey(master)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("snapcache: creating cipher: %w", err)
	}
	nonce, ciphertext := body[:chacha20poly1305.NonceSizeX], body[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, header)
	if err != nil {
		return nil, fmt.Errorf("snapcache: decrypting cache (wrong key or tampered file): %w", err)
	}
	return plaintext, nil
}
