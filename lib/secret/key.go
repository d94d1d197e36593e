// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
)

// ReadKey reads a size-byte key from path into a Buffer. The file holds
// either exactly size raw bytes or 2*size hex digits, optionally
// surrounded by whitespace. Every intermediate copy is zeroed.
func ReadKey(path string, size int) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("secret: reading key: %w", err)
	}
	defer Zero(data)

	if len(data) == size {
		return NewFromBytes(data)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) != 2*size {
		return nil, fmt.Errorf("secret: key file %s holds %d bytes, want %d raw bytes or %d hex digits",
			path, len(data), size, 2*size)
	}
	decoded := make([]byte, size)
	if _, err := hex.Decode(decoded, trimmed); err != nil {
		Zero(decoded)
		return nil, fmt.Errorf("secret: key file %s: %w", path, err)
	}
	return NewFromBytes(decoded)
}
