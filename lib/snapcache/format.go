// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapcache

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/reef/lib/codec"
	"github.com/bureau-foundation/reef/lib/schema/reef"
	"github.com/bureau-foundation/reef/lib/secret"
)

const (
	magic = "REEFSNP1"

	// headerSize covers magic, compression, flags, checksum and size.
	headerSize = len(magic) + 1 + 1 + checksumSize + 4

	checksumSize = 32

	// MaxPayloadSize bounds the decoded payload so a corrupt size
	// field cannot drive a huge allocation.
	MaxPayloadSize = 256 << 20

	flagEncrypted byte = 1 << 0
)

// checksumDomainKey is the BLAKE3 key for payload checksums: the ASCII
// domain name zero-padded to 32 bytes.
var checksumDomainKey = func() []byte {
	key := make([]byte, checksumSize)
	copy(key, "reef.snapshot.payload")
	return key
}()

// Snapshot is the cached view of the service.
type Snapshot struct {
	SavedAt time.Time `cbor:"saved_at"`

	// BaseURL is the service the snapshot came from. Load callers
	// discard snapshots whose BaseURL differs from the configured one.
	BaseURL string `cbor:"base_url"`

	Sessions []reef.Session `cbor:"sessions"`

	// Outputs maps session ID to the materialized output text.
	Outputs map[string]string `cbor:"outputs,omitempty"`
}

// Options controls Encode.
type Options struct {
	Compression Compression

	// Key, when non-nil, encrypts the body. Borrowed, not closed.
	Key *secret.Buffer
}

// Encode serializes a snapshot into the cache file format.
func Encode(snapshot *Snapshot, options Options) ([]byte, error) {
	payload, err := codec.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("snapcache: encoding snapshot: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("snapcache: payload is %d bytes, limit %d", len(payload), MaxPayloadSize)
	}

	body, algorithm, err := compress(payload, options.Compression)
	if err != nil {
		return nil, err
	}

	header := make([]byte, headerSize)
	copy(header, magic)
	header[len(magic)] = byte(algorithm)
	if options.Key != nil {
		header[len(magic)+1] = flagEncrypted
	}
	sum := checksum(payload)
	copy(header[len(magic)+2:], sum[:])
	binary.BigEndian.PutUint32(header[headerSize-4:], uint32(len(payload)))

	if options.Key != nil {
		body, err = seal(body, options.Key, header)
		if err != nil {
			return nil, err
		}
	}

	output := make([]byte, 0, headerSize+len(body))
	output = append(output, header...)
	return append(output, body...), nil
}

// Header describes a cache file without decoding its body.
type Header struct {
	Compression Compression
	Encrypted   bool

	// Checksum is the keyed BLAKE3 sum of the uncompressed payload.
	Checksum [checksumSize]byte

	// PayloadSize is the uncompressed CBOR payload length.
	PayloadSize int
}

// ParseHeader validates the fixed-size header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < headerSize {
		return Header{}, fmt.Errorf("snapcache: file is %d bytes, shorter than the %d-byte header", len(data), headerSize)
	}
	if !bytes.Equal(data[:len(magic)], []byte(magic)) {
		return Header{}, fmt.Errorf("snapcache: bad magic %q", data[:len(magic)])
	}
	header := Header{Compression: Compression(data[len(magic)])}
	switch header.Compression {
	case CompressionNone, CompressionLZ4, CompressionZstd:
	default:
		return Header{}, fmt.Errorf("snapcache: unknown compression tag %d", header.Compression)
	}
	flags := data[len(magic)+1]
	if flags&^flagEncrypted != 0 {
		return Header{}, fmt.Errorf("snapcache: unknown flags %#x", flags)
	}
	header.Encrypted = flags&flagEncrypted != 0
	copy(header.Checksum[:], data[len(magic)+2:])
	header.PayloadSize = int(binary.BigEndian.Uint32(data[headerSize-4 : headerSize]))
	if header.PayloadSize > MaxPayloadSize {
		return Header{}, fmt.Errorf("snapcache: payload size %d exceeds limit %d", header.PayloadSize, MaxPayloadSize)
	}
	return header, nil
}

// Decode parses a cache file. key may be nil for unencrypted caches.
func Decode(data []byte, key *secret.Buffer) (*Snapshot, error) {
	parsed, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	header, body := data[:headerSize], data[headerSize:]

	if parsed.Encrypted {
		if key == nil {
			return nil, ErrKeyRequired
		}
		body, err = open(body, key, header)
		if err != nil {
			return nil, err
		}
	}

	payload, err := decompress(body, parsed.Compression, parsed.PayloadSize)
	if err != nil {
		return nil, err
	}
	got := checksum(payload)
	if subtle.ConstantTimeCompare(got[:], parsed.Checksum[:]) != 1 {
		return nil, fmt.Errorf("snapcache: payload checksum mismatch")
	}

	var snapshot Snapshot
	if err := codec.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("snapcache: decoding snapshot: %w", err)
	}
	return &snapshot, nil
}

func checksum(payload []byte) [checksumSize]byte {
	hasher, err := blake3.NewKeyed(checksumDomainKey)
	if err != nil {
		panic("snapcache: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write(payload)
	var sum [checksumSize]byte
	copy(sum[:], hasher.Sum(nil))
	return sum
}
