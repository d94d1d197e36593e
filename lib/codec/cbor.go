// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// maxElements bounds arrays and maps in decoded data. A snapshot holds
// one element per session, so this is far above any real cache while
// still rejecting a corrupt length prefix before it allocates.
const maxElements = 1 << 20

var (
	encMode  cbor.EncMode
	decMode  cbor.DecMode
	diagMode cbor.DiagMode
)

func init() {
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	var err error
	if encMode, err = encOptions.EncMode(); err != nil {
		panic(fmt.Sprintf("codec: encoder options: %v", err))
	}

	decMode, err = cbor.DecOptions{
		// any targets get map[string]any, not CBOR's map[any]any.
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: maxElements,
		MaxMapPairs:      maxElements,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: decoder options: %v", err))
	}

	diagMode, err = cbor.DiagOptions{
		ByteStringText:   true,
		MaxArrayElements: maxElements,
		MaxMapPairs:      maxElements,
	}.DiagMode()
	if err != nil {
		panic(fmt.Sprintf("codec: diagnostic options: %v", err))
	}
}

// Marshal encodes v with Core Deterministic Encoding. Times encode as
// RFC 3339 text with nanoseconds.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v. Unknown fields are ignored; duplicate
// map keys and oversized containers are errors.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose renders data in CBOR diagnostic notation (RFC 8949 §8).
// Byte strings holding valid UTF-8 are shown as text.
func Diagnose(data []byte) (string, error) {
	return diagMode.Diagnose(data)
}
