// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"io"
	"os"
	"reflect"

	"github.com/spf13/pflag"
)

// JSONOutput is an embeddable struct that adds --json output support
// to a command's parameter struct.
//
//	type listParams struct {
//	    cli.JSONOutput
//	    Filter string
//	}
//
//	// In Run:
//	if done, err := params.EmitJSON(sessions); done {
//	    return err
//	}
//	// ... text formatting ...
type JSONOutput struct {
	OutputJSON bool

	// Writer receives the output. Defaults to os.Stdout.
	Writer io.Writer
}

// AddFlags registers --json on flagSet.
func (j *JSONOutput) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.BoolVar(&j.OutputJSON, "json", false, "output as JSON")
}

// EmitJSON writes result as indented JSON if --json is set. Returns
// (true, nil) on success, (true, err) on write failure, or (false,
// nil) when --json is not set and the caller should proceed with text
// formatting. Nil slices are written as [] rather than null.
func (j *JSONOutput) EmitJSON(result any) (bool, error) {
	if !j.OutputJSON {
		return false, nil
	}
	return true, WriteJSONTo(j.writer(), normalizeNilSlice(result))
}

func (j *JSONOutput) writer() io.Writer {
	if j.Writer != nil {
		return j.Writer
	}
	return os.Stdout
}

// WriteJSON marshals value as indented JSON and writes it to stdout.
func WriteJSON(value any) error {
	return WriteJSONTo(os.Stdout, value)
}

// WriteJSONTo marshals value as indented JSON and writes it to w.
func WriteJSONTo(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// normalizeNilSlice returns an empty slice of the same type if value
// is a nil slice. Returns value unchanged for all other types.
func normalizeNilSlice(value any) any {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Slice && v.IsNil() {
		return reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	return value
}
