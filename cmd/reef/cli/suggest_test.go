// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "kill", 4},
		{"kill", "", 4},
		{"spawn", "spawn", 0},
		{"spwan", "spawn", 2},
		{"sesions", "sessions", 1},
		{"status", "statsu", 2},
		{"abc", "xyz", 3},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}

func TestSuggestCommand(t *testing.T) {
	commands := []*Command{{Name: "status"}, {Name: "sessions"}, {Name: "spawn"}, {Name: "watch"}}
	tests := []struct {
		input string
		want  string
	}{
		{"sesions", "sessions"},
		{"stats", "status"},
		{"spwan", "spawn"},
		{"wacth", "watch"},
		{"completely-different", ""},
	}
	for _, test := range tests {
		if got := suggestCommand(test.input, commands); got != test.want {
			t.Errorf("suggestCommand(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestSuggestFlag(t *testing.T) {
	flagSet := pflag.NewFlagSet("output", pflag.ContinueOnError)
	flagSet.Int("lines", 100, "")
	flagSet.Bool("blocks", false, "")
	flagSet.StringP("url", "u", "", "")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--line", "5"}, "--lines"},
		{[]string{"s1", "--blcks"}, "--blocks"},
		{[]string{"--lines=5", "--urk=x"}, "--url"},
		{[]string{"-u", "x", "--zzzzzzzz"}, ""},
		{[]string{"--", "--line"}, ""},
	}
	for _, test := range tests {
		if got := suggestFlag(test.args, flagSet); got != test.want {
			t.Errorf("suggestFlag(%v) = %q, want %q", test.args, got, test.want)
		}
	}
}
