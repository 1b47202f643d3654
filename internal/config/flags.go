// Package config loads the core's immutable Flags record, using the
// same toml.Unmarshal-from-file style as a project manifest loader,
// adapted to the runtime's `-X` flag set (§6, §9 "Global mutable
// state").
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Flags is the process-wide, read-only configuration record. It is
// parsed once at startup and passed by reference to every constructed
// Program, rather than threaded as globals — DESIGN NOTES §9's resolution
// of "global mutable state."
type Flags struct {
	ExposeGC               bool   `toml:"expose_gc"`
	ValidateStack          bool   `toml:"validate_stack"`
	UnfoldProgram          bool   `toml:"unfold_program"`
	GCOnDelete             bool   `toml:"gc_on_delete"`
	ValidateHeaps          bool   `toml:"validate_heaps"`
	LogDecoder             bool   `toml:"log_decoder"`
	PrintProgramStatistics bool   `toml:"print_program_statistics"`
	PrintHeapStatistics    bool   `toml:"print_heap_statistics"`
	Verbose                bool   `toml:"verbose"`
	PrintFlags             bool   `toml:"print_flags"`
	Profile                bool   `toml:"profile"`
	ProfileIntervalUs      int    `toml:"profile_interval"`
	Filter                 string `toml:"filter"`
	TraceCompiler          bool   `toml:"trace_compiler"`
	TraceLibrary           bool   `toml:"trace_library"`
}

// Default returns the flag record every VM starts with absent a config
// file or CLI overrides.
func Default() Flags {
	return Flags{}
}

// Load parses a TOML flags file at path, starting from Default() so a
// file that only sets a handful of keys leaves the rest at their
// defaults — the same shape as manifest.Load, but decoding a flags file
// instead of a project manifest.
func Load(path string) (Flags, error) {
	f := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return f, nil
}

// ApplyArg parses one `-Xname` / `-Xname=value` command-line argument
// (spec.md §6: "Syntax -Xname ≡ -Xname=true; values may be boolean,
// integer, address, or string") into f, mutating the matching field by
// name. Unknown names are reported rather than silently ignored, since a
// typo'd flag silently doing nothing is worse than a startup error.
func (f *Flags) ApplyArg(arg string) error {
	name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "-X"), "=")
	if !hasValue {
		value = "true"
	}

	switch name {
	case "expose_gc":
		return setBool(&f.ExposeGC, value)
	case "validate_stack":
		return setBool(&f.ValidateStack, value)
	case "unfold_program":
		return setBool(&f.UnfoldProgram, value)
	case "gc_on_delete":
		return setBool(&f.GCOnDelete, value)
	case "validate_heaps":
		return setBool(&f.ValidateHeaps, value)
	case "log_decoder":
		return setBool(&f.LogDecoder, value)
	case "print_program_statistics":
		return setBool(&f.PrintProgramStatistics, value)
	case "print_heap_statistics":
		return setBool(&f.PrintHeapStatistics, value)
	case "verbose":
		return setBool(&f.Verbose, value)
	case "print_flags":
		return setBool(&f.PrintFlags, value)
	case "profile":
		return setBool(&f.Profile, value)
	case "profile_interval":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("-X%s: %w", name, err)
		}
		f.ProfileIntervalUs = n
	case "filter":
		f.Filter = value
	case "trace_compiler":
		return setBool(&f.TraceCompiler, value)
	case "trace_library":
		return setBool(&f.TraceLibrary, value)
	default:
		return fmt.Errorf("unknown flag -X%s", name)
	}
	return nil
}

func setBool(dst *bool, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("expected boolean, got %q: %w", value, err)
	}
	*dst = b
	return nil
}
