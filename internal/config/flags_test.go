package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFlagsFromTOML(t *testing.T) {
	dir := t.TempDir()
	content := `
verbose = true
profile_interval = 500
filter = "gc"
`
	path := filepath.Join(dir, "flags.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !f.Verbose {
		t.Error("verbose should be true")
	}
	if f.ProfileIntervalUs != 500 {
		t.Errorf("profile_interval = %d, want 500", f.ProfileIntervalUs)
	}
	if f.Filter != "gc" {
		t.Errorf("filter = %q, want \"gc\"", f.Filter)
	}
	if f.ExposeGC {
		t.Error("expose_gc should default to false when absent from the file")
	}
}

func TestLoadFlagsMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/flags.toml"); err == nil {
		t.Error("Load should fail for a nonexistent path")
	}
}

func TestApplyArgBoolShorthand(t *testing.T) {
	f := Default()
	if err := f.ApplyArg("-Xverbose"); err != nil {
		t.Fatalf("ApplyArg failed: %v", err)
	}
	if !f.Verbose {
		t.Error("-Xverbose should be equivalent to -Xverbose=true")
	}
}

func TestApplyArgExplicitValue(t *testing.T) {
	f := Default()
	if err := f.ApplyArg("-Xprofile_interval=250"); err != nil {
		t.Fatalf("ApplyArg failed: %v", err)
	}
	if f.ProfileIntervalUs != 250 {
		t.Errorf("profile_interval = %d, want 250", f.ProfileIntervalUs)
	}
}

func TestApplyArgUnknownFlag(t *testing.T) {
	f := Default()
	if err := f.ApplyArg("-Xbogus"); err == nil {
		t.Error("ApplyArg should reject an unknown flag name rather than silently ignoring it")
	}
}

func TestApplyArgBadBoolValue(t *testing.T) {
	f := Default()
	if err := f.ApplyArg("-Xverbose=maybe"); err == nil {
		t.Error("ApplyArg should reject a non-boolean value for a boolean flag")
	}
}
