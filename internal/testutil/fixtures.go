// Package testutil provides shared test infrastructure: experiment fixtures
// from testdata/ and float assertion helpers used across packages.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// Fixture returns the contents of testdata/<name> at the repository root.
// The path is resolved relative to this source file.
func Fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(FixturePath(t, name))
	if err != nil {
		t.Fatalf("Failed to read fixture %s: %v", name, err)
	}
	return data
}

// FixturePath returns the absolute path of testdata/<name>.
func FixturePath(t *testing.T, name string) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// internal/testutil/ → repo root testdata/
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "testdata", name)
}

// WriteTemp writes content to a file in a per-test temp dir and returns its path.
func WriteTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertInUnitBox fails when any component of v lies outside [0, 1].
func AssertInUnitBox(t *testing.T, name string, v []float64) {
	t.Helper()
	for i, x := range v {
		if math.IsNaN(x) || x < 0 || x > 1 {
			t.Errorf("%s[%d] = %v, want within [0, 1]", name, i, x)
		}
	}
}
