package testsupport

import (
	"encoding/json"
	"os"
	"testing"
)

// LoadFixture reads a test fixture file, failing the test on error.
func LoadFixture(tb testing.TB, path string) []byte {
	tb.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("load fixture %s: %v", path, err)
	}
	return data
}

// LoadGolden decodes a JSON golden file into v, failing the test on error.
func LoadGolden(tb testing.TB, path string, v any) {
	tb.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("load golden %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		tb.Fatalf("decode golden %s: %v", path, err)
	}
}
