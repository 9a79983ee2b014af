// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability. It deals in plain
// slices so that any package, the field engine included, can use it.
package testutil

import (
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Seed is the seed of the generators used by property tests.
const Seed = 42

// NewRand returns a generator seeded with Seed.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(Seed))
}

// RandomData returns n values uniformly distributed in [0, 1).
func RandomData(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()
	}
	return out
}

// RandomBools returns n booleans, each true with probability p.
func RandomBools(rng *rand.Rand, n int, p float64) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = rng.Float64() < p
	}
	return out
}

// AssertClose fails the test when got and want differ by more than tol
// relative to the larger magnitude (absolute below magnitude 1).
func AssertClose(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	scale := math.Max(1, math.Max(math.Abs(got), math.Abs(want)))
	if !(math.Abs(got-want) <= tol*scale) {
		t.Errorf("%s = %.17g, want %.17g (tolerance %g)", name, got, want, tol)
	}
}

// AssertSliceClose compares two slices element by element with a tolerance
// relative to the largest magnitude in want.
func AssertSliceClose(t *testing.T, name string, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: length %d, want %d", name, len(got), len(want))
	}
	scale := 0.0
	for _, v := range want {
		scale = math.Max(scale, math.Abs(v))
	}
	scale = math.Max(scale, 1e-300)
	for i := range got {
		if !(math.Abs(got[i]-want[i]) <= tol*scale) {
			t.Errorf("%s[%d] = %.17g, want %.17g (tolerance %g of %g)", name, i, got[i], want[i], tol, scale)
			return
		}
	}
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
