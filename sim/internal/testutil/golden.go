// Package testutil provides shared test infrastructure for episim.
// It consolidates golden dataset types and assertion helpers used across
// sim/ sub-package tests.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one experiment whose outcome is known exactly.
type GoldenTestCase struct {
	Name     string             `json:"name"`
	Model    string             `json:"model"`
	Dynamics string             `json:"dynamics"`
	Network  GoldenNetwork      `json:"network"`
	Params   map[string]float64 `json:"params"`
	Seed     int64              `json:"seed"`
	Metrics  GoldenMetrics      `json:"metrics"`
}

// GoldenNetwork mirrors the experiment network description.
type GoldenNetwork struct {
	Kind  string  `json:"kind"`
	Nodes int     `json:"nodes"`
	KMean float64 `json:"kmean"`
	K     int     `json:"k"`
}

// GoldenMetrics represents the expected results of a golden test case.
type GoldenMetrics struct {
	// Exact match metrics (integers)
	Compartments map[string]int `json:"compartments"`
	Events       int            `json:"events"`
	Fired        map[string]int `json:"fired"`

	// LargestSkeletonComponent is nil for models that do not report it.
	LargestSkeletonComponent *int `json:"largest_skeleton_component"`

	// Deterministic floating-point metrics
	EpidemicSize float64 `json:"epidemic_size"`

	// Time is nil when the run's end time depends on the random stream.
	Time *float64 `json:"time"`
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// Navigate from sim/internal/testutil/ to repo root testdata/
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
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
