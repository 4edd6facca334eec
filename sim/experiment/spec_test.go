package experiment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSpec(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSpec_Valid(t *testing.T) {
	path := writeSpec(t, `
name: baseline
model: sir
dynamics: stochastic
network:
  kind: er
  nodes: 1000
  kmean: 5
params:
  pInfected: 0.01
  pInfect: 0.2
  pRemove: 1
seed: 42
repetitions: 3
monitor_interval: 0.5
`)
	spec, err := LoadSpec(path)
	require.NoError(t, err)
	require.NoError(t, spec.Validate())

	assert.Equal(t, "baseline", spec.Name)
	assert.Equal(t, 1000, spec.Network.Nodes)
	assert.Equal(t, 3, spec.Repetitions)
	assert.Equal(t, 0.5, spec.MonitorInterval)
	assert.Equal(t, 0.2, spec.Parameters()["pInfect"])
}

func TestLoadSpec_DefaultsToOneRepetition(t *testing.T) {
	spec, err := LoadSpec(writeSpec(t, `
model: sis
dynamics: synchronous
network: {kind: complete, nodes: 10}
`))
	require.NoError(t, err)
	assert.Equal(t, 1, spec.Repetitions)
	assert.NoError(t, spec.Validate())
}

func TestLoadSpec_RejectsUnknownFields(t *testing.T) {
	_, err := LoadSpec(writeSpec(t, `
model: sir
dynamics: stochastic
nodes: 100
`))
	assert.Error(t, err)
}

func TestLoadSpec_MissingFile(t *testing.T) {
	_, err := LoadSpec(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSpec_Validate(t *testing.T) {
	valid := func() *Spec {
		return &Spec{
			Model:       "sir",
			Dynamics:    "synchronous",
			Network:     NetworkSpec{Kind: NetworkRing, Nodes: 20, K: 2},
			Repetitions: 1,
		}
	}
	tests := []struct {
		name    string
		mutate  func(s *Spec)
		wantErr string
	}{
		{"valid", func(*Spec) {}, ""},
		{"unknown model", func(s *Spec) { s.Model = "sirs" }, "Spec.Model"},
		{"missing dynamics", func(s *Spec) { s.Dynamics = "" }, "Spec.Dynamics"},
		{"unknown network", func(s *Spec) { s.Network.Kind = "lattice" }, "Spec.Network.Kind"},
		{"no nodes", func(s *Spec) { s.Network.Nodes = 0 }, "Spec.Network.Nodes"},
		{"zero repetitions", func(s *Spec) { s.Repetitions = 0 }, "Spec.Repetitions"},
		{"negative max time", func(s *Spec) { s.MaxTime = -1 }, "Spec.MaxTime"},
		{"ring too dense", func(s *Spec) { s.Network.K = 10 }, "network.k"},
		{"er without kmean", func(s *Spec) { s.Network = NetworkSpec{Kind: NetworkErdosRenyi, Nodes: 20} }, "network.kmean"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
