package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godilite/score-stats/internal/service"
)

func TestSeedgenWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--out", path, "--count", "25", "--seed", "9"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "wrote 25 submissions")

	ds, err := service.LoadSeedFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25, ds.TotalSubmissions)
}

func TestSeedgenStdout(t *testing.T) {
	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-o", "-", "-n", "3"})
	require.NoError(t, cmd.Execute())

	var ds service.Dataset
	require.NoError(t, json.Unmarshal(out.Bytes(), &ds))
	assert.Len(t, ds.AllAverages, 3)
}

func TestSeedgenRejectsBadFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--four-rate", "2"})
	assert.Error(t, cmd.Execute())
}
