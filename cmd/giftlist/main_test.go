package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRosterCommandPrintsExampleRoster(t *testing.T) {
	t.Setenv("ROSTER_PATH", "")

	out, err := execute(t, "roster", "--file", filepath.Join("..", "..", "roster.example.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "mom_handle")
	assert.Contains(t, out, "emma,liam")
	assert.Less(t, bytes.Index([]byte(out), []byte("Mom")), bytes.Index([]byte(out), []byte("Grandma")))
}

func TestRosterCommandRejectsMissingFile(t *testing.T) {
	_, err := execute(t, "roster", "--file", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read roster file")
}

func TestMigrateDownValidatesSteps(t *testing.T) {
	_, err := execute(t, "migrate", "down", "zero")
	assert.ErrorContains(t, err, "steps must be a positive number")
}
