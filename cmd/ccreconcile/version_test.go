package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func executeCommand(args ...string) (string, string, error) {
	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommandOutputsBuildInfo(t *testing.T) {
	originalVersion := version
	originalCommit := commit
	originalDate := date
	t.Cleanup(func() {
		version = originalVersion
		commit = originalCommit
		date = originalDate
	})

	version = "1.2.3"
	commit = "abcdef1"
	date = "2026-10-03"

	out, _, err := executeCommand("version")
	require.NoError(t, err)
	require.Contains(t, out, "ccreconcile 1.2.3")
	require.Contains(t, out, "abcdef1")
	require.Contains(t, out, "2026-10-03")
}

func TestKindsCommandListsBuiltInKinds(t *testing.T) {
	out, _, err := executeCommand("kinds", "--no-color")
	require.NoError(t, err)
	require.Contains(t, out, "transit")
	require.Contains(t, out, "site")
	require.Contains(t, out, "/dna/intent/api/v1/sda/transitNetworks")
}
