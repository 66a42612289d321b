package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestXPathArithmetic(t *testing.T) {
	out, err := runCmd(t, "-e", "1 + 2 * 3")
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)
}

func TestXPathAgainstInputFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.xml")
	require.NoError(t, os.WriteFile(path, []byte(`<a><b/><b/></a>`), 0o644))

	out, err := runCmd(t, "-e", "count(/a/b)", "-i", path)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestXPathCompileError(t *testing.T) {
	_, err := runCmd(t, "-e", "1 + ")
	require.Error(t, err)
}

func TestXPathCanonical(t *testing.T) {
	out, err := runCmd(t, "-e", "1 + 2", "--canonical")
	require.NoError(t, err)
	assert.Equal(t, "xs:integer(\"3\")\n", out)
}
