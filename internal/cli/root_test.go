package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "list", "--db", filepath.Join(t.TempDir(), "x.db")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCommand_InitThenShowMissingNode(t *testing.T) {
	db := filepath.Join(t.TempDir(), "story-tree.db")

	initCmd := NewRootCommand()
	initCmd.SetOut(&bytes.Buffer{})
	initCmd.SetErr(&bytes.Buffer{})
	initCmd.SetArgs([]string{"init", "--db", db})
	require.NoError(t, initCmd.Execute())

	showCmd := NewRootCommand()
	showCmd.SetOut(&bytes.Buffer{})
	showCmd.SetErr(&bytes.Buffer{})
	showCmd.SetArgs([]string{"show", "9", "--db", db})

	err := showCmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRootCommand_AddAndTree(t *testing.T) {
	db := filepath.Join(t.TempDir(), "story-tree.db")

	run := func(args ...string) (string, error) {
		cmd := NewRootCommand()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(args, "--db", db))
		err := cmd.Execute()
		return out.String(), err
	}

	_, err := run("init")
	require.NoError(t, err)

	out, err := run("add", "Checkout flow")
	require.NoError(t, err)
	assert.Contains(t, out, "Added node 1")

	out, err = run("add", "Cart persistence", "--parent", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Added node 1.1")

	out, err = run("tree")
	require.NoError(t, err)
	assert.Contains(t, out, "1  Checkout flow  [concept:ready]")
	assert.Contains(t, out, "  1.1  Cart persistence  [concept:ready]")
}

func TestRootCommand_EditUpdatesContent(t *testing.T) {
	db := filepath.Join(t.TempDir(), "story-tree.db")

	run := func(args ...string) (string, error) {
		cmd := NewRootCommand()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(args, "--db", db))
		err := cmd.Execute()
		return out.String(), err
	}

	_, err := run("init")
	require.NoError(t, err)
	_, err = run("add", "Checkout flow")
	require.NoError(t, err)

	out, err := run("edit", "1", "--title", "Checkout v2", "--desc", "Reworked flow")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated node 1: Checkout v2")

	out, err = run("show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Checkout v2")
	assert.Contains(t, out, "Reworked flow")

	// No flags means there is nothing to apply.
	_, err = run("edit", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
