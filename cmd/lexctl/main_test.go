package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useSQLite points every invocation at one file so state survives between commands.
func useSQLite(t *testing.T) {
	t.Helper()
	t.Setenv("LEXICON_CONFIG_FILE", "")
	t.Setenv("LEXICON_STORE_BACKEND", "sqlite")
	t.Setenv("LEXICON_STORE_DSN", filepath.Join(t.TempDir(), "lexctl.db"))
	t.Setenv("LEXICON_CHANGEFEED", "none")
	t.Setenv("LEXICON_LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	var stdout bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		return nil, err
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out), stdout.String())
	return out, nil
}

func TestIdentityResolveIsStable(t *testing.T) {
	useSQLite(t)

	before, err := run(t, "identity", "lookup", "Terminology", "https://example.org/conditions")
	require.NoError(t, err)
	assert.Equal(t, false, before["found"])

	first, err := run(t, "identity", "resolve", "Terminology", "https://example.org/conditions")
	require.NoError(t, err)
	assert.Regexp(t, `^tm-`, first["id"])

	second, err := run(t, "identity", "resolve", "Terminology", "https://example.org/conditions")
	require.NoError(t, err)
	assert.Equal(t, first["id"], second["id"])

	other, err := run(t, "identity", "resolve", "Terminology", "https://example.org/conditions", "--domain", "study-1")
	require.NoError(t, err)
	assert.NotEqual(t, first["id"], other["id"])

	_, err = run(t, "identity", "resolve", "Widget", "key")
	assert.ErrorContains(t, err, "unsupported resource type")
}

func TestSeedRelationships(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "seed", "relationships")
	require.NoError(t, err)
	assert.Equal(t, true, out["created"])
	assert.Contains(t, out["allowed"], "equivalent")

	out, err = run(t, "seed", "relationships")
	require.NoError(t, err)
	assert.Equal(t, false, out["created"])
}

func TestStampValidOnCleanStore(t *testing.T) {
	useSQLite(t)
	_, err := run(t, "seed", "relationships")
	require.NoError(t, err)

	out, err := run(t, "migrate", "stamp-valid", "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, true, out["dry_run"])
	assert.Empty(t, out["codes"])
	assert.Empty(t, out["targets"])
}

func TestProvenanceShowEmpty(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "provenance", "show", "Terminology", "tm-missing")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestInvalidConfigFails(t *testing.T) {
	useSQLite(t)
	t.Setenv("LEXICON_STORE_DSN", "")
	t.Setenv("LEXICON_STORE_BACKEND", "postgres")

	_, err := run(t, "identity", "resolve", "Terminology", "x")
	assert.ErrorContains(t, err, "store.dsn is required")
}
