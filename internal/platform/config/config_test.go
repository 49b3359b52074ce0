package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LEXICON_STORE_BACKEND":        "postgres",
		"LEXICON_STORE_DSN":            "postgres://localhost/lexicon",
		"LEXICON_CHANGEFEED":           "kafka",
		"KAFKA_BROKERS":                "k1:9092, k2:9092,",
		"LEXICON_RELATIONSHIP_REFRESH": "10m",
		"LEXICON_RELATIONSHIP_SEED":    "false",
	}
	cfg := Default()
	cfg.applyEnv(func(k string) string { return env[k] })

	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.ChangeFeed.KafkaBrokers)
	assert.Equal(t, 10*time.Minute, cfg.Relationship.RefreshInterval)
	assert.False(t, cfg.Relationship.Seed)
}

func TestValidate(t *testing.T) {
	t.Run("sql backends need a dsn", func(t *testing.T) {
		cfg := Default()
		cfg.Store.Backend = BackendSQLite
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown backend is rejected", func(t *testing.T) {
		cfg := Default()
		cfg.Store.Backend = "firestore"
		assert.Error(t, cfg.Validate())
	})

	t.Run("nats feed needs a url", func(t *testing.T) {
		cfg := Default()
		cfg.ChangeFeed.Kind = FeedNATS
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: sqlite
  dsn: file:lexicon.db
relationship:
  terminology_id: my-relationships
  refresh_interval: 30s
`), 0o600))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "my-relationships", cfg.Relationship.TerminologyID)
	assert.Equal(t, 30*time.Second, cfg.Relationship.RefreshInterval)
	assert.Equal(t, "lexicon_documents", cfg.Store.Table, "unset keys keep defaults")
}
