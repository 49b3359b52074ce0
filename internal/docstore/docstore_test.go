package docstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexicon/internal/docstore"
	"lexicon/internal/docstore/docstoretest"
	"lexicon/internal/docstore/memory"
	"lexicon/internal/docstore/metrics"
	"lexicon/pkg/platform/sentinel"
)

func TestConditions(t *testing.T) {
	t.Run("unconditional writes always pass", func(t *testing.T) {
		c := docstore.Resolve(nil)
		assert.True(t, c.Empty())
		assert.NoError(t, c.Check("a/b", 4, true))
		assert.NoError(t, c.Check("a/b", 0, false))
	})

	t.Run("create-only fails on existing documents", func(t *testing.T) {
		c := docstore.Resolve([]docstore.Precondition{docstore.MustNotExist()})
		assert.NoError(t, c.Check("a/b", 0, false))
		err := c.Check("a/b", 3, true)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("version must match", func(t *testing.T) {
		c := docstore.Resolve([]docstore.Precondition{docstore.IfVersion(2)})
		assert.NoError(t, c.Check("a/b", 2, true))

		var conflict *docstore.ConflictError
		require.ErrorAs(t, c.Check("a/b", 5, true), &conflict)
		assert.Equal(t, int64(2), conflict.Expected)
		assert.Equal(t, int64(5), conflict.Current)
		assert.Equal(t, "a/b", conflict.Path)
	})

	t.Run("if match on a missing snapshot is create-only", func(t *testing.T) {
		c := docstore.Resolve([]docstore.Precondition{docstore.IfMatch(docstore.Missing("b", "a/b"))})
		assert.True(t, c.MustNotExist)
		assert.False(t, c.HasVersion)
	})
}

func TestQueryApply(t *testing.T) {
	snaps := []docstore.Snapshot{
		docstore.NewSnapshot("c", "x/c", 1, map[string]any{"t": "a", "ts": "2024-01-03"}),
		docstore.NewSnapshot("a", "x/a", 1, map[string]any{"t": "a", "ts": "2024-01-01"}),
		docstore.NewSnapshot("b", "x/b", 1, map[string]any{"t": "b", "ts": "2024-01-02"}),
		docstore.NewSnapshot("d", "x/d", 1, map[string]any{"t": "a"}),
	}

	ids := func(in []docstore.Snapshot) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = s.ID()
		}
		return out
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(docstore.Query{}.Apply(snaps)))
	assert.Equal(t, []string{"d", "a", "c"}, ids(docstore.Query{}.Where("t", "a").Order("ts", docstore.Asc).Apply(snaps)),
		"missing sort fields order first")
	assert.Equal(t, []string{"c", "a"}, ids(docstore.Query{}.Where("t", "a").Order("ts", docstore.Desc).Limit(2).Apply(snaps)))
}

func TestFilterDocument(t *testing.T) {
	_, ok := docstore.Query{}.FilterDocument()
	assert.False(t, ok)

	doc, ok := docstore.Query{}.Where("type", "Terminology").Where("n", 2).FilterDocument()
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"Terminology","n":2}`, doc)
}

func TestEncode(t *testing.T) {
	type coding struct {
		Code  string `json:"code"`
		Rank  int    `json:"rank"`
		Valid *bool  `json:"valid,omitempty"`
	}
	m, err := docstore.Encode(coding{Code: "F", Rank: 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"code": "F", "rank": float64(1)}, m)
}

func TestInstrumentedConformance(t *testing.T) {
	docstoretest.Run(t, func(*testing.T) docstore.Store {
		return docstore.Instrument(memory.New(), "memory", metrics.New(prometheus.NewRegistry()))
	})
}

func TestInstrumentRecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	store := docstore.Instrument(memory.New(), "memory", m)
	doc := store.Collection("GlobalID").Document("g-1")

	_, err := doc.Set(ctx, map[string]any{"id": "tm-1"}, docstore.MustNotExist())
	require.NoError(t, err)
	_, err = doc.Set(ctx, map[string]any{"id": "tm-2"}, docstore.MustNotExist())
	require.True(t, errors.Is(err, sentinel.ErrConflict))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("memory", "set", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("memory", "set", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Conflicts.WithLabelValues("memory", "GlobalID")))
}
