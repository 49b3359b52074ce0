// Package docstoretest holds the behaviour every docstore backend must share.
package docstoretest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/suite"

	"lexicon/internal/docstore"
	"lexicon/pkg/platform/sentinel"
)

// Factory returns a fresh, empty store for one test.
type Factory func(t *testing.T) docstore.Store

// Run executes the conformance suite against stores built by factory.
func Run(t *testing.T, factory Factory) {
	suite.Run(t, &ConformanceSuite{factory: factory})
}

// ConformanceSuite is exported so integration tests can embed it.
type ConformanceSuite struct {
	suite.Suite
	factory Factory
	store   docstore.Store
	ctx     context.Context
}

func (s *ConformanceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.factory(s.T())
	s.Require().NoError(docstore.Migrate(s.ctx, s.store))
}

func (s *ConformanceSuite) TearDownTest() {
	if s.store != nil {
		s.NoError(s.store.Close())
	}
}

func (s *ConformanceSuite) TestGetMissingDocument() {
	snap, err := s.store.Collection("Terminology").Document("tm-missing").Get(s.ctx)
	s.Require().NoError(err)
	s.False(snap.Exists())
	s.Nil(snap.ToMap())
	s.Error(snap.DataTo(&map[string]any{}))
}

func (s *ConformanceSuite) TestSetAndGet() {
	doc := s.store.Collection("Terminology").Document("tm-1")
	id, err := doc.Set(s.ctx, map[string]any{
		"id":    "tm-1",
		"name":  "Sex",
		"rank":  3,
		"codes": []any{map[string]any{"code": "F"}},
	})
	s.Require().NoError(err)
	s.Equal("tm-1", id)

	snap, err := doc.Get(s.ctx)
	s.Require().NoError(err)
	s.True(snap.Exists())
	s.Equal("tm-1", snap.ID())
	s.Positive(snap.Version())

	want := map[string]any{
		"id":    "tm-1",
		"name":  "Sex",
		"rank":  float64(3),
		"codes": []any{map[string]any{"code": "F"}},
	}
	if diff := cmp.Diff(want, snap.ToMap()); diff != "" {
		s.Failf("unexpected document", "diff (-want +got):\n%s", diff)
	}

	var decoded struct {
		Name string `json:"name"`
		Rank int    `json:"rank"`
	}
	s.Require().NoError(snap.DataTo(&decoded))
	s.Equal("Sex", decoded.Name)
	s.Equal(3, decoded.Rank)
}

func (s *ConformanceSuite) TestToMapIsACopy() {
	doc := s.store.Collection("Terminology").Document("tm-1")
	_, err := doc.Set(s.ctx, map[string]any{"nested": map[string]any{"a": "b"}})
	s.Require().NoError(err)

	snap, err := doc.Get(s.ctx)
	s.Require().NoError(err)
	m := snap.ToMap()
	m["nested"].(map[string]any)["a"] = "mutated"

	again, err := doc.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal("b", again.ToMap()["nested"].(map[string]any)["a"])
}

func (s *ConformanceSuite) TestMustNotExist() {
	doc := s.store.Collection("GlobalID").Document("g-1")
	_, err := doc.Set(s.ctx, map[string]any{"id": "tm-1"}, docstore.MustNotExist())
	s.Require().NoError(err)

	_, err = doc.Set(s.ctx, map[string]any{"id": "tm-2"}, docstore.MustNotExist())
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrConflict))
	var conflict *docstore.ConflictError
	s.Require().ErrorAs(err, &conflict)

	snap, err := doc.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal("tm-1", snap.ToMap()["id"], "losing writer must not overwrite")
}

func (s *ConformanceSuite) TestVersionPreconditions() {
	doc := s.store.Collection("Terminology").Document("tm-1")
	_, err := doc.Set(s.ctx, map[string]any{"name": "v1"})
	s.Require().NoError(err)
	first, err := doc.Get(s.ctx)
	s.Require().NoError(err)

	_, err = doc.Set(s.ctx, map[string]any{"name": "v2"}, docstore.IfMatch(first))
	s.Require().NoError(err)
	second, err := doc.Get(s.ctx)
	s.Require().NoError(err)
	s.NotEqual(first.Version(), second.Version())

	_, err = doc.Set(s.ctx, map[string]any{"name": "stale"}, docstore.IfVersion(first.Version()))
	s.ErrorIs(err, sentinel.ErrConflict)

	err = doc.Delete(s.ctx, docstore.IfVersion(first.Version()))
	s.ErrorIs(err, sentinel.ErrConflict)

	current, err := doc.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal("v2", current.ToMap()["name"])
}

func (s *ConformanceSuite) TestIfVersionOnMissingDocumentConflicts() {
	_, err := s.store.Collection("Terminology").Document("tm-x").Set(s.ctx, map[string]any{}, docstore.IfVersion(1))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *ConformanceSuite) TestIfMatchMissingActsAsCreateOnly() {
	doc := s.store.Collection("Terminology").Document("tm-1")
	missing, err := doc.Get(s.ctx)
	s.Require().NoError(err)

	_, err = doc.Set(s.ctx, map[string]any{"name": "winner"})
	s.Require().NoError(err)

	_, err = doc.Set(s.ctx, map[string]any{"name": "loser"}, docstore.IfMatch(missing))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *ConformanceSuite) TestDelete() {
	doc := s.store.Collection("Terminology").Document("tm-1")
	s.Require().NoError(doc.Delete(s.ctx), "deleting a missing document is a no-op")

	_, err := doc.Set(s.ctx, map[string]any{"name": "x"})
	s.Require().NoError(err)
	s.Require().NoError(doc.Delete(s.ctx))

	snap, err := doc.Get(s.ctx)
	s.Require().NoError(err)
	s.False(snap.Exists())
}

func (s *ConformanceSuite) TestStreamOrderedByID() {
	coll := s.store.Collection("Terminology")
	for _, id := range []string{"tm-c", "tm-a", "tm-b"} {
		_, err := coll.Document(id).Set(s.ctx, map[string]any{"id": id})
		s.Require().NoError(err)
	}

	var ids []string
	s.Require().NoError(coll.Stream(s.ctx, func(snap docstore.Snapshot) error {
		ids = append(ids, snap.ID())
		return nil
	}))
	s.Equal([]string{"tm-a", "tm-b", "tm-c"}, ids)

	stop := errors.New("stop")
	var seen int
	err := coll.Stream(s.ctx, func(docstore.Snapshot) error {
		seen++
		return stop
	})
	s.ErrorIs(err, stop)
	s.Equal(1, seen)
}

func (s *ConformanceSuite) TestFind() {
	coll := s.store.Collection("GlobalID")
	rows := []map[string]any{
		{"type": "Terminology", "key": "a", "n": 1},
		{"type": "Terminology", "key": "b", "n": 3},
		{"type": "Table", "key": "c", "n": 2},
		{"type": "Terminology", "key": "d", "n": 2},
	}
	for i, row := range rows {
		_, err := coll.Document(fmt.Sprintf("g-%d", i)).Set(s.ctx, row)
		s.Require().NoError(err)
	}

	found, err := coll.Find(s.ctx, docstore.Query{}.Where("type", "Terminology").Order("n", docstore.Desc).Limit(2))
	s.Require().NoError(err)
	s.Require().Len(found, 2)
	s.Equal("b", found[0].ToMap()["key"])
	s.Equal("d", found[1].ToMap()["key"])

	found, err = coll.Find(s.ctx, docstore.Query{}.Where("type", "Terminology").Where("n", 1))
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("g-0", found[0].ID())

	found, err = coll.Find(s.ctx, docstore.Query{}.Where("type", "Study"))
	s.Require().NoError(err)
	s.Empty(found)
}

func (s *ConformanceSuite) TestAdd() {
	coll := s.store.Collection("Terminology").Document("tm-1").Collection("user_input")
	id, err := coll.Add(s.ctx, map[string]any{"note": "hello"})
	s.Require().NoError(err)
	s.NotEmpty(id)

	snap, err := coll.Document(id).Get(s.ctx)
	s.Require().NoError(err)
	s.Equal("hello", snap.ToMap()["note"])
}

func (s *ConformanceSuite) TestSubCollectionsAreIsolated() {
	one := s.store.Collection("Terminology").Document("tm-1").Collection("mappings")
	two := s.store.Collection("Terminology").Document("tm-2").Collection("mappings")
	s.Equal("Terminology/tm-1/mappings", one.Path())
	s.Equal("Terminology/tm-1/mappings/F", one.Document("F").Path())

	_, err := one.Document("F").Set(s.ctx, map[string]any{"code": "F"})
	s.Require().NoError(err)

	snap, err := two.Document("F").Get(s.ctx)
	s.Require().NoError(err)
	s.False(snap.Exists())

	parent, err := s.store.Collection("Terminology").Document("tm-1").Get(s.ctx)
	s.Require().NoError(err)
	s.False(parent.Exists(), "writing a sub-collection does not create its parent")
}

func (s *ConformanceSuite) TestPurge() {
	term := s.store.Collection("Terminology").Document("tm-1")
	mappings := term.Collection("mappings")
	provenance := term.Collection("provenance")
	other := s.store.Collection("Terminology").Document("tm-2").Collection("mappings")
	for _, c := range []docstore.CollectionRef{mappings, provenance, other} {
		for _, id := range []string{"A", "B"} {
			_, err := c.Document(id).Set(s.ctx, map[string]any{"code": id})
			s.Require().NoError(err)
		}
	}

	s.Require().NoError(docstore.Purge(s.ctx, mappings, provenance))

	for _, c := range []docstore.CollectionRef{mappings, provenance} {
		found, err := c.Find(s.ctx, docstore.Query{})
		s.Require().NoError(err)
		s.Empty(found, c.Path())
	}
	kept, err := other.Find(s.ctx, docstore.Query{})
	s.Require().NoError(err)
	s.Len(kept, 2)
}
