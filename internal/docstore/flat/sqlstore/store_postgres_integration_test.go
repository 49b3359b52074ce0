//go:build integration

package sqlstore_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"lexicon/internal/docstore"
	"lexicon/internal/docstore/docstoretest"
	"lexicon/internal/docstore/flat"
	"lexicon/internal/docstore/flat/sqlstore"
	"lexicon/pkg/testutil/containers"
)

// noCloseBackend keeps the shared pool open when a conformance test closes its store.
type noCloseBackend struct {
	*sqlstore.Store
}

func (noCloseBackend) Close() error { return nil }

func TestPostgresConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)
	docstoretest.Run(t, func(t *testing.T) docstore.Store {
		backend := sqlstore.NewPostgres(pg.DB, "")
		if err := backend.Migrate(context.Background()); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		if err := pg.TruncateTables(context.Background(), sqlstore.DefaultTable); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return flat.New(noCloseBackend{backend})
	})
}

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    docstore.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	backend := sqlstore.NewPostgres(s.postgres.DB, "")
	s.Require().NoError(backend.Migrate(context.Background()))
	s.store = flat.New(noCloseBackend{backend})
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), sqlstore.DefaultTable))
}

// TestConcurrentCreateOnly verifies exactly one of many racing create-only writes wins.
func (s *PostgresStoreSuite) TestConcurrentCreateOnly() {
	ctx := context.Background()
	doc := s.store.Collection("GlobalID").Document("race")
	const goroutines = 20

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if _, err := doc.Set(ctx, map[string]any{"writer": idx}, docstore.MustNotExist()); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
}

// TestConcurrentVersionedUpdates verifies stale tokens lose under contention.
func (s *PostgresStoreSuite) TestConcurrentVersionedUpdates() {
	ctx := context.Background()
	doc := s.store.Collection("Terminology").Document("tm-1")
	_, err := doc.Set(ctx, map[string]any{"n": 0})
	s.Require().NoError(err)
	snap, err := doc.Get(ctx)
	s.Require().NoError(err)

	const goroutines = 10
	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if _, err := doc.Set(ctx, map[string]any{"n": idx}, docstore.IfMatch(snap)); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
}
