package identity_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"lexicon/internal/docstore"
	"lexicon/internal/docstore/flat"
	"lexicon/internal/docstore/memory"
	"lexicon/internal/identity"
	"lexicon/pkg/domain"
	dErrors "lexicon/pkg/domain-errors"
	"lexicon/pkg/requestcontext"
)

type IdentityServiceSuite struct {
	suite.Suite
	newStore func() docstore.Store
	store    docstore.Store
	metrics  *identity.Metrics
	service  *identity.Service
	ctx      context.Context
}

func TestIdentityServiceNativeStore(t *testing.T) {
	suite.Run(t, &IdentityServiceSuite{newStore: func() docstore.Store { return memory.New() }})
}

func TestIdentityServiceFlatStore(t *testing.T) {
	suite.Run(t, &IdentityServiceSuite{newStore: func() docstore.Store { return flat.New(flat.NewMemoryBackend()) }})
}

func (s *IdentityServiceSuite) SetupTest() {
	s.store = s.newStore()
	s.metrics = identity.NewMetrics(prometheus.NewRegistry())
	var err error
	s.service, err = identity.New(s.store,
		identity.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		identity.WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
}

func (s *IdentityServiceSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *IdentityServiceSuite) countRecords() int {
	var n int
	err := s.store.Collection(domain.CollectionGlobalID).Stream(s.ctx, func(docstore.Snapshot) error {
		n++
		return nil
	})
	s.Require().NoError(err)
	return n
}

func (s *IdentityServiceSuite) TestResolve() {
	s.Run("mints a prefixed id", func() {
		id, err := s.service.Resolve(s.ctx, domain.ResourceTerminology, "https://loinc.org", "")
		s.Require().NoError(err)
		s.Regexp(`^tm-[0-9a-f]{12}$`, id)
	})

	s.Run("repeated resolution returns the same id and keeps one record", func() {
		first, err := s.service.Resolve(s.ctx, domain.ResourceTable, "demographics", "study-1")
		s.Require().NoError(err)
		second, err := s.service.Resolve(s.ctx, domain.ResourceTable, "demographics", "study-1")
		s.Require().NoError(err)

		s.Equal(first, second)
		s.Regexp(`^tb-`, first)
	})

	s.Run("domain is part of the key", func() {
		a, err := s.service.Resolve(s.ctx, domain.ResourceTable, "visits", "study-1")
		s.Require().NoError(err)
		b, err := s.service.Resolve(s.ctx, domain.ResourceTable, "visits", "study-2")
		s.Require().NoError(err)
		s.NotEqual(a, b)
	})

	s.Run("natural key is trimmed", func() {
		a, err := s.service.Resolve(s.ctx, domain.ResourceStudy, "cohort", "")
		s.Require().NoError(err)
		b, err := s.service.Resolve(s.ctx, domain.ResourceStudy, "  cohort ", "")
		s.Require().NoError(err)
		s.Equal(a, b)
	})

	s.Run("empty natural key is rejected", func() {
		_, err := s.service.Resolve(s.ctx, domain.ResourceStudy, "  ", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown resource types use their first two letters", func() {
		id, err := s.service.Resolve(s.ctx, domain.ResourceType("Variable"), "age", "")
		s.Require().NoError(err)
		s.Regexp(`^va-`, id)
	})
}

func (s *IdentityServiceSuite) TestResolveSurvivesRestart() {
	id, err := s.service.Resolve(s.ctx, domain.ResourceTerminology, "snomed", "")
	s.Require().NoError(err)

	restarted, err := identity.New(s.store)
	s.Require().NoError(err)
	again, err := restarted.Resolve(s.ctx, domain.ResourceTerminology, "snomed", "")
	s.Require().NoError(err)

	s.Equal(id, again)
	s.Equal(1, s.countRecords())
}

func (s *IdentityServiceSuite) TestConcurrentResolveHasOneWinner() {
	const callers = 16
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i], errs[i] = s.service.Resolve(s.ctx, domain.ResourceDataDictionary, "core", "")
		}()
	}
	wg.Wait()

	for i := range callers {
		s.Require().NoError(errs[i])
		s.Equal(ids[0], ids[i])
	}
	s.Equal(1, s.countRecords())

	minted := testutil.ToFloat64(s.metrics.Resolved.WithLabelValues("DataDictionary", "minted"))
	s.Equal(float64(1), minted)
}

func (s *IdentityServiceSuite) TestFindsRecordsStoredUnderOtherIDs() {
	_, err := s.store.Collection(domain.CollectionGlobalID).Add(s.ctx, map[string]any{
		"id":            "tm-legacy000001",
		"resource_type": "Terminology",
		"domain":        "",
		"key":           "icd-10",
		"created_at":    "2020-01-01T00:00:00Z",
	})
	s.Require().NoError(err)

	id, err := s.service.Resolve(s.ctx, domain.ResourceTerminology, "icd-10", "")
	s.Require().NoError(err)
	s.Equal("tm-legacy000001", id)

	found, ok, err := s.service.Lookup(s.ctx, domain.ResourceTerminology, "icd-10", "")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(id, found)
}

func (s *IdentityServiceSuite) TestLookup() {
	_, ok, err := s.service.Lookup(s.ctx, domain.ResourceTerminology, "never-seen", "")
	s.Require().NoError(err)
	s.False(ok)
	s.Equal(0, s.countRecords(), "lookup must not mint")
}

func (s *IdentityServiceSuite) TestDelete() {
	s.Run("by tuple", func() {
		id, err := s.service.Resolve(s.ctx, domain.ResourceTerminology, "hpo", "")
		s.Require().NoError(err)

		s.Require().NoError(s.service.Delete(s.ctx, domain.ResourceTerminology, "hpo", ""))

		_, ok, err := s.service.Lookup(s.ctx, domain.ResourceTerminology, "hpo", "")
		s.Require().NoError(err)
		s.False(ok)

		again, err := s.service.Resolve(s.ctx, domain.ResourceTerminology, "hpo", "")
		s.Require().NoError(err)
		s.NotEqual(id, again, "a deleted tuple mints a fresh id")
	})

	s.Run("by id", func() {
		id, err := s.service.Resolve(s.ctx, domain.ResourceTable, "labs", "")
		s.Require().NoError(err)

		s.Require().NoError(s.service.DeleteByID(s.ctx, id))

		_, ok, err := s.service.Lookup(s.ctx, domain.ResourceTable, "labs", "")
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("missing records are a no-op", func() {
		s.NoError(s.service.Delete(s.ctx, domain.ResourceTable, "nothing", ""))
		s.NoError(s.service.DeleteByID(s.ctx, "tb-000000000000"))
	})
}

func TestDeterministicGenerator(t *testing.T) {
	svc, err := identity.New(memory.New(), identity.WithIDGenerator(func(rt domain.ResourceType) string {
		return rt.IDPrefix() + "-fixed"
	}))
	require.NoError(t, err)

	id, err := svc.Resolve(context.Background(), domain.ResourceStudy, "s", "")
	require.NoError(t, err)
	assert.Equal(t, "st-fixed", id)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := identity.New(nil)
	assert.EqualError(t, err, "document store is required")
}

func TestRecordIDIsStable(t *testing.T) {
	a := identity.RecordID(domain.ResourceTable, "d", "k")
	assert.Equal(t, a, identity.RecordID(domain.ResourceTable, "d", "k"))
	assert.NotEqual(t, a, identity.RecordID(domain.ResourceTable, "dk", ""))
	assert.Len(t, a, 40)
}
