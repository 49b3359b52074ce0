package engine_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"lexicon/internal/docstore"
	"lexicon/internal/docstore/flat"
	"lexicon/internal/docstore/memory"
	"lexicon/internal/engine"
	"lexicon/internal/mapping"
	"lexicon/internal/platform/config"
	"lexicon/internal/provenance"
	"lexicon/internal/terminology"
	"lexicon/internal/userinput"
	"lexicon/pkg/domain"
	dErrors "lexicon/pkg/domain-errors"
	auditmemory "lexicon/pkg/platform/audit/store/memory"
	"lexicon/pkg/requestcontext"
)

type EngineSuite struct {
	suite.Suite
	newStore func(t *testing.T) docstore.Store
	engine   *engine.Engine
	events   *auditmemory.InMemoryStore
	clock    time.Time
}

func TestEngineNativeStore(t *testing.T) {
	suite.Run(t, &EngineSuite{newStore: func(*testing.T) docstore.Store { return memory.New() }})
}

func TestEngineFlatStore(t *testing.T) {
	suite.Run(t, &EngineSuite{newStore: func(*testing.T) docstore.Store { return flat.New(flat.NewMemoryBackend()) }})
}

func TestEngineSQLiteStore(t *testing.T) {
	suite.Run(t, &EngineSuite{newStore: func(t *testing.T) docstore.Store {
		cfg := config.Default()
		cfg.Store.Backend = config.BackendSQLite
		cfg.Store.DSN = filepath.Join(t.TempDir(), "lexicon.db")
		store, err := engine.OpenStore(context.Background(), cfg, nil)
		require.NoError(t, err)
		return store
	}})
}

func (s *EngineSuite) SetupTest() {
	s.events = auditmemory.NewInMemoryStore()
	var err error
	s.engine, err = engine.New(engine.Deps{
		Store:     s.newStore(s.T()),
		Publisher: s.events,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	s.Require().NoError(err)
	_, err = s.engine.SeedRelationships(context.Background(), "")
	s.Require().NoError(err)
	s.clock = time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)
}

func (s *EngineSuite) TearDownTest() {
	s.Require().NoError(s.engine.Close())
}

// ctx advances the request clock so provenance entries are strictly ordered.
func (s *EngineSuite) ctx() context.Context {
	s.clock = s.clock.Add(time.Second)
	return requestcontext.WithTime(context.Background(), s.clock)
}

func (s *EngineSuite) createConditions() *terminology.Terminology {
	t, err := s.engine.Terminologies.CreateTerminology(s.ctx(), "alice", terminology.CreateInput{
		Name: "Conditions",
		URL:  "https://example.org/conditions",
		Codes: []terminology.CodeInput{
			{Code: "A", Display: "Asthma"},
			{Code: "B", Display: "Bronchitis"},
		},
	})
	s.Require().NoError(err)
	return t
}

func equivalent(codes ...string) []mapping.CodingMapping {
	out := make([]mapping.CodingMapping, 0, len(codes))
	for _, c := range codes {
		out = append(out, mapping.CodingMapping{
			Coding:              terminology.Coding{Code: c},
			MappingRelationship: "equivalent",
		})
	}
	return out
}

func (s *EngineSuite) TestIdempotentCreation() {
	first := s.createConditions()
	again, err := s.engine.Terminologies.CreateTerminology(s.ctx(), "bob", terminology.CreateInput{
		Name: "Conditions (copy)", URL: "https://example.org/conditions", Reuse: true,
	})
	s.Require().NoError(err)
	s.Equal(first.ID, again.ID)
	s.Regexp(`^tm-[0-9a-f]{12}$`, first.ID)
}

func (s *EngineSuite) TestRenameRelocatesMappingsAndProvenance() {
	t := s.createConditions()
	_, err := s.engine.Mappings.SetMapping(s.ctx(), t.ID, "A", equivalent("X1"), "alice")
	s.Require().NoError(err)

	ok, err := s.engine.Terminologies.RenameCode(s.ctx(), t.ID, "A", "A2", "Asthma", "", "alice")
	s.Require().NoError(err)
	s.True(ok)

	moved, err := s.engine.Mappings.GetMappings(s.ctx(), t.ID, "A2", mapping.ReadOptions{})
	s.Require().NoError(err)
	s.Require().Len(moved, 1)
	s.Equal("X1", moved[0].Code)

	ref := provenance.Ref{Type: domain.ResourceTerminology, ID: t.ID}
	oldHistory, err := s.engine.Provenance.Get(s.ctx(), ref, "A")
	s.Require().NoError(err)
	s.Empty(oldHistory)
	history, err := s.engine.Provenance.Get(s.ctx(), ref, "A2")
	s.Require().NoError(err)
	s.Require().Len(history, 2, "set mapping, rename")
	s.Equal(provenance.ActionAdd, history[0].Action)
	s.Equal(provenance.ActionEdit, history[1].Action)
}

func (s *EngineSuite) createWithCodes(name string, codes ...string) *terminology.Terminology {
	in := terminology.CreateInput{Name: name}
	for _, c := range codes {
		in.Codes = append(in.Codes, terminology.CodeInput{Code: c, Display: c})
	}
	t, err := s.engine.Terminologies.CreateTerminology(s.ctx(), "alice", in)
	s.Require().NoError(err)
	return t
}

func (s *EngineSuite) TestCodesWithSeparatorsKeepSeparateRecords() {
	t := s.createWithCodes("Phenotypes", "HP/1", "HP::1")

	_, err := s.engine.Mappings.SetMapping(s.ctx(), t.ID, "HP/1", equivalent("T1"), "alice")
	s.Require().NoError(err)
	_, err = s.engine.Mappings.SetMapping(s.ctx(), t.ID, "HP::1", equivalent("T2"), "alice")
	s.Require().NoError(err)

	slash, err := s.engine.Mappings.GetMappings(s.ctx(), t.ID, "HP/1", mapping.ReadOptions{})
	s.Require().NoError(err)
	s.Require().Len(slash, 1)
	s.Equal("T1", slash[0].Code)
	colons, err := s.engine.Mappings.GetMappings(s.ctx(), t.ID, "HP::1", mapping.ReadOptions{})
	s.Require().NoError(err)
	s.Require().Len(colons, 1)
	s.Equal("T2", colons[0].Code)

	listed, err := s.engine.Mappings.ListMappings(s.ctx(), t.ID, mapping.ReadOptions{})
	s.Require().NoError(err)
	s.Len(listed, 2)

	ref := provenance.Ref{Type: domain.ResourceTerminology, ID: t.ID}
	for _, code := range []string{"HP/1", "HP::1"} {
		history, err := s.engine.Provenance.Get(s.ctx(), ref, code)
		s.Require().NoError(err)
		s.Len(history, 1, code)
	}
	all, err := s.engine.Provenance.GetAll(s.ctx(), ref)
	s.Require().NoError(err)
	s.Contains(all, "HP/1")
	s.Contains(all, "HP::1")
}

func (s *EngineSuite) TestRenameAcrossSeparatorsMovesRecords() {
	t := s.createWithCodes("Phenotypes", "HP/1")
	_, err := s.engine.Mappings.SetMapping(s.ctx(), t.ID, "HP/1", equivalent("T1"), "alice")
	s.Require().NoError(err)

	ok, err := s.engine.Terminologies.RenameCode(s.ctx(), t.ID, "HP/1", "HP::1", "HP 1", "", "alice")
	s.Require().NoError(err)
	s.True(ok)

	stored, err := s.engine.Terminologies.GetTerminology(s.ctx(), t.ID)
	s.Require().NoError(err)
	s.True(stored.HasCode("HP::1"))
	s.False(stored.HasCode("HP/1"))

	moved, err := s.engine.Mappings.GetMappings(s.ctx(), t.ID, "HP::1", mapping.ReadOptions{})
	s.Require().NoError(err)
	s.Require().Len(moved, 1)
	s.Equal("T1", moved[0].Code)
	left, err := s.engine.Mappings.GetMappings(s.ctx(), t.ID, "HP/1", mapping.ReadOptions{IncludeInvalid: true})
	s.Require().NoError(err)
	s.Empty(left)

	ref := provenance.Ref{Type: domain.ResourceTerminology, ID: t.ID}
	history, err := s.engine.Provenance.Get(s.ctx(), ref, "HP::1")
	s.Require().NoError(err)
	s.Len(history, 2, "set mapping, rename")
	old, err := s.engine.Provenance.Get(s.ctx(), ref, "HP/1")
	s.Require().NoError(err)
	s.Empty(old)
}

func (s *EngineSuite) TestMutationsWithoutEditorWriteNothing() {
	_, err := s.engine.Terminologies.CreateTerminology(s.ctx(), "", terminology.CreateInput{Name: "Anonymous"})
	s.True(dErrors.HasCode(err, dErrors.CodeLackingUserID))

	list, err := s.engine.Terminologies.ListTerminologies(s.ctx())
	s.Require().NoError(err)
	for _, t := range list {
		s.NotEqual("Anonymous", t.Name)
	}
	_, found, err := s.engine.Identity.Lookup(s.ctx(), domain.ResourceTerminology, "Anonymous", "")
	s.Require().NoError(err)
	s.False(found, "no id is minted")

	ctx := requestcontext.WithUserID(s.ctx(), "carol")
	t, err := s.engine.Terminologies.CreateTerminology(ctx, "", terminology.CreateInput{Name: "Session"})
	s.Require().NoError(err)
	history, err := s.engine.Provenance.Get(s.ctx(), provenance.Ref{Type: domain.ResourceTerminology, ID: t.ID}, domain.SelfTarget)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal("carol", history[0].Editor)
}

func (s *EngineSuite) TestRemoveCodeSoftDeletesMappings() {
	t := s.createConditions()
	_, err := s.engine.Mappings.SetMapping(s.ctx(), t.ID, "B", equivalent("X1", "X2"), "alice")
	s.Require().NoError(err)

	s.Require().NoError(s.engine.Terminologies.RemoveCode(s.ctx(), t.ID, "B", "alice"))

	visible, err := s.engine.Mappings.GetMappings(s.ctx(), t.ID, "B", mapping.ReadOptions{})
	s.Require().NoError(err)
	s.Empty(visible)
	kept, err := s.engine.Mappings.GetMappings(s.ctx(), t.ID, "B", mapping.ReadOptions{IncludeInvalid: true})
	s.Require().NoError(err)
	s.Len(kept, 2)

	_, err = s.engine.Mappings.SetMapping(s.ctx(), t.ID, "B", equivalent("X3"), "alice")
	s.True(dErrors.HasCode(err, dErrors.CodeCodeNotPresent))
}

func (s *EngineSuite) TestRelationshipValidationLeavesDataUnchanged() {
	t := s.createConditions()
	_, err := s.engine.Mappings.SetMapping(s.ctx(), t.ID, "A", equivalent("X1"), "alice")
	s.Require().NoError(err)

	bad := equivalent("Y1")
	bad[0].MappingRelationship = "identical"
	_, err = s.engine.Mappings.SetMapping(s.ctx(), t.ID, "A", bad, "alice")
	s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidEnumValue))

	got, err := s.engine.Mappings.GetMappings(s.ctx(), t.ID, "A", mapping.ReadOptions{})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("X1", got[0].Code)
}

func (s *EngineSuite) TestTimelineAndChangeFeed() {
	t := s.createConditions()
	_, err := s.engine.Terminologies.AddCode(s.ctx(), t.ID, "alice", terminology.CodeInput{Code: "C"})
	s.Require().NoError(err)
	s.Require().NoError(s.engine.Terminologies.SetCodeValidity(s.ctx(), t.ID, "C", false, "alice"))

	timeline, err := s.engine.Provenance.Timeline(s.ctx(), provenance.Ref{Type: domain.ResourceTerminology, ID: t.ID})
	s.Require().NoError(err)
	s.Require().Len(timeline, 4)
	for i := 1; i < len(timeline); i++ {
		s.False(timeline[i].Timestamp.Before(timeline[i-1].Timestamp))
	}

	events, err := s.events.ListByResource(context.Background(), t.ID)
	s.Require().NoError(err)
	s.Len(events, 4)
}

func (s *EngineSuite) TestUserInputOnMappingReads() {
	t := s.createConditions()
	_, err := s.engine.Mappings.SetMapping(s.ctx(), t.ID, "A", equivalent("X1"), "alice")
	s.Require().NoError(err)

	ctx := requestcontext.WithUserID(s.ctx(), "reviewer")
	_, err = s.engine.UserInput.Put(ctx, t.ID, "A", "X1", userinput.KindVote, userinput.Body{Vote: userinput.VoteUp}, "")
	s.Require().NoError(err)

	got, err := s.engine.Mappings.GetMappings(s.ctx(), t.ID, "A", mapping.ReadOptions{WithUserInput: true})
	s.Require().NoError(err)
	s.Require().NotNil(got[0].UserInput)
	s.Equal(1, got[0].UserInput.Up)
}

func (s *EngineSuite) TestDeleteTerminologyRemovesEverything() {
	t := s.createConditions()
	_, err := s.engine.Mappings.SetMapping(s.ctx(), t.ID, "A", equivalent("X1"), "alice")
	s.Require().NoError(err)

	s.Require().NoError(s.engine.Terminologies.DeleteTerminology(s.ctx(), t.ID, "alice"))

	_, err = s.engine.Terminologies.GetTerminology(s.ctx(), t.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	all, err := s.engine.Provenance.GetAll(s.ctx(), provenance.Ref{Type: domain.ResourceTerminology, ID: t.ID})
	s.Require().NoError(err)
	s.Empty(all)
	_, found, err := s.engine.Identity.Lookup(s.ctx(), domain.ResourceTerminology, "https://example.org/conditions", "")
	s.Require().NoError(err)
	s.False(found)

	recreated := s.createConditions()
	s.NotEqual(t.ID, recreated.ID)
}

func (s *EngineSuite) TestStampValidityBackfillsLegacyDocuments() {
	ctx := s.ctx()
	terms := s.engine.Store.Collection(domain.CollectionTerminology)
	_, err := terms.Document("tm-legacy").Set(ctx, map[string]any{
		"id":   "tm-legacy",
		"name": "Legacy",
		"codes": []any{
			map[string]any{"code": "A", "display": "Asthma"},
			map[string]any{"code": "B", "display": "Bronchitis", "valid": false},
		},
	})
	s.Require().NoError(err)
	_, err = terms.Document("tm-legacy").Collection(domain.SubMappings).Document("A").Set(ctx, map[string]any{
		"code":  "A",
		"codes": []any{map[string]any{"code": "X1", "mapping_relationship": "equivalent"}},
	})
	s.Require().NoError(err)

	report, err := s.engine.StampValidity(ctx, true)
	s.Require().NoError(err)
	s.Equal(map[string]int{"tm-legacy": 1}, report.Codes)
	s.Equal(map[string]int{"tm-legacy": 1}, report.Targets)

	// dry run wrote nothing
	report, err = s.engine.StampValidity(s.ctx(), false)
	s.Require().NoError(err)
	s.Equal(1, report.Codes["tm-legacy"])

	got, err := s.engine.Terminologies.GetTerminology(s.ctx(), "tm-legacy")
	s.Require().NoError(err)
	s.Require().NotNil(got.Codes[0].Valid)
	s.True(*got.Codes[0].Valid)
	s.False(got.Codes[1].IsValid(), "explicit flags are kept")

	mapped, err := s.engine.Mappings.GetMappings(s.ctx(), "tm-legacy", "A", mapping.ReadOptions{})
	s.Require().NoError(err)
	s.Require().Len(mapped, 1)
	s.Require().NotNil(mapped[0].Valid)

	report, err = s.engine.StampValidity(s.ctx(), false)
	s.Require().NoError(err)
	s.Empty(report.Codes)
	s.Empty(report.Targets)
}

func TestOpenMemory(t *testing.T) {
	cfg := config.Default()
	e, err := engine.Open(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), prometheus.NewRegistry())
	require.NoError(t, err)
	defer func() { require.NoError(t, e.Close()) }()

	allowed, err := e.Relationships.Allowed(context.Background())
	require.NoError(t, err)
	assert.Contains(t, allowed, "source-is-narrower-than-target")

	checks := e.Checks()
	require.Contains(t, checks, "store")
	assert.NoError(t, checks["store"].Health(context.Background()))
}

func TestOpenStoreRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "cassandra"
	_, err := engine.OpenStore(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown store backend")

	cfg.Store.Backend = config.BackendPostgres
	_, err = engine.OpenStore(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "dsn is required")

	cfg.Store.Backend = config.BackendRedis
	_, err = engine.OpenStore(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "redis url is not configured")
}

func TestOpenPublisherRejectsUnknownFeed(t *testing.T) {
	_, err := engine.OpenPublisher(context.Background(), config.ChangeFeed{Kind: "carrier-pigeon"}, slog.Default(), nil)
	assert.ErrorContains(t, err, "unknown change feed")
}
