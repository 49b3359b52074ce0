package table_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"lexicon/internal/docstore/memory"
	"lexicon/internal/engine"
	"lexicon/internal/provenance"
	"lexicon/internal/table"
	"lexicon/pkg/domain"
	dErrors "lexicon/pkg/domain-errors"
)

type TableServiceSuite struct {
	suite.Suite
	engine *engine.Engine
	ctx    context.Context
}

func TestTableServiceSuite(t *testing.T) {
	suite.Run(t, new(TableServiceSuite))
}

func (s *TableServiceSuite) SetupTest() {
	var err error
	s.engine, err = engine.New(engine.Deps{
		Store:  memory.New(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func demographics() table.CreateInput {
	return table.CreateInput{
		Name: "Demographics",
		URL:  "https://example.org/tables/demographics",
		Variables: []table.Variable{
			{Name: "age", DataType: "integer", Description: "Age at enrollment"},
			{Name: "sex", DataType: "string"},
		},
	}
}

func (s *TableServiceSuite) TestCreateTable() {
	created, err := s.engine.Tables.CreateTable(s.ctx, "alice", demographics())
	s.Require().NoError(err)
	s.Regexp(`^tb-`, created.ID)
	s.Regexp(`^Terminology/tm-`, created.Terminology.Reference)

	shadow, err := s.engine.Terminologies.GetTerminology(s.ctx, created.TerminologyID())
	s.Require().NoError(err)
	s.Require().Len(shadow.Codes, 2)
	s.Equal("age", shadow.Codes[0].Code)
	s.Equal("Age at enrollment", shadow.Codes[0].Display)
	s.Equal("https://example.org/tables/demographics"+table.ShadowSuffix, shadow.URL)

	got, err := s.engine.Tables.GetTable(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.Variables, got.Variables)

	history, err := s.engine.Provenance.Get(s.ctx, provenance.Ref{Type: domain.ResourceTable, ID: created.ID}, domain.SelfTarget)
	s.Require().NoError(err)
	s.Len(history, 1)

	_, err = s.engine.Tables.CreateTable(s.ctx, "alice", demographics())
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *TableServiceSuite) TestVariablesNeedNameAndType() {
	in := demographics()
	in.Variables[1].DataType = " "

	_, err := s.engine.Tables.CreateTable(s.ctx, "alice", in)
	s.Require().True(dErrors.HasCode(err, dErrors.CodeLackingRequiredParameter))
	de, _ := dErrors.As(err)
	s.Equal("data_type", de.Detail("parameter"))
	s.Equal(1, de.Detail("row"))

	list, err := s.engine.Terminologies.ListTerminologies(s.ctx)
	s.Require().NoError(err)
	s.Empty(list, "nothing is written for invalid input")
}

func (s *TableServiceSuite) TestDeleteTable() {
	created, err := s.engine.Tables.CreateTable(s.ctx, "alice", demographics())
	s.Require().NoError(err)

	s.Require().NoError(s.engine.Tables.DeleteTable(s.ctx, created.ID, "alice"))

	_, err = s.engine.Tables.GetTable(s.ctx, created.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.engine.Terminologies.GetTerminology(s.ctx, created.TerminologyID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, found, err := s.engine.Identity.Lookup(s.ctx, domain.ResourceTable, "https://example.org/tables/demographics", "")
	s.Require().NoError(err)
	s.False(found)
}

func (s *TableServiceSuite) TestMutationsRequireAnEditor() {
	s.Run("create writes nothing", func() {
		_, err := s.engine.Tables.CreateTable(s.ctx, "", demographics())
		s.True(dErrors.HasCode(err, dErrors.CodeLackingUserID))

		list, err := s.engine.Terminologies.ListTerminologies(s.ctx)
		s.Require().NoError(err)
		s.Empty(list)
		_, found, err := s.engine.Identity.Lookup(s.ctx, domain.ResourceTable, "https://example.org/tables/demographics", "")
		s.Require().NoError(err)
		s.False(found)
	})

	s.Run("delete keeps the table", func() {
		created, err := s.engine.Tables.CreateTable(s.ctx, "alice", demographics())
		s.Require().NoError(err)

		err = s.engine.Tables.DeleteTable(s.ctx, created.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeLackingUserID))
		_, err = s.engine.Tables.GetTable(s.ctx, created.ID)
		s.NoError(err)
	})
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := table.New(nil, nil, nil, nil)
	assert.EqualError(t, err, "document store is required")
}
