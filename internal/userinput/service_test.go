package userinput_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"lexicon/internal/docstore/memory"
	"lexicon/internal/userinput"
	dErrors "lexicon/pkg/domain-errors"
	"lexicon/pkg/requestcontext"
)

type UserInputServiceSuite struct {
	suite.Suite
	store   *memory.Store
	service *userinput.Service
	t0      time.Time
}

func TestUserInputServiceSuite(t *testing.T) {
	suite.Run(t, new(UserInputServiceSuite))
}

func (s *UserInputServiceSuite) SetupTest() {
	s.store = memory.New()
	var err error
	s.service, err = userinput.New(s.store, userinput.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.t0 = time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
}

func (s *UserInputServiceSuite) at(minutes int) context.Context {
	return requestcontext.WithTime(context.Background(), s.t0.Add(time.Duration(minutes)*time.Minute))
}

func (s *UserInputServiceSuite) TestGetMissing() {
	resp, err := s.service.Get(s.at(0), "tm-1", "A", "X", userinput.KindConversation)
	s.Require().NoError(err)
	s.False(resp.Exists)
	s.Equal(userinput.NoInputMessage, resp.Message)
	s.Equal("conversation", resp.Kind)
}

func (s *UserInputServiceSuite) TestConversationIsNewestFirst() {
	_, err := s.service.Put(s.at(0), "tm-1", "A", "X", userinput.KindConversation, userinput.Body{Note: "first"}, "alice")
	s.Require().NoError(err)
	_, err = s.service.Put(s.at(1), "tm-1", "A", "X", userinput.KindConversation, userinput.Body{Note: " second "}, "bob")
	s.Require().NoError(err)

	resp, err := s.service.Get(s.at(2), "tm-1", "A", "X", userinput.KindConversation)
	s.Require().NoError(err)
	s.True(resp.Exists)
	s.Require().Len(resp.Conversation, 2)
	s.Equal("second", resp.Conversation[0].Note)
	s.Equal("bob", resp.Conversation[0].UserID)
	s.Equal(s.t0, resp.Conversation[1].Date)

	votes, err := s.service.Get(s.at(2), "tm-1", "A", "X", userinput.KindVote)
	s.Require().NoError(err)
	s.False(votes.Exists, "kinds share a document but not their data")
}

func (s *UserInputServiceSuite) TestVoteKeepsOnePerUser() {
	put := func(ctx context.Context, user, vote string) {
		_, err := s.service.Put(ctx, "tm-1", "A", "X", userinput.KindVote, userinput.Body{Vote: vote}, user)
		s.Require().NoError(err)
	}
	put(s.at(0), "alice", userinput.VoteUp)
	put(s.at(1), "bob", userinput.VoteUp)
	put(s.at(2), "alice", userinput.VoteDown)

	resp, err := s.service.Get(s.at(3), "tm-1", "A", "X", userinput.KindVote)
	s.Require().NoError(err)
	s.Len(resp.Votes, 2)
	s.Equal(userinput.VoteDown, resp.Votes["alice"].Vote)

	sum, err := s.service.Summary(s.at(3), "tm-1", "A", "X")
	s.Require().NoError(err)
	s.Equal(userinput.Summary{Up: 1, Down: 1}, sum)
}

func (s *UserInputServiceSuite) TestSessionUserWins() {
	ctx := requestcontext.WithUserID(s.at(0), "session-user")
	resp, err := s.service.Put(ctx, "tm-1", "A", "X", userinput.KindVote, userinput.Body{Vote: "up"}, "alice")
	s.Require().NoError(err)
	s.Contains(resp.Votes, "session-user")
	s.NotContains(resp.Votes, "alice")
}

func (s *UserInputServiceSuite) TestValidation() {
	s.Run("lacking user id is checked before validation and writes", func() {
		_, err := s.service.Put(s.at(0), "tm-1", "A", "X", userinput.KindVote, userinput.Body{Vote: "sideways"}, "")
		s.True(dErrors.HasCode(err, dErrors.CodeLackingUserID))

		resp, err := s.service.Get(s.at(0), "tm-1", "A", "X", userinput.KindVote)
		s.Require().NoError(err)
		s.False(resp.Exists)
	})

	s.Run("vote must be up or down", func() {
		_, err := s.service.Put(s.at(0), "tm-1", "A", "X", userinput.KindVote, userinput.Body{Vote: "sideways"}, "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidEnumValue))
	})

	s.Run("note is required", func() {
		_, err := s.service.Put(s.at(0), "tm-1", "A", "X", userinput.KindConversation, userinput.Body{Note: "  "}, "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeLackingRequiredParameter))
	})

	s.Run("note length is bounded", func() {
		_, err := s.service.Put(s.at(0), "tm-1", "A", "X", userinput.KindConversation,
			userinput.Body{Note: strings.Repeat("é", userinput.MaxNoteLength)}, "alice")
		s.NoError(err)
		_, err = s.service.Put(s.at(0), "tm-1", "A", "X", userinput.KindConversation,
			userinput.Body{Note: strings.Repeat("x", userinput.MaxNoteLength+1)}, "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *UserInputServiceSuite) TestCodesWithSlashes() {
	_, err := s.service.Put(s.at(0), "tm-1", "A/1", "X/2", userinput.KindConversation, userinput.Body{Note: "n"}, "alice")
	s.Require().NoError(err)

	snap, err := s.store.Collection("Terminology").Document("tm-1").Collection("user_input").
		Document(userinput.DocumentID("A/1", "X/2")).Get(context.Background())
	s.Require().NoError(err)
	s.True(snap.Exists())
	s.Equal("A%2F1|X%2F2", snap.ID())
}

func (s *UserInputServiceSuite) TestPairsWithSeparatorsStayApart() {
	_, err := s.service.Put(s.at(0), "tm-1", "a|b", "c", userinput.KindVote, userinput.Body{Vote: userinput.VoteUp}, "u1")
	s.Require().NoError(err)

	other, err := s.service.Get(s.at(1), "tm-1", "a", "b|c", userinput.KindVote)
	s.Require().NoError(err)
	s.False(other.Exists)
	s.Empty(other.Votes)

	own, err := s.service.Get(s.at(1), "tm-1", "a|b", "c", userinput.KindVote)
	s.Require().NoError(err)
	s.True(own.Exists)
	s.NotEqual(userinput.DocumentID("a|b", "c"), userinput.DocumentID("a", "b|c"))
}

func TestParseKind(t *testing.T) {
	k, err := userinput.ParseKind(" Vote ")
	require.NoError(t, err)
	assert.Equal(t, userinput.KindVote, k)

	_, err = userinput.ParseKind("emoji")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidEnumValue))
}
