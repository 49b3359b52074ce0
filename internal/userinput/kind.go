package userinput

import (
	"strings"
	"time"
	"unicode/utf8"

	dErrors "lexicon/pkg/domain-errors"
)

// MaxNoteLength bounds conversation notes, in characters.
const MaxNoteLength = 1000

const (
	VoteUp   = "up"
	VoteDown = "down"
)

// Body is the caller-supplied payload of a Put. Each kind reads its own field.
type Body struct {
	Note string `json:"note,omitempty"`
	Vote string `json:"vote,omitempty"`
}

// Note is one conversation entry.
type Note struct {
	UserID string    `json:"user_id"`
	Note   string    `json:"note"`
	Date   time.Time `json:"date"`
}

// Vote is one user's vote.
type Vote struct {
	UserID string    `json:"user_id"`
	Vote   string    `json:"vote"`
	Date   time.Time `json:"date"`
}

// document is stored at Terminology/{id}/user_input/{code}|{mapped}.
type document struct {
	Code         string          `json:"code"`
	MappedCode   string          `json:"mapped_code"`
	Conversation []Note          `json:"conversation,omitempty"`
	Votes        map[string]Vote `json:"vote,omitempty"`
}

// Kind is a kind of user input. The set is closed: KindConversation and KindVote.
type Kind interface {
	Name() string

	validate(b Body) error
	merge(doc *document, userID string, b Body, at time.Time)
	has(doc document) bool
	fill(resp *Response, doc document)
}

var (
	// KindConversation is an unbounded thread, newest first.
	KindConversation Kind = conversationKind{}
	// KindVote keeps one vote per user; the last write wins.
	KindVote Kind = voteKind{}
)

var kinds = map[string]Kind{
	KindConversation.Name(): KindConversation,
	KindVote.Name():         KindVote,
}

// ParseKind resolves a kind name at the boundary.
func ParseKind(name string) (Kind, error) {
	if k, ok := kinds[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k, nil
	}
	return nil, dErrors.InvalidEnumValue("kind", name, []string{KindConversation.Name(), KindVote.Name()})
}

type conversationKind struct{}

func (conversationKind) Name() string { return "conversation" }

func (conversationKind) validate(b Body) error {
	note := strings.TrimSpace(b.Note)
	if note == "" {
		return dErrors.New(dErrors.CodeLackingRequiredParameter, "note is required").With("parameter", "note")
	}
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return dErrors.Newf(dErrors.CodeValidation, "note exceeds %d characters", MaxNoteLength).
			With("parameter", "note")
	}
	return nil
}

func (conversationKind) merge(doc *document, userID string, b Body, at time.Time) {
	entry := Note{UserID: userID, Note: strings.TrimSpace(b.Note), Date: at}
	doc.Conversation = append([]Note{entry}, doc.Conversation...)
}

func (conversationKind) has(doc document) bool { return len(doc.Conversation) > 0 }

func (conversationKind) fill(resp *Response, doc document) {
	resp.Conversation = doc.Conversation
}

type voteKind struct{}

func (voteKind) Name() string { return "vote" }

func (voteKind) validate(b Body) error {
	switch b.Vote {
	case VoteUp, VoteDown:
		return nil
	default:
		return dErrors.InvalidEnumValue("vote", b.Vote, []string{VoteUp, VoteDown})
	}
}

func (voteKind) merge(doc *document, userID string, b Body, at time.Time) {
	if doc.Votes == nil {
		doc.Votes = map[string]Vote{}
	}
	doc.Votes[userID] = Vote{UserID: userID, Vote: b.Vote, Date: at}
}

func (voteKind) has(doc document) bool { return len(doc.Votes) > 0 }

func (voteKind) fill(resp *Response, doc document) {
	resp.Votes = doc.Votes
}
