// Package userinput stores comment threads and votes per (code, mapped code) pair.
package userinput

import (
	"context"
	"errors"
	"log/slog"

	"lexicon/internal/docstore"
	"lexicon/pkg/domain"
	dErrors "lexicon/pkg/domain-errors"
	"lexicon/pkg/platform/sentinel"
	"lexicon/pkg/requestcontext"
)

// NoInputMessage answers reads of pairs nobody has commented on.
const NoInputMessage = "no user input recorded for this mapping"

// Response is the structured answer of Get and Put.
type Response struct {
	TerminologyID string          `json:"terminology_id"`
	Code          string          `json:"code"`
	MappedCode    string          `json:"mapped_code"`
	Kind          string          `json:"kind"`
	Exists        bool            `json:"exists"`
	Message       string          `json:"message,omitempty"`
	Conversation  []Note          `json:"conversation,omitempty"`
	Votes         map[string]Vote `json:"votes,omitempty"`
}

// Summary aggregates one pair for mapping reads.
type Summary struct {
	Up    int `json:"up"`
	Down  int `json:"down"`
	Notes int `json:"notes"`
}

type Service struct {
	store  docstore.Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store docstore.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("document store is required")
	}
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DocumentID pairs a code with a mapped code. StorageCode escapes "|", so distinct pairs
// never share an id.
func DocumentID(code, mapped string) string {
	return domain.StorageCode(code) + "|" + domain.StorageCode(mapped)
}

func (s *Service) document(terminologyID, code, mapped string) docstore.DocumentRef {
	return s.store.Collection(domain.CollectionTerminology).Document(terminologyID).
		Collection(domain.SubUserInput).Document(DocumentID(code, mapped))
}

// Get reads one kind of input. A missing document is Exists=false with NoInputMessage.
func (s *Service) Get(ctx context.Context, terminologyID, code, mapped string, kind Kind) (*Response, error) {
	if kind == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "kind is required")
	}
	_, doc, err := s.read(ctx, terminologyID, code, mapped)
	if err != nil {
		return nil, err
	}
	return respond(terminologyID, code, mapped, kind, doc), nil
}

// Put records input from the session user, falling back to editor. The user id is checked
// before anything is read or written.
func (s *Service) Put(ctx context.Context, terminologyID, code, mapped string, kind Kind, body Body, editor string) (*Response, error) {
	userID := requestcontext.Editor(ctx, editor)
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeLackingUserID, "a user id is required to record user input")
	}
	if kind == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "kind is required")
	}
	if err := kind.validate(body); err != nil {
		return nil, err
	}

	snap, doc, err := s.read(ctx, terminologyID, code, mapped)
	if err != nil {
		return nil, err
	}
	doc.Code, doc.MappedCode = code, mapped
	kind.merge(&doc, userID, body, requestcontext.Now(ctx))

	data, err := docstore.Encode(doc)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode user input")
	}
	if _, err := s.document(terminologyID, code, mapped).Set(ctx, data, docstore.IfMatch(snap)); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "user input changed concurrently")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user input")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "user_input_recorded",
			"terminology_id", terminologyID,
			"code", code,
			"mapped_code", mapped,
			"kind", kind.Name(),
			"user_id", userID,
			"event", "user_input_recorded",
			"log_type", "audit",
		)
	}
	return respond(terminologyID, code, mapped, kind, doc), nil
}

// Summary counts votes and notes of one pair; zero when nothing was recorded.
func (s *Service) Summary(ctx context.Context, terminologyID, code, mapped string) (Summary, error) {
	_, doc, err := s.read(ctx, terminologyID, code, mapped)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Notes: len(doc.Conversation)}
	for _, v := range doc.Votes {
		switch v.Vote {
		case VoteUp:
			sum.Up++
		case VoteDown:
			sum.Down++
		}
	}
	return sum, nil
}

func (s *Service) read(ctx context.Context, terminologyID, code, mapped string) (docstore.Snapshot, document, error) {
	snap, err := s.document(terminologyID, code, mapped).Get(ctx)
	if err != nil {
		return docstore.Snapshot{}, document{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user input")
	}
	var doc document
	if snap.Exists() {
		if err := snap.DataTo(&doc); err != nil {
			return docstore.Snapshot{}, document{}, dErrors.Wrap(err, dErrors.CodeInternal, "malformed user input")
		}
	}
	return snap, doc, nil
}

func respond(terminologyID, code, mapped string, kind Kind, doc document) *Response {
	resp := &Response{
		TerminologyID: terminologyID,
		Code:          code,
		MappedCode:    mapped,
		Kind:          kind.Name(),
		Exists:        kind.has(doc),
	}
	if !resp.Exists {
		resp.Message = NoInputMessage
		return resp
	}
	kind.fill(resp, doc)
	return resp
}
