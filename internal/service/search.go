package service

import (
	"context"
	"errors"
	"strings"

	"github.com/set-night/mindvoice/internal/domain"
)

// GroundedQuerier answers a prompt with web or maps grounding.
type GroundedQuerier interface {
	GroundedQuery(ctx context.Context, prompt string, loc *domain.Location, useMaps bool) (domain.Reply, error)
}

// Search runs grounded queries beside the conversation.
type Search struct {
	querier GroundedQuerier
}

func NewSearch(querier GroundedQuerier) *Search {
	return &Search{querier: querier}
}

// Query returns the grounded answer and its citations. Maps grounding
// without a location still runs; the backend then answers without an
// anchor.
func (s *Search) Query(ctx context.Context, query string, loc *domain.Location, useMaps bool) (domain.Reply, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Reply{}, errors.New("grounded query: empty query")
	}
	if !useMaps {
		loc = nil
	}
	reply, err := s.querier.GroundedQuery(ctx, query, loc, useMaps)
	if err != nil {
		return domain.Reply{}, err
	}
	reply.Text = strings.TrimSpace(reply.Text)
	reply.Calls = nil
	return reply, nil
}
