// Package session implements component G: the session tracker. It
// owns session id issuance and the append-only interaction log,
// delegating storage to the Repository (spec §4.7).
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/productdiscovery/rankingengine"
	"github.com/productdiscovery/rankingengine/pkg/repository"
)

// Tracker ingests interaction events and answers recency-ordered
// queries over a session's history.
type Tracker struct {
	repo repository.Repository
}

// New constructs a Tracker over repo.
func New(repo repository.Repository) *Tracker {
	return &Tracker{repo: repo}
}

// Issue mints a new opaque session id (spec §3: "opaque identifier")
// and creates its row, valid for repository.SessionTTL from now.
func (t *Tracker) Issue(ctx context.Context) (*repository.Session, error) {
	return t.repo.UpsertSession(ctx, uuid.NewString(), time.Now().UTC())
}

// Resolve returns the session for id, creating it under id if id is
// unknown and issuing a fresh one if id is empty or expired (spec §4.9
// step 1: "resolve or issue").
func (t *Tracker) Resolve(ctx context.Context, id string) (*repository.Session, error) {
	if id == "" {
		return t.Issue(ctx)
	}
	s, err := t.repo.GetSession(ctx, id)
	if err != nil {
		if rankingengine.IsNotFound(err) {
			return t.repo.UpsertSession(ctx, id, time.Now().UTC())
		}
		return nil, err
	}
	now := time.Now().UTC()
	if s.Expired(now) {
		return t.Issue(ctx)
	}
	return s, nil
}

// RecordInteractionParams is the event shape spec §4.7 ingests.
// SearchLogID correlates a click back to the search it resulted from
// (spec §3: the search-result explanation's was_clicked flag is
// "updated post-hoc by G").
type RecordInteractionParams struct {
	SessionID   string
	ProductID   int64
	Kind        repository.InteractionKind
	Query       *string
	Position    *int
	SearchLogID *int64
}

// RecordInteraction stamps the event with the server's current time and
// appends it, creating the session row on first interaction and
// touching last-active-at otherwise (spec §4.7). For a click or
// search_click carrying a SearchLogID, it also flags the corresponding
// search-result explanation as clicked.
func (t *Tracker) RecordInteraction(ctx context.Context, p RecordInteractionParams) error {
	if err := t.repo.RecordInteraction(ctx, &repository.Interaction{
		SessionID:   p.SessionID,
		ProductID:   p.ProductID,
		Kind:        p.Kind,
		Query:       p.Query,
		Position:    p.Position,
		SearchLogID: p.SearchLogID,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		return err
	}

	if p.SearchLogID == nil {
		return nil
	}
	switch p.Kind {
	case repository.InteractionClick, repository.InteractionSearchClick:
		return t.repo.MarkResultClicked(ctx, *p.SearchLogID, p.ProductID)
	}
	return nil
}

// RecentInteractions returns up to limit interactions for sessionID,
// most-recent-first (spec §4.7).
func (t *Tracker) RecentInteractions(ctx context.Context, sessionID string, limit int) ([]*repository.Interaction, error) {
	return t.repo.RecentInteractions(ctx, sessionID, limit)
}

// RecentlyViewed returns up to limit distinct product ids from "view"
// events, most-recent-first (spec §4.7). It over-fetches the raw
// interaction log since a single product may have been viewed more
// than once.
func (t *Tracker) RecentlyViewed(ctx context.Context, sessionID string, limit int) ([]int64, error) {
	const overFetchFactor = 5
	fetch := limit * overFetchFactor
	if fetch <= 0 {
		fetch = limit
	}
	interactions, err := t.repo.RecentInteractions(ctx, sessionID, fetch)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	out := make([]int64, 0, limit)
	for _, in := range interactions {
		if in.Kind != repository.InteractionView {
			continue
		}
		if _, ok := seen[in.ProductID]; ok {
			continue
		}
		seen[in.ProductID] = struct{}{}
		out = append(out, in.ProductID)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
