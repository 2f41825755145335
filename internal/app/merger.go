package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"store_reviews/internal/domain"
)

// Merger combines both upstream generations into one deduplicated,
// newest-first review list per store.
type Merger struct {
	current  domain.ReviewAdapter
	legacy   domain.ReviewAdapter
	finder   domain.PlaceFinder
	prefixes map[domain.Brand]string
}

func NewMerger(current, legacy domain.ReviewAdapter, finder domain.PlaceFinder, brandPrefixes map[domain.Brand]string) *Merger {
	return &Merger{current: current, legacy: legacy, finder: finder, prefixes: brandPrefixes}
}

func (m *Merger) StoreReviews(ctx context.Context, st domain.Store) ([]domain.PlaceReview, error) {
	placeID := ResolvePlaceID(st)

	var a, b []domain.PlaceReview
	if placeID != "" {
		var err error
		if a, b, err = m.fetchBoth(ctx, placeID); err != nil {
			return nil, err
		}
	}

	// A configured id that went stale may differ from the one in the map URL.
	if len(a)+len(b) == 0 {
		if alt := PlaceIDFromURL(deref(st.GoogleMapsURL)); alt != "" && alt != placeID {
			var err error
			if b, err = m.legacy.PlaceReviews(ctx, alt); err != nil {
				return nil, err
			}
		}
	}

	if len(a)+len(b) == 0 && m.finder != nil {
		for _, q := range m.searchQueries(st) {
			id, err := m.finder.FindPlaceID(ctx, q)
			if err != nil {
				return nil, err
			}
			if id == "" {
				continue
			}
			if a, b, err = m.fetchBoth(ctx, id); err != nil {
				return nil, err
			}
			if len(a)+len(b) > 0 {
				log.Info().Str("store", st.Name).Str("query", q).Str("place_id", id).Msg("reviews found via text search")
				break
			}
		}
	}

	return MergeReviews(a, b), nil
}

// fetchBoth queries both generations concurrently; they are independent reads.
func (m *Merger) fetchBoth(ctx context.Context, placeID string) (a, b []domain.PlaceReview, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = m.current.PlaceReviews(gctx, placeID)
		if err != nil {
			return fmt.Errorf("current api %s: %w", placeID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		b, err = m.legacy.PlaceReviews(gctx, placeID)
		if err != nil {
			return fmt.Errorf("legacy api %s: %w", placeID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (m *Merger) searchQueries(st domain.Store) []string {
	qs := []string{st.Name}
	if p := m.prefixes[st.Brand]; p != "" && !strings.HasPrefix(st.Name, p) {
		qs = append(qs, p+" "+st.Name)
	}
	return qs
}

// MergeReviews keeps the first review per author|publishTime, scanning primary
// before secondary, then orders newest first.
func MergeReviews(primary, secondary []domain.PlaceReview) []domain.PlaceReview {
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	out := make([]domain.PlaceReview, 0, len(primary)+len(secondary))
	for _, list := range [][]domain.PlaceReview{primary, secondary} {
		for _, r := range list {
			k := fmt.Sprintf("%s|%d", r.AuthorName, r.PublishTime)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishTime > out[j].PublishTime })
	return out
}
