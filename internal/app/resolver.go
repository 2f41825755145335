package app

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"store_reviews/internal/domain"
)

// MaxLinkSkew bounds how far a live review's publish time may drift from the
// stored creation time and still count as the same review.
const MaxLinkSkew = 30 * 24 * time.Hour

// ReviewURLResolver finds a live link for a stored review. It never fails:
// every problem degrades to the next fallback.
type ReviewURLResolver struct {
	repo    domain.ReviewRepository
	current domain.ReviewAdapter // nil without an API key
	links   domain.LinkProvider  // nil without an API key
}

func NewReviewURLResolver(r domain.ReviewRepository, current domain.ReviewAdapter, links domain.LinkProvider) *ReviewURLResolver {
	return &ReviewURLResolver{repo: r, current: current, links: links}
}

// ResolveReviewURL returns the best deep link for (author, createdAt) at the store,
// else the reviews tab, else the store map URL, else nil.
func (r *ReviewURLResolver) ResolveReviewURL(ctx context.Context, storeID, authorName string, createdAt *time.Time) *string {
	st, err := r.repo.GetStore(ctx, storeID)
	if err != nil {
		log.Debug().Err(err).Str("store_id", storeID).Msg("review url: store lookup failed")
		return nil
	}
	placeID := ResolvePlaceID(st)
	if placeID != "" && r.current != nil {
		cands, err := r.current.PlaceReviews(ctx, placeID)
		if err != nil {
			log.Debug().Err(err).Str("place_id", placeID).Msg("review url: upstream fetch failed")
		} else if u, ok := BestReviewLink(cands, authorName, createdAt); ok {
			return &u
		}
	}
	return r.fallback(ctx, st, placeID)
}

// ResolvePlaceReviewsURL returns the store's reviews tab, else its map URL.
func (r *ReviewURLResolver) ResolvePlaceReviewsURL(ctx context.Context, storeID string) *string {
	st, err := r.repo.GetStore(ctx, storeID)
	if err != nil {
		log.Debug().Err(err).Str("store_id", storeID).Msg("reviews tab url: store lookup failed")
		return nil
	}
	return r.fallback(ctx, st, ResolvePlaceID(st))
}

func (r *ReviewURLResolver) fallback(ctx context.Context, st domain.Store, placeID string) *string {
	if placeID != "" && r.links != nil {
		u, err := r.links.ReviewsTabURL(ctx, placeID)
		if err != nil {
			log.Debug().Err(err).Str("place_id", placeID).Msg("reviews tab lookup failed")
		} else if u != "" {
			return &u
		}
	}
	if st.GoogleMapsURL != nil && *st.GoogleMapsURL != "" {
		u := *st.GoogleMapsURL
		return &u
	}
	return nil
}

// BestReviewLink picks the deep-linked candidate closest in time to createdAt whose
// author matches exactly or as a substring either way. An empty authorName matches
// anyone; a nil createdAt disables the time window.
func BestReviewLink(cands []domain.PlaceReview, authorName string, createdAt *time.Time) (string, bool) {
	best, bestDiff, found := "", time.Duration(0), false
	for _, c := range cands {
		if c.DeepLink == nil || *c.DeepLink == "" {
			continue
		}
		if !authorMatches(authorName, c.AuthorName) {
			continue
		}
		var diff time.Duration
		if createdAt != nil {
			diff = time.Unix(c.PublishTime, 0).Sub(*createdAt)
			if diff < 0 {
				diff = -diff
			}
			if diff > MaxLinkSkew {
				continue
			}
		}
		if !found || diff < bestDiff {
			best, bestDiff, found = *c.DeepLink, diff, true
		}
	}
	return best, found
}

func authorMatches(want, got string) bool {
	if want == "" || want == got {
		return true
	}
	return strings.Contains(got, want) || strings.Contains(want, got)
}
