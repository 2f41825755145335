package app

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"store_reviews/internal/domain"
)

var placeIDPattern = regexp.MustCompile(`place_id:([^&]+)`)

// PlaceIDFromURL extracts the id from map URLs of the form ...?q=place_id:<id>.
func PlaceIDFromURL(u string) string {
	if m := placeIDPattern.FindStringSubmatch(u); m != nil {
		return m[1]
	}
	return ""
}

// ResolvePlaceID prefers the configured identifier, then the one embedded in the map URL.
func ResolvePlaceID(st domain.Store) string {
	if st.PlaceID != nil && strings.TrimSpace(*st.PlaceID) != "" {
		return *st.PlaceID
	}
	return PlaceIDFromURL(deref(st.GoogleMapsURL))
}

// SourceReviewID is the idempotency key of a review within its store.
// Two reviews by the same author in the same second collide; that is accepted.
func SourceReviewID(storeID string, publishTime int64, authorName string) string {
	return fmt.Sprintf("%s_%d_%s", storeID, publishTime, authorName)
}

func mapReview(st domain.Store, r domain.PlaceReview) domain.Review {
	rv := domain.Review{
		StoreID:        st.ID,
		Source:         domain.SourceGoogle,
		SourceReviewID: SourceReviewID(st.ID, r.PublishTime, r.AuthorName),
		Rating:         r.Rating,
		Text:           ptrStr(r.Text),
		AuthorName:     ptrStr(r.AuthorName),
		CreatedAt:      time.Unix(r.PublishTime, 0).UTC(),
		RawPayload:     r.Raw,
	}
	// prefer the single-review link, else the store's page
	switch {
	case r.DeepLink != nil && *r.DeepLink != "":
		rv.ReviewURL = ptrStr(*r.DeepLink)
	case st.GoogleMapsURL != nil:
		rv.ReviewURL = ptrStr(*st.GoogleMapsURL)
	}
	return rv
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
