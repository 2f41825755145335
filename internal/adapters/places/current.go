package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"store_reviews/internal/domain"
)

// Current is the current-generation adapter. Its reviews may carry a deep link
// (googleMapsUri) to the single review.
type Current struct{ c *Client }

var (
	_ domain.ReviewAdapter = (*Current)(nil)
	_ domain.LinkProvider  = (*Current)(nil)
)

type v1Place struct {
	ID              string            `json:"id"`
	Reviews         []json.RawMessage `json:"reviews"`
	GoogleMapsLinks *struct {
		ReviewsURI string `json:"reviewsUri"`
		PlaceURI   string `json:"placeUri"`
	} `json:"googleMapsLinks"`
}

type v1Review struct {
	Name                           string   `json:"name"`
	RelativePublishTimeDescription string   `json:"relativePublishTimeDescription"`
	Text                           v1Text   `json:"text"`
	Rating                         *float64 `json:"rating"`
	AuthorAttribution              *struct {
		DisplayName string `json:"displayName"`
		URI         string `json:"uri"`
	} `json:"authorAttribution"`
	PublishTime   string `json:"publishTime"`
	GoogleMapsURI string `json:"googleMapsUri"`
}

// v1Text is either a bare string or {"text": "...", "languageCode": "ja"}.
type v1Text struct {
	plain     *string
	localized *struct {
		Text         string `json:"text"`
		LanguageCode string `json:"languageCode"`
	}
}

func (t *v1Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		t.plain = &s
		return nil
	case b[0] == '{':
		t.localized = &struct {
			Text         string `json:"text"`
			LanguageCode string `json:"languageCode"`
		}{}
		return json.Unmarshal(b, t.localized)
	}
	// numbers, arrays: ignore rather than fail the whole place
	return nil
}

func (t v1Text) String() string {
	switch {
	case t.plain != nil:
		return *t.plain
	case t.localized != nil:
		return t.localized.Text
	}
	return ""
}

func (a *Current) placeURL(placeID string) string {
	return fmt.Sprintf("%s/places/%s?languageCode=%s", a.c.placesBase, url.PathEscape(placeID), url.QueryEscape(a.c.lang))
}

func (a *Current) fetch(ctx context.Context, endpoint, placeID, fieldMask string) (*v1Place, error) {
	hdr := http.Header{}
	hdr.Set("X-Goog-Api-Key", a.c.key)
	hdr.Set("X-Goog-FieldMask", fieldMask)

	var p v1Place
	if err := a.c.get(ctx, endpoint, a.placeURL(placeID), hdr, &p); err != nil {
		var se *StatusError
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, nil
		case errors.As(err, &se):
			log.Warn().Str("place_id", placeID).Int("status", se.Code).Str("body", se.Body).
				Msg("places v1 request rejected")
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// PlaceReviews returns up to five reviews. A missing place yields an empty slice.
func (a *Current) PlaceReviews(ctx context.Context, placeID string) ([]domain.PlaceReview, error) {
	if placeID == "" {
		return nil, nil
	}
	p, err := a.fetch(ctx, "places_v1", placeID, "id,reviews")
	if err != nil || p == nil {
		return nil, err
	}
	return normalizeV1(placeID, p.Reviews), nil
}

// ReviewsTabURL returns the place's generic reviews-tab link, or "" when unknown.
func (a *Current) ReviewsTabURL(ctx context.Context, placeID string) (string, error) {
	if placeID == "" {
		return "", nil
	}
	p, err := a.fetch(ctx, "places_links", placeID, "googleMapsLinks")
	if err != nil || p == nil || p.GoogleMapsLinks == nil {
		return "", err
	}
	return p.GoogleMapsLinks.ReviewsURI, nil
}

func normalizeV1(placeID string, raw []json.RawMessage) []domain.PlaceReview {
	out := make([]domain.PlaceReview, 0, min(len(raw), maxReviews))
	for _, item := range raw {
		if len(out) == maxReviews {
			break
		}
		var r v1Review
		if err := json.Unmarshal(item, &r); err != nil {
			log.Warn().Err(err).Str("place_id", placeID).Msg("skip undecodable v1 review")
			continue
		}
		pr := domain.PlaceReview{
			Text:        r.Text.String(),
			PublishTime: parsePublishTime(r.PublishTime),
			Raw:         append([]byte(nil), item...),
		}
		if r.AuthorAttribution != nil {
			pr.AuthorName = r.AuthorAttribution.DisplayName
		}
		if r.Rating == nil {
			log.Warn().Str("place_id", placeID).Msg("skip v1 review without rating")
			continue
		}
		pr.Rating = int(math.Round(*r.Rating))
		if !domain.ValidRating(pr.Rating) {
			log.Warn().Str("place_id", placeID).Float64("rating", *r.Rating).Msg("skip v1 review with rating out of range")
			continue
		}
		if r.GoogleMapsURI != "" {
			link := r.GoogleMapsURI
			pr.DeepLink = &link
		}
		out = append(out, pr)
	}
	return out
}

// parsePublishTime converts an RFC 3339 timestamp to unix seconds; 0 when absent or malformed.
func parsePublishTime(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}
