package places

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/rs/zerolog/log"

	"store_reviews/internal/domain"
)

// Legacy is the legacy-generation adapter: place details sorted newest first,
// no per-review links, plus free-text place lookup.
type Legacy struct{ c *Client }

var (
	_ domain.ReviewAdapter = (*Legacy)(nil)
	_ domain.PlaceFinder   = (*Legacy)(nil)
)

type legacyDetailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		Name             string            `json:"name"`
		Rating           float64           `json:"rating"`
		UserRatingsTotal int               `json:"user_ratings_total"`
		Reviews          []json.RawMessage `json:"reviews"`
	} `json:"result"`
}

type legacyReview struct {
	AuthorName              string `json:"author_name"`
	Rating                  int    `json:"rating"`
	RelativeTimeDescription string `json:"relative_time_description"`
	Text                    string `json:"text"`
	Time                    int64  `json:"time"`
}

type findPlaceResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Candidates   []struct {
		PlaceID string `json:"place_id"`
		Name    string `json:"name"`
	} `json:"candidates"`
}

// PlaceReviews never fails on an upstream status; only transport errors surface.
func (a *Legacy) PlaceReviews(ctx context.Context, placeID string) ([]domain.PlaceReview, error) {
	if placeID == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "name,rating,reviews,user_ratings_total")
	q.Set("language", a.c.lang)
	q.Set("reviews_sort", "newest")
	q.Set("key", a.c.key)

	var resp legacyDetailsResponse
	if err := a.c.get(ctx, "places_legacy", a.c.mapsBase+"/place/details/json?"+q.Encode(), nil, &resp); err != nil {
		if a.rejected(err, placeID) {
			return nil, nil
		}
		return nil, err
	}
	if resp.Status != "OK" {
		log.Warn().Str("place_id", placeID).Str("status", resp.Status).Str("error_message", resp.ErrorMessage).
			Msg("places legacy details not OK")
		return nil, nil
	}

	out := make([]domain.PlaceReview, 0, min(len(resp.Result.Reviews), maxReviews))
	for _, item := range resp.Result.Reviews {
		if len(out) == maxReviews {
			break
		}
		var r legacyReview
		if err := json.Unmarshal(item, &r); err != nil {
			log.Warn().Err(err).Str("place_id", placeID).Msg("skip undecodable legacy review")
			continue
		}
		if !domain.ValidRating(r.Rating) {
			log.Warn().Str("place_id", placeID).Int("rating", r.Rating).Msg("skip legacy review with rating out of range")
			continue
		}
		out = append(out, domain.PlaceReview{
			AuthorName:  r.AuthorName,
			Rating:      r.Rating,
			Text:        r.Text,
			PublishTime: r.Time,
			Raw:         append([]byte(nil), item...),
		})
	}
	log.Debug().Str("place_id", placeID).Int("reviews", len(out)).Msg("places legacy details")
	return out, nil
}

// FindPlaceID resolves free text to the first candidate's place id, "" when nothing matches.
func (a *Legacy) FindPlaceID(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "", nil
	}
	q := url.Values{}
	q.Set("input", query)
	q.Set("inputtype", "textquery")
	q.Set("fields", "place_id,name")
	q.Set("language", a.c.lang)
	q.Set("key", a.c.key)

	var resp findPlaceResponse
	if err := a.c.get(ctx, "places_search", a.c.mapsBase+"/place/findplacefromtext/json?"+q.Encode(), nil, &resp); err != nil {
		if a.rejected(err, query) {
			return "", nil
		}
		return "", err
	}
	if resp.Status != "OK" || len(resp.Candidates) == 0 {
		if resp.Status != "ZERO_RESULTS" && resp.Status != "OK" {
			log.Warn().Str("query", query).Str("status", resp.Status).Str("error_message", resp.ErrorMessage).
				Msg("places text search not OK")
		}
		return "", nil
	}
	return resp.Candidates[0].PlaceID, nil
}

// rejected reports whether err is an upstream refusal (404 or other non-retryable status)
// and logs it; transport failures are left to the caller.
func (a *Legacy) rejected(err error, subject string) bool {
	var se *StatusError
	switch {
	case errors.Is(err, ErrNotFound):
		log.Warn().Str("subject", subject).Int("status", 404).Msg("places legacy request not found")
		return true
	case errors.As(err, &se):
		log.Warn().Str("subject", subject).Int("status", se.Code).Str("error_message", se.Body).
			Msg("places legacy request rejected")
		return true
	}
	return false
}
