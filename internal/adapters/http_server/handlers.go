package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"store_reviews/internal/domain"
)

type Queries interface {
	ListStores(ctx context.Context) ([]domain.StoreRef, error)
	Dashboard(ctx context.Context, q domain.ReviewQuery, g domain.Granularity) (domain.Dashboard, error)
	ListReviews(ctx context.Context, q domain.ReviewQuery, pg domain.PageQuery) (domain.ReviewsPage, error)
}

type Ingestor interface {
	Run(ctx context.Context) (domain.IngestionResult, error)
}

type URLResolver interface {
	ResolveReviewURL(ctx context.Context, storeID, authorName string, createdAt *time.Time) *string
	ResolvePlaceReviewsURL(ctx context.Context, storeID string) *string
}

type Handlers struct {
	Q          Queries
	Ing        Ingestor
	Res        URLResolver
	CronSecret string
}

type problem struct {
	Type    string                    `json:"type"`
	Title   string                    `json:"title"`
	Status  int                       `json:"status"`
	Detail  string                    `json:"detail,omitempty"`
	Results []domain.StoreFetchResult `json:"results,omitempty"` // stores finished before an aborted ingestion run
}

type urlResponse struct {
	URL *string `json:"url"`
}

const maxPageLimit = 200

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(readTimeout))
		r.Get("/v1/stores", h.listStores)
		r.Get("/v1/dashboard", h.dashboard)
		r.Get("/v1/reviews", h.listReviews)
		r.Get("/v1/review-url", h.reviewURL)
		r.Get("/v1/place-reviews-url", h.placeReviewsURL)
	})

	// a full run walks every store sequentially, well past the read timeout
	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(ingestTimeout))
		r.Post("/v1/fetch-reviews", h.fetchReviews)
		r.With(BearerSecret(h.CronSecret)).Get("/v1/cron/fetch-reviews", h.fetchReviews)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain sentinels onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	writeProblemBody(w, problemFor(err))
}

func problemFor(err error) problem {
	p := problem{Type: "about:blank"}
	switch {
	case errors.Is(err, domain.ErrInvalidGranularity), errors.Is(err, domain.ErrInvalidDate):
		p.Status, p.Title, p.Detail = http.StatusBadRequest, "Bad Request", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		p.Status, p.Title, p.Detail = http.StatusNotFound, "Not Found", err.Error()
	case errors.Is(err, domain.ErrPlacesNotConfigured):
		p.Status, p.Title, p.Detail = http.StatusInternalServerError, "Internal Server Error", err.Error()
	default:
		log.Error().Err(err).Msg("request failed")
		p.Status, p.Title = http.StatusInternalServerError, "Internal Server Error"
	}
	return p
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached writes v as JSON with a weak ETag and answers 304 on a match.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// ---- query parsing ----

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp; only the calendar date is used.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidDate, s)
	}
	return &t, nil
}

func parseReviewQuery(r *http.Request) (domain.ReviewQuery, error) {
	v := r.URL.Query()
	var q domain.ReviewQuery

	for _, raw := range v["storeIds"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				q.StoreIDs = append(q.StoreIDs, id)
			}
		}
	}
	if b := strings.ToUpper(strings.TrimSpace(v.Get("brand"))); b != "" && b != "ALL" {
		q.Brand = domain.Brand(b)
		if !q.Brand.Valid() {
			return q, badRequest("brand must be AMEMOBA or SAKUMOBA")
		}
	}
	if rs := v.Get("rating"); rs != "" && rs != "all" {
		n, err := strconv.Atoi(rs)
		if err != nil || n < 1 || n > 5 {
			return q, badRequest("rating must be an integer between 1 and 5")
		}
		q.Rating = &n
	}

	var err error
	if q.StartDate, err = parseDate(v.Get("startDate")); err != nil {
		return q, err
	}
	if q.EndDate, err = parseDate(v.Get("endDate")); err != nil {
		return q, err
	}
	return q, nil
}

type badRequestError string

func (e badRequestError) Error() string { return string(e) }

func badRequest(msg string) error { return badRequestError(msg) }

func writeQueryError(w http.ResponseWriter, err error) {
	var br badRequestError
	if errors.As(err, &br) {
		writeProblem(w, http.StatusBadRequest, "Bad Request", br.Error())
		return
	}
	writeError(w, err)
}

// ---- handlers ----

func (h *Handlers) listStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.Q.ListStores(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, map[string]any{"stores": stores})
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	q, err := parseReviewQuery(r)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	g, err := domain.ParseGranularity(r.URL.Query().Get("granularity"))
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Q.Dashboard(r.Context(), q, g)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	q, err := parseReviewQuery(r)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	v := r.URL.Query()
	pg := domain.PageQuery{Page: 1, Limit: 50, Sort: domain.ParseReviewSort(v.Get("sortBy"))}
	if ps := v.Get("page"); ps != "" {
		p, err := strconv.Atoi(ps)
		if err != nil || p < 1 {
			writeProblem(w, http.StatusBadRequest, "Invalid page", "page must be a positive integer")
			return
		}
		pg.Page = p
	}
	if ls := v.Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > maxPageLimit {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		pg.Limit = l
	}

	out, err := h.Q.ListReviews(r.Context(), q, pg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) reviewURL(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	storeID := strings.TrimSpace(v.Get("storeId"))
	if storeID == "" {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "storeId is required")
		return
	}
	var createdAt *time.Time
	if cs := v.Get("createdAt"); cs != "" {
		t, err := time.Parse(time.RFC3339, cs)
		if err != nil {
			writeError(w, fmt.Errorf("%w: createdAt %q", domain.ErrInvalidDate, cs))
			return
		}
		createdAt = &t
	}
	u := h.Res.ResolveReviewURL(r.Context(), storeID, v.Get("authorName"), createdAt)
	writeJSON(w, http.StatusOK, urlResponse{URL: u})
}

func (h *Handlers) placeReviewsURL(w http.ResponseWriter, r *http.Request) {
	storeID := strings.TrimSpace(r.URL.Query().Get("storeId"))
	if storeID == "" {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "storeId is required")
		return
	}
	writeJSON(w, http.StatusOK, urlResponse{URL: h.Res.ResolvePlaceReviewsURL(r.Context(), storeID)})
}

func (h *Handlers) fetchReviews(w http.ResponseWriter, r *http.Request) {
	res, err := h.Ing.Run(r.Context())
	if err != nil {
		log.Error().Err(err).Int("completed_stores", len(res.Results)).Msg("ingestion run failed")
		p := problemFor(err)
		p.Results = res.Results
		writeProblemBody(w, p)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
