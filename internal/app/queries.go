package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"store_reviews/internal/domain"
)

const generationKey = "reviews:gen"

type QueryService struct {
	repo     domain.ReviewRepository
	cache    domain.Cache
	cacheTTL time.Duration
	loc      *time.Location
}

// NewQueryService serves dashboard reads; cache may be nil. loc fixes the
// calendar used for date filters and bucketing.
func NewQueryService(r domain.ReviewRepository, c domain.Cache, ttl time.Duration, loc *time.Location) *QueryService {
	if loc == nil {
		loc = time.UTC
	}
	return &QueryService{repo: r, cache: c, cacheTTL: ttl, loc: loc}
}

func (s *QueryService) ListStores(ctx context.Context) ([]domain.StoreRef, error) {
	stores, err := s.repo.ListStores(ctx, "")
	if err != nil {
		return nil, err
	}
	return storeRefs(stores), nil
}

// Dashboard filters the persisted reviews and aggregates them at granularity g.
func (s *QueryService) Dashboard(ctx context.Context, q domain.ReviewQuery, g domain.Granularity) (domain.Dashboard, error) {
	if err := checkPeriodRange(q.StartDate, q.EndDate, g); err != nil {
		return domain.Dashboard{}, err
	}
	key := s.cacheKey(ctx, "dashboard", struct {
		Q domain.ReviewQuery
		G domain.Granularity
	}{q, g})
	var out domain.Dashboard
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	all, err := s.repo.ListStores(ctx, "")
	if err != nil {
		return domain.Dashboard{}, err
	}
	scope := scopeStores(all, q)

	var points []domain.ReviewPoint
	if len(scope) > 0 {
		if points, err = s.repo.ListReviewPoints(ctx, s.filter(q, scope)); err != nil {
			return domain.Dashboard{}, err
		}
	}
	from, to := periodBounds(q.StartDate, q.EndDate, points, s.loc)
	if err := checkPeriodRange(from, to, g); err != nil {
		return domain.Dashboard{}, err
	}

	out = Aggregate(AggregateInput{
		Points:      points,
		Scope:       scope,
		AllStores:   all,
		Granularity: g,
		StartDate:   q.StartDate,
		EndDate:     q.EndDate,
		Location:    s.loc,
	})
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

// ListReviews returns one page of reviews with their store names.
func (s *QueryService) ListReviews(ctx context.Context, q domain.ReviewQuery, pg domain.PageQuery) (domain.ReviewsPage, error) {
	if pg.Page < 1 {
		pg.Page = 1
	}
	if pg.Limit < 1 {
		pg.Limit = 50
	}
	key := s.cacheKey(ctx, "reviews", struct {
		Q  domain.ReviewQuery
		PG domain.PageQuery
	}{q, pg})
	var out domain.ReviewsPage
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	all, err := s.repo.ListStores(ctx, "")
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	scope := scopeStores(all, q)

	out = domain.ReviewsPage{Items: []domain.Review{}, Pagination: domain.Pagination{Page: pg.Page, Limit: pg.Limit}}
	if len(scope) > 0 {
		items, total, err := s.repo.ListReviews(ctx, s.filter(q, scope), pg)
		if err != nil {
			return domain.ReviewsPage{}, err
		}
		if items != nil {
			out.Items = items
		}
		out.Pagination.TotalCount = total
		out.Pagination.TotalPages = (total + pg.Limit - 1) / pg.Limit
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

func (s *QueryService) filter(q domain.ReviewQuery, scope []domain.Store) domain.ReviewFilter {
	ids := make([]string, 0, len(scope))
	for _, st := range scope {
		ids = append(ids, st.ID)
	}
	from, to := dayBounds(q.StartDate, q.EndDate, s.loc)
	f := domain.ReviewFilter{StoreIDs: ids, From: from, To: to}
	if q.Rating != nil && *q.Rating >= 1 && *q.Rating <= 5 {
		f.Rating = q.Rating
	}
	return f
}

// scopeStores narrows all (kept in its order) to explicit store ids, or to a brand
// when no ids were given. The id "all" disables the id filter.
func scopeStores(all []domain.Store, q domain.ReviewQuery) []domain.Store {
	ids := map[string]struct{}{}
	for _, id := range q.StoreIDs {
		if id == "all" {
			ids = map[string]struct{}{}
			break
		}
		if id != "" {
			ids[id] = struct{}{}
		}
	}

	out := make([]domain.Store, 0, len(all))
	for _, st := range all {
		switch {
		case len(ids) > 0:
			if _, ok := ids[st.ID]; !ok {
				continue
			}
		case q.Brand != "":
			if st.Brand != q.Brand {
				continue
			}
		}
		out = append(out, st)
	}
	return out
}

// checkPeriodRange rejects ranges whose period table would exceed MaxPeriodKeys.
// A range with an open side passes.
func checkPeriodRange(start, end *time.Time, g domain.Granularity) error {
	if start == nil || end == nil {
		return nil
	}
	if n := PeriodCount(*start, *end, g); n > MaxPeriodKeys {
		return fmt.Errorf("%w: range spans %d periods, at most %d allowed", domain.ErrInvalidDate, n, MaxPeriodKeys)
	}
	return nil
}

// cacheKey folds the data generation into the key so new reviews invalidate every view at once.
func (s *QueryService) cacheKey(ctx context.Context, kind string, v any) string {
	var gen int64
	if s.cache != nil {
		_, _ = s.cache.Get(ctx, generationKey, &gen)
	}
	b, _ := json.Marshal(v)
	sum := sha1.Sum(b)
	return fmt.Sprintf("%s:%d:%s:%s", kind, gen, s.loc.String(), hex.EncodeToString(sum[:]))
}

func bumpGeneration(ctx context.Context, c domain.Cache) {
	_ = c.Set(ctx, generationKey, time.Now().UnixNano(), 0)
}
