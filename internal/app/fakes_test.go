package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"store_reviews/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	mu       sync.Mutex
	stores   []domain.Store
	reviews  []domain.Review
	logs     map[string]*domain.FetchLog
	logOrder []string
	nextID   int64

	pointQueries int
}

func newFakeRepo(stores ...domain.Store) *fakeRepo {
	return &fakeRepo{stores: stores, logs: map[string]*domain.FetchLog{}}
}

func (f *fakeRepo) CountStores(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stores), nil
}

func (f *fakeRepo) ListStores(ctx context.Context, brand domain.Brand) ([]domain.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Store
	for _, s := range f.stores {
		if brand == "" || s.Brand == brand {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeRepo) GetStore(ctx context.Context, id string) (domain.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.stores {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.Store{}, domain.ErrNotFound
}

func (f *fakeRepo) CreateStore(ctx context.Context, s domain.Store) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stores = append(f.stores, s)
	return nil
}

func (f *fakeRepo) RenameStore(ctx context.Context, from, to string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.stores {
		if f.stores[i].Name == from {
			f.stores[i].Name = to
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CreateFetchLog(ctx context.Context, storeID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("log-%d", len(f.logOrder)+1)
	f.logs[id] = &domain.FetchLog{ID: id, StoreID: storeID, Status: domain.FetchRunning, StartedAt: time.Now()}
	f.logOrder = append(f.logOrder, id)
	return id, nil
}

func (f *fakeRepo) CompleteFetchLog(ctx context.Context, id string, status domain.FetchStatus, message string, reviewCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.logs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if l.Status != domain.FetchRunning {
		return fmt.Errorf("fetch log %s already %s", id, l.Status)
	}
	now := time.Now()
	l.Status, l.Message, l.ReviewCount, l.CompletedAt = status, message, reviewCount, &now
	return nil
}

func (f *fakeRepo) ReviewExists(ctx context.Context, storeID, sourceReviewID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reviews {
		if r.StoreID == storeID && r.SourceReviewID == sourceReviewID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) InsertReview(ctx context.Context, r domain.Review) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.reviews {
		if x.StoreID == r.StoreID && x.SourceReviewID == r.SourceReviewID {
			return false, nil
		}
	}
	f.nextID++
	r.ID = f.nextID
	f.reviews = append(f.reviews, r)
	return true, nil
}

func (f *fakeRepo) matching(flt domain.ReviewFilter) []domain.Review {
	var ids map[string]bool
	if flt.StoreIDs != nil {
		ids = map[string]bool{}
		for _, id := range flt.StoreIDs {
			ids[id] = true
		}
	}
	var out []domain.Review
	for _, r := range f.reviews {
		if ids != nil && !ids[r.StoreID] {
			continue
		}
		if flt.Rating != nil && r.Rating != *flt.Rating {
			continue
		}
		if flt.From != nil && r.CreatedAt.Before(*flt.From) {
			continue
		}
		if flt.To != nil && r.CreatedAt.After(*flt.To) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (f *fakeRepo) ListReviewPoints(ctx context.Context, flt domain.ReviewFilter) ([]domain.ReviewPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pointQueries++
	rs := f.matching(flt)
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].CreatedAt.Before(rs[j].CreatedAt) })
	out := make([]domain.ReviewPoint, 0, len(rs))
	for _, r := range rs {
		out = append(out, domain.ReviewPoint{StoreID: r.StoreID, Rating: r.Rating, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (f *fakeRepo) ListReviews(ctx context.Context, flt domain.ReviewFilter, pg domain.PageQuery) ([]domain.Review, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rs := f.matching(flt)
	sort.SliceStable(rs, func(i, j int) bool {
		switch pg.Sort {
		case domain.SortOldest:
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		case domain.SortRatingHigh:
			return rs[i].Rating > rs[j].Rating
		case domain.SortRatingLow:
			return rs[i].Rating < rs[j].Rating
		}
		return rs[i].CreatedAt.After(rs[j].CreatedAt)
	})
	total := len(rs)
	lo := (pg.Page - 1) * pg.Limit
	if lo > total {
		lo = total
	}
	hi := min(lo+pg.Limit, total)
	return rs[lo:hi], total, nil
}

func (f *fakeRepo) log(i int) domain.FetchLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.logs[f.logOrder[i]]
}

// fakeCache round-trips through JSON like the redis adapter does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// fakeAdapter serves canned reviews per place id.
type fakeAdapter struct {
	mu      sync.Mutex
	byPlace map[string][]domain.PlaceReview
	err     error
	calls   []string
}

func (a *fakeAdapter) PlaceReviews(ctx context.Context, placeID string) ([]domain.PlaceReview, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, placeID)
	if a.err != nil {
		return nil, a.err
	}
	return a.byPlace[placeID], nil
}

type fakeFinder struct {
	ids     map[string]string
	queries []string
}

func (f *fakeFinder) FindPlaceID(ctx context.Context, q string) (string, error) {
	f.queries = append(f.queries, q)
	return f.ids[q], nil
}

type fakeLinks struct {
	uri string
	err error
}

func (l *fakeLinks) ReviewsTabURL(ctx context.Context, placeID string) (string, error) {
	return l.uri, l.err
}

func ptr[T any](v T) *T { return &v }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
