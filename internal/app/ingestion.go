package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"store_reviews/internal/adapters/observability"
	"store_reviews/internal/domain"
)

// StoreFetcher yields the merged upstream reviews for one store.
type StoreFetcher interface {
	StoreReviews(ctx context.Context, st domain.Store) ([]domain.PlaceReview, error)
}

type IngestionService struct {
	fetcher StoreFetcher
	repo    domain.ReviewRepository
	cache   domain.Cache
	workers int
}

// NewIngestionService wires the orchestrator. A nil fetcher means the upstream
// credential is missing and every run fails fast. workers <= 1 processes stores
// one after another.
func NewIngestionService(f StoreFetcher, r domain.ReviewRepository, cache domain.Cache, workers int) *IngestionService {
	if workers < 1 {
		workers = 1
	}
	return &IngestionService{fetcher: f, repo: r, cache: cache, workers: workers}
}

// Run ingests every configured store. One store's failure never aborts the batch;
// the returned error is reserved for problems that stop the run as a whole.
func (s *IngestionService) Run(ctx context.Context) (domain.IngestionResult, error) {
	if s.fetcher == nil {
		return domain.IngestionResult{}, domain.ErrPlacesNotConfigured
	}
	stores, err := s.ensureStores(ctx)
	if err != nil {
		return domain.IngestionResult{}, fmt.Errorf("load stores: %w", err)
	}

	results := make([]domain.StoreFetchResult, len(stores))
	if s.workers == 1 {
		for i, st := range stores {
			if err := ctx.Err(); err != nil {
				return s.finish(ctx, results[:i]), err
			}
			results[i] = s.IngestStore(ctx, st)
		}
	} else {
		sem := semaphore.NewWeighted(int64(s.workers))
		var wg sync.WaitGroup
		done := 0
		for i, st := range stores {
			// acquire before launching the goroutine; release inside it
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return s.finish(ctx, results[:done]), err
			}
			done = i + 1
			wg.Add(1)
			go func(i int, st domain.Store) {
				defer wg.Done()
				defer sem.Release(1)
				results[i] = s.IngestStore(ctx, st)
			}(i, st)
		}
		wg.Wait()
	}
	return s.finish(ctx, results), nil
}

func (s *IngestionService) finish(ctx context.Context, results []domain.StoreFetchResult) domain.IngestionResult {
	inserted := 0
	for _, r := range results {
		if r.NewReviews != nil {
			inserted += *r.NewReviews
		}
	}
	if inserted > 0 && s.cache != nil {
		bumpGeneration(context.WithoutCancel(ctx), s.cache)
	}
	log.Info().Int("stores", len(results)).Int("new_reviews", inserted).Msg("ingestion completed")
	return domain.IngestionResult{Message: "Review fetching completed", Results: results}
}

// IngestStore runs fetch-then-persist for one store and records the attempt in a fetch log.
func (s *IngestionService) IngestStore(ctx context.Context, st domain.Store) domain.StoreFetchResult {
	res := domain.StoreFetchResult{StoreID: st.ID, StoreName: st.Name}
	// the log row must reach a terminal state even if ctx is cancelled mid-fetch
	logCtx := context.WithoutCancel(ctx)

	logID, err := s.repo.CreateFetchLog(logCtx, st.ID)
	if err != nil {
		return s.failed(res, "", fmt.Errorf("create fetch log: %w", err))
	}

	start := time.Now()
	reviews, err := s.fetcher.StoreReviews(ctx, st)
	inserted := 0
	if err == nil {
		inserted, err = s.persist(ctx, st, reviews)
	}
	if err != nil {
		if uerr := s.repo.CompleteFetchLog(logCtx, logID, domain.FetchError, err.Error(), inserted); uerr != nil {
			log.Error().Err(uerr).Str("fetch_log", logID).Msg("complete fetch log failed")
		}
		return s.failed(res, logID, err)
	}

	msg := fmt.Sprintf("Successfully fetched %d reviews, %d new", len(reviews), inserted)
	if err := s.repo.CompleteFetchLog(logCtx, logID, domain.FetchSuccess, msg, inserted); err != nil {
		log.Error().Err(err).Str("fetch_log", logID).Msg("complete fetch log failed")
	}

	total := len(reviews)
	res.Status = "success"
	res.TotalReviews = &total
	res.NewReviews = &inserted
	observability.ObserveIngest(res.Status, inserted)
	log.Info().
		Str("store_id", st.ID).
		Str("store", st.Name).
		Int("fetched", total).
		Int("new", inserted).
		Dur("took", time.Since(start)).
		Msg("store ingested")
	return res
}

func (s *IngestionService) failed(res domain.StoreFetchResult, logID string, err error) domain.StoreFetchResult {
	res.Status = "error"
	res.Error = err.Error()
	observability.ObserveIngest(res.Status, 0)
	log.Warn().
		Err(err).
		Str("store_id", res.StoreID).
		Str("store", res.StoreName).
		Str("fetch_log", logID).
		Str("err_type", observability.LabelErr(err)).
		Msg("store ingest failed")
	return res
}

// persist inserts reviews whose idempotency key is not stored yet and
// returns how many were new.
func (s *IngestionService) persist(ctx context.Context, st domain.Store, reviews []domain.PlaceReview) (int, error) {
	inserted := 0
	for _, r := range reviews {
		if !domain.ValidRating(r.Rating) {
			log.Warn().Str("store_id", st.ID).Int("rating", r.Rating).Msg("skip review with rating out of range")
			continue
		}
		sid := SourceReviewID(st.ID, r.PublishTime, r.AuthorName)
		exists, err := s.repo.ReviewExists(ctx, st.ID, sid)
		if err != nil {
			return inserted, fmt.Errorf("check review %q: %w", sid, err)
		}
		if exists {
			continue
		}
		ok, err := s.repo.InsertReview(ctx, mapReview(st, r))
		if err != nil {
			return inserted, fmt.Errorf("insert review %q: %w", sid, err)
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}
