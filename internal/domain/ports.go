package domain

import "context"

type ReviewRepository interface {
	// Stores
	CountStores(ctx context.Context) (int, error)
	ListStores(ctx context.Context, brand Brand) ([]Store, error)
	GetStore(ctx context.Context, id string) (Store, error)
	CreateStore(ctx context.Context, s Store) error
	RenameStore(ctx context.Context, from, to string) (int64, error)

	// Fetch logs
	CreateFetchLog(ctx context.Context, storeID string) (string, error)
	CompleteFetchLog(ctx context.Context, id string, status FetchStatus, message string, reviewCount int) error

	// Reviews
	ReviewExists(ctx context.Context, storeID, sourceReviewID string) (bool, error)
	InsertReview(ctx context.Context, r Review) (bool, error)
	ListReviewPoints(ctx context.Context, f ReviewFilter) ([]ReviewPoint, error)
	ListReviews(ctx context.Context, f ReviewFilter, pg PageQuery) ([]Review, int, error)
}

// ReviewAdapter fetches at most a handful of recent reviews for one place.
// An unknown place or an empty review list is not an error.
type ReviewAdapter interface {
	PlaceReviews(ctx context.Context, placeID string) ([]PlaceReview, error)
}

type PlaceFinder interface {
	FindPlaceID(ctx context.Context, query string) (string, error)
}

type LinkProvider interface {
	ReviewsTabURL(ctx context.Context, placeID string) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
