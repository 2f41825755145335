package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store_reviews/internal/app"
	"store_reviews/internal/domain"
)

func seededRepo() *fakeRepo {
	repo := newFakeRepo(storeX, storeY, storeZ)
	repo.reviews = []domain.Review{
		{ID: 1, StoreID: "x", SourceReviewID: "x_1_a", Rating: 5, CreatedAt: at("2024-02-01T10:00:00Z")},
		{ID: 2, StoreID: "x", SourceReviewID: "x_2_b", Rating: 4, CreatedAt: at("2024-02-03T23:30:00Z")},
		{ID: 3, StoreID: "z", SourceReviewID: "z_3_c", Rating: 1, CreatedAt: at("2024-02-02T08:00:00Z")},
	}
	repo.nextID = 3
	return repo
}

func TestDashboard_SingleStoreDaily(t *testing.T) {
	svc := app.NewQueryService(seededRepo(), nil, time.Minute, time.UTC)
	start, end := day("2024-02-01"), day("2024-02-03")

	out, err := svc.Dashboard(context.Background(), domain.ReviewQuery{
		StoreIDs: []string{"x"}, StartDate: &start, EndDate: &end,
	}, domain.GranularityDay)
	require.NoError(t, err)

	assert.Equal(t, domain.Summary{TotalReviews: 2, AverageRating: 4.5}, out.Summary)
	assert.Equal(t, []domain.TimeSeriesPoint{
		{Date: "2024-02-01", ReviewCount: 1, AverageRating: 5},
		{Date: "2024-02-03", ReviewCount: 1, AverageRating: 4},
	}, out.TimeSeriesData)

	require.Len(t, out.StoreComparison, 1)
	assert.Equal(t, map[int]int{1: 0, 2: 0, 3: 0, 4: 1, 5: 1}, out.StoreComparison[0].RatingCounts)
	assert.Equal(t, []string{"2024-02-01", "2024-02-02", "2024-02-03"}, out.StoreByPeriod.PeriodKeys)
	require.Len(t, out.StoreByPeriod.Rows, 1)
	assert.Equal(t, map[string]int{"2024-02-01": 1, "2024-02-02": 0, "2024-02-03": 1}, out.StoreByPeriod.Rows[0].Counts)
	assert.Len(t, out.Stores, 3, "filter options list every store")
}

func TestDashboard_EndDateIsInclusive(t *testing.T) {
	svc := app.NewQueryService(seededRepo(), nil, time.Minute, time.UTC)
	end := day("2024-02-03")

	out, err := svc.Dashboard(context.Background(), domain.ReviewQuery{StoreIDs: []string{"x"}, EndDate: &end}, domain.GranularityDay)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Summary.TotalReviews, "23:30 on the end date is inside")

	end = day("2024-02-02")
	out, err = svc.Dashboard(context.Background(), domain.ReviewQuery{StoreIDs: []string{"x"}, EndDate: &end}, domain.GranularityDay)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Summary.TotalReviews)
}

func TestDashboard_RejectsOversizedRange(t *testing.T) {
	repo := seededRepo()
	svc := app.NewQueryService(repo, nil, time.Minute, time.UTC)
	start, end := day("0001-01-01"), day("9999-12-31")

	_, err := svc.Dashboard(context.Background(), domain.ReviewQuery{StartDate: &start, EndDate: &end}, domain.GranularityDay)
	require.ErrorIs(t, err, domain.ErrInvalidDate)
	assert.Zero(t, repo.pointQueries, "rejected before touching storage")

	out, err := svc.Dashboard(context.Background(), domain.ReviewQuery{StartDate: &start, EndDate: &end}, domain.GranularityMonth)
	require.ErrorIs(t, err, domain.ErrInvalidDate)
	assert.Empty(t, out.StoreByPeriod.PeriodKeys)

	// open end: closed by the newest review, 2024-02-03
	_, err = svc.Dashboard(context.Background(), domain.ReviewQuery{StartDate: &start}, domain.GranularityDay)
	require.ErrorIs(t, err, domain.ErrInvalidDate)

	start, end = day("2015-01-01"), day("2024-12-31")
	out, err = svc.Dashboard(context.Background(), domain.ReviewQuery{StartDate: &start, EndDate: &end}, domain.GranularityDay)
	require.NoError(t, err, "ten years of days fits")
	assert.Len(t, out.StoreByPeriod.PeriodKeys, 3653)
}

func TestDashboard_ScopeAndRating(t *testing.T) {
	svc := app.NewQueryService(seededRepo(), nil, time.Minute, time.UTC)
	ctx := context.Background()

	out, err := svc.Dashboard(ctx, domain.ReviewQuery{Brand: domain.BrandSakumoba}, domain.GranularityMonth)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Summary.TotalReviews)
	require.Len(t, out.StoreComparison, 1)
	assert.Equal(t, "z", out.StoreComparison[0].StoreID)
	assert.Equal(t, []string{"2024-02-01"}, out.StoreByPeriod.PeriodKeys)

	out, err = svc.Dashboard(ctx, domain.ReviewQuery{StoreIDs: []string{"all"}, Rating: ptr(5)}, domain.GranularityDay)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Summary.TotalReviews)
	assert.Len(t, out.StoreComparison, 3)
	assert.Equal(t, "x", out.StoreComparison[0].StoreID, "ordered by total desc")

	out, err = svc.Dashboard(ctx, domain.ReviewQuery{StoreIDs: []string{"nope"}}, domain.GranularityDay)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Summary.TotalReviews)
	assert.Empty(t, out.TimeSeriesData)
	assert.Empty(t, out.StoreComparison)
}

func TestDashboard_WeeklyInTokyo(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	svc := app.NewQueryService(seededRepo(), nil, time.Minute, jst)

	out, err := svc.Dashboard(context.Background(), domain.ReviewQuery{StoreIDs: []string{"x"}}, domain.GranularityWeek)
	require.NoError(t, err)
	// 2024-02-03T23:30Z is Sunday 08:30 in Tokyo, still the week of Monday 01-29
	assert.Equal(t, []domain.TimeSeriesPoint{{Date: "2024-01-29", ReviewCount: 2, AverageRating: 4.5}}, out.TimeSeriesData)
}

func TestDashboard_CachedUntilGenerationChanges(t *testing.T) {
	repo := seededRepo()
	cache := &fakeCache{}
	svc := app.NewQueryService(repo, cache, time.Minute, time.UTC)
	ctx := context.Background()
	q := domain.ReviewQuery{StoreIDs: []string{"x"}}

	first, err := svc.Dashboard(ctx, q, domain.GranularityDay)
	require.NoError(t, err)
	second, err := svc.Dashboard(ctx, q, domain.GranularityDay)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.pointQueries)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.TimeSeriesData, second.TimeSeriesData)

	_, err = svc.Dashboard(ctx, q, domain.GranularityWeek)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.pointQueries, "granularity is part of the key")

	require.NoError(t, cache.Set(ctx, "reviews:gen", int64(42), 0))
	_, err = svc.Dashboard(ctx, q, domain.GranularityDay)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.pointQueries)
}

func TestDashboard_CorruptCacheEntryIsRecomputed(t *testing.T) {
	repo := seededRepo()
	cache := &fakeCache{}
	svc := app.NewQueryService(repo, cache, time.Minute, time.UTC)
	ctx := context.Background()
	q := domain.ReviewQuery{StoreIDs: []string{"x"}}

	_, err := svc.Dashboard(ctx, q, domain.GranularityDay)
	require.NoError(t, err)
	for k := range cache.store {
		cache.store[k] = []byte("{not json")
	}

	out, err := svc.Dashboard(ctx, q, domain.GranularityDay)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.pointQueries)
	assert.Equal(t, 2, out.Summary.TotalReviews)
}

func TestListReviews_Pagination(t *testing.T) {
	svc := app.NewQueryService(seededRepo(), nil, time.Minute, time.UTC)
	ctx := context.Background()

	page, err := svc.ListReviews(ctx, domain.ReviewQuery{}, domain.PageQuery{Page: 1, Limit: 2, Sort: domain.SortNewest})
	require.NoError(t, err)
	assert.Equal(t, domain.Pagination{Page: 1, Limit: 2, TotalCount: 3, TotalPages: 2}, page.Pagination)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(2), page.Items[0].ID)

	page, err = svc.ListReviews(ctx, domain.ReviewQuery{}, domain.PageQuery{Page: 2, Limit: 2, Sort: domain.SortNewest})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Items[0].ID)

	page, err = svc.ListReviews(ctx, domain.ReviewQuery{}, domain.PageQuery{Sort: domain.SortRatingLow})
	require.NoError(t, err)
	assert.Equal(t, 50, page.Pagination.Limit)
	assert.Equal(t, 1, page.Items[0].Rating)

	page, err = svc.ListReviews(ctx, domain.ReviewQuery{StoreIDs: []string{"y"}}, domain.PageQuery{})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.Pagination.TotalPages)
}

func TestListStores(t *testing.T) {
	svc := app.NewQueryService(seededRepo(), nil, time.Minute, nil)
	refs, err := svc.ListStores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.StoreRef{
		{ID: "x", Name: "Store X", Brand: domain.BrandAmemoba},
		{ID: "y", Name: "Store Y", Brand: domain.BrandAmemoba},
		{ID: "z", Name: "Store Z", Brand: domain.BrandSakumoba},
	}, refs)
}
