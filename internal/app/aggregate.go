package app

import (
	"math"
	"sort"
	"time"

	"store_reviews/internal/domain"
)

var ratingValues = [...]int{1, 2, 3, 4, 5}

// AggregateInput is one already-filtered review set plus the stores it was scoped to.
type AggregateInput struct {
	Points      []domain.ReviewPoint
	Scope       []domain.Store // in-scope stores, in display order
	AllStores   []domain.Store // filter options echoed back to the dashboard
	Granularity domain.Granularity
	StartDate   *time.Time // calendar dates, see PeriodKeysInRange
	EndDate     *time.Time
	Location    *time.Location
}

// Aggregate is pure: the same input always produces the same dashboard.
func Aggregate(in AggregateInput) domain.Dashboard {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	g := in.Granularity
	if g == "" {
		g = domain.GranularityDay
	}

	return domain.Dashboard{
		Summary:         summarize(in.Points),
		TimeSeriesData:  timeSeries(in.Points, g, loc),
		StoreComparison: storeComparison(in.Points, in.Scope),
		StoreByPeriod:   storeByPeriod(in, g, loc),
		Stores:          storeRefs(in.AllStores),
	}
}

func summarize(points []domain.ReviewPoint) domain.Summary {
	if len(points) == 0 {
		return domain.Summary{}
	}
	sum := 0
	for _, p := range points {
		sum += p.Rating
	}
	avg := float64(sum) / float64(len(points))
	return domain.Summary{TotalReviews: len(points), AverageRating: math.Round(avg*10) / 10}
}

func timeSeries(points []domain.ReviewPoint, g domain.Granularity, loc *time.Location) []domain.TimeSeriesPoint {
	type acc struct{ count, sum int }
	groups := map[string]*acc{}
	for _, p := range points {
		k := BucketKey(p.CreatedAt, g, loc)
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		a.count++
		a.sum += p.Rating
	}

	out := make([]domain.TimeSeriesPoint, 0, len(groups))
	for k, a := range groups {
		out = append(out, domain.TimeSeriesPoint{
			Date:          k,
			ReviewCount:   a.count,
			AverageRating: float64(a.sum) / float64(a.count),
		})
	}
	// keys are YYYY-MM-DD so lexical order is chronological
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func storeComparison(points []domain.ReviewPoint, scope []domain.Store) []domain.StoreRatingCounts {
	rows := make([]domain.StoreRatingCounts, len(scope))
	idx := make(map[string]int, len(scope))
	for i, st := range scope {
		counts := make(map[int]int, len(ratingValues))
		for _, r := range ratingValues {
			counts[r] = 0
		}
		rows[i] = domain.StoreRatingCounts{StoreID: st.ID, StoreName: st.Name, RatingCounts: counts}
		idx[st.ID] = i
	}
	totals := make([]int, len(scope))
	for _, p := range points {
		i, ok := idx[p.StoreID]
		if !ok || p.Rating < 1 || p.Rating > 5 {
			continue
		}
		rows[i].RatingCounts[p.Rating]++
		totals[i]++
	}

	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := order[a], order[b]
		if totals[ra] != totals[rb] {
			return totals[ra] > totals[rb]
		}
		if rows[ra].StoreName != rows[rb].StoreName {
			return rows[ra].StoreName < rows[rb].StoreName
		}
		return rows[ra].StoreID < rows[rb].StoreID
	})
	out := make([]domain.StoreRatingCounts, len(rows))
	for i, o := range order {
		out[i] = rows[o]
	}
	return out
}

func storeByPeriod(in AggregateInput, g domain.Granularity, loc *time.Location) domain.StoreByPeriod {
	keys := []string{}
	if start, end := periodBounds(in.StartDate, in.EndDate, in.Points, loc); start != nil && end != nil {
		keys = PeriodKeysInRange(*start, *end, g)
	}

	rows := make([]domain.StorePeriodCounts, len(in.Scope))
	idx := make(map[string]int, len(in.Scope))
	for i, st := range in.Scope {
		counts := make(map[string]int, len(keys))
		for _, k := range keys {
			counts[k] = 0
		}
		rows[i] = domain.StorePeriodCounts{StoreID: st.ID, StoreName: st.Name, Counts: counts}
		idx[st.ID] = i
	}
	for _, p := range in.Points {
		i, ok := idx[p.StoreID]
		if !ok {
			continue
		}
		k := BucketKey(p.CreatedAt, g, loc)
		if _, ok := rows[i].Counts[k]; ok {
			rows[i].Counts[k]++
		}
	}
	return domain.StoreByPeriod{PeriodKeys: keys, Rows: rows}
}

func storeRefs(stores []domain.Store) []domain.StoreRef {
	out := make([]domain.StoreRef, 0, len(stores))
	for _, st := range stores {
		out = append(out, domain.StoreRef{ID: st.ID, Name: st.Name, Brand: st.Brand})
	}
	return out
}

// periodBounds closes an open side of the date range with the data extent.
// Both results stay nil when a side is open and there are no points.
func periodBounds(start, end *time.Time, points []domain.ReviewPoint, loc *time.Location) (*time.Time, *time.Time) {
	if (start != nil && end != nil) || len(points) == 0 {
		return start, end
	}
	lo, hi := points[0].CreatedAt, points[0].CreatedAt
	for _, p := range points[1:] {
		if p.CreatedAt.Before(lo) {
			lo = p.CreatedAt
		}
		if p.CreatedAt.After(hi) {
			hi = p.CreatedAt
		}
	}
	if start == nil {
		t := lo.In(loc)
		start = &t
	}
	if end == nil {
		t := hi.In(loc)
		end = &t
	}
	return start, end
}
