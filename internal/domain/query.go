package domain

import (
	"fmt"
	"strings"
	"time"
)

type Granularity string

const (
	GranularityDay   Granularity = "DAY"
	GranularityWeek  Granularity = "WEEK"
	GranularityMonth Granularity = "MONTH"
)

// ParseGranularity accepts DAY, WEEK or MONTH in any case; empty means DAY.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToUpper(strings.TrimSpace(s))); g {
	case "":
		return GranularityDay, nil
	case GranularityDay, GranularityWeek, GranularityMonth:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}
}

// ReviewQuery is the caller-facing filter shared by the dashboard and the review list.
// StartDate/EndDate carry calendar dates; only year, month and day are read.
type ReviewQuery struct {
	StoreIDs  []string
	Brand     Brand
	Rating    *int
	StartDate *time.Time
	EndDate   *time.Time
}

// ReviewFilter is the resolved repository filter. A nil StoreIDs means every store;
// From/To are both inclusive.
type ReviewFilter struct {
	StoreIDs []string
	Rating   *int
	From     *time.Time
	To       *time.Time
}

type ReviewSort string

const (
	SortNewest     ReviewSort = "newest"
	SortOldest     ReviewSort = "oldest"
	SortRatingHigh ReviewSort = "rating-high"
	SortRatingLow  ReviewSort = "rating-low"
)

func ParseReviewSort(s string) ReviewSort {
	switch ReviewSort(s) {
	case SortOldest, SortRatingHigh, SortRatingLow:
		return ReviewSort(s)
	}
	return SortNewest
}

type PageQuery struct {
	Page  int
	Limit int
	Sort  ReviewSort
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
}

type ReviewsPage struct {
	Items      []Review   `json:"reviews"`
	Pagination Pagination `json:"pagination"`
}

// Read models for the dashboard

type Summary struct {
	TotalReviews  int     `json:"totalReviews"`
	AverageRating float64 `json:"averageRating"`
}

type TimeSeriesPoint struct {
	Date          string  `json:"date"`
	ReviewCount   int     `json:"reviewCount"`
	AverageRating float64 `json:"averageRating"`
}

type StoreRatingCounts struct {
	StoreID      string      `json:"storeId"`
	StoreName    string      `json:"storeName"`
	RatingCounts map[int]int `json:"ratingCounts"`
}

type StorePeriodCounts struct {
	StoreID   string         `json:"storeId"`
	StoreName string         `json:"storeName"`
	Counts    map[string]int `json:"counts"`
}

type StoreByPeriod struct {
	PeriodKeys []string            `json:"periodKeys"`
	Rows       []StorePeriodCounts `json:"rows"`
}

type Dashboard struct {
	Summary         Summary             `json:"summary"`
	TimeSeriesData  []TimeSeriesPoint   `json:"timeSeriesData"`
	StoreComparison []StoreRatingCounts `json:"storeComparison"`
	StoreByPeriod   StoreByPeriod       `json:"storeByPeriod"`
	Stores          []StoreRef          `json:"stores"`
}

// Ingestion outcome

type StoreFetchResult struct {
	StoreID      string `json:"storeId"`
	StoreName    string `json:"storeName"`
	Status       string `json:"status"` // success|error
	TotalReviews *int   `json:"totalReviews,omitempty"`
	NewReviews   *int   `json:"newReviews,omitempty"`
	Error        string `json:"error,omitempty"`
}

type IngestionResult struct {
	Message string             `json:"message"`
	Results []StoreFetchResult `json:"results"`
}
