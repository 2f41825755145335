package domain

import "time"

const SourceGoogle = "GOOGLE"

// ValidRating reports whether n is a star rating, 1 through 5.
func ValidRating(n int) bool { return n >= 1 && n <= 5 }

type Review struct {
	ID             int64     `json:"id"`
	StoreID        string    `json:"storeId"`
	StoreName      string    `json:"storeName,omitempty"`
	Source         string    `json:"source"`
	SourceReviewID string    `json:"sourceReviewId"`
	Rating         int       `json:"rating"`
	Text           *string   `json:"text"`
	AuthorName     *string   `json:"authorName"`
	CreatedAt      time.Time `json:"createdAt"`
	ReviewURL      *string   `json:"reviewUrl"`
	RawPayload     []byte    `json:"-"` // upstream review item, audit only
}

// PlaceReview is the normalized review shape both upstream adapters produce.
type PlaceReview struct {
	AuthorName  string
	Rating      int
	Text        string
	PublishTime int64   // unix seconds
	DeepLink    *string // per-review URL, current-generation API only
	Raw         []byte
}

// ReviewPoint is the projection the aggregation engine works on.
type ReviewPoint struct {
	StoreID   string
	Rating    int
	CreatedAt time.Time
}
