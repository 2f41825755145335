package domain

type Brand string

const (
	BrandAmemoba  Brand = "AMEMOBA"
	BrandSakumoba Brand = "SAKUMOBA"
)

func (b Brand) Valid() bool {
	return b == BrandAmemoba || b == BrandSakumoba
}

type Store struct {
	ID            string
	Name          string
	Brand         Brand
	PlaceID       *string // upstream place identifier
	GoogleMapsURL *string
}

// StoreRef is the trimmed store shape returned alongside aggregates.
type StoreRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Brand Brand  `json:"brand,omitempty"`
}

type StoreRename struct {
	From, To string
}
