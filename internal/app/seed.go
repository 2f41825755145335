package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"store_reviews/internal/domain"
)

// BrandSearchPrefixes is prepended to a store name for the last-resort text search.
var BrandSearchPrefixes = map[domain.Brand]string{
	domain.BrandAmemoba:  "アメモバ買取",
	domain.BrandSakumoba: "サクモバ",
}

type seedStore struct {
	name    string
	brand   domain.Brand
	placeID string
	mapsURL string
}

var defaultStores = []seedStore{
	{"アメモバ買取 上野店", domain.BrandAmemoba, "ChIJG_0V74WNGGARNcOjkwixJuQ", "https://www.google.com/maps/place/?q=place_id:ChIJG_0V74WNGGARNcOjkwixJuQ"},
	{"アメモバ買取 秋葉原店", domain.BrandAmemoba, "ChIJFQAwsZ-OGGARfGHc4VvmyLA", "https://www.google.com/maps/place/?q=place_id:ChIJFQAwsZ-OGGARfGHc4VvmyLA"},
	{"アメモバ買取 柏店", domain.BrandAmemoba, "ChIJhyb1RRmdGGARKhISBfOIFhI", "https://www.google.com/maps/place/?q=place_id:ChIJhyb1RRmdGGARKhISBfOIFhI"},
	{"アメモバ買取 名古屋大須店", domain.BrandAmemoba, "ChIJHYp3Shd3A2ARONqCexsG5ew", "https://www.google.com/maps/place/?q=place_id:ChIJHYp3Shd3A2ARONqCexsG5ew"},
	{"アメモバ買取 新宿東南口店", domain.BrandAmemoba, "ChIJM_kPEBiNGGAR1jbcaf_pwpo", "https://www.google.com/maps/place/?q=place_id:ChIJM_kPEBiNGGAR1jbcaf_pwpo"},
	{"アメモバ買取 大宮マルイ店", domain.BrandAmemoba, "ChIJn-qyhX6dGGARAFfE-Mv4UOU", "https://www.google.com/maps/place/?q=place_id:ChIJn-qyhX6dGGARAFfE-Mv4UOU"},
	{"サクモバ 秋葉原店", domain.BrandSakumoba, "ChIJiS1phZ6PGGARWW9Q51UQcRk", "https://maps.app.goo.gl/5syqmR83eYHR1Sy77"},
	{"サクモバ 新宿西口店", domain.BrandSakumoba, "ChIJy97SMKGNGGARHCW4cTVFLtw", "https://maps.app.goo.gl/T3ua72862GeWfFdJ6"},
	{"サクモバ 名古屋大須店", domain.BrandSakumoba, "ChIJdfabEGd3A2ARPStzxMd5OJE", "https://maps.app.goo.gl/CgynoAtxgwVYP3UR9"},
}

// DefaultRenames carries the display-name corrections applied after launch.
var DefaultRenames = []domain.StoreRename{
	{From: "アメモバ買取 上野店", To: "アメモバ 上野本店"},
	{From: "アメモバ買取 東京上野本店", To: "アメモバ 上野本店"},
	{From: "アメモバ買取 上野本店", To: "アメモバ 上野本店"},
	{From: "アメモバ買取 秋葉原店", To: "アメモバ 秋葉原店"},
	{From: "アメモバ買取 柏店", To: "アメモバ 柏店"},
	{From: "アメモバ買取 名古屋大須店", To: "アメモバ 名古屋大須店"},
	{From: "アメモバ買取 新宿東南口店", To: "アメモバ 新宿東南口店"},
	{From: "アメモバ買取 大宮マルイ店", To: "アメモバ 大宮マルイ店"},
	{From: "サクモバ 東京秋葉原店", To: "サクモバ 秋葉原店"},
}

// DefaultStores returns fresh Store values (new ids) for first-run provisioning.
func DefaultStores() []domain.Store {
	out := make([]domain.Store, 0, len(defaultStores))
	for _, s := range defaultStores {
		out = append(out, domain.Store{
			ID:            uuid.NewString(),
			Name:          s.name,
			Brand:         s.brand,
			PlaceID:       ptrStr(s.placeID),
			GoogleMapsURL: ptrStr(s.mapsURL),
		})
	}
	return out
}

// ensureStores seeds the built-in list when the store table is empty.
func (s *IngestionService) ensureStores(ctx context.Context) ([]domain.Store, error) {
	n, err := s.repo.CountStores(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		for _, st := range DefaultStores() {
			if err := s.repo.CreateStore(ctx, st); err != nil {
				return nil, err
			}
		}
		log.Info().Int("stores", len(defaultStores)).Msg("store table was empty, seeded defaults")
	}
	return s.repo.ListStores(ctx, "")
}

// RenameStores applies exact-match renames; re-running is a no-op.
func (s *IngestionService) RenameStores(ctx context.Context, renames []domain.StoreRename) (int64, error) {
	var total int64
	for _, rn := range renames {
		if rn.From == rn.To {
			continue
		}
		n, err := s.repo.RenameStore(ctx, rn.From, rn.To)
		if err != nil {
			return total, err
		}
		if n > 0 {
			log.Info().Str("from", rn.From).Str("to", rn.To).Int64("rows", n).Msg("store renamed")
		}
		total += n
	}
	return total, nil
}
