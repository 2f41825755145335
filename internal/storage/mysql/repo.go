package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"store_reviews/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Repo implements domain.ReviewRepository on MySQL. The DSN must carry
// parseTime=true and loc=UTC; DATETIME columns hold UTC instants.
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Repo { return &Repo{db: db, now: time.Now} }

var _ domain.ReviewRepository = (*Repo)(nil)

// ---- stores ----

func (r *Repo) CountStores(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countStoresSQL).Scan(&n)
	return n, err
}

func (r *Repo) ListStores(ctx context.Context, brand domain.Brand) ([]domain.Store, error) {
	rows, err := r.db.QueryContext(ctx, listStoresSQL, string(brand), string(brand))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Store
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *Repo) GetStore(ctx context.Context, id string) (domain.Store, error) {
	st, err := scanStore(r.db.QueryRowContext(ctx, getStoreSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Store{}, domain.ErrNotFound
	}
	return st, err
}

type scanner interface{ Scan(dest ...any) error }

func scanStore(s scanner) (domain.Store, error) {
	var st domain.Store
	var brand string
	var placeID, mapsURL sql.NullString
	if err := s.Scan(&st.ID, &st.Name, &brand, &placeID, &mapsURL); err != nil {
		return domain.Store{}, err
	}
	st.Brand = domain.Brand(brand)
	st.PlaceID = strPtr(placeID)
	st.GoogleMapsURL = strPtr(mapsURL)
	return st, nil
}

func (r *Repo) CreateStore(ctx context.Context, s domain.Store) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, insertStoreSQL, s.ID, s.Name, string(s.Brand), valStr(s.PlaceID), valStr(s.GoogleMapsURL))
	return err
}

func (r *Repo) RenameStore(ctx context.Context, from, to string) (int64, error) {
	res, err := r.db.ExecContext(ctx, renameStoreSQL, to, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---- fetch logs ----

func (r *Repo) CreateFetchLog(ctx context.Context, storeID string) (string, error) {
	id := uuid.NewString()
	if _, err := r.db.ExecContext(ctx, insertFetchLogSQL, id, storeID, r.now().UTC()); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repo) CompleteFetchLog(ctx context.Context, id string, status domain.FetchStatus, message string, reviewCount int) error {
	res, err := r.db.ExecContext(ctx, completeFetchLogSQL, string(status), message, reviewCount, r.now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("fetch log %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetFetchLog reads one fetch log back; used by operators and tests.
func (r *Repo) GetFetchLog(ctx context.Context, id string) (domain.FetchLog, error) {
	var l domain.FetchLog
	var status string
	var msg sql.NullString
	var completed sql.NullTime
	err := r.db.QueryRowContext(ctx, getFetchLogSQL, id).
		Scan(&l.ID, &l.StoreID, &status, &msg, &l.ReviewCount, &l.StartedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FetchLog{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.FetchLog{}, err
	}
	l.Status = domain.FetchStatus(status)
	l.Message = msg.String
	if completed.Valid {
		t := completed.Time
		l.CompletedAt = &t
	}
	return l, nil
}

// ---- reviews ----

func (r *Repo) ReviewExists(ctx context.Context, storeID, sourceReviewID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, reviewExistsSQL, storeID, sourceReviewID).Scan(&ok)
	return ok, err
}

func (r *Repo) InsertReview(ctx context.Context, rv domain.Review) (bool, error) {
	res, err := r.db.ExecContext(ctx, insertReviewSQL,
		rv.StoreID,
		rv.Source,
		rv.SourceReviewID,
		rv.Rating,
		valStr(rv.Text),
		valStr(rv.AuthorName),
		rv.CreatedAt.UTC(),
		valStr(rv.ReviewURL),
		valJSON(rv.RawPayload),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// where renders the shared filter. A non-nil empty StoreIDs matches nothing.
func where(f domain.ReviewFilter) (string, []any) {
	var conds []string
	var args []any
	if f.StoreIDs != nil {
		if len(f.StoreIDs) == 0 {
			conds = append(conds, "1 = 0")
		} else {
			conds = append(conds, "r.store_id IN ("+strings.TrimSuffix(strings.Repeat("?,", len(f.StoreIDs)), ",")+")")
			for _, id := range f.StoreIDs {
				args = append(args, id)
			}
		}
	}
	if f.Rating != nil {
		conds = append(conds, "r.rating = ?")
		args = append(args, *f.Rating)
	}
	if f.From != nil {
		conds = append(conds, "r.created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		conds = append(conds, "r.created_at <= ?")
		args = append(args, f.To.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(s domain.ReviewSort) string {
	switch s {
	case domain.SortOldest:
		return " ORDER BY r.created_at ASC, r.id ASC"
	case domain.SortRatingHigh:
		return " ORDER BY r.rating DESC, r.created_at DESC, r.id DESC"
	case domain.SortRatingLow:
		return " ORDER BY r.rating ASC, r.created_at DESC, r.id DESC"
	default:
		return " ORDER BY r.created_at DESC, r.id DESC"
	}
}

func (r *Repo) ListReviewPoints(ctx context.Context, f domain.ReviewFilter) ([]domain.ReviewPoint, error) {
	w, args := where(f)
	rows, err := r.db.QueryContext(ctx, selectPointsSQL+w+" ORDER BY r.created_at, r.id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ReviewPoint{}
	for rows.Next() {
		var p domain.ReviewPoint
		if err := rows.Scan(&p.StoreID, &p.Rating, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) ListReviews(ctx context.Context, f domain.ReviewFilter, pg domain.PageQuery) ([]domain.Review, int, error) {
	w, args := where(f)

	var total int
	if err := r.db.QueryRowContext(ctx, countReviewsSQL+w, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Review{}, 0, nil
	}

	q := selectReviewsSQL + w + orderBy(pg.Sort) + " LIMIT ? OFFSET ?"
	args = append(args, pg.Limit, (pg.Page-1)*pg.Limit)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		var text, author, url sql.NullString
		if err := rows.Scan(
			&rv.ID,
			&rv.StoreID,
			&rv.StoreName,
			&rv.Source,
			&rv.SourceReviewID,
			&rv.Rating,
			&text,
			&author,
			&rv.CreatedAt,
			&url,
		); err != nil {
			return nil, 0, err
		}
		rv.Text = strPtr(text)
		rv.AuthorName = strPtr(author)
		rv.ReviewURL = strPtr(url)
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
