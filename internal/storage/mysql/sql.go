package mysql

const countStoresSQL = `SELECT COUNT(*) FROM stores`

const storeColumns = `s.id, s.name, s.brand, s.place_id, s.google_maps_url`

const listStoresSQL = `
SELECT ` + storeColumns + `
FROM stores s
WHERE (? = '' OR s.brand = ?)
ORDER BY s.name, s.id
`

const getStoreSQL = `
SELECT ` + storeColumns + `
FROM stores s
WHERE s.id = ?
`

const insertStoreSQL = `
INSERT INTO stores (id, name, brand, place_id, google_maps_url)
VALUES (?, ?, ?, ?, ?)
`

const renameStoreSQL = `UPDATE stores SET name = ? WHERE name = ?`

// -----------------------------------------------------------------------------
// FETCH LOGS
// -----------------------------------------------------------------------------

const insertFetchLogSQL = `
INSERT INTO fetch_logs (id, store_id, status, started_at)
VALUES (?, ?, 'RUNNING', ?)
`

// Only a RUNNING row may transition; a terminal row is never rewritten.
const completeFetchLogSQL = `
UPDATE fetch_logs
SET status = ?, message = ?, review_count = ?, completed_at = ?
WHERE id = ? AND status = 'RUNNING'
`

const getFetchLogSQL = `
SELECT id, store_id, status, message, review_count, started_at, completed_at
FROM fetch_logs
WHERE id = ?
`

// -----------------------------------------------------------------------------
// REVIEWS
// -----------------------------------------------------------------------------

const reviewExistsSQL = `
SELECT EXISTS(SELECT 1 FROM reviews WHERE store_id = ? AND source_review_id = ?)
`

// INSERT IGNORE leaves the stored row untouched on a (store_id, source_review_id)
// collision; RowsAffected tells the caller whether the review was new.
const insertReviewSQL = "INSERT IGNORE INTO reviews\n" +
	"  (store_id, source, source_review_id, rating, `text`, author_name, created_at, review_url, raw_payload)\n" +
	"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"

const selectPointsSQL = `SELECT r.store_id, r.rating, r.created_at FROM reviews r`

// Note: `text` is reserved; keep it quoted everywhere.
const selectReviewsSQL = "SELECT r.id, r.store_id, s.name, r.source, r.source_review_id, r.rating,\n" +
	"  r.`text`, r.author_name, r.created_at, r.review_url\n" +
	"FROM reviews r\n" +
	"JOIN stores s ON s.id = r.store_id"

const countReviewsSQL = `SELECT COUNT(*) FROM reviews r`
