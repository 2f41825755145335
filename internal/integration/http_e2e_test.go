//go:build integration || !unit

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jarcoal/httpmock"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	server "store_reviews/internal/adapters/http_server"
	"store_reviews/internal/adapters/places"
	redisad "store_reviews/internal/adapters/redis"
	"store_reviews/internal/app"
	"store_reviews/internal/domain"
	mysqlrepo "store_reviews/internal/storage/mysql"
)

// ---------- helpers ----------
func pstr(s string) *string { return &s }

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=reviews",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", resource.GetPort("3306/tcp"), "reviews")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

// upstream serves both API generations for place "px"; every other place has no reviews.
func upstream(t *testing.T) *httpmock.MockTransport {
	t.Helper()
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder("GET", `=~^https://places\.test/v1/places/`,
		func(req *http.Request) (*http.Response, error) {
			id := strings.TrimPrefix(req.URL.Path, "/v1/places/")
			if req.Header.Get("X-Goog-FieldMask") == "googleMapsLinks" {
				return httpmock.NewStringResponse(http.StatusOK,
					`{"googleMapsLinks":{"reviewsUri":"https://maps.test/reviews/`+id+`"}}`), nil
			}
			if id != "px" {
				return httpmock.NewStringResponse(http.StatusOK, `{"id":"`+id+`"}`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"id":"px","reviews":[
			  {"rating":4,"text":{"text":"まあまあ","languageCode":"ja"},"authorAttribution":{"displayName":"鈴木"},
			   "publishTime":"2024-02-03T10:00:00Z","googleMapsUri":"https://maps.test/review/2"},
			  {"rating":5,"text":"最高","authorAttribution":{"displayName":"田中"},
			   "publishTime":"2024-02-01T10:00:00Z","googleMapsUri":"https://maps.test/review/1"}
			]}`), nil
		})
	mt.RegisterResponder("GET", `=~^https://maps\.test/maps/api/place/details/json`,
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("place_id") != "px" {
				return httpmock.NewStringResponse(http.StatusOK, `{"status":"OK","result":{"reviews":[]}}`), nil
			}
			// same review as the v1 payload, no deep link
			return httpmock.NewStringResponse(http.StatusOK, `{"status":"OK","result":{"name":"X","reviews":[
			  {"author_name":"田中","rating":5,"text":"最高","time":1706781600}
			]}}`), nil
		})
	mt.RegisterResponder("GET", `=~^https://maps\.test/maps/api/place/findplacefromtext/json`,
		httpmock.NewStringResponder(http.StatusOK, `{"status":"ZERO_RESULTS","candidates":[]}`))
	return mt
}

// ---------- the test ----------
func TestHTTP_EndToEnd_IngestThenDashboard(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	for _, st := range []domain.Store{
		{ID: "x", Name: "Store X", Brand: domain.BrandAmemoba, PlaceID: pstr("px"), GoogleMapsURL: pstr("https://maps.test/x")},
		{ID: "y", Name: "Store Y", Brand: domain.BrandAmemoba, PlaceID: pstr("py")},
		{ID: "z", Name: "Store Z", Brand: domain.BrandSakumoba, PlaceID: pstr("pz")},
	} {
		require.NoError(t, repo.CreateStore(ctx, st))
	}

	client, err := places.New(places.Config{
		APIKey:     "test-key",
		PlacesBase: "https://places.test/v1",
		MapsBase:   "https://maps.test/maps/api",
		RPS:        100,
		HTTPClient: &http.Client{Transport: upstream(t)},
	})
	require.NoError(t, err)
	cur, leg := client.Current(), client.Legacy()

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = cache.Close() })

	srv := server.New()
	srv.MountHandlers(&server.Handlers{
		Q:   app.NewQueryService(repo, cache, time.Minute, time.UTC),
		Ing: app.NewIngestionService(app.NewMerger(cur, leg, leg, app.BrandSearchPrefixes), repo, cache, 1),
		Res: app.NewReviewURLResolver(repo, cur, cur),
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	getJSON := func(path string, out any) {
		t.Helper()
		res, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode, path)
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	ingest := func() domain.IngestionResult {
		t.Helper()
		res, err := http.Post(ts.URL+"/v1/fetch-reviews", "application/json", nil)
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode)
		var out domain.IngestionResult
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		return out
	}

	// Warm the cache before ingestion; new reviews must invalidate it.
	var dash domain.Dashboard
	getJSON("/v1/dashboard?storeIds=x", &dash)
	assert.Equal(t, 0, dash.Summary.TotalReviews)

	first := ingest()
	require.Len(t, first.Results, 3)
	assert.Equal(t, "x", first.Results[0].StoreID)
	assert.Equal(t, 2, *first.Results[0].TotalReviews, "legacy duplicate merged away")
	assert.Equal(t, 2, *first.Results[0].NewReviews)
	for _, r := range first.Results {
		assert.Equal(t, "success", r.Status, r.StoreID)
	}

	getJSON("/v1/dashboard?storeIds=x", &dash)
	assert.Equal(t, 2, dash.Summary.TotalReviews, "cached view invalidated by new reviews")

	second := ingest()
	assert.Equal(t, 0, *second.Results[0].NewReviews)

	getJSON("/v1/dashboard?storeIds=x&startDate=2024-02-01&endDate=2024-02-03&granularity=DAY", &dash)
	assert.Equal(t, domain.Summary{TotalReviews: 2, AverageRating: 4.5}, dash.Summary)
	assert.Equal(t, []domain.TimeSeriesPoint{
		{Date: "2024-02-01", ReviewCount: 1, AverageRating: 5},
		{Date: "2024-02-03", ReviewCount: 1, AverageRating: 4},
	}, dash.TimeSeriesData)
	assert.Equal(t, []string{"2024-02-01", "2024-02-02", "2024-02-03"}, dash.StoreByPeriod.PeriodKeys)

	var page domain.ReviewsPage
	getJSON("/v1/reviews?storeIds=x&sortBy=oldest", &page)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Store X", page.Items[0].StoreName)
	assert.Equal(t, "x_1706781600_田中", page.Items[0].SourceReviewID)
	assert.Equal(t, "https://maps.test/review/1", *page.Items[0].ReviewURL)
	assert.Equal(t, 2, page.Pagination.TotalCount)

	var link struct {
		URL *string `json:"url"`
	}
	getJSON("/v1/review-url?storeId=x&authorName="+url.QueryEscape("田中")+"&createdAt=2024-02-01T10:00:00Z", &link)
	require.NotNil(t, link.URL)
	assert.Equal(t, "https://maps.test/review/1", *link.URL)

	getJSON("/v1/place-reviews-url?storeId=y", &link)
	require.NotNil(t, link.URL)
	assert.Equal(t, "https://maps.test/reviews/py", *link.URL)
}
