package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xbookmarks/api/internal/category"
	"github.com/xbookmarks/api/internal/linkpreview"
	"github.com/xbookmarks/api/internal/media"
	"github.com/xbookmarks/api/internal/testutil"
	"github.com/xbookmarks/api/internal/tweet"
)

// fakeResolver records the URLs it is asked for and returns a canned result.
type fakeResolver struct {
	calls   []string
	preview *linkpreview.Preview
	err     error
}

func (f *fakeResolver) Resolve(ctx context.Context, url string) (*linkpreview.Preview, error) {
	f.calls = append(f.calls, url)
	if f.err != nil {
		return nil, f.err
	}
	if f.preview != nil {
		return f.preview, nil
	}
	return &linkpreview.Preview{URL: url, CachedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, nil
}

type testEnv struct {
	h        *Handler
	db       *sql.DB
	resolver *fakeResolver
	mediaDir string
}

// testHandler creates a fully-wired Handler backed by an in-memory SQLite database.
func testHandler(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.TestDB(t)
	dir := t.TempDir()
	resolver := &fakeResolver{}

	h := New(Dependencies{
		TweetRepo:    tweet.NewRepository(db),
		CategoryRepo: category.NewRepository(db),
		Resolver:     resolver,
		MediaStore:   media.NewLocalStore(dir),
	})

	return &testEnv{h: h, db: db, resolver: resolver, mediaDir: dir}
}

// testRouter mounts the handlers the same way the server does so URL
// parameters resolve.
func testRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/tweets", h.ListTweets)
		r.Get("/tweets/{id}", h.GetTweet)
		r.Delete("/tweets/{id}", h.DeleteTweet)
		r.Get("/categories", h.ListCategories)
		r.Get("/categories/{slug}/tags", h.ListCategoryTags)
		r.Get("/subtags", h.ListSubtags)
		r.Get("/stats", h.GetStats)
		r.Get("/link-preview", h.GetLinkPreview)
	})
	r.Get("/static/images/*", h.ServeImage)
	return r
}

func doRequest(t *testing.T, h *Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response body: %v (body %q)", err, rec.Body.String())
	}
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, status, rec.Body.String())
	}
	var body ApiErrorResponse
	decodeBody(t, rec, &body)
	if body.Error.Code != code {
		t.Errorf("error code = %q, want %q", body.Error.Code, code)
	}
}
