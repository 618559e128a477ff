package handler

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xbookmarks/api/internal/category"
	"github.com/xbookmarks/api/internal/testutil"
)

func TestListCategories(t *testing.T) {
	env := testHandler(t)
	seedTweets(t, env)
	testutil.CreateTestCategory(t, env.db, "Books", "books")

	rec := doRequest(t, env.h, http.MethodGet, "/api/categories")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got []category.Category
	decodeBody(t, rec, &got)
	if len(got) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(got))
	}
	if got[0].Slug != "ai" || got[0].TweetCount != 1 {
		t.Errorf("first category = %+v, want ai with 1 tweet", got[0])
	}
	if got[1].Slug != "books" || got[1].TweetCount != 0 {
		t.Errorf("second category = %+v, want books with 0 tweets", got[1])
	}
}

func TestListSubtags(t *testing.T) {
	env := testHandler(t)
	seedTweets(t, env)

	rec := doRequest(t, env.h, http.MethodGet, "/api/subtags")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []string
	decodeBody(t, rec, &got)
	if diff := cmp.Diff([]string{"llm", "papers"}, got); diff != "" {
		t.Errorf("subtags mismatch (-want +got):\n%s", diff)
	}
}

func TestListCategoryTags(t *testing.T) {
	env := testHandler(t)
	seedTweets(t, env)

	rec := doRequest(t, env.h, http.MethodGet, "/api/categories/ai/tags")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []string
	decodeBody(t, rec, &got)
	if diff := cmp.Diff([]string{"llm", "papers"}, got); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}

	rec = doRequest(t, env.h, http.MethodGet, "/api/categories/nope/tags")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("unknown slug body = %q, want []", body)
	}
}
