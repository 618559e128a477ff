package tweet

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/xbookmarks/api/internal/testutil"
)

func ids(tweets []TweetWithCategories) []int64 {
	out := make([]int64, len(tweets))
	for i, t := range tweets {
		out[i] = t.ID
	}
	return out
}

// seed creates three tweets an hour apart (t1 oldest) across two categories.
func seed(t *testing.T, repo *Repository) (t1, t2, t3 *testutil.TestTweet) {
	t.Helper()
	db := repo.db
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	ai := testutil.CreateTestCategory(t, db, "AI Orchestration & Agentics", "ai-orchestration-agentics")
	tools := testutil.CreateTestCategory(t, db, "The Builder's Toolbox", "builders-toolbox")

	t1 = testutil.CreateTestTweet(t, db, "https://x.com/a/status/1", "alice", "Agents that plan",
		testutil.WithCreatedAt(base), testutil.WithMediaType(MediaImage))
	t2 = testutil.CreateTestTweet(t, db, "https://x.com/b/status/2", "bob", "A great CLI tool",
		testutil.WithCreatedAt(base.Add(time.Hour)), testutil.WithNoteText("long form about 100% coverage"))
	t3 = testutil.CreateTestTweet(t, db, "https://x.com/c/status/3", "carol", "Eval harness tricks",
		testutil.WithCreatedAt(base.Add(2*time.Hour)), testutil.WithMediaType(MediaVideo))

	testutil.LinkTestCategory(t, db, t1.ID, ai.ID, "agents, planning")
	testutil.LinkTestCategory(t, db, t2.ID, tools.ID, "cli, terminal")
	testutil.LinkTestCategory(t, db, t3.ID, ai.ID, "evals, agents")
	testutil.LinkTestCategory(t, db, t3.ID, tools.ID, "evals")

	return t1, t2, t3
}

func TestList(t *testing.T) {
	repo := NewRepository(testutil.TestDB(t))
	t1, t2, t3 := seed(t, repo)

	tests := []struct {
		name string
		opts ListOptions
		want []int64
	}{
		{"all newest first", ListOptions{}, []int64{t3.ID, t2.ID, t1.ID}},
		{"category", ListOptions{Category: "ai-orchestration-agentics"}, []int64{t3.ID, t1.ID}},
		{"unknown category", ListOptions{Category: "nope"}, []int64{}},
		{"single subtag", ListOptions{Subtags: []string{"cli"}}, []int64{t2.ID}},
		{"subtags are OR", ListOptions{Subtags: []string{"planning", "terminal"}}, []int64{t2.ID, t1.ID}},
		{"category and subtag same link", ListOptions{Category: "builders-toolbox", Subtags: []string{"agents"}}, []int64{}},
		{"blank subtags ignored", ListOptions{Subtags: []string{" ", ""}}, []int64{t3.ID, t2.ID, t1.ID}},
		{"search full text", ListOptions{Search: "harness"}, []int64{t3.ID}},
		{"search author", ListOptions{Search: "ALICE"}, []int64{t1.ID}},
		{"search note text", ListOptions{Search: "long form"}, []int64{t2.ID}},
		{"search escapes wildcards", ListOptions{Search: "100%"}, []int64{t2.ID}},
		{"percent alone is literal", ListOptions{Search: "%"}, []int64{t2.ID}},
		{"limit", ListOptions{Limit: 2}, []int64{t3.ID, t2.ID}},
		{"offset", ListOptions{Limit: 2, Offset: 2}, []int64{t1.ID}},
		{"offset past end", ListOptions{Offset: 10}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestList_TieBreakByID(t *testing.T) {
	db := testutil.TestDB(t)
	repo := NewRepository(db)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	a := testutil.CreateTestTweet(t, db, "https://x.com/a/status/1", "a", "one", testutil.WithCreatedAt(at))
	b := testutil.CreateTestTweet(t, db, "https://x.com/b/status/2", "b", "two", testutil.WithCreatedAt(at))

	got, err := repo.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]int64{b.ID, a.ID}, ids(got)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestList_CategoriesAndSubtags(t *testing.T) {
	repo := NewRepository(testutil.TestDB(t))
	_, _, t3 := seed(t, repo)

	got, err := repo.List(context.Background(), ListOptions{Search: "Eval"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ID != t3.ID {
		t.Fatalf("id = %d, want %d", got[0].ID, t3.ID)
	}

	slugs := []string{}
	for _, c := range got[0].Categories {
		slugs = append(slugs, c.Slug)
	}
	if diff := cmp.Diff([]string{"ai-orchestration-agentics", "builders-toolbox"}, slugs); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"evals", "agents"}, got[0].Subtags); diff != "" {
		t.Errorf("subtags mismatch (-want +got):\n%s", diff)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	db := testutil.TestDB(t)
	repo := NewRepository(db)
	for i := 0; i < MaxLimit+5; i++ {
		testutil.CreateTestTweet(t, db, fmt.Sprintf("https://x.com/u/status/%d", i), "u", "text")
	}

	got, err := repo.List(context.Background(), ListOptions{Limit: 1000})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != MaxLimit {
		t.Errorf("len = %d, want %d", len(got), MaxLimit)
	}

	got, err = repo.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != DefaultLimit {
		t.Errorf("len = %d, want %d", len(got), DefaultLimit)
	}
}

func TestGetByID(t *testing.T) {
	repo := NewRepository(testutil.TestDB(t))
	t1, _, _ := seed(t, repo)
	ctx := context.Background()

	got, err := repo.GetByID(ctx, t1.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Author != "alice" || got.MediaType != MediaImage {
		t.Errorf("unexpected tweet %+v", got.Tweet)
	}
	if !got.CreatedAt.Equal(t1.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, t1.CreatedAt)
	}
	if diff := cmp.Diff([]string{"agents", "planning"}, got.Subtags); diff != "" {
		t.Errorf("subtags mismatch (-want +got):\n%s", diff)
	}

	if _, err := repo.GetByID(ctx, 9999); !errors.Is(err, ErrTweetNotFound) {
		t.Fatalf("expected ErrTweetNotFound, got %v", err)
	}
}

func TestGetByID_NoCategories(t *testing.T) {
	db := testutil.TestDB(t)
	repo := NewRepository(db)
	tw := testutil.CreateTestTweet(t, db, "https://x.com/z/status/9", "z", "lonely")

	got, err := repo.GetByID(context.Background(), tw.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Categories == nil || len(got.Categories) != 0 {
		t.Errorf("Categories = %#v, want empty non-nil", got.Categories)
	}
	if got.Subtags == nil || len(got.Subtags) != 0 {
		t.Errorf("Subtags = %#v, want empty non-nil", got.Subtags)
	}
}

func TestDelete(t *testing.T) {
	repo := NewRepository(testutil.TestDB(t))
	_, _, t3 := seed(t, repo)
	ctx := context.Background()

	if err := repo.Delete(ctx, t3.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, t3.ID); !errors.Is(err, ErrTweetNotFound) {
		t.Fatalf("expected ErrTweetNotFound after delete, got %v", err)
	}

	var links int
	if err := repo.db.QueryRow(`SELECT COUNT(*) FROM tweet_categories WHERE tweet_id = ?`, t3.ID).Scan(&links); err != nil {
		t.Fatalf("count links: %v", err)
	}
	if links != 0 {
		t.Errorf("links = %d, want 0 (cascade)", links)
	}

	if err := repo.Delete(ctx, t3.ID); !errors.Is(err, ErrTweetNotFound) {
		t.Fatalf("second Delete: expected ErrTweetNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	repo := NewRepository(testutil.TestDB(t))
	seed(t, repo)

	got, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := &Stats{TotalTweets: 3, TotalCategories: 2, TweetsWithImages: 1, TweetsWithVideos: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateAndExistsByURL(t *testing.T) {
	db := testutil.TestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	ai := testutil.CreateTestCategory(t, db, "AI", "ai")

	exists, err := repo.ExistsByURL(ctx, "https://x.com/n/status/1")
	if err != nil {
		t.Fatalf("ExistsByURL: %v", err)
	}
	if exists {
		t.Fatal("expected no tweet yet")
	}

	name := "Nina"
	tw := &Tweet{TweetURL: "https://x.com/n/status/1", Author: "nina", AuthorName: &name, FullText: "hello"}
	if err := repo.Create(ctx, tw); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tw.ID == 0 || tw.MediaType != MediaNone || tw.CreatedAt.IsZero() {
		t.Errorf("Create did not fill defaults: %+v", tw)
	}
	if err := repo.LinkCategory(ctx, tw.ID, ai.ID, "greetings, misc"); err != nil {
		t.Fatalf("LinkCategory: %v", err)
	}

	exists, err = repo.ExistsByURL(ctx, "https://x.com/n/status/1")
	if err != nil {
		t.Fatalf("ExistsByURL: %v", err)
	}
	if !exists {
		t.Fatal("expected tweet to exist")
	}

	got, err := repo.GetByID(ctx, tw.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.AuthorName == nil || *got.AuthorName != "Nina" {
		t.Errorf("AuthorName = %v, want Nina", got.AuthorName)
	}
	if got.NoteTweetText != nil {
		t.Errorf("NoteTweetText = %v, want nil", *got.NoteTweetText)
	}
	if diff := cmp.Diff([]string{"greetings", "misc"}, got.Subtags); diff != "" {
		t.Errorf("subtags mismatch (-want +got):\n%s", diff)
	}

	if err := repo.Create(ctx, &Tweet{TweetURL: "https://x.com/n/status/1", Author: "nina", FullText: "dup"}); err == nil {
		t.Fatal("expected unique violation on duplicate tweet_url")
	}
}

func TestCreateWithCategory(t *testing.T) {
	db := testutil.TestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	ai := testutil.CreateTestCategory(t, db, "AI", "ai")

	orphan := &Tweet{TweetURL: "https://x.com/o/status/1", Author: "olga", FullText: "lost"}
	if err := repo.CreateWithCategory(ctx, orphan, ai.ID+100, "x"); err == nil {
		t.Fatal("expected foreign key violation for unknown category")
	}
	if orphan.ID != 0 {
		t.Errorf("ID = %d after rollback, want 0", orphan.ID)
	}
	exists, err := repo.ExistsByURL(ctx, orphan.TweetURL)
	if err != nil {
		t.Fatalf("ExistsByURL: %v", err)
	}
	if exists {
		t.Fatal("tweet survived a failed category link")
	}

	if err := repo.CreateWithCategory(ctx, orphan, ai.ID, "agents, evals"); err != nil {
		t.Fatalf("CreateWithCategory: %v", err)
	}
	got, err := repo.GetByID(ctx, orphan.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if diff := cmp.Diff([]CategoryRef{{ID: ai.ID, Name: "AI", Slug: "ai"}}, got.Categories); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"agents", "evals"}, got.Subtags); diff != "" {
		t.Errorf("subtags mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingImages(t *testing.T) {
	db := testutil.TestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	a := testutil.CreateTestTweet(t, db, "https://x.com/a/status/1", "a", "one")
	testutil.CreateTestTweet(t, db, "https://x.com/b/status/2", "b", "two", testutil.WithImagePath("2/2_1.jpg"))
	c := testutil.CreateTestTweet(t, db, "https://x.com/c/status/3", "c", "three", testutil.WithImagePath(""))

	got, err := repo.ListMissingImages(ctx)
	if err != nil {
		t.Fatalf("ListMissingImages: %v", err)
	}
	if diff := cmp.Diff([]int64{a.ID, c.ID}, got); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	if err := repo.SetImagePath(ctx, a.ID, "1/1_1.jpg"); err != nil {
		t.Fatalf("SetImagePath: %v", err)
	}
	got, err = repo.ListMissingImages(ctx)
	if err != nil {
		t.Fatalf("ListMissingImages: %v", err)
	}
	if diff := cmp.Diff([]int64{c.ID}, got); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	if err := repo.SetImagePath(ctx, 9999, "x"); !errors.Is(err, ErrTweetNotFound) {
		t.Fatalf("expected ErrTweetNotFound, got %v", err)
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	for _, s := range []string{"2026-02-03T04:05:06Z", "2026-02-03 04:05:06", "2026-02-03T04:05:06.000000000Z"} {
		if got := parseTime(s); !got.Equal(want) {
			t.Errorf("parseTime(%q) = %v, want %v", s, got, want)
		}
	}
}
