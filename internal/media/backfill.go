package media

import (
	"context"
	"fmt"
	"log/slog"
)

// TweetImages is the subset of the tweet repository Backfill needs.
type TweetImages interface {
	ListMissingImages(ctx context.Context) ([]int64, error)
	SetImagePath(ctx context.Context, id int64, path string) error
}

// BackfillResult summarizes a backfill run.
type BackfillResult struct {
	Checked int
	Updated int
	Skipped int
	Errors  int
}

// Backfill sets image_path for every tweet that has none but whose first
// image is present in store under ImageKey.
func Backfill(ctx context.Context, store Store, tweets TweetImages) (*BackfillResult, error) {
	ids, err := tweets.ListMissingImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tweets without images: %w", err)
	}

	res := &BackfillResult{}
	slog.Info("backfilling image paths", "candidates", len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++

		key := ImageKey(id)
		ok, err := store.Exists(ctx, key)
		if err != nil {
			res.Errors++
			slog.Warn("checking image", "tweet_id", id, "key", key, "error", err)
			continue
		}
		if !ok {
			res.Skipped++
			continue
		}

		if err := tweets.SetImagePath(ctx, id, key); err != nil {
			res.Errors++
			slog.Warn("updating image path", "tweet_id", id, "error", err)
			continue
		}
		res.Updated++
		if res.Updated%100 == 0 {
			slog.Info("backfill progress", "updated", res.Updated)
		}
	}

	slog.Info("backfill complete",
		"checked", res.Checked,
		"updated", res.Updated,
		"skipped", res.Skipped,
		"errors", res.Errors,
	)
	return res, nil
}
