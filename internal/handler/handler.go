package handler

import (
	"context"

	"github.com/xbookmarks/api/internal/category"
	"github.com/xbookmarks/api/internal/linkpreview"
	"github.com/xbookmarks/api/internal/media"
	"github.com/xbookmarks/api/internal/tweet"
)

// PreviewResolver resolves link previews; *linkpreview.Resolver satisfies it.
type PreviewResolver interface {
	Resolve(ctx context.Context, url string) (*linkpreview.Preview, error)
}

// Handler serves the JSON API and tweet images.
type Handler struct {
	tweetRepo    *tweet.Repository
	categoryRepo *category.Repository
	resolver     PreviewResolver
	mediaStore   media.Store
}

// Dependencies holds all dependencies for the Handler
type Dependencies struct {
	TweetRepo    *tweet.Repository
	CategoryRepo *category.Repository
	Resolver     PreviewResolver
	MediaStore   media.Store
}

// New creates a new Handler with all dependencies
func New(deps Dependencies) *Handler {
	return &Handler{
		tweetRepo:    deps.TweetRepo,
		categoryRepo: deps.CategoryRepo,
		resolver:     deps.Resolver,
		mediaStore:   deps.MediaStore,
	}
}
