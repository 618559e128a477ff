package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/xbookmarks/api/internal/tweet"
)

// ListTweetsParams are the query parameters of GET /tweets.
type ListTweetsParams struct {
	Category *string   `form:"category,omitempty"`
	Subtags  *[]string `form:"subtags,omitempty"`
	Search   *string   `form:"search,omitempty"`
	Limit    *int      `form:"limit,omitempty"`
	Offset   *int      `form:"offset,omitempty"`
}

func bindListTweetsParams(r *http.Request) (ListTweetsParams, error) {
	var params ListTweetsParams
	query := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, false, "category", query, &params.Category); err != nil {
		return params, err
	}
	// subtags=a,b
	if err := runtime.BindQueryParameter("form", false, false, "subtags", query, &params.Subtags); err != nil {
		return params, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "search", query, &params.Search); err != nil {
		return params, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &params.Limit); err != nil {
		return params, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", query, &params.Offset); err != nil {
		return params, err
	}

	return params, nil
}

func (p ListTweetsParams) listOptions() tweet.ListOptions {
	var opts tweet.ListOptions
	if p.Category != nil {
		opts.Category = *p.Category
	}
	if p.Subtags != nil {
		opts.Subtags = *p.Subtags
	}
	if p.Search != nil {
		opts.Search = *p.Search
	}
	if p.Limit != nil {
		opts.Limit = *p.Limit
	}
	if p.Offset != nil {
		opts.Offset = *p.Offset
	}
	return opts
}

// ListTweets returns a filtered, paginated page of tweets.
func (h *Handler) ListTweets(w http.ResponseWriter, r *http.Request) {
	params, err := bindListTweetsParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, validationErrorResponse(err.Error()))
		return
	}

	tweets, err := h.tweetRepo.List(r.Context(), params.listOptions())
	if err != nil {
		writeInternalError(w, r, "Failed to fetch tweets", err)
		return
	}
	writeJSON(w, http.StatusOK, tweets)
}

func bindTweetID(r *http.Request) (int64, error) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	return id, err
}

// GetTweet returns one tweet with its categories and subtags.
func (h *Handler) GetTweet(w http.ResponseWriter, r *http.Request) {
	id, err := bindTweetID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, validationErrorResponse(err.Error()))
		return
	}

	t, err := h.tweetRepo.GetByID(r.Context(), id)
	if errors.Is(err, tweet.ErrTweetNotFound) {
		writeError(w, http.StatusNotFound, notFoundResponse("Tweet not found"))
		return
	}
	if err != nil {
		writeInternalError(w, r, "Failed to fetch tweet", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type messageResponse struct {
	Message string `json:"message"`
}

// DeleteTweet removes a tweet and its category links.
func (h *Handler) DeleteTweet(w http.ResponseWriter, r *http.Request) {
	id, err := bindTweetID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, validationErrorResponse(err.Error()))
		return
	}

	err = h.tweetRepo.Delete(r.Context(), id)
	if errors.Is(err, tweet.ErrTweetNotFound) {
		writeError(w, http.StatusNotFound, notFoundResponse("Tweet not found"))
		return
	}
	if err != nil {
		writeInternalError(w, r, "Failed to delete tweet", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Tweet deleted successfully"})
}

// GetStats returns collection totals.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tweetRepo.Stats(r.Context())
	if err != nil {
		writeInternalError(w, r, "Failed to fetch stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
