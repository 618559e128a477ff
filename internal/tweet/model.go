package tweet

import (
	"time"
)

// Media types stored in tweets.media_type.
const (
	MediaNone  = "none"
	MediaImage = "image"
	MediaVideo = "video"
)

type Tweet struct {
	ID             int64     `json:"id"`
	TweetURL       string    `json:"tweet_url"`
	Author         string    `json:"author"`
	AuthorName     *string   `json:"author_name"`
	FullText       string    `json:"full_text"`
	NoteTweetText  *string   `json:"note_tweet_text"`
	BookmarkDate   *string   `json:"bookmark_date"`
	TweetDate      *string   `json:"tweet_date"`
	MediaType      string    `json:"media_type"`
	ImagePath      *string   `json:"image_path"`
	VideoURL       *string   `json:"video_url"`
	CognitiveValue *string   `json:"cognitive_value"`
	CreatedAt      time.Time `json:"created_at"`
}

type CategoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// TweetWithCategories is a tweet as served by the API.
type TweetWithCategories struct {
	Tweet
	Categories []CategoryRef `json:"categories"`
	Subtags    []string      `json:"subtags"`
}

type ListOptions struct {
	Category string   // category slug
	Subtags  []string // matches any
	Search   string
	Limit    int
	Offset   int
}

type Stats struct {
	TotalTweets      int `json:"totalTweets"`
	TotalCategories  int `json:"totalCategories"`
	TweetsWithImages int `json:"tweetsWithImages"`
	TweetsWithVideos int `json:"tweetsWithVideos"`
}
