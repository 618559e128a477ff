// Package media reads tweet images from local disk or an S3-compatible bucket.
package media

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strconv"
	"strings"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid object key")
)

// Object is an open media object. Callers must Close it.
type Object struct {
	io.ReadSeekCloser
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Store is a read-only view of stored images, addressed by slash-separated keys
// such as "123/123_1.jpg".
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Open(ctx context.Context, key string) (*Object, error)
}

// cleanKey normalizes key and rejects anything that escapes the store root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.Contains(key, "\\") || strings.ContainsRune(key, 0) {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

func contentTypeFor(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ImageKey is where the first image of a tweet is stored.
func ImageKey(tweetID int64) string {
	id := strconv.FormatInt(tweetID, 10)
	return id + "/" + id + "_1.jpg"
}
