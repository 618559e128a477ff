package linkpreview

import "time"

// DefaultFreshness is how long a cached preview is served before it is refetched.
const DefaultFreshness = 24 * time.Hour

// Preview is a cached Open Graph summary keyed by canonical URL.
// Any content field may be nil; a row with every field nil records a failed fetch.
type Preview struct {
	URL         string    `json:"url"`
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Image       *string   `json:"image"`
	SiteName    *string   `json:"siteName"`
	CachedAt    time.Time `json:"cachedAt"`
}

// Metadata is the result of extracting preview fields from an HTML document.
type Metadata struct {
	Title       *string
	Description *string
	Image       *string
	SiteName    *string
}

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
