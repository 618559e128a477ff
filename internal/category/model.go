package category

import (
	"regexp"
	"sort"
	"strings"
)

type Category struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	TweetCount int    `json:"tweet_count"`
}

// Defaults are the curated categories every import starts from.
var Defaults = []Category{
	{Name: "AI Orchestration & Agentics", Slug: "ai-orchestration-agentics"},
	{Name: "Technical Excellence", Slug: "technical-excellence"},
	{Name: "Product Sense & Market Dynamics", Slug: "product-sense-market-dynamics"},
	{Name: "Strategic Agency & Career Growth", Slug: "strategic-agency-career-growth"},
	{Name: "The Builder's Toolbox", Slug: "builders-toolbox"},
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases text and collapses runs of other characters into single dashes.
func Slugify(text string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(text), "-")
	return strings.Trim(s, "-")
}

// ParseTags splits a comma-separated subtag list, trimming entries and
// dropping blanks and repeats while keeping first-seen order.
func ParseTags(list string) []string {
	tags := []string{}
	seen := make(map[string]bool)
	for _, tag := range strings.Split(list, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// JoinTags is the inverse of ParseTags.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// sortedTags returns the distinct tags across all lists, sorted.
func sortedTags(lists []string) []string {
	seen := make(map[string]bool)
	tags := []string{}
	for _, list := range lists {
		for _, tag := range ParseTags(list) {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	sort.Strings(tags)
	return tags
}
