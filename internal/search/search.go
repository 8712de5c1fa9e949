// Package search answers the forum-wide search box across threads, posts and
// users. A SQL backend always works; a Meilisearch backend takes over when it
// is configured, healthy and switched on by feature flag.
package search

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Result limits per source and for the merged response.
const (
	MinQueryLen  = 2
	ThreadLimit  = 25
	PostLimit    = 25
	UserLimit    = 20
	MaxResults   = 50
	unknownLabel = "Unknown"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultThread ResultType = "thread"
	ResultPost   ResultType = "post"
	ResultUser   ResultType = "user"
)

// Result is a single search hit.
type Result struct {
	Type           ResultType `json:"type"`
	ID             uint       `json:"id"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	UserID         uint       `json:"user_id"`
	Username       string     `json:"username"`
	CategoryName   string     `json:"category_name,omitempty"`
	ThreadID       uint       `json:"thread_id,omitempty"`
	Rank           int        `json:"rank"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	Bio            string     `json:"bio,omitempty"`
	FollowersCount *int       `json:"followers_count,omitempty"`
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
}

// Backend runs one search over every source.
type Backend interface {
	Search(ctx context.Context, term string) ([]Result, error)
}

// normalizeQuery trims q and reports whether it is long enough to search.
func normalizeQuery(q string) (string, bool) {
	q = strings.TrimSpace(q)
	return q, utf8.RuneCountInString(q) >= MinQueryLen
}

// finalize orders results newest first and keeps at most MaxResults.
func finalize(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	return results
}

func orUnknown(s string) string {
	if s == "" {
		return unknownLabel
	}
	return s
}
