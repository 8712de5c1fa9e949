package search

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"bitboard/internal/middleware"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxThreads = "bitboard_threads"
	idxPosts   = "bitboard_posts"
	idxUsers   = "bitboard_users"
)

// Document is the indexed form of a thread, post or user. The same shape is
// used for every index so hits decode uniformly.
type Document struct {
	ID             uint   `json:"id"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	CreatedAt      int64  `json:"created_at"`
	UserID         uint   `json:"user_id"`
	Username       string `json:"username"`
	CategoryName   string `json:"category_name,omitempty"`
	ThreadID       uint   `json:"thread_id,omitempty"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	Bio            string `json:"bio,omitempty"`
	FollowersCount *int   `json:"followers_count,omitempty"`
}

func (d Document) result(t ResultType) Result {
	return Result{
		Type:           t,
		ID:             d.ID,
		Title:          d.Title,
		Content:        d.Content,
		CreatedAt:      time.Unix(d.CreatedAt, 0).UTC(),
		UserID:         d.UserID,
		Username:       d.Username,
		CategoryName:   d.CategoryName,
		ThreadID:       d.ThreadID,
		Rank:           1,
		AvatarURL:      d.AvatarURL,
		Bio:            d.Bio,
		FollowersCount: d.FollowersCount,
	}
}

// Meili searches and indexes through Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the indexes. An
// unreachable server is not an error: the client reports unhealthy until
// the background health check sees it come up.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))
	m := &Meili{client: client, done: make(chan struct{})}

	if _, err := client.Health(); err != nil {
		middleware.Logger.Warn("meilisearch unavailable", slog.String("url", url), slog.String("error", err.Error()))
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		searchable []string
	}{
		{uid: idxThreads, searchable: []string{"title"}},
		{uid: idxPosts, searchable: []string{"content"}},
		{uid: idxUsers, searchable: []string{"username", "bio"}},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idx.uid, PrimaryKey: "id"}); err != nil {
			middleware.Logger.Debug("create index", slog.String("index", idx.uid), slog.String("error", err.Error()))
		}
		index := m.client.Index(idx.uid)
		searchable := idx.searchable
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			middleware.Logger.Warn("update searchable attributes", slog.String("index", idx.uid), slog.String("error", err.Error()))
		}
		sortable := []string{"created_at"}
		if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
			middleware.Logger.Warn("update sortable attributes", slog.String("index", idx.uid), slog.String("error", err.Error()))
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				middleware.Logger.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the three indexes in one multi-search request.
func (m *Meili) Search(term string) ([]Result, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	queries := []*meili.SearchRequest{
		{IndexUID: idxThreads, Query: term, Limit: ThreadLimit, Sort: []string{"created_at:desc"}},
		{IndexUID: idxPosts, Query: term, Limit: PostLimit, Sort: []string{"created_at:desc"}},
		{IndexUID: idxUsers, Query: term, Limit: UserLimit},
	}
	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	for _, sr := range resp.Results {
		t := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			doc, err := decodeHit(hit)
			if err != nil {
				continue
			}
			results = append(results, doc.result(t))
		}
	}
	return results, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxThreads:
		return ResultThread
	case idxPosts:
		return ResultPost
	default:
		return ResultUser
	}
}

func decodeHit(hit meili.Hit) (Document, error) {
	raw, err := json.Marshal(hit)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	err = json.Unmarshal(raw, &doc)
	return doc, err
}

func (m *Meili) index(uid string, doc Document) error {
	_, err := m.client.Index(uid).AddDocuments([]Document{doc}, nil)
	return err
}

func (m *Meili) remove(uid string, id uint) error {
	_, err := m.client.Index(uid).DeleteDocument(fmt.Sprint(id), nil)
	return err
}
