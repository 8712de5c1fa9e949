package client

import (
	"context"
	"encoding/json"

	"bitboard/internal/feed"
	"bitboard/internal/normalize"
)

// ThreadFeed is the live home feed: pages of threads kept current by the
// realtime change feed. New threads are prepended as they arrive.
type ThreadFeed struct {
	List     *feed.List[normalize.Thread, uint]
	Pager    *feed.Pager[normalize.Thread, uint]
	Scroller *feed.Scroller[normalize.Thread, uint]

	sub *Subscription
}

func threadID(t normalize.Thread) uint { return t.ID }

func decodeThread(raw json.RawMessage) (normalize.Thread, error) {
	var r normalize.RawThread
	if err := json.Unmarshal(raw, &r); err != nil {
		return normalize.Thread{}, err
	}
	return normalize.NormalizeThread(r), nil
}

// ThreadFeed loads the first page of threads in categoryID (0 for all) and
// subscribes to thread changes. Cancel ctx or call Close to stop listening.
func (c *Client) ThreadFeed(ctx context.Context, categoryID uint, limit int) (*ThreadFeed, error) {
	list := feed.NewList[normalize.Thread, uint](feed.Prepend, threadID,
		feed.WithDecoder[normalize.Thread, uint](decodeThread))
	pager := feed.NewPager(list, limit, func(ctx context.Context, cur feed.Cursor) (feed.Page[normalize.Thread], error) {
		return c.Threads(ctx, categoryID, cur)
	})
	tf := &ThreadFeed{List: list, Pager: pager, Scroller: feed.NewScroller(pager)}

	// Subscribe before the first load so no insert falls between the two.
	sub, err := c.Subscribe(ctx, "threads", "", Handlers{
		OnChange: func(ch feed.Change) {
			if categoryID != 0 && ch.Type == feed.Insert && !inCategory(ch.New, categoryID) {
				return
			}
			_ = list.Apply(ch)
		},
	})
	if err != nil {
		return nil, err
	}
	tf.sub = sub

	if err := pager.Refresh(ctx); err != nil {
		sub.Close()
		return nil, err
	}
	return tf, nil
}

func inCategory(row json.RawMessage, categoryID uint) bool {
	var r struct {
		CategoryID uint `json:"category_id"`
	}
	return json.Unmarshal(row, &r) == nil && r.CategoryID == categoryID
}

// Done is closed when the realtime connection ends.
func (f *ThreadFeed) Done() <-chan struct{} { return f.sub.Done() }

// Close stops the realtime subscription. The list keeps its last state.
func (f *ThreadFeed) Close() { f.sub.Close() }
