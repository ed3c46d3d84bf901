package memory

import (
	"sort"
	"strings"

	"github.com/sakif/wish-board/internal/model"
)

// aggregate flattens the public wishes of docs into feed items, filters by
// q.Search (case-insensitive substring), sorts by q.SortBy / q.SortOrder and
// returns the page selected by q together with the filtered total.
//
// Natural order is document creation order, then wish position; the sort is
// stable so ties keep it.
func aggregate(docs []*document, q model.FeedQuery) ([]model.FeedItem, int) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })

	needle := strings.ToLower(q.Search)

	items := []model.FeedItem{}
	for _, d := range docs {
		for _, w := range d.user.Wishes {
			if !w.IsPublic {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(w.Text), needle) {
				continue
			}
			items = append(items, toFeedItem(d.user, w))
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if q.SortOrder == model.SortAsc {
			a, b = b, a
		}
		if q.SortBy == model.SortByLikes {
			return a.Likes > b.Likes
		}
		return a.Date.After(b.Date)
	})

	total := len(items)
	start := q.Offset()
	if start < 0 {
		start = 0
	}
	if start >= total {
		return []model.FeedItem{}, total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return items[start:end], total
}

func toFeedItem(u model.User, w model.Wish) model.FeedItem {
	c := w.Clone()
	return model.FeedItem{
		WishID:   w.ID,
		Text:     w.Text,
		Date:     w.Date,
		Likes:    len(w.Likes),
		Comments: c.Comments,
		Author:   u.Username,
		User:     model.FeedAuthor{Name: u.Username, Image: u.ProfilePic},
	}
}
