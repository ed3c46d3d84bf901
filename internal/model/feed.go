package model

import (
	"math"
	"time"
)

type SortField string

const (
	SortByDate  SortField = "date"
	SortByLikes SortField = "likes"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const (
	DefaultFeedPage  = 1
	DefaultFeedLimit = 10
	MaxFeedLimit     = 100
	// MaxFeedPage keeps (page-1)*limit well inside int range.
	MaxFeedPage = 1_000_000
)

// FeedQuery selects one page of the public feed.
type FeedQuery struct {
	Page      int
	Limit     int
	SortBy    SortField
	SortOrder SortOrder
	Search    string
}

// Offset is the number of filtered, sorted items skipped before this page.
// It saturates at math.MaxInt rather than wrapping, so an oversized page
// selects nothing.
func (q FeedQuery) Offset() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// FeedAuthor is the public face of a wish's owner.
type FeedAuthor struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// FeedItem is one public wish flattened out of its owner's document.
type FeedItem struct {
	WishID   string     `json:"wishId"`
	Text     string     `json:"text"`
	Date     time.Time  `json:"date"`
	Likes    int        `json:"likes"`
	Comments []Comment  `json:"comments"`
	Author   string     `json:"author"`
	User     FeedAuthor `json:"user"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// FeedPage is the response body of GET /api/public-wishes.
type FeedPage struct {
	Wishes     []FeedItem `json:"wishes"`
	Pagination Pagination `json:"pagination"`
}

// NewFeedPage computes pagination metadata for a page of items.
func NewFeedPage(items []FeedItem, q FeedQuery, total int) FeedPage {
	if items == nil {
		items = []FeedItem{}
	}
	pages := 0
	if q.Limit > 0 {
		pages = (total + q.Limit - 1) / q.Limit
	}
	return FeedPage{
		Wishes: items,
		Pagination: Pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      total,
			TotalPages: pages,
		},
	}
}
