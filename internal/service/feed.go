package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/sakif/wish-board/internal/cache"
	"github.com/sakif/wish-board/internal/model"
	"github.com/sakif/wish-board/internal/repository"
)

// FeedService serves pages of the public feed.
type FeedService struct {
	repo  repository.WishRepository
	reads readCache
}

func NewFeedService(repo repository.WishRepository, store cache.Store, cacheTTL time.Duration, logger *slog.Logger) *FeedService {
	return &FeedService{repo: repo, reads: newReadCache(store, cacheTTL, logger)}
}

// DefaultFeedQuery is the query used when a caller supplies no parameters.
func DefaultFeedQuery() model.FeedQuery {
	return model.FeedQuery{
		Page:      model.DefaultFeedPage,
		Limit:     model.DefaultFeedLimit,
		SortBy:    model.SortByDate,
		SortOrder: model.SortDesc,
	}
}

type feedQueryInput struct {
	Page      int             `json:"page"`
	Limit     int             `json:"limit"`
	SortBy    model.SortField `json:"sortBy"`
	SortOrder model.SortOrder `json:"sortOrder"`
}

func (q feedQueryInput) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Page,
			validation.Required.Error("must be at least 1"),
			validation.Min(1),
			validation.Max(model.MaxFeedPage),
		),
		validation.Field(&q.Limit,
			validation.Required.Error("must be at least 1"),
			validation.Min(1),
			validation.Max(model.MaxFeedLimit),
		),
		validation.Field(&q.SortBy, validation.Required, validation.In(model.SortByDate, model.SortByLikes)),
		validation.Field(&q.SortOrder, validation.Required, validation.In(model.SortAsc, model.SortDesc)),
	)
}

// ListPublic returns the page of public wishes selected by q. Pages are cached
// under the full parameter tuple.
func (s *FeedService) ListPublic(ctx context.Context, q model.FeedQuery) (model.FeedPage, error) {
	in := feedQueryInput{Page: q.Page, Limit: q.Limit, SortBy: q.SortBy, SortOrder: q.SortOrder}
	if err := in.Validate(); err != nil {
		return model.FeedPage{}, fromValidation(err)
	}

	key := cache.FeedKey(q.Page, q.Limit, string(q.SortBy), string(q.SortOrder), q.Search)
	return readThrough(ctx, s.reads, cache.FeedPrefix, key, func() (model.FeedPage, error) {
		items, total, err := s.repo.ListPublic(ctx, q)
		if err != nil {
			return model.FeedPage{}, fmt.Errorf("service/feed: listing public wishes: %w", err)
		}
		return model.NewFeedPage(items, q, total), nil
	})
}
