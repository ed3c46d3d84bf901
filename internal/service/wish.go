package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/sakif/wish-board/internal/cache"
	"github.com/sakif/wish-board/internal/model"
	"github.com/sakif/wish-board/internal/repository"
)

const (
	MaxWishLength    = 1000
	MaxCommentLength = 500
)

// WishService owns the wish lifecycle: creating, listing, publishing, liking
// and commenting. Every write invalidates the cached reads it affects before
// returning, whether or not the write succeeded.
type WishService struct {
	repo   repository.WishRepository
	reads  readCache
	logger *slog.Logger
}

func NewWishService(repo repository.WishRepository, store cache.Store, cacheTTL time.Duration, logger *slog.Logger) *WishService {
	return &WishService{
		repo:   repo,
		reads:  newReadCache(store, cacheTTL, logger),
		logger: logger,
	}
}

type createWishInput struct {
	Text string `json:"text"`
}

func (in createWishInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Text,
			validation.Required.Error("wish text must not be empty"),
			validation.RuneLength(1, MaxWishLength),
		),
	)
}

// Create appends a new wish to ownerID's list.
func (s *WishService) Create(ctx context.Context, ownerID, text string, isPublic bool) (*model.Wish, error) {
	in := createWishInput{Text: strings.TrimSpace(text)}
	if err := in.Validate(); err != nil {
		return nil, fromValidation(err)
	}

	wish := &model.Wish{Text: in.Text, IsPublic: isPublic}

	defer func() {
		ctx := context.WithoutCancel(ctx)
		s.reads.invalidateOwner(ctx, ownerID)
		if isPublic {
			s.reads.invalidateFeed(ctx)
		}
	}()

	if err := s.repo.AppendWish(ctx, ownerID, wish); err != nil {
		return nil, fmt.Errorf("service/wish: creating wish for %s: %w", ownerID, err)
	}

	s.logger.Info("wish created",
		slog.String("ownerID", ownerID),
		slog.String("wishID", wish.ID),
		slog.Bool("isPublic", isPublic),
	)
	return wish, nil
}

// ListOwn returns ownerID's wishes in creation order. The list is served from
// cache when possible; a cache failure falls back to the store.
func (s *WishService) ListOwn(ctx context.Context, ownerID string) ([]model.Wish, error) {
	key := cache.WishesKey(ownerID)
	return readThrough(ctx, s.reads, key, key, func() ([]model.Wish, error) {
		wishes, err := s.repo.ListWishes(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("service/wish: listing wishes for %s: %w", ownerID, err)
		}
		return wishes, nil
	})
}

// SetVisibility publishes or hides one of ownerID's wishes.
func (s *WishService) SetVisibility(ctx context.Context, ownerID, wishID string, isPublic bool) (*model.Wish, error) {
	if err := validation.Validate(wishID, validation.Required); err != nil {
		return nil, fromValidation(validation.Errors{"wishId": err})
	}

	defer func() {
		ctx := context.WithoutCancel(ctx)
		s.reads.invalidateOwner(ctx, ownerID)
		s.reads.invalidateFeed(ctx)
	}()

	wish, err := s.repo.SetVisibility(ctx, ownerID, wishID, isPublic)
	if err != nil {
		return nil, fmt.Errorf("service/wish: setting visibility of %s: %w", wishID, err)
	}
	return wish, nil
}

// ToggleLike likes a public wish for actorID, or removes the like if actorID
// has already liked it.
func (s *WishService) ToggleLike(ctx context.Context, actorID, wishID string) (model.LikeOutcome, error) {
	if err := validation.Validate(wishID, validation.Required); err != nil {
		return model.LikeOutcome{}, fromValidation(validation.Errors{"wishId": err})
	}

	var ownerID string
	defer func() {
		ctx := context.WithoutCancel(ctx)
		s.reads.invalidateFeed(ctx)
		s.reads.invalidateOwner(ctx, ownerID)
	}()

	res, err := s.repo.ToggleLike(ctx, wishID, actorID)
	if err != nil {
		return model.LikeOutcome{}, fmt.Errorf("service/wish: toggling like on %s: %w", wishID, err)
	}
	ownerID = res.OwnerID

	s.logger.Debug("like toggled",
		slog.String("wishID", wishID),
		slog.String("actorID", actorID),
		slog.Bool("liked", res.Outcome.Liked),
	)
	return res.Outcome, nil
}

type commentInput struct {
	WishID string `json:"wishId"`
	Text   string `json:"text"`
}

func (in commentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.WishID, validation.Required),
		validation.Field(&in.Text,
			validation.Required.Error("comment text must not be empty"),
			validation.RuneLength(1, MaxCommentLength),
		),
	)
}

// AddComment appends a comment by actorID to a public wish.
func (s *WishService) AddComment(ctx context.Context, actorID, wishID, text string) (*model.Comment, error) {
	in := commentInput{WishID: wishID, Text: strings.TrimSpace(text)}
	if err := in.Validate(); err != nil {
		return nil, fromValidation(err)
	}

	var ownerID string
	defer func() {
		ctx := context.WithoutCancel(ctx)
		s.reads.invalidateFeed(ctx)
		s.reads.invalidateOwner(ctx, ownerID)
	}()

	res, err := s.repo.AddComment(ctx, wishID, model.Comment{UserID: actorID, Text: in.Text})
	if err != nil {
		return nil, fmt.Errorf("service/wish: commenting on %s: %w", wishID, err)
	}
	ownerID = res.OwnerID
	return &res.Comment, nil
}
