// Package repository declares the storage contracts of the wish store. The
// sqlite and memory sub-packages implement them.
package repository

import (
	"context"

	"github.com/sakif/wish-board/internal/model"
)

// UserRepository stores user documents.
type UserRepository interface {
	// CreateUser assigns ID and timestamps. A duplicate email yields
	// apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// EmailOrUsernameTaken reports whether any user already has email or
	// username.
	EmailOrUsernameTaken(ctx context.Context, email, username string) (bool, error)
	UpdateUsername(ctx context.Context, id, username string) (*model.User, error)
}

// LikeResult is returned by WishRepository.ToggleLike.
type LikeResult struct {
	OwnerID string
	Outcome model.LikeOutcome
}

// CommentResult is returned by WishRepository.AddComment.
type CommentResult struct {
	OwnerID string
	Comment model.Comment
}

// WishRepository stores wishes embedded in their owner's document.
//
// Every method that mutates a wish evaluates its precondition (ownership or
// public visibility) and applies the change as one atomic step against the
// same snapshot. A missing or non-matching wish yields apperror.ErrNotFound.
type WishRepository interface {
	// AppendWish assigns wish.ID and wish.Date and appends it to the
	// owner's list.
	AppendWish(ctx context.Context, ownerID string, wish *model.Wish) error
	ListWishes(ctx context.Context, ownerID string) ([]model.Wish, error)
	SetVisibility(ctx context.Context, ownerID, wishID string, isPublic bool) (*model.Wish, error)
	// ToggleLike adds userID to the likes of a public wish, or removes it if
	// already present.
	ToggleLike(ctx context.Context, wishID, userID string) (LikeResult, error)
	// AddComment appends c to a public wish, assigning its ID and Date.
	AddComment(ctx context.Context, wishID string, c model.Comment) (CommentResult, error)
	// ListPublic flattens all public wishes, filters by q.Search, sorts and
	// returns the requested page plus the filtered total.
	ListPublic(ctx context.Context, q model.FeedQuery) ([]model.FeedItem, int, error)
}

// Store is a full backend.
type Store interface {
	UserRepository
	WishRepository
	Close() error
}
