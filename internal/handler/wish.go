package handler

import (
	"context"
	"net/http"

	"github.com/sakif/wish-board/internal/apperror"
	"github.com/sakif/wish-board/internal/auth"
	"github.com/sakif/wish-board/internal/model"
)

// Wishes is what the wish handlers need from the service layer.
type Wishes interface {
	Create(ctx context.Context, ownerID, text string, isPublic bool) (*model.Wish, error)
	ListOwn(ctx context.Context, ownerID string) ([]model.Wish, error)
	SetVisibility(ctx context.Context, ownerID, wishID string, isPublic bool) (*model.Wish, error)
	ToggleLike(ctx context.Context, actorID, wishID string) (model.LikeOutcome, error)
	AddComment(ctx context.Context, actorID, wishID, text string) (*model.Comment, error)
}

// WishHandler serves the caller's own wish list. Every route is behind
// RequireAuth.
type WishHandler struct {
	wishes Wishes
}

func NewWishHandler(wishes Wishes) *WishHandler {
	return &WishHandler{wishes: wishes}
}

// HandleList returns the caller's wishes in creation order.
//
// HTTP: GET /api/wishes
func (h *WishHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("Unauthorized"))
		return
	}

	wishes, err := h.wishes.ListOwn(r.Context(), id.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wishes)
}

// HandleCreate appends a wish. isPublic defaults to false.
//
// HTTP: POST /api/wishes
// REQUEST BODY: {"text": "learn to surf", "isPublic": true}
func (h *WishHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("Unauthorized"))
		return
	}

	var req struct {
		Text     string `json:"text"`
		IsPublic bool   `json:"isPublic"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	wish, err := h.wishes.Create(r.Context(), id.ID, req.Text, req.IsPublic)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wish)
}

// HandleSetVisibility publishes or hides one of the caller's wishes.
//
// HTTP: PATCH /api/wishes
// REQUEST BODY: {"wishId": "...", "isPublic": false}
//
// isPublic is required; a missing or non-boolean value is rejected.
func (h *WishHandler) HandleSetVisibility(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("Unauthorized"))
		return
	}

	var req struct {
		WishID   string `json:"wishId"`
		IsPublic *bool  `json:"isPublic"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WishID == "" || req.IsPublic == nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid request"))
		return
	}

	wish, err := h.wishes.SetVisibility(r.Context(), id.ID, req.WishID, *req.IsPublic)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wish)
}
