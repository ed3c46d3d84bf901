package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sakif/wish-board/internal/apperror"
	"github.com/sakif/wish-board/internal/auth"
	"github.com/sakif/wish-board/internal/model"
	"github.com/sakif/wish-board/internal/service"
)

// Feed is what the public feed handler needs from the service layer.
type Feed interface {
	ListPublic(ctx context.Context, q model.FeedQuery) (model.FeedPage, error)
}

// PublicWishHandler serves the public feed and the social actions on it.
// Reading is anonymous; commenting and liking need a session.
type PublicWishHandler struct {
	feed   Feed
	wishes Wishes
}

func NewPublicWishHandler(feed Feed, wishes Wishes) *PublicWishHandler {
	return &PublicWishHandler{feed: feed, wishes: wishes}
}

type likeResponse struct {
	Message string `json:"message"`
	Liked   bool   `json:"liked"`
	Likes   int    `json:"likes"`
}

// HandleList returns one page of public wishes.
//
// HTTP: GET /api/public-wishes?page=1&limit=10&sortBy=date&sortOrder=desc&search=cake
//
// Absent parameters take their defaults; present ones are validated by the
// feed service.
func (h *PublicWishHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q, err := parseFeedQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.feed.ListPublic(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleComment adds a comment to a public wish.
//
// HTTP: POST /api/public-wishes
// REQUEST BODY: {"wishId": "...", "text": "go for it"}
func (h *PublicWishHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("Unauthorized"))
		return
	}

	var req struct {
		WishID string `json:"wishId"`
		Text   string `json:"text"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.wishes.AddComment(r.Context(), id.ID, req.WishID, req.Text); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Comment added successfully"})
}

// HandleToggleLike likes or unlikes a public wish for the caller.
//
// HTTP: PATCH /api/public-wishes
// REQUEST BODY: {"wishId": "..."}
func (h *PublicWishHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("Unauthorized"))
		return
	}

	var req struct {
		WishID string `json:"wishId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	out, err := h.wishes.ToggleLike(r.Context(), id.ID, req.WishID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{
		Message: "Like toggled successfully",
		Liked:   out.Liked,
		Likes:   out.Likes,
	})
}

func parseFeedQuery(v url.Values) (model.FeedQuery, error) {
	q := service.DefaultFeedQuery()

	var err error
	if q.Page, err = intParam(v, "page", q.Page); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(v, "limit", q.Limit); err != nil {
		return q, err
	}
	if s := v.Get("sortBy"); s != "" {
		q.SortBy = model.SortField(s)
	}
	if s := v.Get("sortOrder"); s != "" {
		q.SortOrder = model.SortOrder(s)
	}
	q.Search = v.Get("search")
	return q, nil
}

func intParam(v url.Values, name string, def int) (int, error) {
	raw := v.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+": must be an integer")
	}
	return n, nil
}
