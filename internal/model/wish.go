package model

import "time"

// Wish is a short text entry owned by exactly one user.
//
// Likes holds user IDs. A user ID appears at most once.
type Wish struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Date     time.Time `json:"date"`
	IsPublic bool      `json:"isPublic"`
	Likes    []string  `json:"likes"`
	Comments []Comment `json:"comments"`
}

// Comment is immutable once created.
type Comment struct {
	ID     string    `json:"id"`
	UserID string    `json:"user"`
	Text   string    `json:"text"`
	Date   time.Time `json:"date"`
}

// LikedBy reports whether userID has liked the wish.
func (w *Wish) LikedBy(userID string) bool {
	for _, id := range w.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate it without touching the
// original's slices.
func (w Wish) Clone() Wish {
	out := w
	out.Likes = make([]string, len(w.Likes))
	copy(out.Likes, w.Likes)
	out.Comments = make([]Comment, len(w.Comments))
	copy(out.Comments, w.Comments)
	return out
}

// LikeOutcome is the result of a like toggle.
type LikeOutcome struct {
	WishID string `json:"wishId"`
	Liked  bool   `json:"liked"`
	Likes  int    `json:"likes"`
}
