// Package memory is an in-process document store. Each user document is an
// immutable snapshot held in a concurrent map; a mutation builds a new
// snapshot inside a single Compute call on the owner's key, so the
// precondition check and the write can never interleave with another writer
// of the same document.
package memory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/xid"

	"github.com/sakif/wish-board/internal/apperror"
	"github.com/sakif/wish-board/internal/model"
	"github.com/sakif/wish-board/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// document is never modified after it is stored.
type document struct {
	seq  int64 // creation order, used as the feed's natural order
	user model.User
}

type Store struct {
	docs      *xsync.MapOf[string, *document] // user ID → snapshot
	emails    *xsync.MapOf[string, string]    // email → user ID
	wishOwner *xsync.MapOf[string, string]    // wish ID → owner ID
	seq       atomic.Int64
	now       func() time.Time
}

func New() *Store {
	return &Store{
		docs:      xsync.NewMapOf[string, *document](),
		emails:    xsync.NewMapOf[string, string](),
		wishOwner: xsync.NewMapOf[string, string](),
		now:       time.Now,
	}
}

func (s *Store) Close() error { return nil }

// =========================================================================
// users
// =========================================================================

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	now := s.now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, loaded := s.emails.LoadOrStore(user.Email, user.ID); loaded {
		return apperror.Conflict("email", "This email is already taken")
	}

	u := *user
	u.Wishes = []model.Wish{}
	s.docs.Store(u.ID, &document{seq: s.seq.Add(1), user: u})
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	d, ok := s.docs.Load(id)
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	u := cloneUser(d.user)
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	id, ok := s.emails.Load(email)
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	return s.GetUserByID(ctx, id)
}

func (s *Store) EmailOrUsernameTaken(_ context.Context, email, username string) (bool, error) {
	if _, ok := s.emails.Load(email); ok {
		return true, nil
	}

	taken := false
	s.docs.Range(func(_ string, d *document) bool {
		taken = d.user.Username == username
		return !taken
	})
	return taken, nil
}

func (s *Store) UpdateUsername(_ context.Context, id, username string) (*model.User, error) {
	out, err := s.mutate(id, func(u *model.User) error {
		u.Username = username
		u.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// =========================================================================
// wishes
// =========================================================================

func (s *Store) AppendWish(_ context.Context, ownerID string, wish *model.Wish) error {
	wish.ID = xid.New().String()
	wish.Date = s.now().UTC()
	wish.Likes = []string{}
	wish.Comments = []model.Comment{}

	_, err := s.mutate(ownerID, func(u *model.User) error {
		u.Wishes = append(u.Wishes, wish.Clone())
		return nil
	})
	if err != nil {
		return err
	}

	s.wishOwner.Store(wish.ID, ownerID)
	return nil
}

func (s *Store) ListWishes(_ context.Context, ownerID string) ([]model.Wish, error) {
	d, ok := s.docs.Load(ownerID)
	if !ok {
		return nil, apperror.NotFound("user", ownerID)
	}
	return cloneUser(d.user).Wishes, nil
}

func (s *Store) SetVisibility(_ context.Context, ownerID, wishID string, isPublic bool) (*model.Wish, error) {
	var out model.Wish

	_, err := s.mutate(ownerID, func(u *model.User) error {
		i := indexOf(u.Wishes, wishID)
		if i < 0 {
			return apperror.NotFound("wish", wishID)
		}
		u.Wishes[i].IsPublic = isPublic
		out = u.Wishes[i].Clone()
		return nil
	})
	if err != nil {
		if isUserNotFound(err) {
			return nil, apperror.NotFound("wish", wishID)
		}
		return nil, err
	}
	return &out, nil
}

func (s *Store) ToggleLike(_ context.Context, wishID, userID string) (repository.LikeResult, error) {
	ownerID, ok := s.wishOwner.Load(wishID)
	if !ok {
		return repository.LikeResult{}, apperror.NotFound("wish", wishID)
	}

	var outcome model.LikeOutcome
	_, err := s.mutate(ownerID, func(u *model.User) error {
		w, err := publicWish(u, wishID)
		if err != nil {
			return err
		}

		liked := !w.LikedBy(userID)
		if liked {
			w.Likes = append(w.Likes, userID)
		} else {
			w.Likes = removeString(w.Likes, userID)
		}
		outcome = model.LikeOutcome{WishID: wishID, Liked: liked, Likes: len(w.Likes)}
		return nil
	})
	if err != nil {
		return repository.LikeResult{}, notFoundAsWish(err, wishID)
	}

	return repository.LikeResult{OwnerID: ownerID, Outcome: outcome}, nil
}

func (s *Store) AddComment(_ context.Context, wishID string, c model.Comment) (repository.CommentResult, error) {
	ownerID, ok := s.wishOwner.Load(wishID)
	if !ok {
		return repository.CommentResult{}, apperror.NotFound("wish", wishID)
	}

	c.ID = xid.New().String()
	c.Date = s.now().UTC()

	_, err := s.mutate(ownerID, func(u *model.User) error {
		w, err := publicWish(u, wishID)
		if err != nil {
			return err
		}
		w.Comments = append(w.Comments, c)
		return nil
	})
	if err != nil {
		return repository.CommentResult{}, notFoundAsWish(err, wishID)
	}

	return repository.CommentResult{OwnerID: ownerID, Comment: c}, nil
}

func (s *Store) ListPublic(_ context.Context, q model.FeedQuery) ([]model.FeedItem, int, error) {
	var docs []*document
	s.docs.Range(func(_ string, d *document) bool {
		docs = append(docs, d)
		return true
	})

	items, total := aggregate(docs, q)
	return items, total, nil
}

// =========================================================================
// helpers
// =========================================================================

type userNotFound struct{ *apperror.AppError }

func isUserNotFound(err error) bool {
	_, ok := err.(userNotFound)
	return ok
}

func notFoundAsWish(err error, wishID string) error {
	if isUserNotFound(err) {
		return apperror.NotFound("wish", wishID)
	}
	return err
}

// mutate applies fn to a private copy of the user's document and swaps the
// copy in. fn runs while the key is locked; returning an error leaves the
// stored snapshot untouched.
func (s *Store) mutate(id string, fn func(u *model.User) error) (model.User, error) {
	var (
		out    model.User
		fnErr  error
		exists bool
	)

	s.docs.Compute(id, func(old *document, loaded bool) (*document, bool) {
		if !loaded {
			// delete=true on a missing key is a no-op
			return nil, true
		}
		exists = true

		u := cloneUser(old.user)
		if fnErr = fn(&u); fnErr != nil {
			return old, false
		}
		out = u
		return &document{seq: old.seq, user: u}, false
	})

	if !exists {
		return model.User{}, userNotFound{apperror.NotFound("user", id)}
	}
	if fnErr != nil {
		return model.User{}, fnErr
	}
	return cloneUser(out), nil
}

func publicWish(u *model.User, wishID string) (*model.Wish, error) {
	i := indexOf(u.Wishes, wishID)
	if i < 0 || !u.Wishes[i].IsPublic {
		return nil, apperror.NotFound("wish", wishID)
	}
	return &u.Wishes[i], nil
}

func indexOf(wishes []model.Wish, id string) int {
	for i := range wishes {
		if wishes[i].ID == id {
			return i
		}
	}
	return -1
}

func removeString(in []string, s string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func cloneUser(u model.User) model.User {
	out := u
	out.Wishes = make([]model.Wish, len(u.Wishes))
	for i, w := range u.Wishes {
		out.Wishes[i] = w.Clone()
	}
	return out
}
