package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/wish-board/internal/apperror"
	"github.com/sakif/wish-board/internal/model"
	"github.com/sakif/wish-board/internal/repository"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) AppendWish(ctx context.Context, ownerID string, wish *model.Wish) error {
	wish.ID = xid.New().String()
	wish.Date = db.now().UTC()
	wish.Likes = []string{}
	wish.Comments = []model.Comment{}

	return db.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, ownerID); err != nil {
			return err
		}

		// position is computed inside the INSERT, which runs under the
		// transaction's write lock.
		_, err := tx.ExecContext(ctx,
			`INSERT INTO wishes (id, owner_id, position, text, is_public, created_at)
			 SELECT ?, ?, COALESCE(MAX(position), 0) + 1, ?, ?, ?
			 FROM wishes WHERE owner_id = ?`,
			wish.ID, ownerID, wish.Text, wish.IsPublic, wish.Date.UnixNano(), ownerID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: appending wish for %s: %w", ownerID, err)
		}
		return nil
	})
}

func (db *DB) ListWishes(ctx context.Context, ownerID string) ([]model.Wish, error) {
	var wishes []model.Wish

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, ownerID); err != nil {
			return err
		}

		var err error
		wishes, err = queryWishes(ctx, tx,
			`SELECT id, text, created_at, is_public FROM wishes WHERE owner_id = ? ORDER BY position`, ownerID)
		if err != nil {
			return err
		}
		return attachLikesAndComments(ctx, tx, wishes,
			`JOIN wishes w ON w.id = x.wish_id WHERE w.owner_id = ?`, ownerID)
	})
	if err != nil {
		return nil, err
	}

	return wishes, nil
}

func (db *DB) SetVisibility(ctx context.Context, ownerID, wishID string, isPublic bool) (*model.Wish, error) {
	var out *model.Wish

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE wishes SET is_public = ? WHERE id = ? AND owner_id = ?`,
			isPublic, wishID, ownerID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating visibility of %s: %w", wishID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("wish", wishID)
		}

		out, err = loadWish(ctx, tx, wishID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// ToggleLike checks visibility and flips membership inside one IMMEDIATE
// transaction. Every statement also carries the is_public guard.
func (db *DB) ToggleLike(ctx context.Context, wishID, userID string) (repository.LikeResult, error) {
	var out repository.LikeResult

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		ownerID, err := publicWishOwner(ctx, tx, wishID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM wish_likes WHERE wish_id = ? AND user_id = ?
			 AND EXISTS (SELECT 1 FROM wishes WHERE id = ? AND is_public = 1)`,
			wishID, userID, wishID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: unliking %s: %w", wishID, err)
		}

		liked := false
		if n, _ := res.RowsAffected(); n == 0 {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO wish_likes (wish_id, user_id)
				 SELECT ?, ? WHERE EXISTS (SELECT 1 FROM wishes WHERE id = ? AND is_public = 1)`,
				wishID, userID, wishID,
			)
			if err != nil {
				return fmt.Errorf("sqlite: liking %s: %w", wishID, err)
			}
			liked = true
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM wish_likes WHERE wish_id = ?`, wishID,
		).Scan(&count); err != nil {
			return fmt.Errorf("sqlite: counting likes of %s: %w", wishID, err)
		}

		out = repository.LikeResult{
			OwnerID: ownerID,
			Outcome: model.LikeOutcome{WishID: wishID, Liked: liked, Likes: count},
		}
		return nil
	})
	if err != nil {
		return repository.LikeResult{}, err
	}

	return out, nil
}

func (db *DB) AddComment(ctx context.Context, wishID string, c model.Comment) (repository.CommentResult, error) {
	c.ID = xid.New().String()
	c.Date = db.now().UTC()

	var ownerID string
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		ownerID, err = publicWishOwner(ctx, tx, wishID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO wish_comments (id, wish_id, user_id, text, created_at) VALUES (?, ?, ?, ?, ?)`,
			c.ID, wishID, c.UserID, c.Text, c.Date.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("sqlite: commenting on %s: %w", wishID, err)
		}
		return nil
	})
	if err != nil {
		return repository.CommentResult{}, err
	}

	return repository.CommentResult{OwnerID: ownerID, Comment: c}, nil
}

// ListPublic pushes filter, sort and pagination into SQL. Ties fall back to
// the natural storage order: owner creation order, then wish position.
func (db *DB) ListPublic(ctx context.Context, q model.FeedQuery) ([]model.FeedItem, int, error) {
	where := `w.is_public = 1`
	var args []any
	if q.Search != "" {
		where += ` AND instr(lower(w.text), lower(?)) > 0`
		args = append(args, q.Search)
	}

	sortCol := "w.created_at"
	if q.SortBy == model.SortByLikes {
		sortCol = "likes"
	}
	dir := "DESC"
	if q.SortOrder == model.SortAsc {
		dir = "ASC"
	}

	var (
		items []model.FeedItem
		total int
	)

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM wishes w WHERE `+where, args...,
		).Scan(&total); err != nil {
			return fmt.Errorf("sqlite: counting public wishes: %w", err)
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT w.id, w.text, w.created_at, u.username, u.profile_pic,
			        (SELECT COUNT(*) FROM wish_likes l WHERE l.wish_id = w.id) AS likes
			 FROM wishes w JOIN users u ON u.id = w.owner_id
			 WHERE `+where+`
			 ORDER BY `+sortCol+` `+dir+`, u.rowid, w.position
			 LIMIT ? OFFSET ?`,
			append(args, q.Limit, q.Offset())...,
		)
		if err != nil {
			return fmt.Errorf("sqlite: listing public wishes: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				it   model.FeedItem
				nano int64
			)
			if err := rows.Scan(&it.WishID, &it.Text, &nano, &it.Author, &it.User.Image, &it.Likes); err != nil {
				return fmt.Errorf("sqlite: scanning feed row: %w", err)
			}
			it.Date = time.Unix(0, nano).UTC()
			it.User.Name = it.Author
			it.Comments = []model.Comment{}
			items = append(items, it)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("sqlite: iterating feed rows: %w", err)
		}
		rows.Close()

		return attachFeedComments(ctx, tx, items)
	})
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// =========================================================================
// helpers
// =========================================================================

func requireUser(ctx context.Context, q querier, userID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound("user", userID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: looking up user %s: %w", userID, err)
	}
	return nil
}

// publicWishOwner returns the owner of wishID, or NotFound when the wish is
// missing or private.
func publicWishOwner(ctx context.Context, q querier, wishID string) (string, error) {
	var ownerID string
	err := q.QueryRowContext(ctx,
		`SELECT owner_id FROM wishes WHERE id = ? AND is_public = 1`, wishID,
	).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperror.NotFound("wish", wishID)
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: looking up wish %s: %w", wishID, err)
	}
	return ownerID, nil
}

func loadWish(ctx context.Context, q querier, wishID string) (*model.Wish, error) {
	wishes, err := queryWishes(ctx, q,
		`SELECT id, text, created_at, is_public FROM wishes WHERE id = ?`, wishID)
	if err != nil {
		return nil, err
	}
	if len(wishes) == 0 {
		return nil, apperror.NotFound("wish", wishID)
	}
	if err := attachLikesAndComments(ctx, q, wishes, `WHERE x.wish_id = ?`, wishID); err != nil {
		return nil, err
	}
	return &wishes[0], nil
}

func queryWishes(ctx context.Context, q querier, query string, args ...any) ([]model.Wish, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying wishes: %w", err)
	}
	defer rows.Close()

	wishes := []model.Wish{}
	for rows.Next() {
		var (
			w    model.Wish
			nano int64
		)
		if err := rows.Scan(&w.ID, &w.Text, &nano, &w.IsPublic); err != nil {
			return nil, fmt.Errorf("sqlite: scanning wish: %w", err)
		}
		w.Date = time.Unix(0, nano).UTC()
		w.Likes = []string{}
		w.Comments = []model.Comment{}
		wishes = append(wishes, w)
	}
	return wishes, rows.Err()
}

// attachLikesAndComments fills Likes and Comments of wishes. filter is a
// clause over the alias x (wish_likes or wish_comments).
func attachLikesAndComments(ctx context.Context, q querier, wishes []model.Wish, filter string, args ...any) error {
	idx := make(map[string]int, len(wishes))
	for i, w := range wishes {
		idx[w.ID] = i
	}

	rows, err := q.QueryContext(ctx,
		`SELECT x.wish_id, x.user_id FROM wish_likes x `+filter+` ORDER BY x.rowid`, args...)
	if err != nil {
		return fmt.Errorf("sqlite: querying likes: %w", err)
	}
	for rows.Next() {
		var wishID, userID string
		if err := rows.Scan(&wishID, &userID); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite: scanning like: %w", err)
		}
		if i, ok := idx[wishID]; ok {
			wishes[i].Likes = append(wishes[i].Likes, userID)
		}
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx,
		`SELECT x.wish_id, x.id, x.user_id, x.text, x.created_at FROM wish_comments x `+filter+` ORDER BY x.rowid`, args...)
	if err != nil {
		return fmt.Errorf("sqlite: querying comments: %w", err)
	}
	for rows.Next() {
		wishID, c, err := scanComment(rows)
		if err != nil {
			rows.Close()
			return err
		}
		if i, ok := idx[wishID]; ok {
			wishes[i].Comments = append(wishes[i].Comments, c)
		}
	}
	return closeRows(rows)
}

func attachFeedComments(ctx context.Context, q querier, items []model.FeedItem) error {
	if len(items) == 0 {
		return nil
	}

	idx := make(map[string]int, len(items))
	args := make([]any, len(items))
	for i, it := range items {
		idx[it.WishID] = i
		args[i] = it.WishID
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(items)), ",")

	rows, err := q.QueryContext(ctx,
		`SELECT wish_id, id, user_id, text, created_at FROM wish_comments
		 WHERE wish_id IN (`+placeholders+`) ORDER BY rowid`, args...)
	if err != nil {
		return fmt.Errorf("sqlite: querying feed comments: %w", err)
	}
	for rows.Next() {
		wishID, c, err := scanComment(rows)
		if err != nil {
			rows.Close()
			return err
		}
		i := idx[wishID]
		items[i].Comments = append(items[i].Comments, c)
	}
	return closeRows(rows)
}

func scanComment(rows *sql.Rows) (string, model.Comment, error) {
	var (
		wishID string
		c      model.Comment
		nano   int64
	)
	if err := rows.Scan(&wishID, &c.ID, &c.UserID, &c.Text, &nano); err != nil {
		return "", c, fmt.Errorf("sqlite: scanning comment: %w", err)
	}
	c.Date = time.Unix(0, nano).UTC()
	return wishID, c, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("sqlite: iterating rows: %w", err)
	}
	return rows.Close()
}
