package post

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkaykisiz/Geku/internal/apperr"
	"github.com/mkaykisiz/Geku/internal/db"
	"github.com/mkaykisiz/Geku/internal/listing"
	"github.com/mkaykisiz/Geku/internal/stream"
)

type Service struct {
	db     db.Querier
	events stream.Publisher
}

func NewService(db db.Querier, events stream.Publisher) *Service {
	return &Service{db: db, events: events}
}

func (s *Service) Create(ctx context.Context, userID, content string) (Post, error) {
	p := Post{
		ID:      uuid.NewString(),
		UserID:  userID,
		Content: content,
		Images:  []string{},
		Videos:  []string{},
		Likes:   []string{},
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO posts (id, user_id, content)
		VALUES ($1,$2,$3)
		RETURNING created_at, updated_at
	`, p.ID, p.UserID, p.Content)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return Post{}, apperr.FromDB("create post", err)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (Post, error) {
	p, err := Scan(s.db.QueryRow(ctx, `SELECT `+Columns+` FROM posts WHERE id=$1 AND deleted_at IS NULL`, id))
	if err != nil {
		return Post{}, apperr.FromDB("get post", err)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id, actorID, content string) (Post, error) {
	if err := s.checkOwner(ctx, "update post", id, actorID); err != nil {
		return Post{}, err
	}
	p, err := Scan(s.db.QueryRow(ctx, `
		UPDATE posts SET content=$3, updated_at=NOW()
		WHERE id=$1 AND user_id=$2 AND deleted_at IS NULL
		RETURNING `+Columns, id, actorID, content))
	if err != nil {
		return Post{}, apperr.FromDB("update post", err)
	}
	return p, nil
}

// Delete soft-deletes the post. Only its author may do so.
func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	if err := s.checkOwner(ctx, "delete post", id, actorID); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE posts SET deleted_at=$3
		WHERE id=$1 AND user_id=$2 AND deleted_at IS NULL
	`, id, actorID, time.Now())
	if err != nil {
		return apperr.FromDB("delete post", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete post %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *Service) checkOwner(ctx context.Context, op, id, actorID string) error {
	var owner string
	err := s.db.QueryRow(ctx, `SELECT user_id FROM posts WHERE id=$1 AND deleted_at IS NULL`, id).Scan(&owner)
	if err != nil {
		return apperr.FromDB(op, err)
	}
	if owner != actorID {
		return fmt.Errorf("%s: only the author may do this: %w", op, apperr.ErrUnauthorized)
	}
	return nil
}

func (s *Service) List(ctx context.Context, filters map[string]string) ([]Post, error) {
	q, err := listing.Compile(ListSchema, filters)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, "list posts", q)
}

// Feed lists the posts of userID and of everyone userID follows. The usual
// listing filters apply on top.
func (s *Service) Feed(ctx context.Context, userID string, filters map[string]string) ([]Post, error) {
	q, err := listing.Compile(ListSchema, filters)
	if err != nil {
		return nil, err
	}
	q.And(`(user_id = $%[1]d OR user_id IN (SELECT unnest(following) FROM users WHERE id = $%[1]d))`, userID)
	return s.query(ctx, "feed", q)
}

func (s *Service) query(ctx context.Context, op string, q listing.Query) ([]Post, error) {
	rows, err := s.db.Query(ctx, q.SQL(), q.Params()...)
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		p, err := Scan(rows)
		if err != nil {
			return nil, apperr.FromDB(op, err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromDB(op, err)
	}
	return posts, nil
}
