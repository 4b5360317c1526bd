package user

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5/pgconn"

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

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	u, err := Scan(s.db.QueryRow(ctx, `SELECT `+Columns+` FROM users WHERE id=$1 AND deleted_at IS NULL`, id))
	if err != nil {
		return User{}, apperr.FromDB("get user", err)
	}
	return u, nil
}

func (s *Service) GetByUsername(ctx context.Context, username string) (User, error) {
	u, err := Scan(s.db.QueryRow(ctx, `SELECT `+Columns+` FROM users WHERE username=$1 AND deleted_at IS NULL`, username))
	if err != nil {
		return User{}, apperr.FromDB("get user by username", err)
	}
	return u, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	u, err := Scan(s.db.QueryRow(ctx, `SELECT `+Columns+` FROM users WHERE email=$1 AND deleted_at IS NULL`, email))
	if err != nil {
		return User{}, apperr.FromDB("get user by email", err)
	}
	return u, nil
}

// View loads a user and, when the viewer is someone else, reports the
// follow relationship between the two.
func (s *Service) View(ctx context.Context, id, viewerID string) (Profile, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{User: u}
	if viewerID != "" && viewerID != u.ID {
		isFollow := slices.Contains(u.Followers, viewerID)
		isFollowed := slices.Contains(u.Following, viewerID)
		p.IsFollow = &isFollow
		p.IsFollowed = &isFollowed
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id, actorID string, req UpdateRequest) (User, error) {
	if id != actorID {
		return User{}, fmt.Errorf("update user: you can only update your own user: %w", apperr.ErrUnauthorized)
	}
	u, err := Scan(s.db.QueryRow(ctx, `
		UPDATE users
		SET first_name = COALESCE($2, first_name),
		    last_name  = COALESCE($3, last_name),
		    username   = COALESCE($4, username),
		    email      = COALESCE($5, email),
		    birthday   = COALESCE($6, birthday),
		    updated_at = NOW()
		WHERE id=$1 AND deleted_at IS NULL
		RETURNING `+Columns, id, req.FirstName, req.LastName, req.Username, req.Email, req.Birthday))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, apperr.Validation("username already taken")
		}
		return User{}, apperr.FromDB("update user", err)
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, filters map[string]string) ([]User, error) {
	q, err := listing.Compile(ListSchema, filters)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, q.SQL(), q.Params()...)
	if err != nil {
		return nil, apperr.FromDB("list users", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := Scan(rows)
		if err != nil {
			return nil, apperr.FromDB("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromDB("list users", err)
	}
	return users, nil
}
