// Package media attaches storage references to posts and users and removes
// them again.
//
// Every mutation commits the metadata change first and only then touches
// object storage. A storage failure is returned as apperr.ErrStorage
// together with the already updated entity; the metadata change stands and
// the object is left for reconciliation.
package media

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mkaykisiz/Geku/internal/apperr"
	"github.com/mkaykisiz/Geku/internal/db"
	"github.com/mkaykisiz/Geku/internal/post"
	"github.com/mkaykisiz/Geku/internal/user"
)

type Kind string

const (
	Image        Kind = "image"
	Video        Kind = "video"
	ProfileImage Kind = "profile_image"
)

// column maps a post media kind to its array column.
func (k Kind) column() (string, error) {
	switch k {
	case Image:
		return "images", nil
	case Video:
		return "videos", nil
	}
	return "", apperr.Validation("unsupported post media kind %q", k)
}

// Deleter removes a stored object by its location.
type Deleter interface {
	Delete(ctx context.Context, location string) error
}

type Service struct {
	db      db.Querier
	objects Deleter
}

func NewService(db db.Querier, objects Deleter) *Service {
	return &Service{db: db, objects: objects}
}

// AddToPost appends ref to the post's images or videos.
func (s *Service) AddToPost(ctx context.Context, postID string, kind Kind, ref string) (post.Post, error) {
	col, err := kind.column()
	if err != nil {
		return post.Post{}, err
	}
	p, err := post.Scan(s.db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE posts SET %[1]s = array_append(%[1]s, $2), updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NULL
		RETURNING `, col)+post.Columns, postID, ref))
	if err != nil {
		return post.Post{}, apperr.FromDB("add post "+string(kind), err)
	}
	return p, nil
}

// RemoveFromPost drops ref from the post and then deletes the object. When
// the post does not carry ref nothing is deleted.
func (s *Service) RemoveFromPost(ctx context.Context, postID string, kind Kind, ref string) (post.Post, error) {
	col, err := kind.column()
	if err != nil {
		return post.Post{}, err
	}
	p, err := post.Scan(s.db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE posts SET %[1]s = array_remove(%[1]s, $2), updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NULL AND $2 = ANY(%[1]s)
		RETURNING `, col)+post.Columns, postID, ref))
	if err != nil {
		return post.Post{}, apperr.FromDB("remove post "+string(kind), err)
	}
	return p, s.deleteObject(ctx, ref)
}

// SetProfileImage overwrites the user's profile image. The previous image,
// read by the same statement, is deleted once the new one is committed.
func (s *Service) SetProfileImage(ctx context.Context, userID, actorID, ref string) (user.User, error) {
	if userID != actorID {
		return user.User{}, fmt.Errorf("set profile image: %w", apperr.ErrUnauthorized)
	}
	row := s.db.QueryRow(ctx, `
		UPDATE users u SET profile_image=$2, updated_at=NOW()
		FROM users old
		WHERE u.id = old.id AND u.id=$1 AND u.deleted_at IS NULL
		RETURNING `+user.ColumnsAs("u")+`, old.profile_image`, userID, ref)
	var previous *string
	u, err := user.Scan(appendScanner{row: row, extra: []any{&previous}})
	if err != nil {
		return user.User{}, apperr.FromDB("set profile image", err)
	}
	if previous == nil || *previous == "" || *previous == ref {
		return u, nil
	}
	return u, s.deleteObject(ctx, *previous)
}

// RemoveProfileImage clears the profile image if it is ref, then deletes
// the object.
func (s *Service) RemoveProfileImage(ctx context.Context, userID, actorID, ref string) (user.User, error) {
	if userID != actorID {
		return user.User{}, fmt.Errorf("remove profile image: %w", apperr.ErrUnauthorized)
	}
	u, err := user.Scan(s.db.QueryRow(ctx, `
		UPDATE users SET profile_image=NULL, updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NULL AND profile_image=$2
		RETURNING `+user.Columns, userID, ref))
	if err != nil {
		return user.User{}, apperr.FromDB("remove profile image", err)
	}
	return u, s.deleteObject(ctx, ref)
}

func (s *Service) deleteObject(ctx context.Context, location string) error {
	err := s.objects.Delete(ctx, location)
	if err == nil {
		return nil
	}
	log.Printf("media: object %s left in storage: %v", location, err)
	if errors.Is(err, apperr.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
}

// appendScanner reads extra trailing columns after the ones the wrapped
// Scan call asks for.
type appendScanner struct {
	row interface {
		Scan(dest ...any) error
	}
	extra []any
}

func (a appendScanner) Scan(dest ...any) error {
	return a.row.Scan(append(dest, a.extra...)...)
}
