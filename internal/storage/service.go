package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mkaykisiz/Geku/internal/apperr"
	"github.com/mkaykisiz/Geku/internal/db"
)

// Object is a row of the storage_objects registry. Rows with a
// DeleteFailedAt and no DeletedAt are orphans waiting for reconciliation.
type Object struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Kind           string     `json:"kind"`
	Location       string     `json:"location"`
	CreatedAt      time.Time  `json:"created_at"`
	DeleteFailedAt *time.Time `json:"delete_failed_at,omitempty"`
}

// Service puts and deletes objects and keeps the registry in step. The
// registry is bookkeeping only: its failures are logged, never returned.
type Service struct {
	db      db.Querier
	objects ObjectStore
}

func NewService(db db.Querier, objects ObjectStore) *Service {
	return &Service{db: db, objects: objects}
}

func (s *Service) Upload(ctx context.Context, userID, kind, key string, r io.Reader, size int64, contentType string) (string, error) {
	location, err := s.objects.Put(ctx, key, r, size, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	if _, err := s.SaveObject(ctx, userID, location, kind); err != nil {
		log.Printf("storage registry insert for %s failed: %v", location, err)
	}
	return location, nil
}

func (s *Service) SaveObject(ctx context.Context, userID, location, kind string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO storage_objects (id, user_id, location, kind)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (location) DO NOTHING
	`, id, userID, location, kind)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes the object. A failure is returned as ErrStorage and the
// registry row is flagged so Orphans can report it.
func (s *Service) Delete(ctx context.Context, location string) error {
	if err := s.objects.Delete(ctx, location); err != nil {
		if _, regErr := s.db.Exec(ctx, `
			UPDATE storage_objects SET delete_failed_at = NOW()
			WHERE location = $1 AND deleted_at IS NULL
		`, location); regErr != nil {
			log.Printf("storage registry flag for %s failed: %v", location, regErr)
		}
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	if _, err := s.db.Exec(ctx, `
		UPDATE storage_objects SET deleted_at = NOW(), delete_failed_at = NULL
		WHERE location = $1 AND deleted_at IS NULL
	`, location); err != nil {
		log.Printf("storage registry delete for %s failed: %v", location, err)
	}
	return nil
}

// Orphans lists objects whose delete failed and were never retried
// successfully.
func (s *Service) Orphans(ctx context.Context) ([]Object, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, kind, location, created_at, delete_failed_at
		FROM storage_objects
		WHERE deleted_at IS NULL AND delete_failed_at IS NOT NULL
		ORDER BY delete_failed_at
	`)
	if err != nil {
		return nil, apperr.FromDB("list orphans", err)
	}
	defer rows.Close()

	var out []Object
	for rows.Next() {
		var o Object
		if err := rows.Scan(&o.ID, &o.UserID, &o.Kind, &o.Location, &o.CreatedAt, &o.DeleteFailedAt); err != nil {
			return nil, apperr.FromDB("scan orphan", err)
		}
		out = append(out, o)
	}
	return out, apperr.FromDB("list orphans", rows.Err())
}
