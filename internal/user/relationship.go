package user

import (
	"context"
	"fmt"
	"log"

	"github.com/mkaykisiz/Geku/internal/apperr"
	"github.com/mkaykisiz/Geku/internal/stream"
)

// Edges are stored twice: following on the actor and followers on the
// target. There is no transaction across the two rows. The actor row is
// written first, the inverse row second and unconditionally; both writes
// are set operations, so replaying a half-applied call repairs it.
//
// When the inverse write fails the updated actor is returned together with
// the error and the actor write stays in place.

func setInsert(col string) string {
	return col + " = CASE WHEN $2 = ANY(" + col + ") THEN " + col + " ELSE array_append(" + col + ", $2) END"
}

func setRemove(col string) string {
	return col + " = array_remove(" + col + ", $2)"
}

func (s *Service) Follow(ctx context.Context, actorID, targetID string) (User, error) {
	if err := s.mustExist(ctx, targetID); err != nil {
		return User{}, fmt.Errorf("follow: %w", err)
	}
	u, err := s.writeEdge(ctx, "follow", actorID, targetID, setInsert("following"), setInsert("followers"))
	if err == nil && s.events != nil {
		s.events.Publish(stream.UserTopic(targetID), stream.Event{Type: stream.EventUserFollowed, ActorID: actorID})
	}
	return u, err
}

func (s *Service) Unfollow(ctx context.Context, actorID, targetID string) (User, error) {
	return s.writeEdge(ctx, "unfollow", actorID, targetID, setRemove("following"), setRemove("followers"))
}

// Block has no inverse field.
func (s *Service) Block(ctx context.Context, actorID, targetID string) (User, error) {
	if err := s.mustExist(ctx, targetID); err != nil {
		return User{}, fmt.Errorf("block: %w", err)
	}
	return s.writeEdge(ctx, "block", actorID, targetID, setInsert("black_list"), "")
}

func (s *Service) Unblock(ctx context.Context, actorID, targetID string) (User, error) {
	return s.writeEdge(ctx, "unblock", actorID, targetID, setRemove("black_list"), "")
}

func (s *Service) writeEdge(ctx context.Context, op, actorID, targetID, actorSet, inverseSet string) (User, error) {
	u, err := Scan(s.db.QueryRow(ctx, `
		UPDATE users SET `+actorSet+`
		WHERE id=$1 AND deleted_at IS NULL
		RETURNING `+Columns, actorID, targetID))
	if err != nil {
		return User{}, apperr.FromDB(op, err)
	}
	if inverseSet == "" {
		return u, nil
	}

	// The inverse row may be gone by now (unfollowing a deleted user);
	// zero affected rows is not an error.
	if _, err := s.db.Exec(ctx, `
		UPDATE users SET `+inverseSet+`
		WHERE id=$1
	`, targetID, actorID); err != nil {
		log.Printf("%s %s -> %s: inverse edge write failed, edge is one-sided until retried: %v", op, actorID, targetID, err)
		return u, apperr.FromDB(op+" inverse edge", err)
	}
	return u, nil
}

func (s *Service) mustExist(ctx context.Context, id string) error {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1 AND deleted_at IS NULL)`, id).Scan(&exists)
	if err != nil {
		return apperr.FromDB("lookup user", err)
	}
	if !exists {
		return fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
