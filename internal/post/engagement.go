package post

import (
	"context"

	"github.com/mkaykisiz/Geku/internal/apperr"
	"github.com/mkaykisiz/Geku/internal/stream"
)

// Like and Unlike are single-row set operations, so concurrent calls from
// different users commute and repeating one is a no-op. Any authenticated
// user may like any live post.

func (s *Service) Like(ctx context.Context, postID, userID string) (Post, error) {
	p, err := Scan(s.db.QueryRow(ctx, `
		UPDATE posts SET likes = CASE WHEN $2 = ANY(likes) THEN likes ELSE array_append(likes, $2) END
		WHERE id=$1 AND deleted_at IS NULL
		RETURNING `+Columns, postID, userID))
	if err != nil {
		return Post{}, apperr.FromDB("like post", err)
	}
	s.publish(p, stream.EventPostLiked, userID)
	return p, nil
}

func (s *Service) Unlike(ctx context.Context, postID, userID string) (Post, error) {
	p, err := Scan(s.db.QueryRow(ctx, `
		UPDATE posts SET likes = array_remove(likes, $2)
		WHERE id=$1 AND deleted_at IS NULL
		RETURNING `+Columns, postID, userID))
	if err != nil {
		return Post{}, apperr.FromDB("unlike post", err)
	}
	s.publish(p, stream.EventPostUnliked, userID)
	return p, nil
}

func (s *Service) publish(p Post, typ, actorID string) {
	if s.events == nil {
		return
	}
	s.events.Publish(stream.PostTopic(p.ID), stream.Event{Type: typ, ActorID: actorID, Count: len(p.Likes)})
}
