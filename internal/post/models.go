package post

import (
	"time"

	"github.com/mkaykisiz/Geku/internal/listing"
)

type Post struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Content   string     `json:"content"`
	Images    []string   `json:"images"`
	Videos    []string   `json:"videos"`
	Likes     []string   `json:"likes"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

const Columns = `id, user_id, content, images, videos, likes, created_at, updated_at, deleted_at`

type scanner interface {
	Scan(dest ...any) error
}

func Scan(row scanner) (Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.UserID, &p.Content, &p.Images, &p.Videos, &p.Likes, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	return p, err
}

var ListSchema = listing.Schema{
	Table:   "posts",
	Columns: []string{"id", "user_id", "content", "images", "videos", "likes", "created_at", "updated_at", "deleted_at"},
	Fields: []listing.Field{
		{Key: "user_id", Kind: listing.Exact, Column: "user_id"},
		{Key: "content", Kind: listing.Text, Column: "content"},
		{Key: "likes", Kind: listing.Membership, Column: "likes"},
		{Key: "created", Kind: listing.Range, Column: "created_at"},
		{Key: "updated", Kind: listing.Range, Column: "updated_at"},
	},
	Sortable: []string{"id", "created_at", "updated_at"},
}
