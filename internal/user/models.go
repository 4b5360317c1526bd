package user

import (
	"strings"
	"time"

	"github.com/mkaykisiz/Geku/internal/listing"
)

type User struct {
	ID                  string     `json:"id"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	ProfileImage        *string    `json:"profile_image"`
	Verified            bool       `json:"verified"`
	Birthday            *time.Time `json:"birthday,omitempty"`
	Followers           []string   `json:"followers"`
	Following           []string   `json:"following"`
	BlackList           []string   `json:"black_list"`
	EmailActivationKey  string     `json:"-"`
	ForgotPasswordToken *string    `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty"`
}

// Profile is a user as seen by someone else.
type Profile struct {
	User
	IsFollow   *bool `json:"is_follow,omitempty"`
	IsFollowed *bool `json:"is_followed,omitempty"`
}

type UpdateRequest struct {
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	Username  *string    `json:"username"`
	Email     *string    `json:"email"`
	Birthday  *time.Time `json:"birthday"`
}

// Columns is the select list matching Scan.
const Columns = `id, first_name, last_name, username, email, password_hash, profile_image, verified, birthday,
	followers, following, black_list, email_activation_key, forgot_password_token, created_at, updated_at, deleted_at`

// ColumnsAs is Columns qualified with a table alias, for statements that
// join users to itself.
func ColumnsAs(alias string) string {
	cols := strings.Split(Columns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

func Scan(row scanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.Email, &u.PasswordHash, &u.ProfileImage,
		&u.Verified, &u.Birthday, &u.Followers, &u.Following, &u.BlackList, &u.EmailActivationKey,
		&u.ForgotPasswordToken, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	return u, err
}

// ListSchema is the set of filters GET /users understands.
var ListSchema = listing.Schema{
	Table: "users",
	Columns: []string{
		"id", "first_name", "last_name", "username", "email", "password_hash", "profile_image", "verified", "birthday",
		"followers", "following", "black_list", "email_activation_key", "forgot_password_token", "created_at", "updated_at", "deleted_at",
	},
	Fields: []listing.Field{
		{Key: "first_name", Kind: listing.Text, Column: "first_name"},
		{Key: "last_name", Kind: listing.Text, Column: "last_name"},
		{Key: "username", Kind: listing.Text, Column: "username"},
		{Key: "email", Kind: listing.Text, Column: "email"},
		{Key: "verified", Kind: listing.Bool, Column: "verified"},
		{Key: "followers", Kind: listing.Membership, Column: "followers"},
		{Key: "following", Kind: listing.Membership, Column: "following"},
		{Key: "birthday", Kind: listing.Range, Column: "birthday"},
		{Key: "created", Kind: listing.Range, Column: "created_at"},
		{Key: "updated", Kind: listing.Range, Column: "updated_at"},
	},
	Sortable: []string{"id", "first_name", "last_name", "username", "email", "verified", "birthday", "created_at", "updated_at"},
}
