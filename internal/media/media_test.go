package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/mkaykisiz/Geku/internal/apperr"
)

var postColumns = []string{"id", "user_id", "content", "images", "videos", "likes", "created_at", "updated_at", "deleted_at"}

var userColumns = []string{
	"id", "first_name", "last_name", "username", "email", "password_hash", "profile_image", "verified", "birthday",
	"followers", "following", "black_list", "email_activation_key", "forgot_password_token", "created_at", "updated_at", "deleted_at",
}

func postRows(id string, images, videos []string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(postColumns).AddRow(id, "owner", "hello", images, videos, []string{}, now, now, (*time.Time)(nil))
}

func userValues(id string, image *string) []any {
	now := time.Now()
	return []any{
		id, "First", "Last", id + "-name", id + "@example.com", "hash", image, true, (*time.Time)(nil),
		[]string{}, []string{}, []string{}, "key", (*string)(nil), now, now, (*time.Time)(nil),
	}
}

func userRows(id string, image *string) *pgxmock.Rows {
	return pgxmock.NewRows(userColumns).AddRow(userValues(id, image)...)
}

func profileRows(id string, image, previous *string) *pgxmock.Rows {
	cols := append(append([]string{}, userColumns...), "previous")
	return pgxmock.NewRows(cols).AddRow(append(userValues(id, image), previous)...)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

type fakeObjects struct {
	mu       sync.Mutex
	err      error
	deleted  []string
	uploaded []string
}

func (f *fakeObjects) Delete(_ context.Context, location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, location)
	return f.err
}

func (f *fakeObjects) Upload(_ context.Context, _, _, key string, r io.Reader, _ int64, _ string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	location := "https://bucket.example.com/" + key
	f.uploaded = append(f.uploaded, location)
	return location, nil
}

func ptr(s string) *string { return &s }

func TestAddToPostAppendsToKindColumn(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`UPDATE posts SET videos = array_append\(videos, \$2\)`).
		WithArgs("post-1", "ref-v").
		WillReturnRows(postRows("post-1", []string{}, []string{"ref-v"}))

	objects := &fakeObjects{}
	p, err := NewService(mock, objects).AddToPost(context.Background(), "post-1", Video, "ref-v")
	if err != nil {
		t.Fatalf("add video: %v", err)
	}
	if len(p.Videos) != 1 || len(p.Images) != 0 {
		t.Fatalf("video stored in the wrong column: %+v", p)
	}
	if len(objects.deleted) != 0 {
		t.Fatalf("add must not delete objects")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAddToPostRejectsProfileKind(t *testing.T) {
	_, err := NewService(newMock(t), &fakeObjects{}).AddToPost(context.Background(), "post-1", ProfileImage, "ref")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddToMissingPost(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`UPDATE posts SET images`).
		WithArgs("gone", "ref").
		WillReturnError(pgx.ErrNoRows)

	_, err := NewService(mock, &fakeObjects{}).AddToPost(context.Background(), "gone", Image, "ref")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveFromPostMetadataThenStorage(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`UPDATE posts SET images = array_remove\(images, \$2\).*\$2 = ANY\(images\)`).
		WithArgs("post-1", "ref-a").
		WillReturnRows(postRows("post-1", []string{"ref-b"}, []string{}))

	objects := &fakeObjects{}
	p, err := NewService(mock, objects).RemoveFromPost(context.Background(), "post-1", Image, "ref-a")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(p.Images) != 1 || p.Images[0] != "ref-b" {
		t.Fatalf("unexpected images: %v", p.Images)
	}
	if len(objects.deleted) != 1 || objects.deleted[0] != "ref-a" {
		t.Fatalf("expected storage delete of ref-a, got %v", objects.deleted)
	}
}

func TestRemoveUnknownRefSkipsStorage(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`UPDATE posts SET images = array_remove`).
		WithArgs("post-1", "missing").
		WillReturnError(pgx.ErrNoRows)

	objects := &fakeObjects{}
	_, err := NewService(mock, objects).RemoveFromPost(context.Background(), "post-1", Image, "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(objects.deleted) != 0 {
		t.Fatalf("no storage delete expected, got %v", objects.deleted)
	}
}

func TestRemoveStoreFailureSkipsStorage(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`UPDATE posts SET images = array_remove`).
		WithArgs("post-1", "ref").
		WillReturnError(errors.New("connection reset"))

	objects := &fakeObjects{}
	_, err := NewService(mock, objects).RemoveFromPost(context.Background(), "post-1", Image, "ref")
	if !errors.Is(err, apperr.ErrStore) {
		t.Fatalf("expected store failure, got %v", err)
	}
	if len(objects.deleted) != 0 {
		t.Fatalf("no storage delete expected, got %v", objects.deleted)
	}
}

func TestRemoveStorageFailureKeepsMetadata(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`UPDATE posts SET images = array_remove`).
		WithArgs("post-1", "ref").
		WillReturnRows(postRows("post-1", []string{}, []string{}))

	objects := &fakeObjects{err: errors.New("s3 unavailable")}
	svc := NewService(mock, objects)
	p, err := svc.RemoveFromPost(context.Background(), "post-1", Image, "ref")
	if !errors.Is(err, apperr.ErrStorage) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if p.ID != "post-1" || len(p.Images) != 0 {
		t.Fatalf("expected updated post with the failure, got %+v", p)
	}

	if len(objects.deleted) != 1 {
		t.Fatalf("expected one delete attempt, got %v", objects.deleted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetProfileImageDeletesPrevious(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`UPDATE users u SET profile_image=\$2.*FROM users old.*old\.profile_image`).
		WithArgs("user-1", "new").
		WillReturnRows(profileRows("user-1", ptr("new"), ptr("old")))

	objects := &fakeObjects{}
	u, err := NewService(mock, objects).SetProfileImage(context.Background(), "user-1", "user-1", "new")
	if err != nil {
		t.Fatalf("set profile image: %v", err)
	}
	if u.ProfileImage == nil || *u.ProfileImage != "new" {
		t.Fatalf("unexpected profile image: %v", u.ProfileImage)
	}
	if len(objects.deleted) != 1 || objects.deleted[0] != "old" {
		t.Fatalf("expected old image deleted, got %v", objects.deleted)
	}
}

func TestSetProfileImageWithoutPrevious(t *testing.T) {
	for _, previous := range []*string{nil, ptr(""), ptr("same")} {
		mock := newMock(t)
		mock.ExpectQuery(`UPDATE users u SET profile_image`).
			WithArgs("user-1", "same").
			WillReturnRows(profileRows("user-1", ptr("same"), previous))

		objects := &fakeObjects{}
		if _, err := NewService(mock, objects).SetProfileImage(context.Background(), "user-1", "user-1", "same"); err != nil {
			t.Fatalf("set profile image: %v", err)
		}
		if len(objects.deleted) != 0 {
			t.Fatalf("nothing to delete, got %v", objects.deleted)
		}
	}
}

func TestSetProfileImageStorageFailure(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`UPDATE users u SET profile_image`).
		WithArgs("user-1", "new").
		WillReturnRows(profileRows("user-1", ptr("new"), ptr("old")))

	objects := &fakeObjects{err: errors.New("denied")}
	u, err := NewService(mock, objects).SetProfileImage(context.Background(), "user-1", "user-1", "new")
	if !errors.Is(err, apperr.ErrStorage) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if u.ProfileImage == nil || *u.ProfileImage != "new" {
		t.Fatalf("metadata must keep the new image, got %v", u.ProfileImage)
	}
}

func TestProfileImageIsSelfOnly(t *testing.T) {
	mock := newMock(t)
	objects := &fakeObjects{}
	svc := NewService(mock, objects)

	if _, err := svc.SetProfileImage(context.Background(), "user-1", "user-2", "new"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := svc.RemoveProfileImage(context.Background(), "user-1", "user-2", "old"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no queries expected: %v", err)
	}
}

func TestRemoveProfileImage(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`UPDATE users SET profile_image=NULL.*profile_image=\$2`).
		WithArgs("user-1", "old").
		WillReturnRows(userRows("user-1", nil))
	mock.ExpectQuery(`UPDATE users SET profile_image=NULL`).
		WithArgs("user-1", "other").
		WillReturnError(pgx.ErrNoRows)

	objects := &fakeObjects{}
	svc := NewService(mock, objects)
	u, err := svc.RemoveProfileImage(context.Background(), "user-1", "user-1", "old")
	if err != nil || u.ProfileImage != nil {
		t.Fatalf("remove: %v %v", err, u.ProfileImage)
	}
	if _, err := svc.RemoveProfileImage(context.Background(), "user-1", "user-1", "other"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(objects.deleted) != 1 || objects.deleted[0] != "old" {
		t.Fatalf("unexpected deletes: %v", objects.deleted)
	}
}

func TestObjectKey(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	cases := map[Kind]string{
		Image:        "posts/images/u1/1700000000000/a.png",
		Video:        "posts/videos/u1/1700000000000/a.png",
		ProfileImage: "users/u1/profile_image/1700000000000/a.png",
	}
	for kind, want := range cases {
		if got := objectKey(kind, "u1", "a.png", now); got != want {
			t.Fatalf("%s: got %s want %s", kind, got, want)
		}
	}
	if !strings.HasPrefix(objectKey(Image, "u1", "x", now), "posts/") {
		t.Fatalf("unexpected prefix")
	}
}
