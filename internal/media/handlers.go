package media

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mkaykisiz/Geku/internal/apperr"
	"github.com/mkaykisiz/Geku/internal/shared/actor"
)

const formField = "file_item"

// Uploader stores an uploaded file and returns its location.
type Uploader interface {
	Upload(ctx context.Context, userID, kind, key string, r io.Reader, size int64, contentType string) (string, error)
}

type removeRequest struct {
	FileItem string `json:"file_item"`
}

func objectKey(kind Kind, ownerID, name string, now time.Time) string {
	switch kind {
	case ProfileImage:
		return fmt.Sprintf("users/%s/profile_image/%d/%s", ownerID, now.UnixMilli(), name)
	case Video:
		return fmt.Sprintf("posts/videos/%s/%d/%s", ownerID, now.UnixMilli(), name)
	default:
		return fmt.Sprintf("posts/images/%s/%d/%s", ownerID, now.UnixMilli(), name)
	}
}

// upload stores the multipart file_item of the request under a key for
// kind and returns its location.
func upload(c *fiber.Ctx, up Uploader, kind Kind, actorID, ownerID string) (string, error) {
	fh, err := c.FormFile(formField)
	if err != nil {
		return "", apperr.Validation("%s is required", formField)
	}
	f, err := fh.Open()
	if err != nil {
		return "", apperr.Validation("cannot read %s", formField)
	}
	defer f.Close()

	key := objectKey(kind, ownerID, path.Base(fh.Filename), time.Now())
	return up.Upload(c.Context(), actorID, string(kind), key, f, fh.Size, fh.Header.Get("Content-Type"))
}

func removeRef(c *fiber.Ctx) (string, error) {
	var req removeRequest
	if err := c.BodyParser(&req); err != nil || req.FileItem == "" {
		return "", apperr.Validation("%s is required", formField)
	}
	return req.FileItem, nil
}

// respond writes the entity. A storage error after a committed metadata
// change still reports the entity, under 502.
func respond(c *fiber.Ctx, entity any, err error) error {
	if err == nil {
		return c.JSON(entity)
	}
	return c.Status(apperr.Status(err)).JSON(fiber.Map{"msg": err.Error(), "data": entity})
}

// RegisterPostRoutes mounts /:id/image and /:id/video on the posts group.
func RegisterPostRoutes(r fiber.Router, svc *Service, up Uploader, authMiddleware fiber.Handler) {
	for _, kind := range []Kind{Image, Video} {
		r.Post("/:id/"+string(kind), authMiddleware, func(c *fiber.Ctx) error {
			actorID, err := actor.Require(c)
			if err != nil {
				return err
			}
			ref, err := upload(c, up, kind, actorID, actorID)
			if err != nil {
				return apperr.Fiber(err)
			}
			p, err := svc.AddToPost(c.Context(), c.Params("id"), kind, ref)
			if err != nil {
				discard(c.Context(), svc, ref)
				return apperr.Fiber(err)
			}
			return c.JSON(p)
		})

		r.Delete("/:id/"+string(kind), authMiddleware, func(c *fiber.Ctx) error {
			if _, err := actor.Require(c); err != nil {
				return err
			}
			ref, err := removeRef(c)
			if err != nil {
				return apperr.Fiber(err)
			}
			p, err := svc.RemoveFromPost(c.Context(), c.Params("id"), kind, ref)
			if p.ID == "" {
				return apperr.Fiber(err)
			}
			return respond(c, p, err)
		})
	}
}

// RegisterUserRoutes mounts /:id/profile_image on the users group.
func RegisterUserRoutes(r fiber.Router, svc *Service, up Uploader, authMiddleware fiber.Handler) {
	r.Post("/:id/profile_image", authMiddleware, func(c *fiber.Ctx) error {
		actorID, err := actor.Require(c)
		if err != nil {
			return err
		}
		userID := c.Params("id")
		if userID != actorID {
			return fiber.NewError(fiber.StatusUnauthorized, "you can only change your own profile image")
		}
		ref, err := upload(c, up, ProfileImage, actorID, userID)
		if err != nil {
			return apperr.Fiber(err)
		}
		u, err := svc.SetProfileImage(c.Context(), userID, actorID, ref)
		if u.ID == "" {
			discard(c.Context(), svc, ref)
			return apperr.Fiber(err)
		}
		return respond(c, u, err)
	})

	r.Delete("/:id/profile_image", authMiddleware, func(c *fiber.Ctx) error {
		actorID, err := actor.Require(c)
		if err != nil {
			return err
		}
		ref, err := removeRef(c)
		if err != nil {
			return apperr.Fiber(err)
		}
		u, err := svc.RemoveProfileImage(c.Context(), c.Params("id"), actorID, ref)
		if u.ID == "" {
			return apperr.Fiber(err)
		}
		return respond(c, u, err)
	})
}

// discard deletes an object that was uploaded for a metadata change that
// did not happen.
func discard(ctx context.Context, svc *Service, location string) {
	if err := svc.objects.Delete(ctx, location); err != nil {
		log.Printf("media: discard %s: %v", location, err)
	}
}
