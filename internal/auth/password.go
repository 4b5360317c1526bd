package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkaykisiz/Geku/internal/apperr"
	"github.com/mkaykisiz/Geku/internal/notify"
	"github.com/mkaykisiz/Geku/internal/user"
)

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// VerifyEmail marks the user verified when key matches the activation key
// that was mailed at registration.
func (s *Service) VerifyEmail(ctx context.Context, userID, key string) (user.User, error) {
	u, err := user.Scan(s.db.QueryRow(ctx, `
		UPDATE users SET verified=true, updated_at=NOW()
		WHERE id=$1 AND email_activation_key=$2 AND deleted_at IS NULL
		RETURNING `+user.Columns, userID, key))
	if err != nil {
		return user.User{}, apperr.FromDB("verify email", err)
	}
	return u, nil
}

// ForgotPassword stores a one-shot token and mails the reset link.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return apperr.Validation("email required")
	}
	token, err := randomHex(20)
	if err != nil {
		return err
	}
	u, err := user.Scan(s.db.QueryRow(ctx, `
		UPDATE users SET forgot_password_token=$2
		WHERE id = (
			SELECT id FROM users WHERE email=$1 AND deleted_at IS NULL
			ORDER BY created_at LIMIT 1
		)
		RETURNING `+user.Columns, email, token))
	if err != nil {
		return apperr.FromDB("forgot password", err)
	}

	notify.Go(s.mailer, notify.Mail{
		To:      u.Email,
		Subject: "I Forgot Password",
		HTML: fmt.Sprintf("<p>Hi <b>%s %s</b>,</p><p>Please confirm your email address to change your password.</p><p>%s/auth/forgot_password/%s/%s</p>",
			u.FirstName, u.LastName, s.appURL, u.ID, token),
	})
	return nil
}

// ResetPassword consumes the forgot-password token, sets a random password
// and mails it to the user. A used or wrong token is NotFound.
func (s *Service) ResetPassword(ctx context.Context, userID, token string) error {
	if token == "" {
		return fmt.Errorf("reset password: %w", apperr.ErrNotFound)
	}
	password, err := randomHex(6)
	if err != nil {
		return err
	}
	hash, err := hashPasswordFn([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u, err := user.Scan(s.db.QueryRow(ctx, `
		UPDATE users SET password_hash=$3, forgot_password_token=NULL, updated_at=NOW()
		WHERE id=$1 AND forgot_password_token=$2 AND deleted_at IS NULL
		RETURNING `+user.Columns, userID, token, string(hash)))
	if err != nil {
		return apperr.FromDB("reset password", err)
	}

	notify.Go(s.mailer, notify.Mail{
		To:      u.Email,
		Subject: "User New Password",
		HTML: fmt.Sprintf("<p>Hi <b>%s %s</b>,</p><p>This is your new password. Please login and change it.</p><p><b>New Password: </b>%s</p>",
			u.FirstName, u.LastName, password),
	})
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) (user.User, error) {
	if req.Password == "" {
		return user.User{}, apperr.Validation("password required")
	}
	if req.Password != req.RepeatPassword {
		return user.User{}, apperr.Validation("passwords are not the same")
	}
	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, err
	}
	u, err := user.Scan(s.db.QueryRow(ctx, `
		UPDATE users SET password_hash=$2, forgot_password_token=NULL, updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NULL
		RETURNING `+user.Columns, userID, string(hash)))
	if err != nil {
		return user.User{}, apperr.FromDB("change password", err)
	}
	return u, nil
}
