package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkaykisiz/Geku/internal/apperr"
	"github.com/mkaykisiz/Geku/internal/db"
	"github.com/mkaykisiz/Geku/internal/notify"
	"github.com/mkaykisiz/Geku/internal/user"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

var (
	signTokenFn       = (*Service).signToken
	hashPasswordFn    = bcrypt.GenerateFromPassword
	parseWithClaimsFn = jwt.ParseWithClaims
)

type Service struct {
	secret []byte
	db     db.Querier
	mailer notify.Mailer
	appURL string
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// NewService builds the auth service. appURL prefixes the links sent by
// mail; a nil mailer logs mails instead of sending them.
func NewService(secret string, db db.Querier, mailer notify.Mailer, appURL string) *Service {
	if mailer == nil {
		mailer = notify.LogMailer{}
	}
	return &Service{
		secret: []byte(secret),
		db:     db,
		mailer: mailer,
		appURL: appURL,
	}
}

// Register creates an unverified user and mails the activation link.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (user.User, error) {
	if req.Email == "" || req.Username == "" || req.Password == "" {
		return user.User{}, apperr.Validation("email, username, password required")
	}
	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, err
	}
	key, err := randomHex(20)
	if err != nil {
		return user.User{}, err
	}

	u, err := user.Scan(s.db.QueryRow(ctx, `
		INSERT INTO users (id, first_name, last_name, username, email, password_hash, email_activation_key)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+user.Columns,
		uuid.NewString(), req.FirstName, req.LastName, req.Username, req.Email, string(hash), key))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.User{}, apperr.Validation("username %q is already taken", req.Username)
		}
		return user.User{}, apperr.FromDB("register", err)
	}

	notify.Go(s.mailer, notify.Mail{
		To:      u.Email,
		Subject: "User Registration",
		HTML: fmt.Sprintf("<p>Hi <b>%s %s</b>,</p><p>Please confirm your email address for your new account.</p><p>%s/auth/verify/%s/%s</p>",
			u.FirstName, u.LastName, s.appURL, u.ID, key),
	})
	return u, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (user.User, TokenResponse, error) {
	u, err := user.Scan(s.db.QueryRow(ctx, `SELECT `+user.Columns+` FROM users WHERE email = $1 AND deleted_at IS NULL`, req.Email))
	if err != nil {
		return user.User{}, TokenResponse{}, apperr.FromDB("login", err)
	}
	if !u.Verified {
		return user.User{}, TokenResponse{}, apperr.Validation("user not verified")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return user.User{}, TokenResponse{}, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
	}

	tokens, err := s.GenerateTokens(ctx, u.ID)
	if err != nil {
		return user.User{}, TokenResponse{}, err
	}
	return u, tokens, nil
}

func (s *Service) GenerateTokens(ctx context.Context, userID string) (TokenResponse, error) {
	access, err := signTokenFn(s, userID, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := signTokenFn(s, userID, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, userID, refreshTokenTTL); err != nil {
		return TokenResponse{}, apperr.FromDB("save refresh token", err)
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}

	userID, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || userID != claims.UserID || time.Now().After(expiresAt) {
		return "", fmt.Errorf("refresh token invalid: %w", apperr.ErrUnauthorized)
	}
	return claims.UserID, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *Service) signToken(userID string, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("token invalid: %w", apperr.ErrUnauthorized)
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), userID, token, time.Now().Add(ttl))
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var userID string
	var expiresAt time.Time
	if err := row.Scan(&userID, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return userID, expiresAt, nil
}
