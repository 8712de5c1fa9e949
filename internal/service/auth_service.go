package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitboard/internal/middleware"
	"bitboard/internal/models"
	"bitboard/internal/realtime"
	"bitboard/internal/repository"
	"bitboard/internal/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	blacklistPrefix = "blacklist:"
	wsTicketPrefix  = "ws_ticket:"

	// WSTicketTTL bounds how long a websocket ticket stays redeemable.
	WSTicketTTL = 60 * time.Second
	// DefaultTokenTTL is used when the caller does not configure one.
	DefaultTokenTTL = 7 * 24 * time.Hour
)

// AuthService signs users up and in and manages token revocation.
type AuthService struct {
	users     repository.UserRepository
	rdb       *redis.Client
	secret    string
	ttl       time.Duration
	publisher *realtime.Publisher
}

// SignUpInput is the sign-up form.
type SignUpInput struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// AuthResult is returned by sign-up and sign-in.
type AuthResult struct {
	Token     string       `json:"token"`
	User      *models.User `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// NewAuthService returns an AuthService. rdb may be nil, in which case
// sign-out cannot revoke tokens and websocket tickets are unavailable.
func NewAuthService(users repository.UserRepository, rdb *redis.Client, secret string, ttl time.Duration, publisher *realtime.Publisher) *AuthService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AuthService{users: users, rdb: rdb, secret: secret, ttl: ttl, publisher: publisher}
}

// SignUp creates the account and returns a session token.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)

	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.ConfirmPassword != in.Password {
		return nil, models.NewValidationError("Passwords do not match")
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Email is already registered")
	}
	existing, err = s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Username is already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("hash password: %w", err))
	}
	user := &models.User{
		Email:    email,
		Username: username,
		Password: string(hash),
		Role:     models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// SignIn checks credentials and returns a session token. A profile missing
// its username is repaired from the email address.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}

	if user.Username == "" {
		user.Username = usernameFromEmail(email, user.ID)
		if err := s.users.UpdateProfile(ctx, user.ID, map[string]interface{}{"username": user.Username}); err != nil {
			return nil, err
		}
	}
	return s.issue(user)
}

func usernameFromEmail(email string, id uint) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, r := range local {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), "_")
	if len(name) < 3 {
		name = "user"
	}
	if len(name) > 20 {
		name = name[:20]
	}
	return fmt.Sprintf("%s%d", name, id)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, claims, err := middleware.IssueToken(s.secret, user.ID, user.Username, s.ttl)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user, ExpiresAt: claims.ExpiresAt}, nil
}

// SignOut revokes the token until it would have expired and tells the
// user's other sessions.
func (s *AuthService) SignOut(ctx context.Context, claims *middleware.Claims) error {
	if claims == nil {
		return models.NewUnauthorizedError("Not signed in")
	}
	if s.rdb != nil && claims.JTI != "" {
		ttl := time.Until(claims.ExpiresAt)
		if ttl > 0 {
			if err := s.rdb.Set(ctx, blacklistPrefix+claims.JTI, "1", ttl).Err(); err != nil {
				return models.NewInternalError(fmt.Errorf("blacklist token: %w", err))
			}
		}
	}
	if err := s.publisher.PublishUser(ctx, claims.UserID, FrameAuth, map[string]string{"event": "SIGNED_OUT"}); err != nil {
		logWarn(ctx, "sign-out event not delivered", err)
	}
	return nil
}

// IsRevoked reports whether the token id was blacklisted by a sign-out.
func (s *AuthService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := s.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Authenticate parses a bearer token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*middleware.Claims, error) {
	claims, err := middleware.ParseToken(s.secret, token)
	if err != nil {
		return nil, models.NewUnauthorizedError(err.Error())
	}
	revoked, err := s.IsRevoked(ctx, claims.JTI)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if revoked {
		return nil, models.NewUnauthorizedError("Token has been revoked")
	}
	return claims, nil
}

// IssueWSTicket stores a single-use websocket ticket for the user.
func (s *AuthService) IssueWSTicket(ctx context.Context, userID uint) (string, error) {
	if s.rdb == nil {
		return "", models.NewInternalError(errors.New("redis not configured"))
	}
	ticket := uuid.NewString()
	if err := s.rdb.Set(ctx, wsTicketPrefix+ticket, userID, WSTicketTTL).Err(); err != nil {
		return "", models.NewInternalError(fmt.Errorf("store ticket: %w", err))
	}
	return ticket, nil
}

// ConsumeWSTicket redeems a ticket exactly once.
func (s *AuthService) ConsumeWSTicket(ctx context.Context, ticket string) (uint, error) {
	if s.rdb == nil || ticket == "" {
		return 0, models.NewUnauthorizedError("Invalid or expired ticket")
	}
	id, err := s.rdb.GetDel(ctx, wsTicketPrefix+ticket).Uint64()
	if errors.Is(err, redis.Nil) || id == 0 {
		return 0, models.NewUnauthorizedError("Invalid or expired ticket")
	}
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return uint(id), nil
}
