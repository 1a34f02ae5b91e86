package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/crypto"
	"github.com/hanzong05/aimddlwr/internal/models"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

const minPasswordLength = 6

var validate = validator.New()

// argon2id parameters
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
)

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	ParseToken(token string) (*models.Claims, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

type authService struct {
	users      repository.UserRepository
	keyManager *crypto.KeyManager
	secret     []byte
	tokenTTL   time.Duration
	logger     *zap.Logger
}

func NewAuthService(users repository.UserRepository, keyManager *crypto.KeyManager, secret string, tokenTTL time.Duration, logger *zap.Logger) AuthService {
	return &authService{
		users:      users,
		keyManager: keyManager,
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		logger:     logger.Named("auth"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return nil, apperr.Validation("Invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		return nil, apperr.Upstream("Failed to register user", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
		CreatedAt:    now(),
	}

	if s.keyManager.Enabled() {
		dk, err := s.keyManager.NewWrappedDataKey(user.ID)
		if err != nil {
			return nil, apperr.Upstream("Failed to register user", fmt.Errorf("generate data key: %w", err))
		}
		user.DKEncrypted = dk
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("User already exists")
		}
		return nil, apperr.Upstream("Failed to register user", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Auth("Invalid credentials")
		}
		return nil, apperr.Upstream("Failed to log in", err)
	}
	if !verifyPassword(user.PasswordHash, password) {
		return nil, apperr.Auth("Invalid credentials")
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID))
	return s.issue(user)
}

func (s *authService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, "User not found", "Failed to load user")
	}
	return user, nil
}

func (s *authService) issue(user *models.User) (*AuthResult, error) {
	issuedAt := time.Now()
	expiresAt := issuedAt.Add(s.tokenTTL)
	claims := &models.Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, apperr.Upstream("Failed to generate token", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt.UTC(), User: user}, nil
}

// ParseToken validates an HS256 token and returns its claims.
func (s *authService) ParseToken(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Auth("Token expired")
		}
		return nil, apperr.Auth("Invalid token")
	}
	if !token.Valid || claims.UserID == "" {
		return nil, apperr.Auth("Invalid token")
	}
	return claims, nil
}

// hashPassword encodes an argon2id hash as $argon2id$v=19$m=65536,t=1,p=4$salt$hash.
func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(encoded, password string) bool {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, t, m, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
