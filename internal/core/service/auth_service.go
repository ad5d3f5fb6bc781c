package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

// AuthService implements operator registration/login and driver login by
// booking confirmation code.
type AuthService struct {
	repo      ports.AuthRepository
	bookings  ports.BookingRepository
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(repo ports.AuthRepository, bookings ports.BookingRepository, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{repo: repo, bookings: bookings, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

func (s *AuthService) RegisterOperator(ctx context.Context, username, password, email string) (*domain.User, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleOperator,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *AuthService) LoginOperator(ctx context.Context, username, password string) (string, *domain.User, error) {
	if username == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.sign(jwt.MapClaims{
		"username": user.Username,
		"role":     user.Role,
	})
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}

// LoginDriver issues a token scoped to the booking behind confirmationCode.
// Closed bookings cannot be logged into.
func (s *AuthService) LoginDriver(ctx context.Context, confirmationCode string) (string, *ports.DriverIdentity, error) {
	code := strings.TrimSpace(confirmationCode)
	if code == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	b, err := s.bookings.FindByConfirmationCode(ctx, code)
	if errors.Is(err, domain.ErrBookingNotFound) {
		return "", nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if b.Status.Terminal() {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.sign(jwt.MapClaims{
		"username":   "driver:" + b.ID,
		"role":       domain.RoleDriver,
		"booking_id": b.ID,
	})
	if err != nil {
		return "", nil, err
	}
	return token, &ports.DriverIdentity{BookingID: b.ID, Status: b.Status}, nil
}

func (s *AuthService) sign(claims jwt.MapClaims) (string, error) {
	claims["exp"] = time.Now().Add(s.tokenTTL).Unix()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
