package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
	"github.com/IAmShivay/ANIME-sub001/internal/utils"
)

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email is not verified")
	ErrInvalidAuthRequest = errors.New("invalid request")
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"max=20"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AuthService covers registration, email verification, login and password
// reset for customers.
type AuthService struct {
	users    store.UserStore
	otp      *OTPService
	secret   string
	tokenTTL time.Duration
	admins   map[string]bool
	logger   *logrus.Logger
}

func NewAuthService(users store.UserStore, otp *OTPService, secret string, tokenTTL time.Duration, adminEmails []string, logger *logrus.Logger) *AuthService {
	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		admins[normalizeEmail(email)] = true
	}
	return &AuthService{
		users:    users,
		otp:      otp,
		secret:   secret,
		tokenTTL: tokenTTL,
		admins:   admins,
		logger:   logger,
	}
}

// Register creates an unverified account and mails a signup code. When the
// code cannot be sent the account stays unverified and the caller may
// request a new code.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAuthRequest, describeValidation(err))
	}

	email := normalizeEmail(req.Email)
	if existing, err := s.users.GetUserByEmail(ctx, email); err == nil {
		if existing.IsVerified {
			return nil, ErrEmailTaken
		}
		if _, err := s.otp.Issue(ctx, email, models.OTPPurposeSignup); err != nil {
			return nil, err
		}
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	role := models.RoleCustomer
	if s.admins[email] {
		role = models.RoleAdmin
	}
	user := &models.User{
		Name:         req.Name,
		Email:        email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	if _, err := s.otp.Issue(ctx, email, models.OTPPurposeSignup); err != nil {
		return nil, err
	}
	return user, nil
}

// VerifyEmail consumes a signup code, or a verify code requested later for
// an unverified account, and issues a token. An empty purpose means signup.
func (s *AuthService) VerifyEmail(ctx context.Context, email, purpose, code string) (*AuthResult, error) {
	switch purpose {
	case "":
		purpose = models.OTPPurposeSignup
	case models.OTPPurposeSignup, models.OTPPurposeVerify:
	default:
		return nil, ErrInvalidOTPPurpose
	}

	email = normalizeEmail(email)
	if err := s.otp.Verify(ctx, email, purpose, code); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.IsVerified {
		user.IsVerified = true
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, err
		}
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAuthRequest, describeValidation(err))
	}

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return nil, ErrEmailNotVerified
	}
	return s.issue(user)
}

// RequestCode mails a code for purpose. Unknown emails are accepted silently
// for reset and verify so the endpoint does not reveal registrations, and a
// verify code is only sent to accounts that still need verification.
func (s *AuthService) RequestCode(ctx context.Context, email, purpose string) (time.Time, error) {
	if !models.ValidOTPPurpose(purpose) {
		return time.Time{}, ErrInvalidOTPPurpose
	}
	email = normalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return time.Time{}, err
		}
		if purpose != models.OTPPurposeSignup {
			return time.Now().Add(otpTTL), nil
		}
	}
	if purpose == models.OTPPurposeVerify && user != nil && user.IsVerified {
		return time.Now().Add(otpTTL), nil
	}
	return s.otp.Issue(ctx, email, purpose)
}

func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAuthRequest, describeValidation(err))
	}

	email := normalizeEmail(req.Email)
	if err := s.otp.Verify(ctx, email, models.OTPPurposeReset, req.Code); err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	// a reset code proves ownership of the address
	user.IsVerified = true
	return s.users.UpdateUser(ctx, user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := utils.GenerateToken(s.secret, user.ID, user.Role, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}
