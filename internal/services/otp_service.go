package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
	"github.com/IAmShivay/ANIME-sub001/internal/utils"
)

const (
	otpTTL         = 10 * time.Minute
	otpMaxAttempts = 5
	otpDigits      = 6
)

var (
	ErrOTPNotFound        = errors.New("no code was requested for this email")
	ErrOTPInvalid         = errors.New("invalid code")
	ErrOTPExpired         = errors.New("code expired")
	ErrOTPUsed            = errors.New("code already used")
	ErrOTPTooManyAttempts = errors.New("too many attempts, request a new code")
	ErrOTPDelivery        = errors.New("could not send the code")
	ErrInvalidOTPPurpose  = errors.New("invalid code purpose")
)

// OTPService issues and checks one-time email codes.
type OTPService struct {
	store    store.OTPStore
	mailer   Mailer
	logger   *logrus.Logger
	now      func() time.Time
	generate func() (string, error)
}

func NewOTPService(s store.OTPStore, mailer Mailer, logger *logrus.Logger) *OTPService {
	return &OTPService{
		store:    s,
		mailer:   mailer,
		logger:   logger,
		now:      time.Now,
		generate: generateOTPCode,
	}
}

func generateOTPCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Issue replaces any outstanding code for email and purpose and mails a new
// one. A signup code that cannot be delivered is removed again.
func (s *OTPService) Issue(ctx context.Context, email, purpose string) (time.Time, error) {
	if !models.ValidOTPPurpose(purpose) {
		return time.Time{}, ErrInvalidOTPPurpose
	}
	email = normalizeEmail(email)

	if err := s.store.InvalidateOTPs(ctx, email, purpose); err != nil {
		return time.Time{}, err
	}

	code, err := s.generate()
	if err != nil {
		return time.Time{}, err
	}
	hash, err := utils.HashCode(code)
	if err != nil {
		return time.Time{}, err
	}

	record := &models.OTP{
		Email:     email,
		Purpose:   purpose,
		CodeHash:  hash,
		ExpiresAt: s.now().Add(otpTTL),
	}
	if err := s.store.CreateOTP(ctx, record); err != nil {
		return time.Time{}, err
	}

	sendErr := ErrMailerNotConfigured
	if s.mailer != nil {
		subject, body := OTPEmail(code, purpose)
		sendErr = s.mailer.Send(ctx, email, subject, body)
	}
	if sendErr != nil {
		log := s.logger.WithError(sendErr).WithFields(logrus.Fields{"email": email, "purpose": purpose})
		if purpose == models.OTPPurposeSignup {
			if err := s.store.DeleteOTP(ctx, record.ID); err != nil {
				log.WithField("delete_error", err).Error("removing undelivered code failed")
			}
			log.Warn("signup code delivery failed")
			return time.Time{}, fmt.Errorf("%w: %v", ErrOTPDelivery, sendErr)
		}
		log.Warn("code delivery failed")
	}

	return record.ExpiresAt, nil
}

// Verify checks code against the latest code for email and purpose and
// consumes it on success. Each call spends one attempt before the code is
// compared, so concurrent guesses cannot exceed the attempt limit.
func (s *OTPService) Verify(ctx context.Context, email, purpose, code string) error {
	if !models.ValidOTPPurpose(purpose) {
		return ErrInvalidOTPPurpose
	}
	email = normalizeEmail(email)

	record, err := s.store.LatestOTP(ctx, email, purpose)
	if errors.Is(err, store.ErrNotFound) {
		return ErrOTPNotFound
	}
	if err != nil {
		return err
	}

	now := s.now()
	switch {
	case record.UsedAt != nil:
		return ErrOTPUsed
	case now.After(record.ExpiresAt):
		return ErrOTPExpired
	}

	attempts, err := s.store.RecordOTPAttempt(ctx, record.ID, otpMaxAttempts)
	if err != nil {
		return s.spentReason(ctx, record, err)
	}

	if !utils.CheckCode(record.CodeHash, strings.TrimSpace(code)) {
		if attempts >= otpMaxAttempts {
			return ErrOTPTooManyAttempts
		}
		return ErrOTPInvalid
	}

	if err := s.store.ConsumeOTP(ctx, record.ID, now); err != nil {
		return s.spentReason(ctx, record, err)
	}
	return nil
}

// spentReason maps a failed conditional update to the error the caller sees.
func (s *OTPService) spentReason(ctx context.Context, record *models.OTP, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrOTPNotFound
	}
	if !errors.Is(err, store.ErrOTPSpent) {
		return err
	}

	latest, lerr := s.store.LatestOTP(ctx, record.Email, record.Purpose)
	switch {
	case lerr != nil || latest.ID != record.ID:
		// superseded by a newer code
		return ErrOTPInvalid
	case latest.UsedAt != nil:
		return ErrOTPUsed
	}
	return ErrOTPTooManyAttempts
}
