package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/store/memstore"
	"github.com/IAmShivay/ANIME-sub001/internal/utils"
)

func newAuthFixture() (*AuthService, *fakeMailer) {
	st := memstore.New()
	mailer := &fakeMailer{}
	otp := NewOTPService(st, mailer, testLogger())
	otp.generate = func() (string, error) { return "424242", nil }
	return NewAuthService(st, otp, "secret", time.Hour, []string{"Admin@Anime.Store"}, testLogger()), mailer
}

func TestRegisterVerifyLogin(t *testing.T) {
	svc, mailer := newAuthFixture()
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{Name: "Itachi", Email: "Itachi@Leaf.jp", Password: "sharingan1"})
	require.NoError(t, err)
	assert.Equal(t, "itachi@leaf.jp", user.Email)
	assert.False(t, user.IsVerified)
	assert.Equal(t, 1, mailer.count())

	_, err = svc.Login(ctx, LoginRequest{Email: "itachi@leaf.jp", Password: "sharingan1"})
	assert.ErrorIs(t, err, ErrEmailNotVerified)

	res, err := svc.VerifyEmail(ctx, "itachi@leaf.jp", "", "424242")
	require.NoError(t, err)
	assert.True(t, res.User.IsVerified)

	res, err = svc.Login(ctx, LoginRequest{Email: "ITACHI@leaf.jp", Password: "sharingan1"})
	require.NoError(t, err)
	claims, err := utils.ParseToken("secret", res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleCustomer, claims.Role)

	_, err = svc.Login(ctx, LoginRequest{Email: "itachi@leaf.jp", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Register(ctx, RegisterRequest{Name: "Copy", Email: "itachi@leaf.jp", Password: "sharingan1"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterAdminEmail(t *testing.T) {
	svc, _ := newAuthFixture()
	user, err := svc.Register(context.Background(), RegisterRequest{Name: "Ops", Email: "admin@anime.store", Password: "password1"})
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAuthFixture()
	_, err := svc.Register(context.Background(), RegisterRequest{Name: "X", Email: "not-an-email", Password: "password1"})
	assert.ErrorIs(t, err, ErrInvalidAuthRequest)
	_, err = svc.Register(context.Background(), RegisterRequest{Name: "X", Email: "x@y.z", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidAuthRequest)
}

func TestResetPassword(t *testing.T) {
	svc, mailer := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Name: "Kakashi", Email: "kakashi@leaf.jp", Password: "chidori11"})
	require.NoError(t, err)

	_, err = svc.RequestCode(ctx, "nobody@leaf.jp", models.OTPPurposeReset)
	require.NoError(t, err)
	assert.Equal(t, 1, mailer.count(), "unknown emails get no mail")

	_, err = svc.RequestCode(ctx, "kakashi@leaf.jp", models.OTPPurposeReset)
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, ResetPasswordRequest{Email: "kakashi@leaf.jp", Code: "424242", NewPassword: "raikiri22"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "kakashi@leaf.jp", Password: "raikiri22"})
	assert.NoError(t, err)
}

func TestVerifyCodeCompletesRegistration(t *testing.T) {
	svc, mailer := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Name: "Hinata", Email: "hinata@leaf.jp", Password: "byakugan1"})
	require.NoError(t, err)

	_, err = svc.RequestCode(ctx, "hinata@leaf.jp", models.OTPPurposeVerify)
	require.NoError(t, err)
	assert.Equal(t, 2, mailer.count())

	res, err := svc.VerifyEmail(ctx, "hinata@leaf.jp", models.OTPPurposeVerify, "424242")
	require.NoError(t, err)
	assert.True(t, res.User.IsVerified)

	_, err = svc.Login(ctx, LoginRequest{Email: "hinata@leaf.jp", Password: "byakugan1"})
	assert.NoError(t, err)

	_, err = svc.RequestCode(ctx, "hinata@leaf.jp", models.OTPPurposeVerify)
	require.NoError(t, err)
	assert.Equal(t, 2, mailer.count(), "verified accounts get no verify code")

	_, err = svc.VerifyEmail(ctx, "hinata@leaf.jp", models.OTPPurposeReset, "424242")
	assert.ErrorIs(t, err, ErrInvalidOTPPurpose)
}
