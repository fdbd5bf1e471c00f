package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/kasuganosora/questfolio/auth"
	"github.com/kasuganosora/questfolio/config"
	mw "github.com/kasuganosora/questfolio/middleware"
	"github.com/kasuganosora/questfolio/model"
	"github.com/kasuganosora/questfolio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const secret = "test-jwt-secret-32bytes-padded!!"

func setup(t *testing.T) (*auth.Service, string) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	svc := auth.NewService(db, c, config.SecurityConfig{JWTSecret: secret, JWTTTLH: time.Hour}, testutil.Logger())

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, svc.EnsureAdmin(context.Background(), "Me@Example.com", string(hash)))
	return svc, string(hash)
}

func TestSignIn_Success(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	sess, err := svc.SignInWithPassword(ctx, "me@example.com", "hunter22", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.NotZero(t, sess.AccountID)

	got, err := svc.GetSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.AccountID, got.AccountID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), got.ExpiresAt, time.Minute)
}

func TestSignIn_WrongPassword(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.SignInWithPassword(context.Background(), "me@example.com", "nope", "")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestSignIn_UnknownEmail(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.SignInWithPassword(context.Background(), "who@example.com", "hunter22", "")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestSignIn_Disabled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	svc := auth.NewService(db, c, config.SecurityConfig{JWTSecret: secret, JWTTTLH: time.Hour}, testutil.Logger())
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, svc.EnsureAdmin(context.Background(), "me@example.com", string(hash)))
	require.NoError(t, db.Model(&model.Account{}).Where("email = ?", "me@example.com").Update("status", 0).Error)

	_, err := svc.SignInWithPassword(context.Background(), "me@example.com", "hunter22", "")
	assert.ErrorIs(t, err, auth.ErrAccountDisabled)
}

func TestSignOut_InvalidatesSession(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	sess, err := svc.SignInWithPassword(ctx, "me@example.com", "hunter22", "")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, sess.Token))
	_, err = svc.GetSession(ctx, sess.Token)
	assert.ErrorIs(t, err, auth.ErrSessionExpired)

	// Signing out twice is fine.
	assert.NoError(t, svc.SignOut(ctx, sess.Token))
}

func TestRefreshSession_RotatesToken(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	sess, err := svc.SignInWithPassword(ctx, "me@example.com", "hunter22", "")
	require.NoError(t, err)

	// JWTs issued in the same second with the same claims are identical.
	time.Sleep(1100 * time.Millisecond)
	next, err := svc.RefreshSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Token, next.Token)

	_, err = svc.GetSession(ctx, sess.Token)
	assert.ErrorIs(t, err, auth.ErrSessionExpired)
	_, err = svc.GetSession(ctx, next.Token)
	assert.NoError(t, err)
}

func TestGetSession_ForeignToken(t *testing.T) {
	svc, _ := setup(t)
	tok, err := mw.GenerateToken(1, "other-secret", time.Hour)
	require.NoError(t, err)
	_, err = svc.GetSession(context.Background(), tok)
	assert.ErrorIs(t, err, auth.ErrSessionExpired)
}

func TestEnsureAdmin_UpdatesHash(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("changed!"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, svc.EnsureAdmin(ctx, "me@example.com", string(hash)))

	_, err = svc.SignInWithPassword(ctx, "me@example.com", "hunter22", "")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = svc.SignInWithPassword(ctx, "me@example.com", "changed!", "")
	assert.NoError(t, err)
}

func TestEnsureAdmin_RejectsPlainPassword(t *testing.T) {
	svc, _ := setup(t)
	assert.Error(t, svc.EnsureAdmin(context.Background(), "x@example.com", "plaintext"))
	assert.NoError(t, svc.EnsureAdmin(context.Background(), "", ""))
}
