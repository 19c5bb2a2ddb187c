package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/diagnosis/reservou/internal/domain"
	"github.com/diagnosis/reservou/internal/identity"
	"github.com/diagnosis/reservou/internal/mailer"
	"github.com/diagnosis/reservou/internal/tokenstore"
	"github.com/diagnosis/reservou/pkg/auth"
	"github.com/diagnosis/reservou/pkg/events"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linkTTL = 15 * time.Minute

type authEnv struct {
	svc    *authService
	mr     *miniredis.Miniredis
	users  *fakeUsers
	mailer *fakeMailer
	bus    *fakeBus
	codec  *auth.Codec
}

func newAuthEnv(t *testing.T, singleUse bool) *authEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &authEnv{
		mr:     mr,
		users:  newFakeUsers(),
		mailer: &fakeMailer{},
		bus:    &fakeBus{},
		codec:  auth.NewCodec("test-secret", time.Hour, false),
	}
	verifier := &fakeVerifier{identities: map[string]*identity.Identity{
		"google-ana": {UID: "g-1", Email: "ana@example.com", Name: "Ana Google"},
		"google-bob": {UID: "g-2", Email: "bob@example.com", Name: "Bob"},
		"no-email":   {UID: "g-3"},
	}}

	env.svc = NewAuthService(
		env.users,
		tokenstore.NewRedisStoreFromClient(client),
		env.mailer,
		env.codec,
		verifier,
		env.bus,
		AuthOptions{AppURL: "https://app.reservou.test", LinkTTL: linkTTL, SingleUse: singleUse},
	).(*authService)
	return env
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	const prefix = "https://app.reservou.test/access/"
	require.True(t, strings.HasPrefix(link, prefix), link)
	return strings.TrimPrefix(link, prefix)
}

func TestRequestSignUpLink_StoresBothKeysAndMails(t *testing.T) {
	env := newAuthEnv(t, false)
	ctx := context.Background()

	err := env.svc.RequestSignUpLink(ctx, &domain.SignUpRequest{Name: " Ana ", Email: " Ana@Example.com "})
	require.NoError(t, err)

	sent := env.mailer.last()
	assert.Equal(t, "ana@example.com", sent.To)
	assert.Equal(t, "Ana", sent.Name)
	assert.Equal(t, mailer.PurposeSignUp, sent.Purpose)

	token := tokenFromLink(t, sent.Link)
	assert.Len(t, token, 43)
	assert.True(t, env.mr.Exists("magic:token:"+token))
	assert.True(t, env.mr.Exists("magic:email:ana@example.com"))
	assert.Equal(t, linkTTL, env.mr.TTL("magic:token:"+token))
	assert.Equal(t, []string{events.MagicLinkRequested}, env.bus.subjects())
}

func TestRequestSignUpLink_ReusesPendingTokenAndExtendsExpiry(t *testing.T) {
	env := newAuthEnv(t, false)
	ctx := context.Background()
	req := func() *domain.SignUpRequest { return &domain.SignUpRequest{Name: "Ana", Email: "ana@example.com"} }

	require.NoError(t, env.svc.RequestSignUpLink(ctx, req()))
	first := tokenFromLink(t, env.mailer.last().Link)

	env.mr.FastForward(10 * time.Minute)
	require.NoError(t, env.svc.RequestSignUpLink(ctx, req()))
	second := tokenFromLink(t, env.mailer.last().Link)

	assert.Equal(t, first, second)
	assert.Equal(t, linkTTL, env.mr.TTL("magic:token:"+first))
	assert.Equal(t, linkTTL, env.mr.TTL("magic:email:ana@example.com"))
}

func TestRequestSignUpLink_MintsNewTokenWhenIntentIsGone(t *testing.T) {
	env := newAuthEnv(t, false)
	ctx := context.Background()

	require.NoError(t, env.svc.RequestSignUpLink(ctx, &domain.SignUpRequest{Name: "Ana", Email: "ana@example.com"}))
	first := tokenFromLink(t, env.mailer.last().Link)
	env.mr.Del("magic:token:" + first)

	require.NoError(t, env.svc.RequestSignUpLink(ctx, &domain.SignUpRequest{Name: "Ana", Email: "ana@example.com"}))
	second := tokenFromLink(t, env.mailer.last().Link)

	assert.NotEqual(t, first, second)
	assert.True(t, env.mr.Exists("magic:token:"+second))
}

func TestRequestSignUpLink_RejectsInvalidInput(t *testing.T) {
	env := newAuthEnv(t, false)

	err := env.svc.RequestSignUpLink(context.Background(), &domain.SignUpRequest{Name: "Ana", Email: "not-an-email"})
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))

	err = env.svc.RequestSignUpLink(context.Background(), &domain.SignUpRequest{Name: "A", Email: "ana@example.com"})
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))
	assert.Empty(t, env.mailer.sent)
}

func TestRequestSignUpLink_MailFailureIsInternal(t *testing.T) {
	env := newAuthEnv(t, false)
	env.mailer.err = errors.New("smtp down")

	err := env.svc.RequestSignUpLink(context.Background(), &domain.SignUpRequest{Name: "Ana", Email: "ana@example.com"})
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	assert.Equal(t, apperror.GenericMessage, apperror.From(err).PublicMessage())
}

func TestRequestSignInLink(t *testing.T) {
	env := newAuthEnv(t, false)
	ctx := context.Background()

	err := env.svc.RequestSignInLink(ctx, &domain.SignInRequest{Email: "ghost@example.com"})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))
	assert.Equal(t, "user not found, please sign up", apperror.From(err).Message)

	env.users.add("ana@example.com", "Ana")
	require.NoError(t, env.svc.RequestSignInLink(ctx, &domain.SignInRequest{Email: "ANA@example.com"}))
	sent := env.mailer.last()
	assert.Equal(t, mailer.PurposeSignIn, sent.Purpose)
	assert.Equal(t, "Ana", sent.Name)
}

func TestConsumeMagicLink_CreatesUserThenSignsIn(t *testing.T) {
	env := newAuthEnv(t, false)
	ctx := context.Background()

	require.NoError(t, env.svc.RequestSignUpLink(ctx, &domain.SignUpRequest{Name: "Ana", Email: "ana@example.com"}))
	token := tokenFromLink(t, env.mailer.last().Link)

	sess, err := env.svc.ConsumeMagicLink(ctx, token)
	require.NoError(t, err)
	assert.True(t, sess.Created)
	assert.Equal(t, "ana@example.com", sess.User.Email)
	assert.Equal(t, "Ana", sess.User.Name)
	assert.Empty(t, sess.Payload.HID)

	p, err := env.codec.Decode(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, p.UID)

	again, err := env.svc.ConsumeMagicLink(ctx, token)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, sess.User.ID, again.User.ID)

	assert.Contains(t, env.bus.subjects(), events.UserCreated)
}

func TestConsumeMagicLink_SingleUseRevokesToken(t *testing.T) {
	env := newAuthEnv(t, true)
	ctx := context.Background()

	require.NoError(t, env.svc.RequestSignUpLink(ctx, &domain.SignUpRequest{Name: "Ana", Email: "ana@example.com"}))
	token := tokenFromLink(t, env.mailer.last().Link)

	_, err := env.svc.ConsumeMagicLink(ctx, token)
	require.NoError(t, err)
	assert.False(t, env.mr.Exists("magic:token:"+token))
	assert.False(t, env.mr.Exists("magic:email:ana@example.com"))

	_, err = env.svc.ConsumeMagicLink(ctx, token)
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))
}

func TestConsumeMagicLink_UnknownOrExpired(t *testing.T) {
	env := newAuthEnv(t, false)
	ctx := context.Background()

	_, err := env.svc.ConsumeMagicLink(ctx, "")
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))

	_, err = env.svc.ConsumeMagicLink(ctx, "does-not-exist")
	require.Error(t, err)
	assert.Equal(t, "invalid or expired link, please sign in again", apperror.From(err).Message)

	require.NoError(t, env.svc.RequestSignUpLink(ctx, &domain.SignUpRequest{Name: "Ana", Email: "ana@example.com"}))
	token := tokenFromLink(t, env.mailer.last().Link)
	env.mr.FastForward(linkTTL + time.Second)

	_, err = env.svc.ConsumeMagicLink(ctx, token)
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))
}

func TestConsumeMagicLink_CarriesHotelID(t *testing.T) {
	env := newAuthEnv(t, false)
	ctx := context.Background()
	user := env.users.add("ana@example.com", "Ana")
	env.users.linkHotel(user.ID, "hotel-1")

	require.NoError(t, env.svc.RequestSignInLink(ctx, &domain.SignInRequest{Email: "ana@example.com"}))
	sess, err := env.svc.ConsumeMagicLink(ctx, tokenFromLink(t, env.mailer.last().Link))
	require.NoError(t, err)
	assert.Equal(t, "hotel-1", sess.Payload.HID)
	assert.False(t, sess.Created)
}

func TestSignInWithGoogle(t *testing.T) {
	env := newAuthEnv(t, false)
	ctx := context.Background()

	_, err := env.svc.SignInWithGoogle(ctx, &domain.GoogleSignInRequest{})
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))

	_, err = env.svc.SignInWithGoogle(ctx, &domain.GoogleSignInRequest{IDToken: "forged"})
	require.Error(t, err)
	assert.Equal(t, "invalid token", apperror.From(err).Message)

	_, err = env.svc.SignInWithGoogle(ctx, &domain.GoogleSignInRequest{IDToken: "no-email"})
	assert.Equal(t, "email not provided by the identity provider", apperror.From(err).Message)

	_, err = env.svc.SignInWithGoogle(ctx, &domain.GoogleSignInRequest{IDToken: "google-ana"})
	assert.Equal(t, "user not found, please sign up", apperror.From(err).Message)

	user := env.users.add("ana@example.com", "Ana")
	sess, err := env.svc.SignInWithGoogle(ctx, &domain.GoogleSignInRequest{IDToken: "google-ana"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.Payload.UID)
}

func TestSignUpWithGoogle(t *testing.T) {
	env := newAuthEnv(t, false)
	ctx := context.Background()

	_, err := env.svc.SignUpWithGoogle(ctx, &domain.GoogleSignUpRequest{IDToken: "google-bob"})
	require.Error(t, err)
	assert.Equal(t, "name is required to sign up", apperror.From(err).Message)

	sess, err := env.svc.SignUpWithGoogle(ctx, &domain.GoogleSignUpRequest{IDToken: "google-bob", Name: "Bob Builder"})
	require.NoError(t, err)
	assert.True(t, sess.Created)
	assert.Equal(t, "Bob Builder", sess.User.Name)

	renamed, err := env.svc.SignUpWithGoogle(ctx, &domain.GoogleSignUpRequest{IDToken: "google-bob", Name: "Robert"})
	require.NoError(t, err)
	assert.False(t, renamed.Created)
	assert.Equal(t, sess.User.ID, renamed.User.ID)
	assert.Equal(t, "Robert", renamed.User.Name)
}

func TestCurrentUser(t *testing.T) {
	env := newAuthEnv(t, false)
	ctx := context.Background()

	_, err := env.svc.CurrentUser(ctx, nil)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))

	_, err = env.svc.CurrentUser(ctx, &auth.Payload{UID: "missing"})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
	assert.Equal(t, "user not found", apperror.From(err).Message)

	user := env.users.add("ana@example.com", "Ana")
	env.users.linkHotel(user.ID, "hotel-9")
	profile, err := env.svc.CurrentUser(ctx, &auth.Payload{UID: user.ID})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", profile.Email)
	assert.Equal(t, domain.RoleHotel, profile.Role)
	assert.Equal(t, "hotel-9", profile.HotelID)
}
