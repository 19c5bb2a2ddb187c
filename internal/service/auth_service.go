package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/diagnosis/reservou/internal/domain"
	"github.com/diagnosis/reservou/internal/identity"
	"github.com/diagnosis/reservou/internal/mailer"
	"github.com/diagnosis/reservou/internal/repository"
	"github.com/diagnosis/reservou/internal/tokenstore"
	"github.com/diagnosis/reservou/pkg/auth"
	"github.com/diagnosis/reservou/pkg/events"
	"github.com/diagnosis/reservou/pkg/logger"
)

const (
	emailKeyPrefix = "magic:email:"
	tokenKeyPrefix = "magic:token:"
	tokenBytes     = 32
)

// Session is the outcome of a successful sign-in. Token is the signed
// session value the HTTP layer stores in the cookie.
type Session struct {
	User    domain.UserInfo
	Token   string
	Payload auth.Payload
	Created bool
}

type AuthService interface {
	RequestSignUpLink(ctx context.Context, req *domain.SignUpRequest) error
	RequestSignInLink(ctx context.Context, req *domain.SignInRequest) error
	ConsumeMagicLink(ctx context.Context, token string) (*Session, error)
	SignInWithGoogle(ctx context.Context, req *domain.GoogleSignInRequest) (*Session, error)
	SignUpWithGoogle(ctx context.Context, req *domain.GoogleSignUpRequest) (*Session, error)
	CurrentUser(ctx context.Context, p *auth.Payload) (*domain.Profile, error)
}

type AuthOptions struct {
	AppURL    string
	LinkTTL   time.Duration
	SingleUse bool
}

type authService struct {
	users    repository.UserRepository
	store    tokenstore.Store
	mailer   mailer.Service
	codec    *auth.Codec
	verifier identity.Verifier
	bus      events.Publisher
	opts     AuthOptions
	newToken func() (string, error)
	now      func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	store tokenstore.Store,
	mailer mailer.Service,
	codec *auth.Codec,
	verifier identity.Verifier,
	bus events.Publisher,
	opts AuthOptions,
) AuthService {
	return &authService{
		users:    users,
		store:    store,
		mailer:   mailer,
		codec:    codec,
		verifier: verifier,
		bus:      bus,
		opts:     opts,
		newToken: newMagicToken,
		now:      time.Now,
	}
}

func newMagicToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func emailKey(email string) string { return emailKeyPrefix + email }
func tokenKey(token string) string { return tokenKeyPrefix + token }

func (s *authService) RequestSignUpLink(ctx context.Context, req *domain.SignUpRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return apperror.BadRequest(err.Error())
	}

	intent := domain.SignUpIntent{Email: req.Email, Name: req.Name}
	return s.sendLink(ctx, intent, mailer.PurposeSignUp)
}

func (s *authService) RequestSignInLink(ctx context.Context, req *domain.SignInRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return apperror.BadRequest(err.Error())
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return apperror.Internal(err, "find user by email")
	}
	if user == nil {
		return apperror.BadRequest("user not found, please sign up")
	}

	intent := domain.SignUpIntent{Email: user.Email, Name: user.Name}
	return s.sendLink(ctx, intent, mailer.PurposeSignIn)
}

func (s *authService) sendLink(ctx context.Context, intent domain.SignUpIntent, purpose mailer.Purpose) error {
	token, reused, err := s.resolveToken(ctx, intent)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/access/%s", s.opts.AppURL, token)
	if err := s.mailer.SendMagicLink(ctx, mailer.MagicLink{
		To:      intent.Email,
		Name:    intent.Name,
		Link:    link,
		Purpose: purpose,
		TTL:     s.opts.LinkTTL,
	}); err != nil {
		logger.ErrorContext(ctx, "failed to send magic link", "error", err, "purpose", purpose)
		return apperror.Internal(err, "send magic link")
	}

	events.PublishAsync(ctx, s.bus, events.MagicLinkRequested, events.MagicLinkRequestedEvent{
		Email:       intent.Email,
		Purpose:     string(purpose),
		Reused:      reused,
		RequestedAt: s.now().UTC(),
	})
	return nil
}

// resolveToken returns the pending token for the intent's email, extending
// both of its keys, or mints a new one. At most one unexpired token exists
// per email.
func (s *authService) resolveToken(ctx context.Context, intent domain.SignUpIntent) (string, bool, error) {
	ttl := s.opts.LinkTTL

	var previous string
	found, err := s.store.Get(ctx, emailKey(intent.Email), &previous)
	if err != nil {
		return "", false, apperror.Internal(err, "read pending magic link")
	}
	if found && previous != "" {
		if _, err := s.store.Expire(ctx, emailKey(intent.Email), ttl); err != nil {
			return "", false, apperror.Internal(err, "extend magic link")
		}
		alive, err := s.store.Expire(ctx, tokenKey(previous), ttl)
		if err != nil {
			return "", false, apperror.Internal(err, "extend magic link")
		}
		if alive {
			return previous, true, nil
		}
	}

	token, err := s.newToken()
	if err != nil {
		return "", false, apperror.Internal(err, "generate magic link token")
	}
	if err := s.store.Set(ctx, tokenKey(token), intent, ttl); err != nil {
		return "", false, apperror.Internal(err, "store magic link intent")
	}
	if err := s.store.Set(ctx, emailKey(intent.Email), token, ttl); err != nil {
		return "", false, apperror.Internal(err, "store magic link token")
	}
	return token, false, nil
}

func (s *authService) ConsumeMagicLink(ctx context.Context, token string) (*Session, error) {
	req := domain.AccessRequest{Token: token}
	if err := req.Validate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	var intent domain.SignUpIntent
	found, err := s.store.Get(ctx, tokenKey(token), &intent)
	if err != nil {
		return nil, apperror.Internal(err, "read magic link intent")
	}
	if !found || intent.Email == "" {
		return nil, apperror.BadRequest("invalid or expired link, please sign in again")
	}

	user, created, err := s.findOrCreate(ctx, intent.Email, intent.Name, "magic_link")
	if err != nil {
		return nil, err
	}

	sess, err := s.issue(user, created)
	if err != nil {
		return nil, err
	}

	if s.opts.SingleUse {
		if _, err := s.store.Del(ctx, tokenKey(token), emailKey(intent.Email)); err != nil {
			logger.WarnContext(ctx, "failed to revoke consumed magic link", "error", err)
		}
	}

	logger.InfoContext(ctx, "magic link consumed", "user_id", user.ID, "created", created)
	return sess, nil
}

// findOrCreate returns the user with email, creating it with name when
// absent. A concurrent creation of the same email resolves to the winner.
func (s *authService) findOrCreate(ctx context.Context, email, name, provider string) (*domain.User, bool, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, apperror.Internal(err, "find user by email")
	}
	if user != nil {
		return user, false, nil
	}

	user, err = s.users.Create(ctx, email, name, domain.RoleHotel)
	if apperror.Is(err, apperror.KindConflict) {
		user, err = s.users.FindByEmail(ctx, email)
		if err == nil && user == nil {
			err = fmt.Errorf("user %s vanished after conflict", email)
		}
		if err != nil {
			return nil, false, apperror.Internal(err, "re-read user after conflict")
		}
		return user, false, nil
	}
	if err != nil {
		return nil, false, apperror.Internal(err, "create user")
	}

	events.PublishAsync(ctx, s.bus, events.UserCreated, events.UserCreatedEvent{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Provider:  provider,
		CreatedAt: user.CreatedAt,
	})
	return user, true, nil
}

func (s *authService) issue(user *domain.User, created bool) (*Session, error) {
	payload := auth.Payload{UID: user.ID, HID: user.HotelRef()}
	token, err := s.codec.Encode(payload)
	if err != nil {
		return nil, err
	}
	return &Session{
		User:    user.ToUserInfo(),
		Token:   token,
		Payload: payload,
		Created: created,
	}, nil
}

func (s *authService) verify(ctx context.Context, idToken string) (*identity.Identity, error) {
	id, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		if apperror.Is(err, apperror.KindBadRequest) {
			return nil, err
		}
		return nil, apperror.BadRequestCause("invalid token", err)
	}
	if id.Email == "" {
		return nil, apperror.BadRequest("email not provided by the identity provider")
	}
	return id, nil
}

func (s *authService) SignInWithGoogle(ctx context.Context, req *domain.GoogleSignInRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}
	id, err := s.verify(ctx, req.IDToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, id.Email)
	if err != nil {
		return nil, apperror.Internal(err, "find user by email")
	}
	if user == nil {
		return nil, apperror.BadRequest("user not found, please sign up")
	}
	return s.issue(user, false)
}

func (s *authService) SignUpWithGoogle(ctx context.Context, req *domain.GoogleSignUpRequest) (*Session, error) {
	req.Normalize()
	if req.IDToken == "" {
		return nil, apperror.BadRequest("id_token is required")
	}
	id, err := s.verify(ctx, req.IDToken)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	user, created, err := s.findOrCreate(ctx, id.Email, req.Name, "google")
	if err != nil {
		return nil, err
	}
	if !created && user.Name != req.Name {
		renamed, err := s.users.UpdateName(ctx, user.ID, req.Name)
		if err != nil {
			return nil, apperror.Internal(err, "update user name")
		}
		if renamed != nil {
			user = renamed
		}
	}
	return s.issue(user, created)
}

func (s *authService) CurrentUser(ctx context.Context, p *auth.Payload) (*domain.Profile, error) {
	if p == nil || p.UID == "" {
		return nil, apperror.Unauthorized("user not authenticated")
	}
	user, err := s.users.FindByID(ctx, p.UID)
	if err != nil {
		return nil, apperror.Internal(err, "find user by id")
	}
	if user == nil {
		return nil, apperror.Unauthorized("user not found")
	}
	profile := user.ToProfile()
	return &profile, nil
}
