package auth

import (
	"context"
	"time"
)

// LoginResult is what a successful login hands to the transport
type LoginResult struct {
	User      *User
	Token     string
	ExpiresAt time.Time
	Created   bool
}

// Auther composes credential verification and token issuance
type Auther struct {
	verifier     CredentialVerifier
	tokens       TokenIssuer
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(verifier CredentialVerifier, tokens TokenIssuer) *Auther {
	return &Auther{
		verifier:     verifier,
		tokens:       tokens,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the issuer used by this Authenticator
func (s *Auther) TokenService() TokenIssuer {
	return s.tokens
}

// Login verifies an email and password and issues a session token
func (s *Auther) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		s.logger.Debug("Login verify identity error", "error", err)
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Actor:     ActorRef{Type: "anonymous"},
			Metadata:  failureMetadata(err, map[string]any{"email": NormalizeEmail(email)}),
		})
		return nil, err
	}

	result, err := s.issue(user)
	if err != nil {
		s.logger.Error("Login token issue error", "error", err)
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Actor:     ActorRef{ID: user.ID, Type: "user"},
			UserID:    user.ID,
			Metadata:  failureMetadata(err, nil),
		})
		return nil, err
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: user.ID, Type: "user"},
		UserID:    user.ID,
		Metadata:  map[string]any{"method": "local"},
	})

	return result, nil
}

// LoginWithProfile proves a provider profile, linking or creating the
// identity, and issues a session token
func (s *Auther) LoginWithProfile(ctx context.Context, profile ProviderProfile) (*LoginResult, error) {
	user, created, err := s.verifier.VerifyProvider(ctx, profile)
	if err != nil {
		s.logger.Debug("LoginWithProfile verify error", "error", err)
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventSocialLoginFailure,
			Actor:     ActorRef{ID: profile.ProviderUserID, Type: profile.Provider},
			Metadata:  failureMetadata(err, map[string]any{"provider": profile.Provider}),
		})
		return nil, err
	}

	result, err := s.issue(user)
	if err != nil {
		s.logger.Error("LoginWithProfile token issue error", "error", err)
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventSocialLoginFailure,
			Actor:     ActorRef{ID: user.ID, Type: "user"},
			UserID:    user.ID,
			Metadata:  failureMetadata(err, map[string]any{"provider": profile.Provider}),
		})
		return nil, err
	}
	result.Created = created

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventSocialLogin,
		Actor:     ActorRef{ID: user.ID, Type: "user"},
		UserID:    user.ID,
		Metadata: map[string]any{
			"method":  profile.Provider,
			"created": created,
		},
	})

	return result, nil
}

func (s *Auther) issue(user *User) (*LoginResult, error) {
	token, expiresAt, err := s.tokens.Issue(NewIdentityFromUser(user))
	if err != nil {
		return nil, AsRichError(err)
	}
	return &LoginResult{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Auther) emit(ctx context.Context, event ActivityEvent) {
	recordActivity(ctx, s.activitySink, s.logger, event)
}
