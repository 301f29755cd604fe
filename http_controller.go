package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-router"
)

// SessionAuthenticator logs in with local credentials
type SessionAuthenticator interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
}

// UserRegistrar creates local identities
type UserRegistrar interface {
	Register(ctx context.Context, msg RegisterUserMessage) (*User, error)
}

// ProviderRoutes serves the begin and callback routes of an external
// identity provider, mounted at /<name> and /<name>callback
type ProviderRoutes interface {
	ProviderName() string
	Begin(ctx router.Context) error
	Callback(ctx router.Context) error
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// SessionController serves the session API
type SessionController struct {
	Auther       SessionAuthenticator
	Registrar    UserRegistrar
	Roles        RoleToggler
	Guard        *AccessGuard
	Cookies      *SessionCookies
	Providers    []ProviderRoutes
	Logger       Logger
	ActivitySink ActivitySink
}

type SessionControllerOption func(*SessionController) *SessionController

func WithSessionAuther(a SessionAuthenticator) SessionControllerOption {
	return func(c *SessionController) *SessionController {
		c.Auther = a
		return c
	}
}

func WithSessionRegistrar(r UserRegistrar) SessionControllerOption {
	return func(c *SessionController) *SessionController {
		c.Registrar = r
		return c
	}
}

func WithSessionRoles(r RoleToggler) SessionControllerOption {
	return func(c *SessionController) *SessionController {
		c.Roles = r
		return c
	}
}

func WithSessionGuard(g *AccessGuard) SessionControllerOption {
	return func(c *SessionController) *SessionController {
		c.Guard = g
		return c
	}
}

func WithSessionCookies(s *SessionCookies) SessionControllerOption {
	return func(c *SessionController) *SessionController {
		c.Cookies = s
		return c
	}
}

// WithProviderRoutes mounts external provider logins next to the session routes
func WithProviderRoutes(providers ...ProviderRoutes) SessionControllerOption {
	return func(c *SessionController) *SessionController {
		c.Providers = append(c.Providers, providers...)
		return c
	}
}

func WithSessionLogger(l Logger) SessionControllerOption {
	return func(c *SessionController) *SessionController {
		c.Logger = normalizeLogger(l)
		return c
	}
}

func WithSessionActivitySink(sink ActivitySink) SessionControllerOption {
	return func(c *SessionController) *SessionController {
		c.ActivitySink = normalizeActivitySink(sink)
		return c
	}
}

// NewSessionController builds the controller, it panics when a required
// collaborator is missing
func NewSessionController(opts ...SessionControllerOption) *SessionController {
	c := &SessionController{
		Logger:       defLogger{},
		ActivitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing SessionAuthenticator in session controller...")
	}
	if c.Registrar == nil {
		panic("Missing UserRegistrar in session controller...")
	}
	if c.Roles == nil {
		panic("Missing RoleToggler in session controller...")
	}
	if c.Guard == nil {
		panic("Missing AccessGuard in session controller...")
	}
	if c.Cookies == nil {
		c.Cookies = NewSessionCookies("", DefaultTokenTTL, false)
	}

	return c
}

// RegisterSessionRoutes mounts the session API on app. Static routes are
// registered before /:uid so they are not shadowed by it.
func RegisterSessionRoutes[T any](app router.Router[T], opts ...SessionControllerOption) *SessionController {
	c := NewSessionController(opts...)

	app.Post("/register", c.Register).SetName("sessions.register")
	app.Post("/login", c.Login).SetName("sessions.login")

	for _, p := range c.Providers {
		name := p.ProviderName()
		app.Get("/"+name, p.Begin).SetName("sessions." + name)
		app.Get("/"+name+"callback", p.Callback).SetName("sessions." + name + ".callback")
	}

	app.Get("/current", c.Current, c.Guard.Authenticated()).SetName("sessions.current")
	app.Get("/logout", c.Logout, c.Guard.Optional()).SetName("sessions.logout")

	app.Post("/premium/:uid", c.TogglePremium, c.Guard.RequireRoles(RoleAdmin)).SetName("sessions.premium")
	app.Get("/:uid", c.GetUser, c.Guard.RequireRoles(RoleAdmin)).SetName("sessions.user")

	return c
}

// Register creates a local identity
func (c *SessionController) Register(ctx router.Context) error {
	payload := new(RegisterUserMessage)
	if err := ctx.Bind(payload); err != nil {
		return c.rejectBody(ctx, "register", ActivityEventRegisterFailure, err)
	}

	user, err := c.Registrar.Register(ctx.Context(), *payload)
	if err != nil {
		return c.fail(ctx, "register", err)
	}

	return ctx.JSON(router.StatusOK, Success(user.Summary()))
}

// Login checks local credentials, sets the session cookie and returns the token
func (c *SessionController) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.rejectBody(ctx, "login", ActivityEventLoginFailure, err)
	}

	result, err := c.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return c.fail(ctx, "login", err)
	}

	c.Cookies.Set(ctx, result.Token, result.ExpiresAt)

	return ctx.JSON(router.StatusOK, LoginResponse{
		Status:    "success",
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Payload:   result.User.Summary(),
	})
}

// Current returns the identity carried by the session token
func (c *SessionController) Current(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, c.Guard.ContextKey())
	if !ok {
		return c.fail(ctx, "current", ErrMissingToken)
	}

	recordActivity(ctx.Context(), c.ActivitySink, c.Logger, ActivityEvent{
		EventType:  ActivityEventSessionCurrent,
		Actor:      ActorRef{ID: claims.UserID(), Type: "user"},
		UserID:     claims.UserID(),
		OccurredAt: time.Now().UTC(),
	})

	role, _ := ParseRole(claims.Role())
	return ctx.JSON(router.StatusOK, CurrentResponse{
		User: PublicUser{
			ID:    claims.UserID(),
			Email: claims.Email(),
			Role:  role,
		},
	})
}

// Logout clears the session cookie. Tokens are not revoked server side.
func (c *SessionController) Logout(ctx router.Context) error {
	c.Cookies.Clear(ctx)

	event := ActivityEvent{
		EventType:  ActivityEventLogout,
		Actor:      ActorRef{Type: "anonymous"},
		OccurredAt: time.Now().UTC(),
	}
	if claims, ok := GetRouterClaims(ctx, c.Guard.ContextKey()); ok {
		event.Actor = ActorRef{ID: claims.UserID(), Type: "user"}
		event.UserID = claims.UserID()
	}
	recordActivity(ctx.Context(), c.ActivitySink, c.Logger, event)

	return ctx.JSON(router.StatusOK, Success(nil))
}

// GetUser returns an identity summary, admin only
func (c *SessionController) GetUser(ctx router.Context) error {
	uid := ctx.Param("uid")

	event := ActivityEvent{
		EventType:  ActivityEventUserLookup,
		Actor:      ActorRef{Type: "user"},
		UserID:     uid,
		OccurredAt: time.Now().UTC(),
	}
	if actor, ok := GetRouterClaims(ctx, c.Guard.ContextKey()); ok {
		event.Actor.ID = actor.UserID()
	}

	user, err := c.Roles.GetUser(ctx.Context(), uid)
	if err != nil {
		event.EventType = ActivityEventUserLookupFailure
		event.Metadata = failureMetadata(err, nil)
		recordActivity(ctx.Context(), c.ActivitySink, c.Logger, event)
		return c.fail(ctx, "get_user", err)
	}

	recordActivity(ctx.Context(), c.ActivitySink, c.Logger, event)
	return ctx.JSON(router.StatusOK, Success(user.Summary()))
}

// TogglePremium flips the target between user and premium, admin only
func (c *SessionController) TogglePremium(ctx router.Context) error {
	actor, _ := GetRouterClaims(ctx, c.Guard.ContextKey())

	user, err := c.Roles.TogglePremium(ctx.Context(), actor, ctx.Param("uid"))
	if err != nil {
		return c.fail(ctx, "toggle_premium", err)
	}
	return ctx.JSON(router.StatusOK, Success(user.Summary()))
}

func (c *SessionController) fail(ctx router.Context, route string, err error) error {
	logRequestError(c.Logger, route, err)
	return WriteError(ctx, err)
}

// rejectBody answers undecodable payloads, which never reach the services
// that record their own events
func (c *SessionController) rejectBody(ctx router.Context, route string, eventType ActivityEventType, err error) error {
	verr := ValidationError(err, map[string]any{"body": "malformed request body"})
	recordActivity(ctx.Context(), c.ActivitySink, c.Logger, ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{Type: "anonymous"},
		Metadata:   failureMetadata(verr, nil),
		OccurredAt: time.Now().UTC(),
	})
	return c.fail(ctx, route, verr)
}
