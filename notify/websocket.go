package notify

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-router"

	auth "github.com/goliatone/go-storefront-auth"
)

// WSTokenValidator lets go-router's websocket auth middleware validate
// session tokens with the same validator the HTTP routes use
type WSTokenValidator struct {
	validator auth.TokenValidator
}

func NewWSTokenValidator(validator auth.TokenValidator) *WSTokenValidator {
	return &WSTokenValidator{validator: validator}
}

// Validate implements router.WSTokenValidator
func (w *WSTokenValidator) Validate(tokenString string) (router.WSAuthClaims, error) {
	claims, err := w.validator.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return &wsClaims{AuthClaims: claims}, nil
}

// wsClaims maps the storefront role ladder onto the resource permissions
// go-router's websocket claims expose
type wsClaims struct {
	auth.AuthClaims
}

func (c *wsClaims) role() auth.Role { return auth.Role(c.Role()) }

func (c *wsClaims) CanRead(string) bool   { return c.role().CanRead() }
func (c *wsClaims) CanEdit(string) bool   { return c.role().CanEdit() }
func (c *wsClaims) CanCreate(string) bool { return c.role().CanCreate() }
func (c *wsClaims) CanDelete(string) bool { return c.role().CanDelete() }

// NewWSAuthMiddleware builds the websocket auth middleware on top of validator
func NewWSAuthMiddleware(validator auth.TokenValidator, cfg ...router.WSAuthConfig) router.WebSocketMiddleware {
	var config router.WSAuthConfig
	if len(cfg) > 0 {
		config = cfg[0]
	}
	config.TokenValidator = NewWSTokenValidator(validator)
	return router.NewWSAuth(config)
}

// ClaimsFromContext returns the session claims the websocket auth middleware stored
func ClaimsFromContext(ctx context.Context) (auth.AuthClaims, bool) {
	claims, ok := router.WSAuthClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}
	if adapted, ok := claims.(*wsClaims); ok {
		return adapted.AuthClaims, true
	}
	return nil, false
}

// FrameConn is the part of a websocket client the bridge needs. The
// client context ends when the peer disconnects.
type FrameConn interface {
	Context() context.Context
	Send(data []byte) error
}

// Bridge forwards hub messages for the authenticated user to a websocket
type Bridge struct {
	hub    *Hub
	logger auth.Logger
}

func NewBridge(hub *Hub, logger auth.Logger) *Bridge {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Bridge{hub: hub, logger: logger}
}

// Handle is the websocket handler, it expects the auth middleware to run first
func (b *Bridge) Handle(ctx context.Context, client router.WSClient) error {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return auth.ErrMissingToken
	}
	return b.Serve(ctx, claims.UserID(), client)
}

// Serve pumps the user's topic and the broadcast topic into conn until the
// peer goes away, ctx ends or the hub closes
func (b *Bridge) Serve(ctx context.Context, userID string, conn FrameConn) error {
	private := b.hub.Subscribe(UserTopic(userID))
	defer private.Close()

	broadcast := b.hub.Subscribe(BroadcastTopic)
	defer broadcast.Close()

	gone := conn.Context().Done()

	for {
		var (
			msg Message
			ok  bool
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-gone:
			return nil
		case msg, ok = <-private.C():
		case msg, ok = <-broadcast.C():
		}

		if !ok {
			return nil
		}

		data, err := json.Marshal(msg)
		if err != nil {
			b.logger.Error("notify: encode message failed", "type", msg.Type, "error", err)
			continue
		}

		if err := conn.Send(data); err != nil {
			b.logger.Debug("notify: send failed", "user_id", userID, "error", err)
			return nil
		}
	}
}
