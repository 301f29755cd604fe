package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	auth "github.com/goliatone/go-storefront-auth"
	"github.com/goliatone/go-storefront-auth/config"
	"github.com/goliatone/go-storefront-auth/metrics"
	"github.com/goliatone/go-storefront-auth/notify"
	"github.com/goliatone/go-storefront-auth/repository/bunrepo"
	"github.com/goliatone/go-storefront-auth/repository/mongorepo"
	"github.com/goliatone/go-storefront-auth/social"
	"github.com/goliatone/go-storefront-auth/social/providers/github"
	"github.com/goliatone/go-storefront-auth/views"
)

type App struct {
	config    *config.Config
	logger    *glog.BaseLogger
	users     auth.Users
	closers   []func(context.Context) error
	srv       router.Server[*fiber.App]
	registry  *prometheus.Registry
	hub       *notify.Hub
	sink      auth.ActivitySink
	tokens    *auth.TokenService
	validator auth.TokenValidator
	guard     *auth.AccessGuard
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %s\n", err)
		os.Exit(1)
	}

	app := &App{config: cfg}

	if level := strings.ToLower(cfg.LogLevel); level == "debug" || level == "trace" {
		app.logger = glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("storefront"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	} else {
		app.logger = glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithName("storefront"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		app.GetLogger("app").Error("persistence setup failed", "error", err)
		os.Exit(1)
	}

	WithObservability(app)

	if err := WithHTTPServer(app); err != nil {
		app.GetLogger("app").Error("http setup failed", "error", err)
		os.Exit(1)
	}

	WithSessionRoutes(app)
	WithNotifications(app)

	Serve(app)
}

// WithPersistence picks the users store from the database url
func WithPersistence(ctx context.Context, app *App) error {
	cfg := app.config
	logger := app.GetLogger("persistence")

	if mongorepo.IsMongoURL(cfg.DatabaseURL) {
		client, err := mongorepo.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		app.onClose(client.Disconnect)

		store := mongorepo.NewUsers(client.Database(cfg.DatabaseName).Collection(mongorepo.DefaultCollection))
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("using mongo users store", "database", cfg.DatabaseName)
		app.users = store
		return nil
	}

	db, err := bunrepo.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	app.onClose(func(context.Context) error { return db.Close() })

	store := bunrepo.NewUsers(db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("using sql users store", "dialect", db.Dialect().Name().String())
	app.users = store
	return nil
}

// WithObservability sets up the activity fan out: logs, metrics and the
// notification hub
func WithObservability(app *App) {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app.hub = notify.NewHub(notify.WithLogger(app.GetLogger("notify")))
	app.onClose(func(context.Context) error {
		app.hub.Close()
		return nil
	})

	app.sink = auth.MultiActivitySink{
		auth.NewLoggingActivitySink(app.GetLogger("auth:activity")),
		metrics.NewCollector(app.registry),
		notify.NewActivitySink(app.hub),
	}
}

func WithHTTPServer(app *App) error {
	engine := views.NewEngine()
	if err := engine.Load(); err != nil {
		return err
	}

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
	})

	srv.WrappedRouter().Use(cors.New(cors.Config{
		AllowOrigins:     app.config.CORSOrigin,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
	}))

	srv.Router().WithLogger(app.GetLogger("router"))

	app.srv = srv
	return nil
}

func WithSessionRoutes(app *App) {
	cfg := app.config

	app.tokens = auth.NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetTokenTTL(), cfg.GetIssuer(),
		auth.WithTokenLogger(app.GetLogger("auth:token")),
	)

	app.validator = app.tokens
	if prev := cfg.GetPreviousSigningKey(); prev != "" {
		app.validator = auth.NewMultiTokenValidator(app.tokens, auth.NewTokenService([]byte(prev), cfg.GetTokenTTL(), cfg.GetIssuer()))
	}

	app.guard = auth.NewAccessGuard(app.validator,
		auth.WithGuardContextKey(cfg.GetContextKey()),
		auth.WithGuardTokenLookup(cfg.GetTokenLookup()),
		auth.WithGuardActivitySink(app.sink),
		auth.WithGuardLogger(app.GetLogger("auth:guard")),
	)

	hasher := auth.NewPasswordHasher(cfg.BcryptCost)

	verifier := auth.NewUserProvider(app.users).
		WithPasswordHasher(hasher).
		WithLogger(app.GetLogger("auth:prv"))

	auther := auth.NewAuthenticator(verifier, app.tokens).
		WithLogger(app.GetLogger("auth:login")).
		WithActivitySink(app.sink)

	registrar := auth.NewRegistrar(app.users).
		WithPasswordHasher(hasher).
		WithHashid(cfg.HashidUserIDs).
		WithLogger(app.GetLogger("auth:register")).
		WithActivitySink(app.sink)

	roles := auth.NewRoleService(app.users,
		auth.WithRoleServiceActivitySink(app.sink),
		auth.WithRoleServiceLogger(app.GetLogger("auth:roles")),
	)

	cookies := auth.NewSessionCookies(cfg.GetCookieName(), cfg.GetTokenTTL(), cfg.GetCookieSecure())

	opts := []auth.SessionControllerOption{
		auth.WithSessionAuther(auther),
		auth.WithSessionRegistrar(registrar),
		auth.WithSessionRoles(roles),
		auth.WithSessionGuard(app.guard),
		auth.WithSessionCookies(cookies),
		auth.WithSessionLogger(app.GetLogger("auth:http")),
		auth.WithSessionActivitySink(app.sink),
	}

	if cfg.GitHubEnabled() {
		sa := social.NewSocialAuthenticator(auther, social.SocialAuthConfig{
			DefaultRedirectURL: cfg.GetSuccessRedirect(),
			StateSecret:        cfg.StateSecret(),
		},
			social.WithProvider(github.New(github.Config{
				ClientID:     cfg.GitHubClientID,
				ClientSecret: cfg.GitHubClientSecret,
				CallbackURL:  cfg.GitHubCallbackURL,
			})),
			social.WithActivitySink(app.sink),
			social.WithLogger(app.GetLogger("auth:social")),
		)

		opts = append(opts, auth.WithProviderRoutes(social.NewHTTPController(sa, github.ProviderName, cookies, social.HTTPConfig{
			SuccessRedirect: cfg.GetSuccessRedirect(),
			FailureRedirect: cfg.GetFailureRedirect(),
			Logger:          app.GetLogger("auth:social:http"),
		})))
	}

	auth.RegisterSessionRoutes(app.srv.Router().Group(cfg.GetRoutePrefix()), opts...)

	views.RegisterPages(app.srv.Router(), app.guard, views.Config{
		RoutePrefix:   cfg.GetRoutePrefix(),
		GitHubEnabled: cfg.GitHubEnabled(),
	})
}

func WithNotifications(app *App) {
	bridge := notify.NewBridge(app.hub, app.GetLogger("notify:ws"))

	middleware := router.ChainWSMiddleware(
		router.NewWSRecover(),
		notify.NewWSAuthMiddleware(app.validator, router.WSAuthConfig{
			EnableTokenCookie: true,
			TokenCookieNames:  []string{app.config.GetCookieName()},
		}),
	)

	wsConfig := router.DefaultWebSocketConfig()
	wsConfig.Origins = []string{app.config.CORSOrigin}

	app.srv.Router().Get("/ws/notifications",
		router.NewWSHandler(middleware(bridge.Handle)),
		router.WebSocketUpgrade(wsConfig),
	).SetName("notify.ws")
}

// Serve runs the API and metrics listeners until a signal arrives, then
// drains both and releases the stores
func Serve(app *App) {
	logger := app.GetLogger("app")
	cfg := app.config

	fmt.Println(print.MaybeHighlightJSON(map[string]any{
		"port":         cfg.Port,
		"route_prefix": cfg.GetRoutePrefix(),
		"metrics_addr": cfg.MetricsAddr,
		"github":       cfg.GitHubEnabled(),
	}))

	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metrics.NewMux(app.registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 2)

	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- fmt.Errorf("metrics listener: %w", err)
		}
	}()

	go func() {
		if err := app.srv.Serve(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			errs <- fmt.Errorf("http listener: %w", err)
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errs:
		logger.Error("listener failed", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logger.Error("metrics shutdown", "error", err)
	}

	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil {
			logger.Error("close", "error", err)
		}
	}
}
