// Package views serves the server rendered login and home pages.
package views

import (
	"embed"
	"maps"
	"net/http"
	"strings"

	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-router"

	auth "github.com/goliatone/go-storefront-auth"
	"github.com/goliatone/go-storefront-auth/social"
)

//go:embed templates/*.html
var templatesFS embed.FS

// NewEngine returns the django engine over the embedded templates.
// Path forwarding keeps {% extends %} working inside the embedded tree.
func NewEngine() *django.Engine {
	return django.NewPathForwardingFileSystem(http.FS(templatesFS), "/templates", ".html")
}

// Config holds the links the pages point at
type Config struct {
	// RoutePrefix is where the session API is mounted
	RoutePrefix string
	// GitHubEnabled shows the GitHub button on the login page
	GitHubEnabled bool
}

// Pages renders /login and /home
type Pages struct {
	guard  *auth.AccessGuard
	config Config
}

func NewPages(guard *auth.AccessGuard, cfg Config) *Pages {
	if guard == nil {
		panic("views: access guard is required")
	}
	cfg.RoutePrefix = "/" + strings.Trim(cfg.RoutePrefix, "/")
	return &Pages{guard: guard, config: cfg}
}

// RegisterPages mounts the pages on any router flavour
func RegisterPages[T any](app router.Router[T], guard *auth.AccessGuard, cfg Config) *Pages {
	p := NewPages(guard, cfg)
	app.Get("/login", p.Login).SetName("views.login")
	app.Get("/home", p.Home, p.guard.Optional()).SetName("views.home")
	return p
}

// LoginData is the template context of the login page
func (p *Pages) LoginData(errorCode string) router.ViewContext {
	data := router.ViewContext{
		"title":           "Sign in",
		"login_action":    p.config.RoutePrefix + "/login",
		"register_action": p.config.RoutePrefix + "/register",
	}
	if p.config.GitHubEnabled {
		data["github_url"] = p.config.RoutePrefix + "/github"
	}
	if errorCode != "" {
		data["error"] = errorCode
		data["error_message"] = errorMessage(errorCode)
	}
	return p.withHelpers(data)
}

// HomeData is the template context of the home page
func (p *Pages) HomeData(claims auth.AuthClaims) router.ViewContext {
	data := router.ViewContext{
		"title":      "Home",
		"login_url":  "/login",
		"logout_url": p.config.RoutePrefix + "/logout",
	}
	if user := TemplateUser(claims); user != nil {
		data[TemplateUserKey] = user
	}
	return p.withHelpers(data)
}

func (p *Pages) Login(ctx router.Context) error {
	return ctx.Render("login", p.LoginData(ctx.Query("error", "")))
}

func (p *Pages) Home(ctx router.Context) error {
	claims, _ := auth.GetRouterClaims(ctx, p.guard.ContextKey())
	return ctx.Render("home", p.HomeData(claims))
}

func (p *Pages) withHelpers(data router.ViewContext) router.ViewContext {
	out := router.ViewContext(TemplateHelpers())
	maps.Copy(out, data)
	return out
}

func errorMessage(code string) string {
	switch code {
	case auth.TextCodeEmailTaken:
		return "That email is already registered with another sign in method."
	case social.TextCodeAccessDenied:
		return "GitHub sign in was cancelled."
	case social.TextCodeInvalidState, social.TextCodeStateExpired:
		return "The sign in attempt expired, please try again."
	default:
		return "Sign in failed, please try again."
	}
}
