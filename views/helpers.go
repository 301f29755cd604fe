package views

import (
	auth "github.com/goliatone/go-storefront-auth"
)

// TemplateUserKey is the template variable holding the signed in user
const TemplateUserKey = "current_user"

// TemplateHelpers returns the functions and constants every page gets.
//
// In templates:
//
//	{% if is_authenticated(current_user) %}
//	{% if is_at_least(current_user, roles.premium) %}
//	{% if has_role(current_user, roles.admin) %}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"is_authenticated": isAuthenticated,
		"has_role":         hasRole,
		"is_at_least":      isAtLeast,
		"roles": map[string]string{
			"user":    string(auth.RoleUser),
			"premium": string(auth.RolePremium),
			"admin":   string(auth.RoleAdmin),
		},
	}
}

// TemplateUser flattens claims into the map templates read
func TemplateUser(claims auth.AuthClaims) map[string]any {
	if claims == nil || claims.UserID() == "" {
		return nil
	}
	return map[string]any{
		"id":    claims.UserID(),
		"email": claims.Email(),
		"role":  claims.Role(),
	}
}

func userRole(user any) (auth.Role, bool) {
	switch u := user.(type) {
	case map[string]any:
		raw, _ := u["role"].(string)
		return auth.ParseRole(raw)
	case auth.AuthClaims:
		if u == nil {
			return "", false
		}
		return auth.ParseRole(u.Role())
	case *auth.User:
		if u == nil {
			return "", false
		}
		return u.Role, u.Role.IsValid()
	default:
		return "", false
	}
}

func isAuthenticated(user any) bool {
	switch u := user.(type) {
	case map[string]any:
		id, _ := u["id"].(string)
		return id != ""
	case auth.AuthClaims:
		return u != nil && u.UserID() != ""
	case *auth.User:
		return u != nil
	default:
		return false
	}
}

func hasRole(user any, role string) bool {
	current, ok := userRole(user)
	return ok && string(current) == role
}

func isAtLeast(user any, minRole string) bool {
	current, ok := userRole(user)
	if !ok {
		return false
	}
	return current.IsAtLeast(auth.Role(minRole))
}
