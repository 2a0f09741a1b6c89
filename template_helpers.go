package identity

import (
	"github.com/goliatone/go-router"
)

var TemplateUserKey = "current_user"

// TemplateHelpers returns a map of helper functions and data that can be used
// with go-template's WithGlobalData option for authentication-related template
// functionality.
//
// Usage:
//
//	renderer, err := template.NewRenderer(
//	    template.WithBaseDir("./templates"),
//	    template.WithGlobalData(identity.TemplateHelpers()),
//	)
//
// In templates, you can then use:
//
//	{% if current_user %}
//	{% if current_user|is_verified %}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"is_authenticated": isAuthenticated,
		"is_verified":      isVerified,
	}
}

// TemplateHelpersWithUser returns template helpers with a specific user set as
// current_user. This is useful when you want to inject the current user
// directly into the global context.
//
// Usage:
//
//	currentUser := getCurrentUser(ctx)
//	renderer, err := template.NewRenderer(
//	    template.WithBaseDir("./templates"),
//	    template.WithGlobalData(identity.TemplateHelpersWithUser(currentUser)),
//	)
func TemplateHelpersWithUser(user *User) map[string]any {
	helpers := TemplateHelpers()
	helpers[TemplateUserKey] = user
	return helpers
}

// TemplateHelpersWithRouter returns template helpers with user data extracted
// from router context. This is useful for automatically injecting the current
// user populated by the JWT middleware.
//
// Usage:
//
//	// In your route handler
//	globalData := identity.TemplateHelpersWithRouter(ctx, identity.TemplateUserKey)
//	// Merge with request-specific data and render template
func TemplateHelpersWithRouter(ctx router.Context, userKey string) map[string]any {
	if userKey == "" {
		userKey = TemplateUserKey
	}

	helpers := TemplateHelpers()

	if user := ctx.Locals(userKey); user != nil {
		helpers[TemplateUserKey] = user
	}

	return helpers
}

// GetTemplateUser is a convenience function to extract user data from router
// context for template usage. It returns the user object and a boolean
// indicating if it was found.
//
// Usage:
//
//	if user, ok := identity.GetTemplateUser(ctx, identity.TemplateUserKey); ok {
//	    data["user"] = user
//	}
func GetTemplateUser(ctx router.Context, userKey string) (any, bool) {
	if userKey == "" {
		userKey = TemplateUserKey
	}

	user := ctx.Locals(userKey)
	return user, user != nil
}

// isAuthenticated checks if the provided user object is not nil
func isAuthenticated(user any) bool {
	if user == nil {
		return false
	}

	switch u := user.(type) {
	case *User:
		return u != nil
	case User:
		return true
	case AuthClaims:
		return u != nil && u.UserID() != ""
	case map[string]any:
		// Handle JSON-converted user objects
		return len(u) > 0
	default:
		return false
	}
}

// isVerified checks if the user completed email verification. Session claims
// only exist for verified accounts, so authenticated claims count as verified.
func isVerified(user any) bool {
	switch u := user.(type) {
	case *User:
		if u == nil {
			return false
		}
		return u.Verified
	case User:
		return u.Verified
	case AuthClaims:
		return u != nil && u.UserID() != ""
	case map[string]any:
		// Handle JSON-converted user objects
		if verified, exists := u["is_verified"]; exists {
			if flag, ok := verified.(bool); ok {
				return flag
			}
		}
		return false
	default:
		return false
	}
}
