package middleware

import (
	"net/http"

	"github.com/casbin/casbin/v2"

	"go-blog-cms/internal/auth"
	"go-blog-cms/internal/session"
)

// SessionKeySubject is the session key holding the verified OIDC subject.
const SessionKeySubject = "user_subject"

// SessionKeyRole is the session key holding the user's role. Privilege is
// derived from it, so it survives a reload and is cleared on logout.
const SessionKeyRole = "user_role"

// Authorizer creates a new middleware for authorization.
// It checks the user's permissions using Casbin based on session data.
func Authorizer(e *casbin.Enforcer, sm session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := sm.GetString(r.Context(), SessionKeySubject)
			role := sm.GetString(r.Context(), SessionKeyRole)
			if role == "" {
				role = auth.RoleAnonymous
			}
			if subject == "" {
				subject = auth.RoleAnonymous
			}

			userInfo := &UserInfo{Subject: subject, Role: role}
			r = r.WithContext(SetUserInfo(r.Context(), userInfo))

			// Policies are written against roles, not individual subjects.
			allowed, err := e.Enforce(role, r.URL.Path, r.Method)
			if err != nil {
				http.Error(w, "Authorization error", http.StatusInternalServerError)
				return
			}

			if !allowed {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
