package middleware

import (
	"net/http"
	"strings"

	"github.com/sandeepkv93/tenant-session-core/internal/http/response"
	"github.com/sandeepkv93/tenant-session-core/internal/observability"
)

// RequireRole admits principals whose tenant role matches one of roles,
// compared case-insensitively.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				response.Unauthorized(w, r, "missing auth context")
				return
			}
			for _, role := range roles {
				if strings.EqualFold(principal.Role, role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			observability.Audit(r, "authz.role_check", "denied", "role_mismatch",
				"user_id", principal.UserID.String(),
				"role", principal.Role,
			)
			response.Error(w, r, http.StatusForbidden, response.CodeForbidden, "insufficient role", map[string]any{"required": roles})
		})
	}
}
